package logging

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

func newBufferLogger(t *testing.T) (Logger, *zaptest.Buffer) {
	t.Helper()
	buf := &zaptest.Buffer{}
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), buf, zapcore.DebugLevel)
	return &zapLogger{z: zap.New(core)}, buf
}

func TestNewLogger_Formats(t *testing.T) {
	for _, format := range []string{"json", "console", ""} {
		l, err := NewLogger(LogConfig{Level: "debug", Format: format})
		require.NoError(t, err, format)
		assert.NotNil(t, l)
	}
}

func TestNewLogger_BadOutputPath(t *testing.T) {
	l, err := NewLogger(LogConfig{OutputPaths: []string{"/nonexistent-dir/for/sure/log.txt"}})
	assert.Error(t, err)
	assert.Nil(t, l)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, ParseLevel("DEBUG"))
	assert.Equal(t, zapcore.WarnLevel, ParseLevel("warning"))
	assert.Equal(t, zapcore.ErrorLevel, ParseLevel(" error "))
	assert.Equal(t, zapcore.InfoLevel, ParseLevel("verbose"))
}

func TestZapLogger_WritesFields(t *testing.T) {
	l, buf := newBufferLogger(t)

	l.Info("spans extracted",
		String("layer", "expression"),
		Strings("ids", []string{"w1", "w2"}),
		Int("count", 2),
		Float64("avg_rank", 1.5),
		Bool("dedup", false),
		Duration("elapsed", time.Second),
		Err(errors.New("boom")),
	)

	out := buf.String()
	assert.Contains(t, out, `"msg":"spans extracted"`)
	assert.Contains(t, out, `"layer":"expression"`)
	assert.Contains(t, out, `"ids":["w1","w2"]`)
	assert.Contains(t, out, `"count":2`)
	assert.Contains(t, out, `"error":"boom"`)
}

func TestZapLogger_WithAndNamed(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := NewLoggerFromCore(core).Named("miner").With(String("doc", "stdin"))

	l.Debug("tagging")
	l.Warn("no expressions")

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "miner", entries[0].LoggerName)
	assert.Equal(t, "stdin", entries[0].ContextMap()["doc"])
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
}

func TestErr_Nil(t *testing.T) {
	assert.Equal(t, "<nil>", Err(nil).Value)
}

func TestNopLogger(t *testing.T) {
	l := NewNopLogger()
	l.Debug("msg")
	l.Info("msg")
	l.Warn("msg")
	l.Error("msg")
	assert.NotNil(t, l.With(String("k", "v")))
	assert.NotNil(t, l.Named("x"))
	assert.NoError(t, l.Sync())
}

func TestOrNop(t *testing.T) {
	assert.NotNil(t, OrNop(nil))
	l, _ := newBufferLogger(t)
	assert.Equal(t, l, OrNop(l))
}

func TestDefault(t *testing.T) {
	prev := Default()
	t.Cleanup(func() { SetDefault(prev) })

	SetDefault(nil)
	assert.Equal(t, prev, Default())

	l, _ := newBufferLogger(t)
	SetDefault(l)
	assert.Equal(t, l, Default())
}

func TestSetLevel(t *testing.T) {
	l, err := NewLogger(LogConfig{Level: "warn"})
	require.NoError(t, err)
	child := l.Named("miner").With(String("doc", "review-1"))

	zl := child.(*zapLogger)
	assert.False(t, zl.z.Core().Enabled(zapcore.DebugLevel))

	assert.True(t, SetLevel(l, "debug"))
	assert.True(t, zl.z.Core().Enabled(zapcore.DebugLevel))

	assert.False(t, SetLevel(NewNopLogger(), "debug"))
	assert.False(t, SetLevel(NewLoggerFromCore(zapcore.NewNopCore()), "debug"))
}
