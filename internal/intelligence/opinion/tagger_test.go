package opinion

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/opinion-miner/pkg/errors"
)

// writeScript writes an executable shell script into dir.
func writeScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts are not executable on windows")
	}
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755))
	return path
}

func writeModelFolder(t *testing.T, layers ...Layer) string {
	t.Helper()
	dir := t.TempDir()
	for _, l := range layers {
		require.NoError(t, os.WriteFile(filepath.Join(dir, l.ModelFile()), []byte("model"), 0o644))
	}
	return dir
}

func TestLayer_Properties(t *testing.T) {
	assert.Equal(t, EntityExpression, LayerExpression.EntityType())
	assert.Equal(t, EntityTarget, LayerTarget.EntityType())
	assert.Equal(t, EntityHolder, LayerHolder.EntityType())
	assert.Equal(t, "exp", LayerExpression.IDPrefix())
	assert.Equal(t, "tar", LayerTarget.IDPrefix())
	assert.Equal(t, "hol", LayerHolder.IDPrefix())
	assert.Equal(t, "model.holder", LayerHolder.ModelFile())
}

func TestCheckModelFolder(t *testing.T) {
	assert.NoError(t, CheckModelFolder(writeModelFolder(t, Layers...)))

	err := CheckModelFolder(writeModelFolder(t, LayerExpression, LayerTarget))
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeModelNotFound))
	assert.Contains(t, err.Error(), "model.holder")
}

func TestCRFTagger_Tag(t *testing.T) {
	bin := t.TempDir()
	script := writeScript(t, bin, "crf_test",
		"echo \"$2\" > \""+filepath.Join(bin, "model-arg")+"\"\n"+
			"sed 's/\tO$/\tB-DSE/' \"$3\"\n")
	models := writeModelFolder(t, Layers...)

	features := filepath.Join(t.TempDir(), "features.txt")
	require.NoError(t, os.WriteFile(features, []byte("stdin#w4\tloved\tO\n\nstdin#w9\tawful\tO\n"), 0o644))

	tagger := NewCRFTagger(script, models, nil)
	assert.Equal(t, models, tagger.ModelFolder())

	out, err := tagger.Tag(context.Background(), LayerExpression, features)
	require.NoError(t, err)
	assert.Equal(t, []string{"stdin#w4\tloved\tB-DSE", "", "stdin#w9\tawful\tB-DSE"}, out)

	arg, err := os.ReadFile(filepath.Join(bin, "model-arg"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(models, "model.expression")+"\n", string(arg))
}

func TestCRFTagger_NonZeroExit(t *testing.T) {
	script := writeScript(t, t.TempDir(), "crf_test", "echo 'cannot open model' >&2\nexit 3\n")

	_, err := NewCRFTagger(script, t.TempDir(), nil).Tag(context.Background(), LayerTarget, "features.txt")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeTaggerFailed))
	assert.Contains(t, err.Error(), "cannot open model")
	assert.Contains(t, err.Error(), "layer=target")
}

func TestCRFTagger_MissingBinary(t *testing.T) {
	_, err := NewCRFTagger(filepath.Join(t.TempDir(), "nope"), t.TempDir(), nil).
		Tag(context.Background(), LayerExpression, "features.txt")
	assert.True(t, errors.IsCode(err, errors.ErrCodeTaggerFailed))
}

func TestWithFeatureFile_RemovesFileOnEveryPath(t *testing.T) {
	dir := t.TempDir()

	var seen string
	err := withFeatureFile(dir, "f-*", func(w io.Writer) error {
		_, err := io.WriteString(w, "stdin#w1\tThe\tO\n")
		return err
	}, func(path string) error {
		seen = path
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "stdin#w1\tThe\tO\n", string(data))
		return nil
	})
	require.NoError(t, err)
	assert.NoFileExists(t, seen)

	boom := errors.New(errors.ErrCodeTaggerFailed, "boom")
	err = withFeatureFile(dir, "f-*", func(io.Writer) error { return nil }, func(path string) error {
		seen = path
		return boom
	})
	assert.Equal(t, boom, err)
	assert.NoFileExists(t, seen)

	called := false
	err = withFeatureFile(dir, "f-*", func(io.Writer) error { return boom }, func(string) error {
		called = true
		return nil
	})
	assert.Equal(t, boom, err)
	assert.False(t, called)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
