package cli

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/opinion-miner/internal/domain/annotation"
	"github.com/turtacn/opinion-miner/internal/testutil"
)

// runCLI executes the command tree with args and returns stdout.
func runCLI(t *testing.T, stdin io.Reader, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	if stdin != nil {
		cmd.SetIn(stdin)
	}
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func writeReviewDocument(t *testing.T, dir, name string) string {
	t.Helper()
	data, err := annotation.EncodeBytes(testutil.ReviewDocument())
	require.NoError(t, err)
	return writeFile(t, dir, name, string(data))
}

func writeScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts are not executable on windows")
	}
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755))
	return path
}

func TestNewRootCommand_Structure(t *testing.T) {
	cmd := NewRootCommand()
	assert.Equal(t, "opminer", cmd.Use)
	assert.NotEmpty(t, cmd.Short)

	names := make(map[string]bool)
	for _, sub := range cmd.Commands() {
		names[sub.Name()] = true
	}
	for _, want := range []string{"tag", "extract-sequences", "match-entities", "version"} {
		assert.True(t, names[want], "missing subcommand %s", want)
	}

	for _, flag := range []string{"config", "log-level", "output", "verbose"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(flag), "missing flag %s", flag)
	}
	assert.Equal(t, OutputText, cmd.PersistentFlags().Lookup("output").DefValue)
}

func TestRoot_RejectsUnknownOutput(t *testing.T) {
	_, err := runCLI(t, nil, "--output", "xml", "version")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported output format")
}

func TestRoot_BadConfigFile(t *testing.T) {
	_, err := runCLI(t, nil, "--config", filepath.Join(t.TempDir(), "absent.yaml"), "version")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "COMMON_017")
}

func TestVersion(t *testing.T) {
	out, err := runCLI(t, nil, "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "opminer dev"))

	out, err = runCLI(t, nil, "-o", "json", "version")
	require.NoError(t, err)
	assert.Contains(t, out, `"version": "dev"`)
}

func TestFormatTable(t *testing.T) {
	got := FormatTable([]string{"TYPE", "TEXT"}, [][]string{{"DSE", "loved"}, {"TARGET", "the room"}})
	want := "TYPE    TEXT\n" +
		"------  --------\n" +
		"DSE     loved\n" +
		"TARGET  the room\n"
	assert.Equal(t, want, got)
	assert.Empty(t, FormatTable(nil, nil))
}
