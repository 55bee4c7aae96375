package tool

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	gerrors "github.com/olivejs/ginger/internal/errors"
)

func skipOnWindows(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("uses POSIX executables")
	}
}

func TestExecRunnerRunsAllowedCommand(t *testing.T) {
	skipOnWindows(t)
	r := NewExecRunner(nil, "echo")

	out, err := r.Run(context.Background(), Command{Name: "echo", Args: []string{"compiled", "index.scss"}})
	require.NoError(t, err)
	assert.Equal(t, "compiled index.scss\n", string(out))
}

func TestExecRunnerStreamsOutput(t *testing.T) {
	skipOnWindows(t)
	r := NewExecRunner(nil, "echo")
	var live bytes.Buffer

	out, err := r.Run(context.Background(), Command{Name: "echo", Args: []string{"Executed 3 of 3"}, Stdout: &live})
	require.NoError(t, err)
	assert.Equal(t, string(out), live.String())
}

func TestExecRunnerFailure(t *testing.T) {
	skipOnWindows(t)
	r := NewExecRunner(nil, "false")

	_, err := r.Run(context.Background(), Command{Name: "false"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "false failed")
}

func TestExecRunnerRejectsCommands(t *testing.T) {
	r := NewExecRunner(nil)

	tests := []struct {
		name string
		cmd  Command
	}{
		{"not allowlisted", Command{Name: "rm", Args: []string{"-rf", "dist"}}},
		{"path in name", Command{Name: "./sass"}},
		{"empty", Command{}},
		{"shell chaining", Command{Name: "sass", Args: []string{"in.scss; rm -rf /"}}},
		{"substitution", Command{Name: "karma", Args: []string{"$(whoami)"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Run(context.Background(), tt.cmd)
			require.Error(t, err)
			assert.True(t, gerrors.IsConfigError(err))
		})
	}
}

func TestExecRunnerMissingExecutable(t *testing.T) {
	r := NewExecRunner(nil, "ginger-missing-tool")

	_, err := r.Run(context.Background(), Command{Name: "ginger-missing-tool"})
	require.Error(t, err)
	assert.True(t, gerrors.IsToolError(err))
}

func TestExecRunnerPrefersLocalNodeModules(t *testing.T) {
	skipOnWindows(t)
	dir := t.TempDir()
	bin := filepath.Join(dir, "node_modules", ".bin")
	require.NoError(t, os.MkdirAll(bin, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(bin, "sass"), []byte("#!/bin/sh\necho local sass \"$@\"\n"), 0o755))

	r := NewExecRunner(nil)
	out, err := r.Run(context.Background(), Command{Name: "sass", Args: []string{"--version"}, Dir: dir})
	require.NoError(t, err)
	assert.Equal(t, "local sass --version\n", string(out))
}

func TestCommandString(t *testing.T) {
	assert.Equal(t, "sass --no-source-map a.scss", Command{Name: "sass", Args: []string{"--no-source-map", "a.scss"}}.String())
	assert.Equal(t, "karma", Command{Name: "karma"}.String())
}
