package build

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanKeepsSentinel(t *testing.T) {
	dist := filepath.Join(t.TempDir(), "dist")
	writeTestFile(t, filepath.Join(dist, Sentinel), "")
	writeTestFile(t, filepath.Join(dist, "index.html"), "<html>")
	writeTestFile(t, filepath.Join(dist, "scripts", "app-123.js"), "")

	require.NoError(t, Clean(dist))

	entries, err := os.ReadDir(dist)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, Sentinel, entries[0].Name())

	require.NoError(t, Clean(dist), "cleaning an already clean directory")
}

func TestCleanMissingDirectory(t *testing.T) {
	assert.NoError(t, Clean(filepath.Join(t.TempDir(), "nope")))
}

func TestRemove(t *testing.T) {
	tmp := filepath.Join(t.TempDir(), ".tmp")
	writeTestFile(t, filepath.Join(tmp, "serve", "index.html"), "")

	require.NoError(t, Remove(tmp))
	_, err := os.Stat(tmp)
	assert.True(t, os.IsNotExist(err))
	assert.NoError(t, Remove(tmp))
}

func writeTestFile(t *testing.T, name, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(name), 0o755))
	require.NoError(t, os.WriteFile(name, []byte(content), 0o644))
}
