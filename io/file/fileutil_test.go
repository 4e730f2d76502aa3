package file_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/velotype/velotype/io/file"
	"github.com/velotype/velotype/testing/assert"
	"github.com/velotype/velotype/testing/require"
)

func TestWriteFileAndExists(t *testing.T) {
	p := filepath.Join(t.TempDir(), "tokens.json")
	assert.Equal(t, false, file.FileExists(p))

	require.NoError(t, file.WriteFile(p, []byte("{}")))
	assert.Equal(t, true, file.FileExists(p))

	info, err := os.Stat(p)
	require.NoError(t, err)
	assert.Equal(t, file.ReadWritePermissions, info.Mode())

	// Overwrite keeps working on files we own.
	require.NoError(t, file.WriteFile(p, []byte(`{"a":1}`)))
}

func TestWriteFileRejectsLoosePermissions(t *testing.T) {
	p := filepath.Join(t.TempDir(), "loose.json")
	require.NoError(t, os.WriteFile(p, []byte("{}"), 0644))
	require.ErrorContains(t, "without proper 0600 permissions", file.WriteFile(p, []byte("{}")))
}

func TestMkdirAll(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")
	require.NoError(t, file.MkdirAll(dir))
	exists, err := file.DirExists(dir)
	require.NoError(t, err)
	assert.Equal(t, true, exists)

	// Second call is a no-op.
	require.NoError(t, file.MkdirAll(dir))
}
