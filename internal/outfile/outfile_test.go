package outfile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/alecthomas/assert/v2"
)

func TestWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "build", "program.js")

	assert.NoError(t, Write(path, []byte("var nodes = {};\n")))
	got, err := os.ReadFile(path)
	assert.NoError(t, err)
	assert.Equal(t, "var nodes = {};\n", string(got))

	info, err := os.Stat(path)
	assert.NoError(t, err)
	assert.Equal(t, os.FileMode(0o644), info.Mode().Perm())

	assert.NoError(t, Write(path, []byte("var topology = [];\n")))
	got, err = os.ReadFile(path)
	assert.NoError(t, err)
	assert.Equal(t, "var topology = [];\n", string(got))

	entries, err := os.ReadDir(filepath.Dir(path))
	assert.NoError(t, err)
	assert.Equal(t, 1, len(entries), "temp files are cleaned up")
}

func TestWriteIntoFile(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	assert.NoError(t, os.WriteFile(blocker, nil, 0o600))

	err := Write(filepath.Join(blocker, "program.js"), []byte("x"))
	assert.Error(t, err)
}
