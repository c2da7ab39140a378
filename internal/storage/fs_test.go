package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOSFileSystem_WriteFileReplacesAtomically(t *testing.T) {
	fsys := NewOSFileSystem()
	path := filepath.Join(t.TempDir(), "nested", "Data.pak")

	require.NoError(t, fsys.WriteFile(path, []byte("first")))
	require.NoError(t, fsys.WriteFile(path, []byte("second")))

	data, err := fsys.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))

	files, err := fsys.ListFiles(filepath.Dir(path))
	require.NoError(t, err)
	assert.Equal(t, []string{"Data.pak"}, files, "no temporary files are left behind")
}

func TestOSFileSystem_AppendFile(t *testing.T) {
	fsys := NewOSFileSystem()
	path := filepath.Join(t.TempDir(), "log.bin")

	require.NoError(t, fsys.AppendFile(path, []byte("ab")))
	require.NoError(t, fsys.AppendFile(path, []byte("cd")))

	data, err := fsys.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "abcd", string(data))
}

func TestOSFileSystem_Existence(t *testing.T) {
	fsys := NewOSFileSystem()
	dir := t.TempDir()
	file := filepath.Join(dir, "a.pak")
	require.NoError(t, fsys.WriteFile(file, []byte("x")))

	assert.True(t, fsys.FileExists(file))
	assert.False(t, fsys.FileExists(dir))
	assert.True(t, fsys.DirExists(dir))
	assert.False(t, fsys.DirExists(file))

	require.NoError(t, fsys.Remove(file))
	assert.False(t, fsys.FileExists(file))
	assert.NoError(t, fsys.Remove(file), "removing a missing file is not an error")
}

func TestOSFileSystem_CopyAndRename(t *testing.T) {
	fsys := NewOSFileSystem()
	dir := t.TempDir()
	src := filepath.Join(dir, "src.pak")
	dst := filepath.Join(dir, "dst.pak")
	require.NoError(t, fsys.WriteFile(src, []byte("payload")))
	require.NoError(t, fsys.WriteFile(dst, []byte("old")))

	require.NoError(t, fsys.Copy(src, dst))
	data, err := fsys.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))
	assert.True(t, fsys.FileExists(src))

	moved := filepath.Join(dir, "moved", "m.pak")
	require.NoError(t, fsys.Rename(src, moved))
	assert.False(t, fsys.FileExists(src))
	assert.True(t, fsys.FileExists(moved))
}

func TestOSFileSystem_Directories(t *testing.T) {
	fsys := NewOSFileSystem()
	root := t.TempDir()
	src := filepath.Join(root, "saves")
	require.NoError(t, fsys.WriteFile(filepath.Join(src, "one.pak"), []byte("1")))
	require.NoError(t, fsys.WriteFile(filepath.Join(src, "sub", "two.pak"), []byte("2")))

	dst := filepath.Join(root, "copy")
	require.NoError(t, fsys.WriteFile(filepath.Join(dst, "stale.pak"), []byte("s")))
	require.NoError(t, fsys.CopyDir(src, dst))

	files, err := fsys.ListFiles(dst)
	require.NoError(t, err)
	assert.Equal(t, []string{"one.pak"}, files)
	dirs, err := fsys.ListDirs(dst)
	require.NoError(t, err)
	assert.Equal(t, []string{"sub"}, dirs)

	renamed := filepath.Join(root, "renamed")
	require.NoError(t, fsys.RenameDir(src, renamed))
	assert.False(t, fsys.DirExists(src))
	assert.True(t, fsys.FileExists(filepath.Join(renamed, "sub", "two.pak")))

	dirs, err = fsys.ListDirs(root)
	require.NoError(t, err)
	assert.Equal(t, []string{"copy", "renamed"}, dirs)

	require.NoError(t, fsys.RemoveAll(renamed))
	assert.False(t, fsys.DirExists(renamed))
}

func TestOSFileSystem_ListMissingDir(t *testing.T) {
	_, err := NewOSFileSystem().ListFiles(filepath.Join(t.TempDir(), "missing"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
