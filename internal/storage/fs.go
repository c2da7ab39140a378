// Package storage provides the persistent locations containers are written
// to: a filesystem abstraction, a platform key-value store abstraction and
// the backends built on them.
package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// FileSystem is the file and directory surface the engine needs. Writes,
// copies and renames must replace their destination atomically.
type FileSystem interface {
	ReadFile(path string) ([]byte, error)
	WriteFile(path string, data []byte) error
	AppendFile(path string, data []byte) error
	FileExists(path string) bool
	DirExists(path string) bool
	Remove(path string) error
	RemoveAll(path string) error
	Copy(src, dst string) error
	Rename(src, dst string) error
	CopyDir(src, dst string) error
	RenameDir(src, dst string) error
	ListFiles(dir string) ([]string, error)
	ListDirs(dir string) ([]string, error)
	ModTime(path string) (time.Time, error)
}

const (
	filePerm = 0o644
	dirPerm  = 0o755
)

// OSFileSystem implements FileSystem on the local disk.
type OSFileSystem struct{}

func NewOSFileSystem() *OSFileSystem { return &OSFileSystem{} }

func (OSFileSystem) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// WriteFile writes to a temporary file in the destination directory, syncs
// it and renames it over path.
func (f OSFileSystem) WriteFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return err
	}

	tmpName := filepath.Join(dir, tempName(path))
	tmp, err := os.OpenFile(tmpName, os.O_WRONLY|os.O_CREATE|os.O_EXCL, filePerm)
	if err != nil {
		return err
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return syncDir(dir)
}

func (OSFileSystem) AppendFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), dirPerm); err != nil {
		return err
	}
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, filePerm)
	if err != nil {
		return err
	}
	if _, err := file.Write(data); err != nil {
		file.Close()
		return err
	}
	if err := file.Sync(); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

func (OSFileSystem) FileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

func (OSFileSystem) DirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// Remove deletes a file. A missing file is not an error.
func (OSFileSystem) Remove(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func (OSFileSystem) RemoveAll(path string) error {
	return os.RemoveAll(path)
}

func (f OSFileSystem) Copy(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return f.WriteFile(dst, data)
}

func (OSFileSystem) Rename(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), dirPerm); err != nil {
		return err
	}
	if err := os.Rename(src, dst); err != nil {
		return err
	}
	return syncDir(filepath.Dir(dst))
}

// CopyDir copies src recursively into a staging directory and then swaps it
// into place with RenameDir.
func (f OSFileSystem) CopyDir(src, dst string) error {
	staging := filepath.Join(filepath.Dir(dst), tempName(dst))
	err := filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(staging, rel)
		if d.IsDir() {
			return os.MkdirAll(target, dirPerm)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		return os.WriteFile(target, data, filePerm)
	})
	if err != nil {
		os.RemoveAll(staging)
		return err
	}
	if err := f.RenameDir(staging, dst); err != nil {
		os.RemoveAll(staging)
		return err
	}
	return nil
}

// RenameDir moves src to dst. An existing dst is moved aside first and only
// removed once src is in place, so one of the two stays valid.
func (OSFileSystem) RenameDir(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), dirPerm); err != nil {
		return err
	}

	var aside string
	if info, err := os.Stat(dst); err == nil {
		if !info.IsDir() {
			return fmt.Errorf("rename %s: destination %s is not a directory", src, dst)
		}
		aside = filepath.Join(filepath.Dir(dst), tempName(dst))
		if err := os.Rename(dst, aside); err != nil {
			return err
		}
	}

	if err := os.Rename(src, dst); err != nil {
		if aside != "" {
			os.Rename(aside, dst)
		}
		return err
	}
	if aside != "" {
		if err := os.RemoveAll(aside); err != nil {
			return err
		}
	}
	return syncDir(filepath.Dir(dst))
}

func (OSFileSystem) ListFiles(dir string) ([]string, error) {
	return listEntries(dir, false)
}

func (OSFileSystem) ListDirs(dir string) ([]string, error) {
	return listEntries(dir, true)
}

func (OSFileSystem) ModTime(path string) (time.Time, error) {
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}, err
	}
	return info.ModTime(), nil
}

func listEntries(dir string, dirs bool) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() == dirs && !isTemp(e.Name()) {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

const tempPrefix = ".tmp-"

func tempName(path string) string {
	return tempPrefix + filepath.Base(path) + "-" + uuid.NewString()
}

func isTemp(name string) bool {
	return len(name) > len(tempPrefix) && name[:len(tempPrefix)] == tempPrefix
}
