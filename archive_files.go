package savex

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/hengadev/savex/internal/archiverr"
	"github.com/hengadev/savex/internal/container"
)

// DeleteKey removes key from the container cfg names. Deleting from a
// container that does not exist is a no-op.
func (e *Engine) DeleteKey(ctx context.Context, key string, cfg Config) error {
	return e.observe(ctx, "delete_key", cfg, key, func(cfg Config) error {
		if err := requireContainer("DeleteKey", cfg); err != nil {
			return err
		}
		if cfg.Location == Cache {
			if !e.cache.Exists(cfg) {
				return nil
			}
			return e.cache.Update(cfg, func(c *container.Container) error {
				c.Delete(key)
				return nil
			})
		}

		exists, err := e.backend(cfg).Exists(ctx, cfg.FullPath())
		if err != nil || !exists {
			return err
		}
		return e.write(ctx, cfg, func(w *container.Writer) error {
			w.MarkKeyForDeletion(key)
			return nil
		})
	})
}

// DeleteFile removes the container cfg names. A missing container is not an
// error.
func (e *Engine) DeleteFile(ctx context.Context, cfg Config) error {
	return e.observe(ctx, "delete_file", cfg, "", func(cfg Config) error {
		if err := requireContainer("DeleteFile", cfg); err != nil {
			return err
		}
		if cfg.Location == Cache {
			e.cache.Remove(cfg)
			return nil
		}
		unlock := e.locks.lock(cfg.Identity())
		defer unlock()
		return e.backend(cfg).Delete(ctx, cfg.FullPath())
	})
}

// DeleteDirectory removes the directory cfg names and everything in it.
func (e *Engine) DeleteDirectory(ctx context.Context, cfg Config) error {
	return e.observe(ctx, "delete_directory", cfg, "", func(cfg Config) error {
		if err := requireFileSystem("DeleteDirectory", cfg); err != nil {
			return err
		}
		return e.fs.RemoveAll(cfg.FullPath())
	})
}

func (e *Engine) KeyExists(ctx context.Context, key string, cfg Config) (bool, error) {
	var exists bool
	err := e.observe(ctx, "key_exists", cfg, key, func(cfg Config) error {
		if err := requireContainer("KeyExists", cfg); err != nil {
			return err
		}
		r, ok, err := e.reader(ctx, cfg)
		if err != nil || !ok {
			return err
		}
		exists = r.Has(key)
		return nil
	})
	return exists, err
}

func (e *Engine) FileExists(ctx context.Context, cfg Config) (bool, error) {
	var exists bool
	err := e.observe(ctx, "file_exists", cfg, "", func(cfg Config) error {
		var err error
		exists, err = e.exists(ctx, cfg)
		return err
	})
	return exists, err
}

func (e *Engine) DirectoryExists(ctx context.Context, cfg Config) (bool, error) {
	var exists bool
	err := e.observe(ctx, "directory_exists", cfg, "", func(cfg Config) error {
		if err := requireFileSystem("DirectoryExists", cfg); err != nil {
			return err
		}
		exists = e.fs.DirExists(cfg.FullPath())
		return nil
	})
	return exists, err
}

// CopyFile copies the container of src to dst, replacing dst. Both
// configurations must share a location.
func (e *Engine) CopyFile(ctx context.Context, src, dst Config) error {
	return e.observe(ctx, "copy_file", src, "", func(src Config) error {
		dst, err := e.sameLocation(src, dst, archiverr.Copy)
		if err != nil {
			return err
		}
		if err := requireContainer("CopyFile", src); err != nil {
			return err
		}
		if src.Location == Cache {
			return e.cache.Copy(src, dst)
		}

		unlock := e.locks.lockPair(src.Identity(), dst.Identity())
		defer unlock()
		if err := e.requireExists(ctx, src, archiverr.Copy); err != nil {
			return err
		}
		return e.backend(src).Copy(ctx, src.FullPath(), dst.FullPath())
	})
}

// RenameFile moves the container of src to dst, atomically replacing dst.
// Both configurations must share a location.
func (e *Engine) RenameFile(ctx context.Context, src, dst Config) error {
	return e.observe(ctx, "rename_file", src, "", func(src Config) error {
		dst, err := e.sameLocation(src, dst, archiverr.Rename)
		if err != nil {
			return err
		}
		if err := requireContainer("RenameFile", src); err != nil {
			return err
		}
		if src.Location == Cache {
			return e.cache.Move(src, dst)
		}

		unlock := e.locks.lockPair(src.Identity(), dst.Identity())
		defer unlock()
		if err := e.requireExists(ctx, src, archiverr.Rename); err != nil {
			return err
		}
		return e.backend(src).Move(ctx, src.FullPath(), dst.FullPath())
	})
}

// CopyDirectory copies a directory tree. File location only.
func (e *Engine) CopyDirectory(ctx context.Context, src, dst Config) error {
	return e.observe(ctx, "copy_directory", src, "", func(src Config) error {
		dst, err := e.sameLocation(src, dst, archiverr.Copy)
		if err != nil {
			return err
		}
		if err := requireFileSystem("CopyDirectory", src); err != nil {
			return err
		}
		if !e.fs.DirExists(src.FullPath()) {
			return archiverr.NewDirectoryNotFoundError(src.FullPath(), archiverr.Copy)
		}
		return e.fs.CopyDir(src.FullPath(), dst.FullPath())
	})
}

// RenameDirectory moves a directory tree. File location only.
func (e *Engine) RenameDirectory(ctx context.Context, src, dst Config) error {
	return e.observe(ctx, "rename_directory", src, "", func(src Config) error {
		dst, err := e.sameLocation(src, dst, archiverr.Rename)
		if err != nil {
			return err
		}
		if err := requireFileSystem("RenameDirectory", src); err != nil {
			return err
		}
		if !e.fs.DirExists(src.FullPath()) {
			return archiverr.NewDirectoryNotFoundError(src.FullPath(), archiverr.Rename)
		}
		return e.fs.RenameDir(src.FullPath(), dst.FullPath())
	})
}

// GetKeys lists the keys of the container cfg names in storage order.
func (e *Engine) GetKeys(ctx context.Context, cfg Config) ([]string, error) {
	var keys []string
	err := e.observe(ctx, "get_keys", cfg, "", func(cfg Config) error {
		r, err := e.requireReader(ctx, cfg, archiverr.Load)
		if err != nil {
			return err
		}
		keys = make([]string, 0)
		for key := range r.Properties() {
			keys = append(keys, key)
			r.Skip()
		}
		return r.Err()
	})
	return keys, err
}

// GetFiles lists the file names in the directory cfg names. For the Cache
// location it lists the full paths of every cached container.
func (e *Engine) GetFiles(ctx context.Context, cfg Config) ([]string, error) {
	var files []string
	err := e.observe(ctx, "get_files", cfg, "", func(cfg Config) error {
		if cfg.Location == Cache {
			files = e.CachedPaths()
			return nil
		}
		if err := requireFileSystem("GetFiles", cfg); err != nil {
			return err
		}
		var err error
		files, err = e.list(cfg, e.fs.ListFiles)
		return err
	})
	return files, err
}

// GetDirectories lists the sub-directory names of the directory cfg names.
func (e *Engine) GetDirectories(ctx context.Context, cfg Config) ([]string, error) {
	var dirs []string
	err := e.observe(ctx, "get_directories", cfg, "", func(cfg Config) error {
		if err := requireFileSystem("GetDirectories", cfg); err != nil {
			return err
		}
		var err error
		dirs, err = e.list(cfg, e.fs.ListDirs)
		return err
	})
	return dirs, err
}

// CreateBackup copies the container of cfg to its ".bak" sibling,
// overwriting any previous backup.
func (e *Engine) CreateBackup(ctx context.Context, cfg Config) error {
	return e.CopyFile(ctx, cfg, cfg.BackupConfig())
}

// RestoreBackup renames the backup of cfg over the live container. It
// returns false, touching nothing, when there is no backup.
func (e *Engine) RestoreBackup(ctx context.Context, cfg Config) (bool, error) {
	backup := cfg.BackupConfig()
	exists, err := e.FileExists(ctx, backup)
	if err != nil || !exists {
		return false, err
	}
	if err := e.RenameFile(ctx, backup, cfg); err != nil {
		return false, err
	}
	e.logger.Info("restored backup", "path", e.platformConfig(cfg).FullPath())
	return true, nil
}

// GetTimestamp returns the UTC time the container cfg names was last
// written, or the Unix epoch when it does not exist.
func (e *Engine) GetTimestamp(ctx context.Context, cfg Config) (time.Time, error) {
	stamp := time.Unix(0, 0).UTC()
	err := e.observe(ctx, "get_timestamp", cfg, "", func(cfg Config) error {
		switch cfg.Location {
		case Memory:
			return nil
		case Cache:
			if t, ok := e.cache.Timestamp(cfg); ok {
				stamp = t.UTC()
			}
			return nil
		}
		t, ok, err := e.backend(cfg).Timestamp(ctx, cfg.FullPath())
		if err != nil {
			return err
		}
		if ok {
			stamp = t.UTC()
		}
		return nil
	})
	return stamp, err
}

func (e *Engine) exists(ctx context.Context, cfg Config) (bool, error) {
	switch cfg.Location {
	case Memory:
		return false, requireContainer("FileExists", cfg)
	case Cache:
		return e.cache.Exists(cfg), nil
	}
	return e.backend(cfg).Exists(ctx, cfg.FullPath())
}

func (e *Engine) requireExists(ctx context.Context, cfg Config, action archiverr.Action) error {
	ok, err := e.exists(ctx, cfg)
	if err != nil {
		return err
	}
	if !ok {
		return archiverr.NewFileNotFoundError(cfg.FullPath(), action)
	}
	return nil
}

// sameLocation resolves dst for the platform and rejects it when its
// location differs from src. No I/O happens before this check.
func (e *Engine) sameLocation(src, dst Config, action archiverr.Action) (Config, error) {
	dst = e.platformConfig(dst)
	if src.Location != dst.Location {
		return dst, archiverr.NewLocationMismatchError(src.Location.String(), dst.Location.String(), action)
	}
	if err := dst.Validate(); err != nil {
		return dst, err
	}
	return dst, nil
}

func (e *Engine) list(cfg Config, list func(string) ([]string, error)) ([]string, error) {
	dir := cfg.FullPath()
	names, err := list(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, archiverr.NewDirectoryNotFoundError(dir, archiverr.Load)
	}
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}
	return names, nil
}

// requireFileSystem rejects directory operations outside the File location.
func requireFileSystem(operation string, cfg Config) error {
	if cfg.Location != File {
		return archiverr.NewUnsupportedOperationError(operation, cfg.Location.String())
	}
	return nil
}
