package storage

import (
	"context"
	"errors"
	"io/fs"
	"strconv"
	"time"
)

// Backend persists whole container files at a path, regardless of whether
// the path lives on disk or in a key-value store.
type Backend interface {
	// Load returns the bytes at path and whether anything was stored there.
	Load(ctx context.Context, path string) ([]byte, bool, error)
	Store(ctx context.Context, path string, data []byte) error
	Append(ctx context.Context, path string, data []byte) error
	Exists(ctx context.Context, path string) (bool, error)
	Delete(ctx context.Context, path string) error
	Copy(ctx context.Context, src, dst string) error
	Move(ctx context.Context, src, dst string) error
	// Timestamp returns the last write time of path and whether it exists.
	Timestamp(ctx context.Context, path string) (time.Time, bool, error)
}

// FileBackend stores containers as files.
type FileBackend struct {
	fs FileSystem
}

func NewFileBackend(fsys FileSystem) *FileBackend {
	return &FileBackend{fs: fsys}
}

func (b *FileBackend) Load(ctx context.Context, path string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	data, err := b.fs.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

func (b *FileBackend) Store(ctx context.Context, path string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return b.fs.WriteFile(path, data)
}

func (b *FileBackend) Append(ctx context.Context, path string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return b.fs.AppendFile(path, data)
}

func (b *FileBackend) Exists(_ context.Context, path string) (bool, error) {
	return b.fs.FileExists(path), nil
}

func (b *FileBackend) Delete(_ context.Context, path string) error {
	return b.fs.Remove(path)
}

func (b *FileBackend) Copy(ctx context.Context, src, dst string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return b.fs.Copy(src, dst)
}

func (b *FileBackend) Move(ctx context.Context, src, dst string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return b.fs.Rename(src, dst)
}

func (b *FileBackend) Timestamp(_ context.Context, path string) (time.Time, bool, error) {
	if !b.fs.FileExists(path) {
		return time.Time{}, false, nil
	}
	t, err := b.fs.ModTime(path)
	if err != nil {
		return time.Time{}, false, err
	}
	return t.UTC(), true, nil
}

// TimestampPrefix prefixes the key under which the KeyValue backend records
// a path's last write time.
const TimestampPrefix = "timestamp_"

// KeyValueBackend stores containers as values in a KeyValueStore, one key
// per path, with a companion timestamp key.
type KeyValueBackend struct {
	kv  KeyValueStore
	now func() time.Time
}

func NewKeyValueBackend(kv KeyValueStore, now func() time.Time) *KeyValueBackend {
	if now == nil {
		now = time.Now
	}
	return &KeyValueBackend{kv: kv, now: now}
}

func (b *KeyValueBackend) Load(ctx context.Context, path string) ([]byte, bool, error) {
	return b.kv.Get(ctx, path)
}

func (b *KeyValueBackend) Store(ctx context.Context, path string, data []byte) error {
	if err := b.kv.Set(ctx, path, data); err != nil {
		return err
	}
	return b.touch(ctx, path)
}

func (b *KeyValueBackend) Append(ctx context.Context, path string, data []byte) error {
	existing, _, err := b.kv.Get(ctx, path)
	if err != nil {
		return err
	}
	return b.Store(ctx, path, append(existing, data...))
}

func (b *KeyValueBackend) Exists(ctx context.Context, path string) (bool, error) {
	return b.kv.Has(ctx, path)
}

func (b *KeyValueBackend) Delete(ctx context.Context, path string) error {
	if err := b.kv.Delete(ctx, path); err != nil {
		return err
	}
	return b.kv.Delete(ctx, TimestampPrefix+path)
}

func (b *KeyValueBackend) Copy(ctx context.Context, src, dst string) error {
	data, ok, err := b.kv.Get(ctx, src)
	if err != nil {
		return err
	}
	if !ok {
		return fs.ErrNotExist
	}
	return b.Store(ctx, dst, data)
}

// Move copies src to dst, then deletes src. The two steps are not atomic: a
// failure in between leaves both keys. Moving a key onto itself only checks
// that it exists.
func (b *KeyValueBackend) Move(ctx context.Context, src, dst string) error {
	if src == dst {
		ok, err := b.kv.Has(ctx, src)
		if err != nil {
			return err
		}
		if !ok {
			return fs.ErrNotExist
		}
		return nil
	}
	if err := b.Copy(ctx, src, dst); err != nil {
		return err
	}
	return b.Delete(ctx, src)
}

func (b *KeyValueBackend) Timestamp(ctx context.Context, path string) (time.Time, bool, error) {
	raw, ok, err := b.kv.Get(ctx, TimestampPrefix+path)
	if err != nil || !ok {
		return time.Time{}, false, err
	}
	nanos, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return time.Time{}, false, err
	}
	return time.Unix(0, nanos).UTC(), true, nil
}

func (b *KeyValueBackend) touch(ctx context.Context, path string) error {
	stamp := strconv.FormatInt(b.now().UnixNano(), 10)
	return b.kv.Set(ctx, TimestampPrefix+path, []byte(stamp))
}
