package savex

import (
	"bytes"
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type Inventory struct {
	Items map[string]int
	Slots []string
}

type Player struct {
	Name      string
	Level     int
	Position  [3]float64
	Inventory Inventory
	Friend    *Player
	LastSeen  time.Time
	Tags      []string `archive:"-"`
}

func samplePlayer() Player {
	return Player{
		Name:     "ada",
		Level:    12,
		Position: [3]float64{1.5, -2, 8},
		Inventory: Inventory{
			Items: map[string]int{"potion": 3, "key": 1},
			Slots: []string{"sword", "shield"},
		},
		Friend:   &Player{Name: "bob", Level: 3},
		LastSeen: time.Date(2024, 4, 2, 18, 30, 0, 0, time.UTC),
	}
}

func mustConfig(t *testing.T, e *Engine, path string, opts ...Option) Config {
	t.Helper()
	cfg, err := e.Config(path, opts...)
	require.NoError(t, err)
	return cfg
}

func TestSaveLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	e := NewTestEngine(t)

	tests := []struct {
		name string
		opts []Option
	}{
		{"file", nil},
		{"file gzip", []Option{WithCompression(CompressionGzip)}},
		{"file aes", []Option{WithEncryption("hunter2")}},
		{"file gzip aes", []Option{WithCompression(CompressionGzip), WithEncryption("hunter2")}},
		{"keyvalue", []Option{WithLocation(KeyValue)}},
		{"keyvalue aes", []Option{WithLocation(KeyValue), WithEncryption("hunter2")}},
		{"cache", []Option{WithLocation(Cache)}},
		{"small buffer", []Option{WithEncryption("pw"), WithBufferSize(16)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := mustConfig(t, e, tt.name+".pak", tt.opts...)
			want := samplePlayer()

			require.NoError(t, e.Save(ctx, "player", want, cfg))
			require.NoError(t, e.Save(ctx, "score", 4200, cfg))
			require.NoError(t, e.Save(ctx, "title", "Knight", cfg))

			got, err := Load[Player](ctx, e, "player", cfg)
			require.NoError(t, err)
			assert.True(t, want.LastSeen.Equal(got.LastSeen))
			want.LastSeen, got.LastSeen = time.Time{}, time.Time{}
			want.Tags = nil
			assert.Equal(t, want, got)

			score, err := Load[int](ctx, e, "score", cfg)
			require.NoError(t, err)
			assert.Equal(t, 4200, score)

			keys, err := e.GetKeys(ctx, cfg)
			require.NoError(t, err)
			assert.Equal(t, []string{"player", "score", "title"}, keys)
		})
	}
}

func TestSaveOverwritesInPlace(t *testing.T) {
	ctx := context.Background()
	e := NewTestEngine(t)
	cfg := mustConfig(t, e, "order.pak")

	for _, key := range []string{"a", "b", "c"} {
		require.NoError(t, e.Save(ctx, key, key, cfg))
	}
	require.NoError(t, e.Save(ctx, "a", "again", cfg))

	keys, err := e.GetKeys(ctx, cfg)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, keys)

	v, err := Load[string](ctx, e, "a", cfg)
	require.NoError(t, err)
	assert.Equal(t, "again", v)
}

func TestLoadNotFound(t *testing.T) {
	ctx := context.Background()
	e := NewTestEngine(t)
	cfg := mustConfig(t, e, "missing.pak")

	_, err := Load[int](ctx, e, "score", cfg)
	assert.ErrorIs(t, err, ErrFileNotFound)
	assert.True(t, IsNotFound(err))

	require.NoError(t, e.Save(ctx, "other", 1, cfg))
	_, err = Load[int](ctx, e, "score", cfg)
	assert.ErrorIs(t, err, ErrKeyNotFound)
}

func TestLoadOrDefault(t *testing.T) {
	ctx := context.Background()
	e := NewTestEngine(t)

	for _, loc := range []Location{File, KeyValue, Cache} {
		t.Run(loc.String(), func(t *testing.T) {
			cfg := mustConfig(t, e, "defaults-"+loc.String()+".pak", WithLocation(loc))

			v, err := LoadOr(ctx, e, "score", 7, cfg)
			require.NoError(t, err)
			assert.Equal(t, 7, v, "missing container")

			require.NoError(t, e.Save(ctx, "other", 1, cfg))
			v, err = LoadOr(ctx, e, "score", 7, cfg)
			require.NoError(t, err)
			assert.Equal(t, 7, v, "missing key")

			require.NoError(t, e.Save(ctx, "score", 99, cfg))
			v, err = LoadOr(ctx, e, "score", 7, cfg)
			require.NoError(t, err)
			assert.Equal(t, 99, v)
		})
	}
}

func TestLoadOrPropagatesTransformErrors(t *testing.T) {
	ctx := context.Background()
	e := NewTestEngine(t)
	cfg := mustConfig(t, e, "locked.pak", WithEncryption("right"))
	require.NoError(t, e.Save(ctx, "score", 1, cfg))

	wrong, err := cfg.With(WithEncryption("wrong"))
	require.NoError(t, err)
	v, err := LoadOr(ctx, e, "score", 5, wrong)
	assert.ErrorIs(t, err, ErrDecryptionFailed)
	assert.True(t, IsTransformError(err))
	assert.Equal(t, 5, v)
}

func TestTypeMismatch(t *testing.T) {
	ctx := context.Background()
	e := NewTestEngine(t)
	cfg := mustConfig(t, e, "types.pak")
	require.NoError(t, e.Save(ctx, "score", 10, cfg))

	_, err := Load[string](ctx, e, "score", cfg)
	assert.ErrorIs(t, err, ErrTypeMismatch)
	assert.True(t, IsDeserializationError(err))

	name, err := e.KeyType(ctx, "score", cfg)
	require.NoError(t, err)
	assert.Equal(t, "int", name)

	var anything any
	anything, err = Load[any](ctx, e, "score", cfg)
	require.NoError(t, err)
	assert.Equal(t, 10, anything)
}

func TestDeleteKeyRemovesBytes(t *testing.T) {
	ctx := context.Background()
	e := NewTestEngine(t)

	for _, loc := range []Location{File, KeyValue, Cache} {
		t.Run(loc.String(), func(t *testing.T) {
			cfg := mustConfig(t, e, "delete-"+loc.String()+".pak", WithLocation(loc))
			require.NoError(t, e.Save(ctx, "keep", "visible", cfg))
			require.NoError(t, e.Save(ctx, "doomed", "residual-marker", cfg))

			require.NoError(t, e.DeleteKey(ctx, "doomed", cfg))

			exists, err := e.KeyExists(ctx, "doomed", cfg)
			require.NoError(t, err)
			assert.False(t, exists)

			v, err := LoadOr(ctx, e, "doomed", "default", cfg)
			require.NoError(t, err)
			assert.Equal(t, "default", v)

			raw, err := e.LoadRawBytes(ctx, cfg)
			require.NoError(t, err)
			assert.False(t, bytes.Contains(raw, []byte("doomed")))
			assert.False(t, bytes.Contains(raw, []byte("residual-marker")))
			assert.True(t, bytes.Contains(raw, []byte("visible")))
		})
	}

	missing := mustConfig(t, e, "never-written.pak")
	require.NoError(t, e.DeleteKey(ctx, "k", missing))
	exists, err := e.FileExists(ctx, missing)
	require.NoError(t, err)
	assert.False(t, exists, "deleting from a missing container creates nothing")
}

func TestCorruptCiphertextIsTransformError(t *testing.T) {
	ctx := context.Background()
	e := NewTestEngine(t)
	cfg := mustConfig(t, e, "corrupt.pak", WithCompression(CompressionGzip), WithEncryption("pw"))
	require.NoError(t, e.Save(ctx, "player", samplePlayer(), cfg))

	path := cfg.FullPath()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	data[len(data)/2] ^= 0x40
	require.NoError(t, os.WriteFile(path, data, 0o644))

	_, err = Load[Player](ctx, e, "player", cfg)
	assert.True(t, IsTransformError(err), "got %v", err)
}

func TestLocationMismatch(t *testing.T) {
	ctx := context.Background()
	e := NewTestEngine(t)
	src := mustConfig(t, e, "src.pak")
	dst := mustConfig(t, e, "dst.pak", WithLocation(KeyValue))
	require.NoError(t, e.Save(ctx, "k", 1, src))

	ops := map[string]func() error{
		"copy file":        func() error { return e.CopyFile(ctx, src, dst) },
		"rename file":      func() error { return e.RenameFile(ctx, src, dst) },
		"copy directory":   func() error { return e.CopyDirectory(ctx, src, dst) },
		"rename directory": func() error { return e.RenameDirectory(ctx, src, dst) },
	}
	for name, op := range ops {
		t.Run(name, func(t *testing.T) {
			err := op()
			assert.ErrorIs(t, err, ErrLocationMismatch)
			assert.True(t, IsLocationMismatch(err))

			exists, err := e.FileExists(ctx, dst)
			require.NoError(t, err)
			assert.False(t, exists)
			exists, err = e.FileExists(ctx, src)
			require.NoError(t, err)
			assert.True(t, exists)
		})
	}
}

func TestBackupRestore(t *testing.T) {
	ctx := context.Background()
	e := NewTestEngine(t)
	cfg := mustConfig(t, e, "slot.pak", WithEncryption("pw"))
	require.NoError(t, e.Save(ctx, "player", samplePlayer(), cfg))

	restored, err := e.RestoreBackup(ctx, cfg)
	require.NoError(t, err)
	assert.False(t, restored, "no backup yet")
	_, err = os.Stat(cfg.FullPath())
	require.NoError(t, err, "live container untouched")

	require.NoError(t, e.CreateBackup(ctx, cfg))
	original, err := os.ReadFile(cfg.FullPath())
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(cfg.FullPath(), []byte("garbage"), 0o644))
	_, err = Load[Player](ctx, e, "player", cfg)
	require.Error(t, err)

	restored, err = e.RestoreBackup(ctx, cfg)
	require.NoError(t, err)
	assert.True(t, restored)

	current, err := os.ReadFile(cfg.FullPath())
	require.NoError(t, err)
	assert.Equal(t, original, current)

	backupExists, err := e.FileExists(ctx, cfg.BackupConfig())
	require.NoError(t, err)
	assert.False(t, backupExists)

	got, err := Load[Player](ctx, e, "player", cfg)
	require.NoError(t, err)
	assert.Equal(t, "ada", got.Name)
}

func TestBackupRestoreKeyValue(t *testing.T) {
	ctx := context.Background()
	e := NewTestEngine(t)
	cfg := mustConfig(t, e, "slot", WithLocation(KeyValue))
	require.NoError(t, e.Save(ctx, "level", 3, cfg))
	require.NoError(t, e.CreateBackup(ctx, cfg))
	require.NoError(t, e.Save(ctx, "level", 4, cfg))

	restored, err := e.RestoreBackup(ctx, cfg)
	require.NoError(t, err)
	require.True(t, restored)

	level, err := Load[int](ctx, e, "level", cfg)
	require.NoError(t, err)
	assert.Equal(t, 3, level)
}

func TestCreateBackupMissingSource(t *testing.T) {
	e := NewTestEngine(t)
	err := e.CreateBackup(context.Background(), mustConfig(t, e, "nothing.pak"))
	assert.ErrorIs(t, err, ErrFileNotFound)
}

func TestCachePromotion(t *testing.T) {
	ctx := context.Background()
	e := NewTestEngine(t)
	cacheCfg := mustConfig(t, e, "cached.pak", WithLocation(Cache), WithEncryption("pw"))
	want := samplePlayer()

	require.NoError(t, e.Save(ctx, "player", want, cacheCfg))
	fileCfg, err := cacheCfg.With(WithLocation(File))
	require.NoError(t, err)

	exists, err := e.FileExists(ctx, fileCfg)
	require.NoError(t, err)
	assert.False(t, exists, "cache writes stay in memory")

	require.NoError(t, e.StoreCachedFile(ctx, cacheCfg))

	fresh := NewTestEngine(t, WithDefaults(e.Defaults()))
	got, err := Load[Player](ctx, fresh, "player", fileCfg)
	require.NoError(t, err)
	assert.Equal(t, want.Name, got.Name)
	assert.Equal(t, want.Inventory, got.Inventory)
}

func TestCacheFileHydrates(t *testing.T) {
	ctx := context.Background()
	e := NewTestEngine(t)
	fileCfg := mustConfig(t, e, "persisted.pak", WithCompression(CompressionGzip))
	require.NoError(t, e.Save(ctx, "score", 10, fileCfg))

	cacheCfg, err := fileCfg.With(WithLocation(Cache))
	require.NoError(t, err)
	require.NoError(t, e.CacheFile(ctx, cacheCfg))

	score, err := Load[int](ctx, e, "score", cacheCfg)
	require.NoError(t, err)
	assert.Equal(t, 10, score)
	assert.Equal(t, []string{cacheCfg.FullPath()}, e.CachedPaths())

	missing := mustConfig(t, e, "nowhere.pak", WithLocation(Cache))
	require.NoError(t, e.CacheFile(ctx, missing))
	exists, err := e.FileExists(ctx, missing)
	require.NoError(t, err)
	assert.False(t, exists)

	err = e.StoreCachedFile(ctx, missing)
	assert.ErrorIs(t, err, ErrFileNotFound)
}

func TestLoadInto(t *testing.T) {
	ctx := context.Background()
	e := NewTestEngine(t)
	cfg := mustConfig(t, e, "into.pak")
	require.NoError(t, e.Save(ctx, "inventory", Inventory{Slots: []string{"bow"}}, cfg))

	target := Inventory{Items: map[string]int{"gold": 5}}
	require.NoError(t, e.LoadInto(ctx, "inventory", &target, cfg))
	assert.Equal(t, []string{"bow"}, target.Slots)

	err := e.LoadInto(ctx, "inventory", target, cfg)
	assert.ErrorIs(t, err, ErrUnsupportedType)
}

func TestMemoryLocationIsNotAddressable(t *testing.T) {
	ctx := context.Background()
	e := NewTestEngine(t)
	cfg := mustConfig(t, e, "stream", WithLocation(Memory))

	err := e.Save(ctx, "k", 1, cfg)
	assert.ErrorIs(t, err, ErrUnsupportedOperation)
	_, err = Load[int](ctx, e, "k", cfg)
	assert.ErrorIs(t, err, ErrUnsupportedOperation)
	_, err = e.FileExists(ctx, cfg)
	assert.ErrorIs(t, err, ErrUnsupportedOperation)
}

func TestConcurrentSavesKeepEveryKey(t *testing.T) {
	ctx := context.Background()
	e := NewTestEngine(t)
	cfg := mustConfig(t, e, "concurrent.pak")

	const writers = 8
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		go func(i int) {
			errs <- e.Save(ctx, string(rune('a'+i)), i, cfg)
		}(i)
	}
	for i := 0; i < writers; i++ {
		require.NoError(t, <-errs)
	}

	keys, err := e.GetKeys(ctx, cfg)
	require.NoError(t, err)
	assert.Len(t, keys, writers)
}

type lockedSettings struct {
	_       struct{} `archive:"-"`
	Console bool
}

func TestSaveRefusesOptedOutType(t *testing.T) {
	ctx := context.Background()
	e := NewTestEngine(t)
	cfg := mustConfig(t, e, "opted-out.pak")

	err := e.Save(ctx, "settings", lockedSettings{Console: true}, cfg)
	assert.ErrorIs(t, err, ErrUnsupportedType)

	exists, err := e.FileExists(ctx, cfg)
	require.NoError(t, err)
	assert.False(t, exists)
}
