package savex

import (
	"context"
	"fmt"
	"reflect"

	"github.com/hengadev/savex/internal/archiverr"
	"github.com/hengadev/savex/internal/container"
)

// Save stores value under key in the container cfg names. Values are tagged
// with their dynamic type. For File and KeyValue locations the container is
// merged and committed atomically before Save returns; for Cache the value
// stays in memory until StoreCachedFile.
func (e *Engine) Save(ctx context.Context, key string, value any, cfg Config) error {
	return e.observe(ctx, "save", cfg, key, func(cfg Config) error {
		if err := requireContainer("Save", cfg); err != nil {
			return err
		}
		tv, err := e.codec(cfg).Tag(value)
		if err != nil {
			return fmt.Errorf("save '%s': %w", key, err)
		}

		if cfg.Location == Cache {
			return e.cache.Update(cfg, func(c *container.Container) error {
				c.Set(key, tv)
				return nil
			})
		}
		return e.write(ctx, cfg, func(w *container.Writer) error {
			return w.WriteTagged(key, tv)
		})
	})
}

// Load decodes the value stored under key as T. A missing container fails
// with ErrFileNotFound and a missing key with ErrKeyNotFound.
func Load[T any](ctx context.Context, e *Engine, key string, cfg Config) (T, error) {
	var out T
	err := e.observe(ctx, "load", cfg, key, func(cfg Config) error {
		r, err := e.requireReader(ctx, cfg, archiverr.Load)
		if err != nil {
			return err
		}
		out, err = container.ReadAs[T](r, key)
		return err
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}

// LoadOr decodes the value stored under key as T, or returns def when the
// container or the key does not exist. Transform and decoding failures are
// still returned.
func LoadOr[T any](ctx context.Context, e *Engine, key string, def T, cfg Config) (T, error) {
	out := def
	err := e.observe(ctx, "load", cfg, key, func(cfg Config) error {
		if err := requireContainer("Load", cfg); err != nil {
			return err
		}
		r, ok, err := e.reader(ctx, cfg)
		if err != nil || !ok {
			return err
		}
		out, err = container.ReadOr(r, key, def)
		return err
	})
	if err != nil {
		return def, err
	}
	return out, nil
}

// LoadInto decodes the value stored under key into the value target points
// to. Members absent from the stored value keep their current value.
func (e *Engine) LoadInto(ctx context.Context, key string, target any, cfg Config) error {
	return e.observe(ctx, "load_into", cfg, key, func(cfg Config) error {
		rv := reflect.ValueOf(target)
		if rv.Kind() != reflect.Pointer || rv.IsNil() {
			return fmt.Errorf("%w: LoadInto target must be a non-nil pointer, got %T", ErrUnsupportedType, target)
		}
		r, err := e.requireReader(ctx, cfg, archiverr.Load)
		if err != nil {
			return err
		}
		return r.ReadInto(key, target)
	})
}

// KeyType returns the type tag stored with key.
func (e *Engine) KeyType(ctx context.Context, key string, cfg Config) (string, error) {
	var name string
	err := e.observe(ctx, "key_type", cfg, key, func(cfg Config) error {
		r, err := e.requireReader(ctx, cfg, archiverr.Load)
		if err != nil {
			return err
		}
		tv, ok := r.Tagged(key)
		if !ok {
			return archiverr.NewKeyNotFoundError(key, cfg.FullPath())
		}
		name = tv.Type
		return nil
	})
	return name, err
}

// EntryInfo describes a stored entry without decoding it.
type EntryInfo struct {
	Key  string
	Type string
	Size int
}

// Entries lists the entries of the container cfg names in storage order.
func (e *Engine) Entries(ctx context.Context, cfg Config) ([]EntryInfo, error) {
	var entries []EntryInfo
	err := e.observe(ctx, "entries", cfg, "", func(cfg Config) error {
		r, err := e.requireReader(ctx, cfg, archiverr.Load)
		if err != nil {
			return err
		}
		entries = make([]EntryInfo, 0, len(r.Keys()))
		for key, tv := range r.Entries() {
			entries = append(entries, EntryInfo{Key: key, Type: tv.Type, Size: len(tv.Data)})
		}
		return nil
	})
	return entries, err
}

// write runs fn against a Writer on the persistent container of cfg and
// saves it. Writers of one container are serialized.
func (e *Engine) write(ctx context.Context, cfg Config, fn func(w *container.Writer) error) error {
	settings, err := e.settings(ctx, cfg)
	if err != nil {
		return err
	}

	unlock := e.locks.lock(cfg.Identity())
	defer unlock()

	path := cfg.FullPath()
	backend := e.backend(cfg)
	base := func() (*container.Container, error) {
		c, _, err := e.loadContainer(ctx, cfg)
		return c, err
	}
	commit := func(data []byte) error {
		encoded, err := e.pipeline.Encode(data, settings)
		if err != nil {
			return err
		}
		if err := backend.Store(ctx, path, encoded); err != nil {
			return fmt.Errorf("store %s: %w", path, err)
		}
		e.metrics.IncrementCounterBy(MetricBytesWritten, int64(len(encoded)), map[string]string{"location": cfg.Location.String()})
		return nil
	}

	w := container.NewWriter(e.codec(cfg), base, commit)
	defer w.Close()
	if err := fn(w); err != nil {
		return err
	}
	return w.Save()
}

// loadContainer reads and decodes the container of cfg. It reports false,
// with a nil container, when nothing is stored.
func (e *Engine) loadContainer(ctx context.Context, cfg Config) (*container.Container, bool, error) {
	if cfg.Location == Cache {
		c, ok := e.cache.Get(cfg)
		return c, ok, nil
	}

	data, ok, err := e.loadBytes(ctx, cfg)
	if err != nil || !ok {
		return nil, false, err
	}
	c, err := container.Decode(data)
	if err != nil {
		return nil, false, fmt.Errorf("read %s: %w", cfg.FullPath(), err)
	}
	return c, true, nil
}

// loadBytes reads the persisted bytes of cfg and undoes its transforms.
func (e *Engine) loadBytes(ctx context.Context, cfg Config) ([]byte, bool, error) {
	path := cfg.FullPath()
	raw, ok, err := e.backend(cfg).Load(ctx, path)
	if err != nil {
		return nil, false, fmt.Errorf("load %s: %w", path, err)
	}
	if !ok {
		return nil, false, nil
	}
	e.metrics.IncrementCounterBy(MetricBytesRead, int64(len(raw)), map[string]string{"location": cfg.Location.String()})

	settings, err := e.settings(ctx, cfg)
	if err != nil {
		return nil, false, err
	}
	data, err := e.pipeline.Decode(raw, settings)
	if err != nil {
		return nil, false, fmt.Errorf("decode %s: %w", path, err)
	}
	return data, true, nil
}

func (e *Engine) reader(ctx context.Context, cfg Config) (*container.Reader, bool, error) {
	c, ok, err := e.loadContainer(ctx, cfg)
	if err != nil || !ok {
		return nil, false, err
	}
	return container.ReaderOf(c, e.codec(cfg), cfg.FullPath()), true, nil
}

func (e *Engine) requireReader(ctx context.Context, cfg Config, action archiverr.Action) (*container.Reader, error) {
	if err := requireContainer(action.String(), cfg); err != nil {
		return nil, err
	}
	r, ok, err := e.reader(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, archiverr.NewFileNotFoundError(cfg.FullPath(), action)
	}
	return r, nil
}

// requireContainer rejects the Memory location, which has no addressable
// containers.
func requireContainer(operation string, cfg Config) error {
	if cfg.Location == Memory {
		return archiverr.NewUnsupportedOperationError(operation, cfg.Location.String())
	}
	return nil
}

func reflectType(v any) reflect.Type { return reflect.TypeOf(v) }
