package savex

import (
	"context"
	"fmt"

	"github.com/hengadev/savex/internal/archiverr"
	"github.com/hengadev/savex/internal/container"
)

// SaveRaw replaces the bytes of the container cfg names, applying the
// configured transforms. A Cache location only accepts encoded containers.
func (e *Engine) SaveRaw(ctx context.Context, data []byte, cfg Config) error {
	return e.observe(ctx, "save_raw", cfg, "", func(cfg Config) error {
		if err := requireContainer("SaveRaw", cfg); err != nil {
			return err
		}
		if cfg.Location == Cache {
			c, err := container.Decode(data)
			if err != nil {
				return fmt.Errorf("cache %s: %w", cfg.FullPath(), err)
			}
			e.cache.Put(cfg, c)
			return nil
		}
		return e.storeBytes(ctx, cfg, data)
	})
}

// SaveRawString encodes s with the configured text encoding and saves it
// with SaveRaw.
func (e *Engine) SaveRawString(ctx context.Context, s string, cfg Config) error {
	data, err := encodeText(s, cfg.Encoding)
	if err != nil {
		return err
	}
	return e.SaveRaw(ctx, data, cfg)
}

// AppendRaw appends data to the container bytes without transforms. A
// configuration with encryption or compression fails with
// ErrAppendTransform before anything is written. Appending encoded entries
// or whole encoded containers keeps the container readable; on conflict the
// appended value wins.
func (e *Engine) AppendRaw(ctx context.Context, data []byte, cfg Config) error {
	return e.observe(ctx, "append_raw", cfg, "", func(cfg Config) error {
		if err := requireContainer("AppendRaw", cfg); err != nil {
			return err
		}
		if err := cfg.transformSettings(e.kdf).CheckAppend(); err != nil {
			return err
		}

		if cfg.Location == Cache {
			if !container.HasHeader(data) {
				data = append(append([]byte{}, container.Header...), data...)
			}
			appended, err := container.Decode(data)
			if err != nil {
				return fmt.Errorf("append to cached %s: %w", cfg.FullPath(), err)
			}
			return e.cache.Update(cfg, func(c *container.Container) error {
				c.Merge(appended)
				return nil
			})
		}

		unlock := e.locks.lock(cfg.Identity())
		defer unlock()
		path := cfg.FullPath()
		if err := e.backend(cfg).Append(ctx, path, data); err != nil {
			return fmt.Errorf("append %s: %w", path, err)
		}
		return nil
	})
}

func (e *Engine) AppendRawString(ctx context.Context, s string, cfg Config) error {
	data, err := encodeText(s, cfg.Encoding)
	if err != nil {
		return err
	}
	return e.AppendRaw(ctx, data, cfg)
}

// LoadRawBytes returns the bytes of the container cfg names with its
// transforms undone.
func (e *Engine) LoadRawBytes(ctx context.Context, cfg Config) ([]byte, error) {
	var out []byte
	err := e.observe(ctx, "load_raw", cfg, "", func(cfg Config) error {
		if err := requireContainer("LoadRawBytes", cfg); err != nil {
			return err
		}
		if cfg.Location == Cache {
			c, ok := e.cache.Get(cfg)
			if !ok {
				return archiverr.NewFileNotFoundError(cfg.FullPath(), archiverr.Load)
			}
			out = container.Encode(c)
			return nil
		}

		data, ok, err := e.loadBytes(ctx, cfg)
		if err != nil {
			return err
		}
		if !ok {
			return archiverr.NewFileNotFoundError(cfg.FullPath(), archiverr.Load)
		}
		out = data
		return nil
	})
	return out, err
}

// LoadRawString loads the raw bytes and decodes them with the configured
// text encoding.
func (e *Engine) LoadRawString(ctx context.Context, cfg Config) (string, error) {
	data, err := e.LoadRawBytes(ctx, cfg)
	if err != nil {
		return "", err
	}
	return decodeText(data, cfg.Encoding)
}

// storeBytes transforms data and replaces the persisted bytes of cfg.
func (e *Engine) storeBytes(ctx context.Context, cfg Config, data []byte) error {
	settings, err := e.settings(ctx, cfg)
	if err != nil {
		return err
	}
	encoded, err := e.pipeline.Encode(data, settings)
	if err != nil {
		return err
	}

	unlock := e.locks.lock(cfg.Identity())
	defer unlock()
	path := cfg.FullPath()
	if err := e.backend(cfg).Store(ctx, path, encoded); err != nil {
		return fmt.Errorf("store %s: %w", path, err)
	}
	e.metrics.IncrementCounterBy(MetricBytesWritten, int64(len(encoded)), map[string]string{"location": cfg.Location.String()})
	return nil
}
