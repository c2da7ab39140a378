package savex

import (
	"context"

	"github.com/hengadev/savex/internal/container"
)

// StoreCachedFile writes the cached container of cfg to its persistent
// location, which is File for a Cache configuration. The cached container
// replaces what was persisted. A missing cache entry is ErrFileNotFound.
func (e *Engine) StoreCachedFile(ctx context.Context, cfg Config) error {
	return e.observe(ctx, "store_cached_file", cfg, "", func(cfg Config) error {
		if err := requireContainer("StoreCachedFile", cfg); err != nil {
			return err
		}
		target := e.persistent(cfg)
		return e.cache.Store(ctx, cfg, func(ctx context.Context, _ Config, c *container.Container) error {
			return e.storeBytes(ctx, target, container.Encode(c))
		})
	})
}

// CacheFile loads the persisted container of cfg into the cache. It is a
// no-op when nothing is persisted.
func (e *Engine) CacheFile(ctx context.Context, cfg Config) error {
	return e.observe(ctx, "cache_file", cfg, "", func(cfg Config) error {
		if err := requireContainer("CacheFile", cfg); err != nil {
			return err
		}
		source := e.persistent(cfg)
		_, err := e.cache.Hydrate(ctx, cfg, func(ctx context.Context, _ Config) (*container.Container, bool, error) {
			return e.loadContainer(ctx, source)
		})
		return err
	})
}
