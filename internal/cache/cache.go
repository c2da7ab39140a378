// Package cache keeps open containers in memory, addressed by the resolved
// identity of their configuration rather than by the configuration value.
package cache

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/hengadev/savex/internal/archiverr"
	"github.com/hengadev/savex/internal/container"
)

// Keyed is a configuration that can address a cache entry.
type Keyed interface {
	CacheKey() string
	FullPath() string
}

// Entry is a cached container with the configuration it was created with.
type Entry[C Keyed] struct {
	Config    C
	Container *container.Container
	Timestamp time.Time
}

// PersistFunc writes a container to the persistent location named by cfg.
type PersistFunc[C Keyed] func(ctx context.Context, cfg C, c *container.Container) error

// LoadFunc reads the container persisted at cfg and reports whether one
// exists.
type LoadFunc[C Keyed] func(ctx context.Context, cfg C) (*container.Container, bool, error)

// Layer is a concurrency safe map of cache entries. Containers handed out by
// Get and GetOrCreate are copies; mutations go through Update.
type Layer[C Keyed] struct {
	mu      sync.RWMutex
	entries map[string]*Entry[C]
	now     func() time.Time
}

func NewLayer[C Keyed](now func() time.Time) *Layer[C] {
	if now == nil {
		now = time.Now
	}
	return &Layer[C]{entries: make(map[string]*Entry[C]), now: now}
}

// GetOrCreate returns a copy of the container cached for cfg, creating an
// empty entry first when there is none.
func (l *Layer[C]) GetOrCreate(cfg C) *container.Container {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.entryLocked(cfg).Container.Clone()
}

func (l *Layer[C]) Get(cfg C) (*container.Container, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	e, ok := l.entries[cfg.CacheKey()]
	if !ok {
		return nil, false
	}
	return e.Container.Clone(), true
}

func (l *Layer[C]) Exists(cfg C) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.entries[cfg.CacheKey()]
	return ok
}

// Remove drops the entry for cfg and reports whether one existed.
func (l *Layer[C]) Remove(cfg C) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	key := cfg.CacheKey()
	_, ok := l.entries[key]
	delete(l.entries, key)
	return ok
}

// Update runs fn on the live container for cfg, creating the entry if
// needed. The entry timestamp is refreshed when fn succeeds.
func (l *Layer[C]) Update(cfg C, fn func(c *container.Container) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	e := l.entryLocked(cfg)
	if err := fn(e.Container); err != nil {
		return err
	}
	e.Timestamp = l.now().UTC()
	return nil
}

// Put replaces the container cached for cfg.
func (l *Layer[C]) Put(cfg C, c *container.Container) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries[cfg.CacheKey()] = &Entry[C]{Config: cfg, Container: c.Clone(), Timestamp: l.now().UTC()}
}

// View runs fn on the container for cfg without creating it. It reports
// false when there is no entry.
func (l *Layer[C]) View(cfg C, fn func(c *container.Container) error) (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	e, ok := l.entries[cfg.CacheKey()]
	if !ok {
		return false, nil
	}
	return true, fn(e.Container)
}

// Copy duplicates the entry of src under dst, replacing whatever dst held.
func (l *Layer[C]) Copy(src, dst C) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[src.CacheKey()]
	if !ok {
		return archiverr.NewFileNotFoundError(src.FullPath(), archiverr.Copy)
	}
	l.entries[dst.CacheKey()] = &Entry[C]{Config: dst, Container: e.Container.Clone(), Timestamp: l.now().UTC()}
	return nil
}

// Move re-keys the entry of src under dst.
func (l *Layer[C]) Move(src, dst C) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[src.CacheKey()]
	if !ok {
		return archiverr.NewFileNotFoundError(src.FullPath(), archiverr.Rename)
	}
	delete(l.entries, src.CacheKey())
	l.entries[dst.CacheKey()] = &Entry[C]{Config: dst, Container: e.Container, Timestamp: e.Timestamp}
	return nil
}

// Timestamp returns the last time the entry for cfg changed.
func (l *Layer[C]) Timestamp(cfg C) (time.Time, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	e, ok := l.entries[cfg.CacheKey()]
	if !ok {
		return time.Time{}, false
	}
	return e.Timestamp, true
}

// Len is the number of cached containers.
func (l *Layer[C]) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Entries returns copies of every entry ordered by full path.
func (l *Layer[C]) Entries() []Entry[C] {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Entry[C], 0, len(l.entries))
	for _, e := range l.entries {
		out = append(out, Entry[C]{Config: e.Config, Container: e.Container.Clone(), Timestamp: e.Timestamp})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Config.FullPath() < out[j].Config.FullPath()
	})
	return out
}

// Store flushes the entry for cfg with persist. The container is copied
// under the lock and written outside it.
func (l *Layer[C]) Store(ctx context.Context, cfg C, persist PersistFunc[C]) error {
	snapshot, ok := l.Get(cfg)
	if !ok {
		return archiverr.NewFileNotFoundError(cfg.FullPath(), archiverr.Store)
	}
	return persist(ctx, cfg, snapshot)
}

// Hydrate loads the persisted container for cfg into the cache. It reports
// false, and leaves the cache untouched, when nothing is persisted.
func (l *Layer[C]) Hydrate(ctx context.Context, cfg C, load LoadFunc[C]) (bool, error) {
	c, ok, err := load(ctx, cfg)
	if err != nil || !ok {
		return false, err
	}
	l.Put(cfg, c)
	return true, nil
}

func (l *Layer[C]) entryLocked(cfg C) *Entry[C] {
	key := cfg.CacheKey()
	e, ok := l.entries[key]
	if !ok {
		e = &Entry[C]{Config: cfg, Container: container.New(), Timestamp: l.now().UTC()}
		l.entries[key] = e
	}
	return e
}
