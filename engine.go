package savex

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/hengadev/savex/internal/archiverr"
	"github.com/hengadev/savex/internal/cache"
	"github.com/hengadev/savex/internal/container"
	"github.com/hengadev/savex/internal/monitoring"
	"github.com/hengadev/savex/internal/reflection"
	"github.com/hengadev/savex/internal/serialization"
	"github.com/hengadev/savex/internal/storage"
	"github.com/hengadev/savex/internal/transform"
)

// FileSystem is the file and directory surface used by the File location.
type FileSystem = storage.FileSystem

// KeyValueStore is the platform key-value store used by the KeyValue location.
type KeyValueStore = storage.KeyValueStore

// KeyValueTimestampPrefix prefixes the key under which the KeyValue location
// records when a container was last written.
const KeyValueTimestampPrefix = storage.TimestampPrefix

// NewOSFileSystem returns the local disk FileSystem.
func NewOSFileSystem() FileSystem { return storage.NewOSFileSystem() }

// NewMemoryKeyValueStore returns an in-process KeyValueStore.
func NewMemoryKeyValueStore() *storage.MemoryKeyValueStore { return storage.NewMemoryKeyValueStore() }

// PasswordSource supplies the AES password for configurations that enable
// encryption without one.
type PasswordSource interface {
	Password(ctx context.Context, cfg Config) (string, error)
}

// PasswordFunc adapts a function to PasswordSource.
type PasswordFunc func(ctx context.Context, cfg Config) (string, error)

func (f PasswordFunc) Password(ctx context.Context, cfg Config) (string, error) { return f(ctx, cfg) }

// StaticPassword returns the same password for every configuration.
func StaticPassword(password string) PasswordSource {
	return PasswordFunc(func(context.Context, Config) (string, error) { return password, nil })
}

// Engine owns every piece of state the archive operations share: the type
// registry, the cache, the storage backends and the observability stack.
// Engines are independent of each other and safe for concurrent use.
type Engine struct {
	defaults Config
	registry *reflection.Registry
	pipeline *transform.Pipeline
	cache    *cache.Layer[Config]

	fs     storage.FileSystem
	kv     storage.KeyValueStore
	files  *storage.FileBackend
	values *storage.KeyValueBackend

	passwords PasswordSource
	logger    *monitoring.Logger
	hook      monitoring.ObservabilityHook
	metrics   monitoring.MetricsCollector
	userHook  monitoring.ObservabilityHook

	platform string
	kdf      transform.Argon2Params
	now      func() time.Time
	locks    keyedMutex
}

// EngineOption configures an Engine.
type EngineOption func(*Engine) error

// WithDefaults sets the configuration Engine.Config derives from.
func WithDefaults(cfg Config) EngineOption {
	return func(e *Engine) error {
		if err := cfg.Validate(); err != nil {
			return err
		}
		e.defaults = cfg
		return nil
	}
}

func WithFileSystem(fs FileSystem) EngineOption {
	return func(e *Engine) error {
		if fs == nil {
			return fmt.Errorf("%w: file system cannot be nil", ErrInvalidConfiguration)
		}
		e.fs = fs
		return nil
	}
}

func WithKeyValueStore(kv KeyValueStore) EngineOption {
	return func(e *Engine) error {
		if kv == nil {
			return fmt.Errorf("%w: key-value store cannot be nil", ErrInvalidConfiguration)
		}
		e.kv = kv
		return nil
	}
}

func WithPasswordSource(src PasswordSource) EngineOption {
	return func(e *Engine) error {
		e.passwords = src
		return nil
	}
}

func WithLogger(logger *Logger) EngineOption {
	return func(e *Engine) error {
		if logger == nil {
			return fmt.Errorf("%w: logger cannot be nil", ErrInvalidConfiguration)
		}
		e.logger = logger
		return nil
	}
}

func WithObservabilityHook(hook ObservabilityHook) EngineOption {
	return func(e *Engine) error {
		e.userHook = hook
		return nil
	}
}

func WithMetricsCollector(collector MetricsCollector) EngineOption {
	return func(e *Engine) error {
		if collector == nil {
			return fmt.Errorf("%w: metrics collector cannot be nil", ErrInvalidConfiguration)
		}
		e.metrics = collector
		return nil
	}
}

// WithPlatform overrides the runtime.GOOS value used for platform specific
// behaviour such as audio format support.
func WithPlatform(platform string) EngineOption {
	return func(e *Engine) error {
		e.platform = platform
		return nil
	}
}

// WithKDFParams sets the argon2id parameters used when encrypting. Streams
// record their parameters, so decryption works regardless of this setting.
func WithKDFParams(memoryKiB, iterations uint32, parallelism uint8) EngineOption {
	return func(e *Engine) error {
		if memoryKiB == 0 || iterations == 0 || parallelism == 0 {
			return fmt.Errorf("%w: argon2 parameters must be positive", ErrInvalidConfiguration)
		}
		e.kdf = transform.Argon2Params{Memory: memoryKiB, Iterations: iterations, Parallelism: parallelism}
		return nil
	}
}

// WithClock replaces time.Now for timestamps written by the engine.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) error {
		e.now = now
		return nil
	}
}

// New builds an Engine. Without options it stores files on the local disk
// and key-value containers in memory.
func New(opts ...EngineOption) (*Engine, error) {
	e := &Engine{
		defaults: DefaultConfig(),
		registry: reflection.NewRegistry(),
		pipeline: transform.NewPipeline(),
		metrics:  monitoring.NoOpMetricsCollector{},
		platform: runtime.GOOS,
		kdf:      transform.DefaultArgon2Params(),
		now:      time.Now,
	}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}

	if e.fs == nil {
		e.fs = storage.NewOSFileSystem()
	}
	if e.kv == nil {
		e.kv = storage.NewMemoryKeyValueStore()
	}
	if e.logger == nil {
		e.logger = monitoring.NewNopLogger()
	}
	e.logger = e.logger.With("platform", e.platform)

	e.files = storage.NewFileBackend(e.fs)
	e.values = storage.NewKeyValueBackend(e.kv, e.now)
	e.cache = cache.NewLayer[Config](e.now)

	hooks := []monitoring.ObservabilityHook{
		monitoring.NewMetricsObservabilityHook(e.metrics),
		monitoring.NewLoggingObservabilityHook(e.logger),
	}
	if e.userHook != nil {
		hooks = append(hooks, e.userHook)
	}
	e.hook = monitoring.NewCompositeObservabilityHook(hooks...)
	return e, nil
}

// Config derives a configuration for path from the engine defaults.
func (e *Engine) Config(path string, opts ...Option) (Config, error) {
	return e.defaults.WithPath(path).With(opts...)
}

// Defaults returns the engine's default configuration.
func (e *Engine) Defaults() Config { return e.defaults }

func (e *Engine) Platform() string { return e.platform }

func (e *Engine) Logger() *Logger { return e.logger }

// Register records the concrete types of samples so values stored behind
// interface types can be decoded by a process that has not saved them.
func (e *Engine) Register(samples ...any) {
	for _, s := range samples {
		if s != nil {
			e.registry.Register(reflectType(s))
		}
	}
}

// CachedPaths lists the full paths of every cached container.
func (e *Engine) CachedPaths() []string {
	entries := e.cache.Entries()
	paths := make([]string, 0, len(entries))
	for _, entry := range entries {
		paths = append(paths, entry.Config.FullPath())
	}
	return paths
}

// CacheSize is the number of containers held by the cache.
func (e *Engine) CacheSize() int { return e.cache.Len() }

// UncacheFile drops the cached container of cfg without storing it.
func (e *Engine) UncacheFile(cfg Config) bool {
	return e.cache.Remove(cfg)
}

// observe resolves cfg for the current platform, validates it and runs fn
// inside the observability hooks.
func (e *Engine) observe(ctx context.Context, name string, cfg Config, key string, fn func(cfg Config) error) error {
	cfg = e.platformConfig(cfg)
	op := monitoring.Operation{Name: name, Location: cfg.Location.String(), Path: cfg.FullPath(), Key: key}
	return monitoring.Observe(ctx, e.hook, op, func() error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		return fn(cfg)
	})
}

// platformConfig maps File to KeyValue on js, where there is no file system.
func (e *Engine) platformConfig(cfg Config) Config {
	if e.platform == "js" && cfg.Location == File {
		cfg.Location = KeyValue
	}
	return cfg
}

func (e *Engine) codec(cfg Config) *container.Codec {
	values := serialization.New(e.registry, serialization.Options{
		Safe:       cfg.SafeReflection,
		DepthLimit: cfg.DepthLimit,
	})
	return container.NewCodec(values, cfg.TypeChecking)
}

// settings builds the transform settings of cfg, asking the password
// source when AES is enabled without a password.
func (e *Engine) settings(ctx context.Context, cfg Config) (transform.Settings, error) {
	if cfg.Encryption == EncryptionAES && cfg.Password == "" && e.passwords != nil {
		password, err := e.passwords.Password(ctx, cfg)
		if err != nil {
			return transform.Settings{}, fmt.Errorf("resolve password for %s: %w", cfg.FullPath(), err)
		}
		cfg.Password = password
	}
	s := cfg.transformSettings(e.kdf)
	if s.Encrypt && s.Password == "" {
		return transform.Settings{}, archiverr.ErrMissingPassword
	}
	return s, nil
}

// backend returns the persistent backend of a File or KeyValue config.
func (e *Engine) backend(cfg Config) storage.Backend {
	if cfg.Location == KeyValue {
		return e.values
	}
	return e.files
}

// persistent maps a Cache configuration to the File configuration it is
// stored to and hydrated from.
func (e *Engine) persistent(cfg Config) Config {
	if cfg.Location == Cache {
		cfg.Location = File
	}
	return e.platformConfig(cfg)
}

// keyedMutex serializes writers per container identity.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*refMutex)
	}
	m, ok := k.locks[key]
	if !ok {
		m = &refMutex{}
		k.locks[key] = m
	}
	m.refs++
	k.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		k.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

// lockPair locks two identities in a fixed order.
func (k *keyedMutex) lockPair(a, b string) func() {
	if a == b {
		return k.lock(a)
	}
	if b < a {
		a, b = b, a
	}
	unlockA := k.lock(a)
	unlockB := k.lock(b)
	return func() {
		unlockB()
		unlockA()
	}
}
