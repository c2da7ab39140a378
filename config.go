package savex

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/hengadev/errsx"

	"github.com/hengadev/savex/internal/transform"
)

// Config describes where and how a container is read and written.
//
// Config is a value: derive new configurations with With or WithPath
// instead of mutating a shared one. Two configurations address the same
// container when their Identity matches, regardless of how they were built.
//
// Example usage:
//
//	cfg, err := savex.NewConfig("saves/slot1.pak",
//	    savex.WithEncryption("correct horse"),
//	    savex.WithCompression(savex.CompressionGzip),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	err = engine.Save(ctx, "player", player, cfg)
type Config struct {
	// Path names the container. For File and Cache it is a file path,
	// relative paths resolve against BaseDir. For KeyValue it is the key.
	Path string `yaml:"path"`

	Location Location `yaml:"location"`

	// BaseDir anchors relative File and Cache paths. Empty means the
	// working directory.
	BaseDir string `yaml:"base_dir,omitempty"`

	Encryption Encryption `yaml:"encryption"`

	// Password is the AES password. When empty the engine asks its
	// PasswordSource. It is never serialized.
	Password string `yaml:"-"`

	Compression Compression `yaml:"compression"`
	Format      Format      `yaml:"format"`

	// Encoding names the text encoding of LoadRawString and SaveRawString.
	Encoding string `yaml:"encoding"`

	// BufferSize is the chunk size of the transform streams.
	BufferSize int `yaml:"buffer_size"`

	// TypeChecking requires the stored type tag to match the requested type.
	TypeChecking bool `yaml:"type_checking"`

	// SafeReflection restricts serialization to exported members and
	// private members tagged archive:",serialize".
	SafeReflection bool `yaml:"safe_reflection"`

	// DepthLimit caps value nesting while encoding and decoding.
	DepthLimit int `yaml:"depth_limit"`
}

// DefaultConfig returns the configuration every other one is derived from.
func DefaultConfig() Config {
	return Config{
		Path:           DefaultPath,
		Location:       File,
		Encryption:     EncryptionNone,
		Compression:    CompressionNone,
		Format:         FormatBinary,
		Encoding:       DefaultEncoding,
		BufferSize:     DefaultBufferSize,
		TypeChecking:   true,
		SafeReflection: true,
		DepthLimit:     DefaultDepthLimit,
	}
}

// WithPath returns a copy of c that differs only in its path.
func (c Config) WithPath(path string) Config {
	c.Path = path
	return c
}

// BackupConfig returns the configuration of c's backup container.
func (c Config) BackupConfig() Config {
	return c.WithPath(c.Path + BackupSuffix)
}

// FullPath resolves the path of c. File and Cache paths are made absolute;
// KeyValue and Memory paths are keys and are returned unchanged.
func (c Config) FullPath() string {
	switch c.Location {
	case KeyValue, Memory:
		return c.Path
	}
	return resolvePath(c.BaseDir, c.Path)
}

// Identity is the location and resolved path. Configurations with the same
// identity address the same container.
func (c Config) Identity() string {
	return c.Location.String() + ":" + c.FullPath()
}

// CacheKey addresses the cache entry of c. A File configuration and a Cache
// configuration for the same path share one entry.
func (c Config) CacheKey() string {
	return Cache.String() + ":" + resolvePath(c.BaseDir, c.Path)
}

// Validate reports every invalid field at once.
func (c Config) Validate() error {
	errs := errsx.Map{}

	if c.Path == "" {
		errs.Set("path", fmt.Errorf("path cannot be empty"))
	}
	if _, ok := locationNames[c.Location]; !ok {
		errs.Set("location", fmt.Errorf("unknown location %d", c.Location))
	}
	if c.Encryption != EncryptionNone && c.Encryption != EncryptionAES {
		errs.Set("encryption", fmt.Errorf("unknown encryption %d", c.Encryption))
	}
	if c.Compression != CompressionNone && c.Compression != CompressionGzip {
		errs.Set("compression", fmt.Errorf("unknown compression %d", c.Compression))
	}
	if c.Format != FormatBinary {
		errs.Set("format", fmt.Errorf("unknown format %d", c.Format))
	}
	if _, err := lookupEncoding(c.Encoding); err != nil {
		errs.Set("encoding", err)
	}
	if c.BufferSize <= 0 {
		errs.Set("buffer_size", fmt.Errorf("buffer size must be positive, got %d", c.BufferSize))
	}
	if c.DepthLimit <= 0 {
		errs.Set("depth_limit", fmt.Errorf("depth limit must be positive, got %d", c.DepthLimit))
	}

	if err := errs.AsError(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfiguration, err)
	}
	return nil
}

func (c Config) transformSettings(kdf transform.Argon2Params) transform.Settings {
	return transform.Settings{
		Encrypt:    c.Encryption == EncryptionAES,
		Compress:   c.Compression == CompressionGzip,
		Password:   c.Password,
		BufferSize: c.BufferSize,
		KDF:        kdf,
	}
}

func resolvePath(base, path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	if base == "" {
		wd, err := os.Getwd()
		if err != nil {
			wd = "."
		}
		base = wd
	}
	full, err := filepath.Abs(filepath.Join(base, path))
	if err != nil {
		return filepath.Join(base, path)
	}
	return full
}
