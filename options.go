package savex

import (
	"fmt"
	"strings"
)

// Option adjusts a Config.
type Option func(*Config) error

// NewConfig derives a validated configuration for path from DefaultConfig.
func NewConfig(path string, opts ...Option) (Config, error) {
	return DefaultConfig().WithPath(path).With(opts...)
}

// With returns a copy of c with opts applied. The result is validated.
func (c Config) With(opts ...Option) (Config, error) {
	for _, opt := range opts {
		if err := opt(&c); err != nil {
			return Config{}, err
		}
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func WithLocation(location Location) Option {
	return func(c *Config) error {
		if _, ok := locationNames[location]; !ok {
			return fmt.Errorf("%w: unknown location %d", ErrInvalidConfiguration, location)
		}
		c.Location = location
		return nil
	}
}

func WithBaseDir(dir string) Option {
	return func(c *Config) error {
		c.BaseDir = dir
		return nil
	}
}

// WithEncryption enables AES. An empty password defers to the engine's
// PasswordSource.
func WithEncryption(password string) Option {
	return func(c *Config) error {
		c.Encryption = EncryptionAES
		c.Password = password
		return nil
	}
}

func WithoutEncryption() Option {
	return func(c *Config) error {
		c.Encryption = EncryptionNone
		c.Password = ""
		return nil
	}
}

func WithCompression(compression Compression) Option {
	return func(c *Config) error {
		if compression != CompressionNone && compression != CompressionGzip {
			return fmt.Errorf("%w: unknown compression %d", ErrInvalidConfiguration, compression)
		}
		c.Compression = compression
		return nil
	}
}

func WithEncoding(name string) Option {
	return func(c *Config) error {
		if _, err := lookupEncoding(name); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidConfiguration, err)
		}
		c.Encoding = strings.ToLower(strings.TrimSpace(name))
		return nil
	}
}

func WithBufferSize(size int) Option {
	return func(c *Config) error {
		if size <= 0 {
			return fmt.Errorf("%w: buffer size must be positive, got %d", ErrInvalidConfiguration, size)
		}
		c.BufferSize = size
		return nil
	}
}

func WithTypeChecking(enabled bool) Option {
	return func(c *Config) error {
		c.TypeChecking = enabled
		return nil
	}
}

func WithSafeReflection(enabled bool) Option {
	return func(c *Config) error {
		c.SafeReflection = enabled
		return nil
	}
}

func WithDepthLimit(limit int) Option {
	return func(c *Config) error {
		if limit <= 0 {
			return fmt.Errorf("%w: depth limit must be positive, got %d", ErrInvalidConfiguration, limit)
		}
		c.DepthLimit = limit
		return nil
	}
}
