package savex

import (
	"context"
	"encoding/base64"
	"fmt"
	"reflect"

	"github.com/hengadev/savex/internal/container"
	"github.com/hengadev/savex/internal/transform"
)

// Serialize encodes value as a single tagged frame, then applies the
// transforms of cfg. No storage is touched; the location of cfg is ignored.
func Serialize[T any](ctx context.Context, e *Engine, value T, cfg Config) ([]byte, error) {
	var out []byte
	err := e.observe(ctx, "serialize", cfg.memory(), "", func(cfg Config) error {
		tv, err := e.codec(cfg).TagValue(reflect.ValueOf(&value).Elem())
		if err != nil {
			return err
		}
		settings, err := e.settings(ctx, cfg)
		if err != nil {
			return err
		}
		out, err = e.pipeline.Encode(container.EncodeValue(tv), settings)
		return err
	})
	return out, err
}

// Deserialize reverses Serialize.
func Deserialize[T any](ctx context.Context, e *Engine, data []byte, cfg Config) (T, error) {
	var out T
	err := DeserializeInto(ctx, e, data, &out, cfg)
	if err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}

// DeserializeInto decodes data into an existing value. Members missing from
// the frame keep their current value.
func DeserializeInto[T any](ctx context.Context, e *Engine, data []byte, target *T, cfg Config) error {
	if target == nil {
		return fmt.Errorf("%w: DeserializeInto target cannot be nil", ErrUnsupportedType)
	}
	return e.observe(ctx, "deserialize", cfg.memory(), "", func(cfg Config) error {
		settings, err := e.settings(ctx, cfg)
		if err != nil {
			return err
		}
		frame, err := e.pipeline.Decode(data, settings)
		if err != nil {
			return err
		}
		tv, err := container.DecodeValue(frame)
		if err != nil {
			return err
		}
		return e.codec(cfg).DecodeInto("value", tv, reflect.ValueOf(target).Elem())
	})
}

// EncryptBytes encrypts data with AES under password. An empty password
// falls back to the engine defaults, then to the PasswordSource.
func (e *Engine) EncryptBytes(ctx context.Context, data []byte, password string) ([]byte, error) {
	settings, err := e.cipherSettings(ctx, password)
	if err != nil {
		return nil, err
	}
	return e.pipeline.Encode(data, settings)
}

// DecryptBytes reverses EncryptBytes.
func (e *Engine) DecryptBytes(ctx context.Context, data []byte, password string) ([]byte, error) {
	settings, err := e.cipherSettings(ctx, password)
	if err != nil {
		return nil, err
	}
	return e.pipeline.Decode(data, settings)
}

// EncryptString encrypts the UTF-8 bytes of s and returns them base64
// encoded.
func (e *Engine) EncryptString(ctx context.Context, s, password string) (string, error) {
	ciphertext, err := e.EncryptBytes(ctx, []byte(s), password)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// DecryptString reverses EncryptString.
func (e *Engine) DecryptString(ctx context.Context, s, password string) (string, error) {
	ciphertext, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return "", fmt.Errorf("%w: invalid base64: %w", ErrDecryptionFailed, err)
	}
	plaintext, err := e.DecryptBytes(ctx, ciphertext, password)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}

func (e *Engine) cipherSettings(ctx context.Context, password string) (transform.Settings, error) {
	cfg := e.defaults
	cfg.Encryption = EncryptionAES
	cfg.Compression = CompressionNone
	if password != "" {
		cfg.Password = password
	}
	return e.settings(ctx, cfg)
}

// memory returns c addressed to the in-memory location.
func (c Config) memory() Config {
	c.Location = Memory
	return c
}
