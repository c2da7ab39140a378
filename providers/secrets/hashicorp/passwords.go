package hashicorp

import (
	"context"
	"fmt"

	"github.com/hashicorp/vault/api"

	"github.com/hengadev/savex"
	"github.com/hengadev/savex/internal/reliability"
)

// PasswordPathTemplate is the KV v2 path of an alias' password. The "/data/"
// segment is required by the KV v2 API.
const PasswordPathTemplate = "secret/data/savex/%s/password"

// logical is the subset of *api.Logical the store uses (allows mocking).
type logical interface {
	ReadWithContext(ctx context.Context, path string) (*api.Secret, error)
	WriteWithContext(ctx context.Context, path string, data map[string]interface{}) (*api.Secret, error)
}

// PasswordStore implements savex.PasswordSource with Vault KV v2. Every
// configuration resolves to the password of one alias unless an AliasFunc
// is set.
type PasswordStore struct {
	logical logical
	alias   string
	retry   reliability.RetryConfig

	// AliasFunc, when set, picks the alias per configuration, e.g. one
	// password per save slot.
	AliasFunc func(cfg savex.Config) string
}

// NewPasswordStore connects to Vault using the environment (see
// createVaultClient).
func NewPasswordStore(alias string) (*PasswordStore, error) {
	client, err := createVaultClient()
	if err != nil {
		return nil, err
	}
	return newPasswordStore(client.Logical(), alias)
}

func newPasswordStore(l logical, alias string) (*PasswordStore, error) {
	if alias == "" {
		return nil, fmt.Errorf("%w: password alias cannot be empty", savex.ErrInvalidConfiguration)
	}
	return &PasswordStore{logical: l, alias: alias, retry: reliability.DefaultRetryConfig()}, nil
}

// StoragePath returns the Vault KV v2 path for alias.
func (p *PasswordStore) StoragePath(alias string) string {
	return fmt.Sprintf(PasswordPathTemplate, alias)
}

// Password returns the password of the alias cfg resolves to.
func (p *PasswordStore) Password(ctx context.Context, cfg savex.Config) (string, error) {
	alias := p.alias
	if p.AliasFunc != nil {
		if a := p.AliasFunc(cfg); a != "" {
			alias = a
		}
	}

	password, ok, err := p.read(ctx, alias)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("%w: no password stored for alias %q", ErrVaultUnavailable, alias)
	}
	return password, nil
}

// StorePassword writes the password of alias. KV v2 keeps the previous
// versions.
func (p *PasswordStore) StorePassword(ctx context.Context, alias, password string) error {
	if password == "" {
		return fmt.Errorf("%w: password cannot be empty", savex.ErrInvalidConfiguration)
	}

	data := map[string]interface{}{
		"data": map[string]interface{}{
			"value": password,
		},
	}
	err := reliability.Do(ctx, p.retry, func(ctx context.Context) error {
		_, err := p.logical.WriteWithContext(ctx, p.StoragePath(alias), data)
		return err
	})
	if err != nil {
		return fmt.Errorf("%w: failed to store password in Vault KV: %w", ErrVaultUnavailable, err)
	}
	return nil
}

// PasswordExists reports whether alias has a password. Only real failures
// are errors.
func (p *PasswordStore) PasswordExists(ctx context.Context, alias string) (bool, error) {
	_, ok, err := p.read(ctx, alias)
	return ok, err
}

func (p *PasswordStore) read(ctx context.Context, alias string) (string, bool, error) {
	var secret *api.Secret
	err := reliability.Do(ctx, p.retry, func(ctx context.Context) error {
		var err error
		secret, err = p.logical.ReadWithContext(ctx, p.StoragePath(alias))
		return err
	})
	if err != nil {
		return "", false, fmt.Errorf("%w: failed to read password from Vault KV: %w", ErrVaultUnavailable, err)
	}
	if secret == nil || secret.Data == nil {
		return "", false, nil
	}

	// KV v2 wraps the actual data in a "data" key
	data, ok := secret.Data["data"].(map[string]interface{})
	if !ok {
		return "", false, nil
	}
	value, ok := data["value"].(string)
	if !ok || value == "" {
		return "", false, nil
	}
	return value, true, nil
}
