// Package awskms provides a savex.PasswordSource whose archive passwords are
// sealed with an AWS KMS key.
//
// A sealed password is the base64 ciphertext returned by Seal. It can live in
// a settings file, an environment variable or a deployment manifest: only
// principals allowed to call kms:Decrypt on the key can open it.
//
//	sealer, err := awskms.New(ctx, awskms.Config{KeyID: "savex-passwords"})
//	sealed, err := sealer.Seal(ctx, "correct horse")
//	// store sealed, later:
//	sealer.Sealed = sealed
//	engine, err := savex.New(savex.WithPasswordSource(sealer))
package awskms

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/aws/aws-sdk-go-v2/service/kms/types"

	"github.com/hengadev/savex"
	"github.com/hengadev/savex/internal/reliability"
)

// ErrKMSUnavailable reports a KMS call that failed for a reason other than
// the ciphertext itself.
var ErrKMSUnavailable = errors.New("kms unavailable")

// encryptionContext binds sealed passwords to this use, so ciphertexts
// produced for other purposes with the same key are rejected.
var encryptionContext = map[string]string{"savex:purpose": "archive-password"}

// kmsClient interface for AWS KMS operations (allows mocking)
type kmsClient interface {
	DescribeKey(ctx context.Context, params *kms.DescribeKeyInput, optFns ...func(*kms.Options)) (*kms.DescribeKeyOutput, error)
	Encrypt(ctx context.Context, params *kms.EncryptInput, optFns ...func(*kms.Options)) (*kms.EncryptOutput, error)
	Decrypt(ctx context.Context, params *kms.DecryptInput, optFns ...func(*kms.Options)) (*kms.DecryptOutput, error)
}

// Config holds configuration for the KMS password sealer.
type Config struct {
	// KeyID is a key ID, key ARN or alias. Bare alias names get the
	// "alias/" prefix.
	KeyID string

	// Sealed is the default sealed password.
	Sealed string

	// Region is the AWS region (e.g., "us-east-1")
	// If empty, uses AWS_REGION environment variable or AWS config file
	Region string

	// AWSConfig is an optional pre-configured AWS config
	// If provided, Region is ignored
	AWSConfig *aws.Config
}

// PasswordSealer seals archive passwords with KMS and opens them on demand.
// Opened passwords are remembered for the lifetime of the sealer.
type PasswordSealer struct {
	client kmsClient
	keyID  string
	region string
	retry  reliability.RetryConfig

	// Sealed is the sealed password used when SealedFunc is nil or returns "".
	Sealed string
	// SealedFunc, when set, picks the sealed password per configuration.
	SealedFunc func(cfg savex.Config) string

	mu     sync.Mutex
	opened map[string]string
}

// New creates a sealer from cfg, loading the default AWS configuration when
// cfg.AWSConfig is nil.
func New(ctx context.Context, cfg Config) (*PasswordSealer, error) {
	var awsConfig aws.Config
	var err error

	if cfg.AWSConfig != nil {
		awsConfig = *cfg.AWSConfig
	} else {
		opts := []func(*config.LoadOptions) error{}
		if cfg.Region != "" {
			opts = append(opts, config.WithRegion(cfg.Region))
		}

		awsConfig, err = config.LoadDefaultConfig(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to load AWS config: %w", ErrKMSUnavailable, err)
		}
	}

	p := newPasswordSealer(kms.NewFromConfig(awsConfig), cfg.KeyID)
	p.region = awsConfig.Region
	p.Sealed = cfg.Sealed
	return p, nil
}

func newPasswordSealer(client kmsClient, keyID string) *PasswordSealer {
	return &PasswordSealer{
		client: client,
		keyID:  normalizeKeyID(keyID),
		retry:  reliability.DefaultRetryConfig(),
		opened: make(map[string]string),
	}
}

// normalizeKeyID adds the "alias/" prefix to bare alias names. Key IDs
// (UUIDs) and ARNs are returned unchanged.
func normalizeKeyID(keyID string) string {
	switch {
	case keyID == "",
		strings.HasPrefix(keyID, "alias/"),
		strings.HasPrefix(keyID, "arn:"),
		isKeyUUID(keyID):
		return keyID
	default:
		return "alias/" + keyID
	}
}

func isKeyUUID(s string) bool {
	if len(s) != 36 {
		return false
	}
	for i, r := range s {
		switch i {
		case 8, 13, 18, 23:
			if r != '-' {
				return false
			}
		default:
			if !strings.ContainsRune("0123456789abcdefABCDEF", r) {
				return false
			}
		}
	}
	return true
}

// KeyID returns the KMS key the sealer encrypts with.
func (p *PasswordSealer) KeyID() string { return p.keyID }

// Region returns the AWS region this sealer is configured for.
func (p *PasswordSealer) Region() string { return p.region }

// ResolveKeyID asks KMS which key the configured identifier points to.
func (p *PasswordSealer) ResolveKeyID(ctx context.Context) (string, error) {
	if p.keyID == "" {
		return "", fmt.Errorf("%w: KMS key ID cannot be empty", savex.ErrInvalidConfiguration)
	}

	var result *kms.DescribeKeyOutput
	err := p.call(ctx, func(ctx context.Context) error {
		var err error
		result, err = p.client.DescribeKey(ctx, &kms.DescribeKeyInput{KeyId: aws.String(p.keyID)})
		return err
	})
	if err != nil {
		return "", fmt.Errorf("%w: failed to describe KMS key %s: %w", ErrKMSUnavailable, p.keyID, err)
	}
	if result.KeyMetadata == nil || result.KeyMetadata.KeyId == nil {
		return "", fmt.Errorf("%w: no key metadata returned for %s", ErrKMSUnavailable, p.keyID)
	}
	return *result.KeyMetadata.KeyId, nil
}

// Seal encrypts password with the configured key and returns the base64
// ciphertext.
func (p *PasswordSealer) Seal(ctx context.Context, password string) (string, error) {
	if password == "" {
		return "", fmt.Errorf("%w: password cannot be empty", savex.ErrInvalidConfiguration)
	}
	if p.keyID == "" {
		return "", fmt.Errorf("%w: KMS key ID cannot be empty", savex.ErrInvalidConfiguration)
	}

	var result *kms.EncryptOutput
	err := p.call(ctx, func(ctx context.Context) error {
		var err error
		result, err = p.client.Encrypt(ctx, &kms.EncryptInput{
			KeyId:             aws.String(p.keyID),
			Plaintext:         []byte(password),
			EncryptionContext: encryptionContext,
		})
		return err
	})
	if err != nil {
		return "", fmt.Errorf("%w: failed to seal password with KMS key %s: %w", ErrKMSUnavailable, p.keyID, err)
	}
	if len(result.CiphertextBlob) == 0 {
		return "", fmt.Errorf("%w: no ciphertext returned from KMS", ErrKMSUnavailable)
	}

	sealed := base64.StdEncoding.EncodeToString(result.CiphertextBlob)
	p.mu.Lock()
	p.opened[sealed] = password
	p.mu.Unlock()
	return sealed, nil
}

// Open decrypts a sealed password.
func (p *PasswordSealer) Open(ctx context.Context, sealed string) (string, error) {
	p.mu.Lock()
	password, ok := p.opened[sealed]
	p.mu.Unlock()
	if ok {
		return password, nil
	}

	blob, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil || len(blob) == 0 {
		return "", fmt.Errorf("%w: sealed password is not valid base64", savex.ErrDecryptionFailed)
	}

	var result *kms.DecryptOutput
	err = p.call(ctx, func(ctx context.Context) error {
		var err error
		result, err = p.client.Decrypt(ctx, &kms.DecryptInput{
			CiphertextBlob:    blob,
			EncryptionContext: encryptionContext,
		})
		return err
	})
	if err != nil {
		var invalid *types.InvalidCiphertextException
		if errors.As(err, &invalid) {
			return "", fmt.Errorf("%w: KMS rejected the sealed password: %w", savex.ErrDecryptionFailed, err)
		}
		return "", fmt.Errorf("%w: failed to open sealed password: %w", ErrKMSUnavailable, err)
	}
	if len(result.Plaintext) == 0 {
		return "", fmt.Errorf("%w: no plaintext returned from KMS", ErrKMSUnavailable)
	}

	password = string(result.Plaintext)
	p.mu.Lock()
	p.opened[sealed] = password
	p.mu.Unlock()
	return password, nil
}

// Password implements savex.PasswordSource.
func (p *PasswordSealer) Password(ctx context.Context, cfg savex.Config) (string, error) {
	sealed := p.Sealed
	if p.SealedFunc != nil {
		if s := p.SealedFunc(cfg); s != "" {
			sealed = s
		}
	}
	if sealed == "" {
		return "", fmt.Errorf("%w: no sealed password for %s", savex.ErrInvalidConfiguration, cfg.FullPath())
	}
	return p.Open(ctx, sealed)
}

// call runs a KMS request with retries. Errors that depend on the request
// rather than on KMS availability are not retried.
func (p *PasswordSealer) call(ctx context.Context, fn func(context.Context) error) error {
	return reliability.Do(ctx, p.retry, func(ctx context.Context) error {
		err := fn(ctx)
		var (
			invalid  *types.InvalidCiphertextException
			notFound *types.NotFoundException
			disabled *types.DisabledException
			denied   *types.IncorrectKeyException
		)
		if errors.As(err, &invalid) || errors.As(err, &notFound) || errors.As(err, &disabled) || errors.As(err, &denied) {
			return reliability.Permanent(err)
		}
		return err
	})
}
