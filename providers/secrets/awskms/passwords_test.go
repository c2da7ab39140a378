package awskms

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/aws/aws-sdk-go-v2/service/kms/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hengadev/savex"
	"github.com/hengadev/savex/internal/reliability"
)

// Mock KMS client for testing. Ciphertexts are the plaintext behind a
// marker so tests can build them by hand.
type mockKMSClient struct {
	describeKeyFunc func(ctx context.Context, params *kms.DescribeKeyInput, optFns ...func(*kms.Options)) (*kms.DescribeKeyOutput, error)
	decryptErrs     []error
	decrypts        int
}

const sealMarker = "kms:"

func (m *mockKMSClient) DescribeKey(ctx context.Context, params *kms.DescribeKeyInput, optFns ...func(*kms.Options)) (*kms.DescribeKeyOutput, error) {
	if m.describeKeyFunc != nil {
		return m.describeKeyFunc(ctx, params, optFns...)
	}
	return &kms.DescribeKeyOutput{}, nil
}

func (m *mockKMSClient) Encrypt(_ context.Context, params *kms.EncryptInput, _ ...func(*kms.Options)) (*kms.EncryptOutput, error) {
	if params.EncryptionContext["savex:purpose"] != "archive-password" {
		return nil, errors.New("missing encryption context")
	}
	return &kms.EncryptOutput{
		CiphertextBlob: append([]byte(sealMarker), params.Plaintext...),
		KeyId:          params.KeyId,
	}, nil
}

func (m *mockKMSClient) Decrypt(_ context.Context, params *kms.DecryptInput, _ ...func(*kms.Options)) (*kms.DecryptOutput, error) {
	m.decrypts++
	if len(m.decryptErrs) > 0 {
		err := m.decryptErrs[0]
		m.decryptErrs = m.decryptErrs[1:]
		return nil, err
	}
	if params.EncryptionContext["savex:purpose"] != "archive-password" {
		return nil, &types.InvalidCiphertextException{Message: aws.String("context mismatch")}
	}
	blob := string(params.CiphertextBlob)
	if !strings.HasPrefix(blob, sealMarker) {
		return nil, &types.InvalidCiphertextException{Message: aws.String("not sealed")}
	}
	return &kms.DecryptOutput{Plaintext: []byte(strings.TrimPrefix(blob, sealMarker))}, nil
}

func newTestSealer(t *testing.T, client *mockKMSClient) *PasswordSealer {
	t.Helper()
	p := newPasswordSealer(client, "savex-passwords")
	p.retry = reliability.RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond}
	return p
}

func TestNew(t *testing.T) {
	svc, err := New(context.Background(), Config{
		KeyID:     "savex-passwords",
		Sealed:    "c2VhbGVk",
		AWSConfig: &aws.Config{Region: "eu-west-1"},
	})
	require.NoError(t, err)
	assert.Equal(t, "eu-west-1", svc.Region())
	assert.Equal(t, "alias/savex-passwords", svc.KeyID())
	assert.Equal(t, "c2VhbGVk", svc.Sealed)
	assert.NotNil(t, svc.client)
}

func TestNormalizeKeyID(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"savex", "alias/savex"},
		{"alias/savex", "alias/savex"},
		{"1234abcd-12ab-34cd-56ef-1234567890ab", "1234abcd-12ab-34cd-56ef-1234567890ab"},
		{"arn:aws:kms:us-east-1:123456789012:key/1234abcd-12ab-34cd-56ef-1234567890ab", "arn:aws:kms:us-east-1:123456789012:key/1234abcd-12ab-34cd-56ef-1234567890ab"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, normalizeKeyID(tt.in))
		})
	}
}

func TestSealAndOpen(t *testing.T) {
	ctx := context.Background()
	client := &mockKMSClient{}
	sealer := newTestSealer(t, client)

	sealed, err := sealer.Seal(ctx, "correct horse")
	require.NoError(t, err)
	assert.NotContains(t, sealed, "correct horse")

	// a fresh sealer has to ask KMS, then remembers the answer
	fresh := newTestSealer(t, client)
	for i := 0; i < 2; i++ {
		password, err := fresh.Open(ctx, sealed)
		require.NoError(t, err)
		assert.Equal(t, "correct horse", password)
	}
	assert.Equal(t, 1, client.decrypts)

	_, err = sealer.Seal(ctx, "")
	assert.ErrorIs(t, err, savex.ErrInvalidConfiguration)
}

func TestOpenErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("not base64", func(t *testing.T) {
		_, err := newTestSealer(t, &mockKMSClient{}).Open(ctx, "%%%")
		assert.ErrorIs(t, err, savex.ErrDecryptionFailed)
	})

	t.Run("invalid ciphertext is not retried", func(t *testing.T) {
		client := &mockKMSClient{}
		_, err := newTestSealer(t, client).Open(ctx, "bm90LXNlYWxlZA==")
		assert.ErrorIs(t, err, savex.ErrDecryptionFailed)
		assert.Equal(t, 1, client.decrypts)
	})

	t.Run("throttling is retried", func(t *testing.T) {
		client := &mockKMSClient{decryptErrs: []error{
			errors.New("ThrottlingException"),
			errors.New("ThrottlingException"),
		}}
		sealer := newTestSealer(t, client)
		sealed, err := sealer.Seal(ctx, "pw")
		require.NoError(t, err)

		password, err := newTestSealer(t, client).Open(ctx, sealed)
		require.NoError(t, err)
		assert.Equal(t, "pw", password)
		assert.Equal(t, 3, client.decrypts)
	})

	t.Run("kms down", func(t *testing.T) {
		down := errors.New("dial tcp: connection refused")
		client := &mockKMSClient{decryptErrs: []error{down, down, down}}
		_, err := newTestSealer(t, client).Open(ctx, "a21zOnB3")
		assert.ErrorIs(t, err, ErrKMSUnavailable)
		assert.ErrorIs(t, err, down)
	})
}

func TestResolveKeyID(t *testing.T) {
	ctx := context.Background()
	client := &mockKMSClient{
		describeKeyFunc: func(_ context.Context, params *kms.DescribeKeyInput, _ ...func(*kms.Options)) (*kms.DescribeKeyOutput, error) {
			if aws.ToString(params.KeyId) != "alias/savex-passwords" {
				return nil, &types.NotFoundException{Message: aws.String("no such alias")}
			}
			return &kms.DescribeKeyOutput{KeyMetadata: &types.KeyMetadata{KeyId: aws.String("key-123")}}, nil
		},
	}

	keyID, err := newTestSealer(t, client).ResolveKeyID(ctx)
	require.NoError(t, err)
	assert.Equal(t, "key-123", keyID)

	other := newPasswordSealer(client, "other")
	_, err = other.ResolveKeyID(ctx)
	assert.ErrorIs(t, err, ErrKMSUnavailable)

	_, err = newPasswordSealer(client, "").ResolveKeyID(ctx)
	assert.ErrorIs(t, err, savex.ErrInvalidConfiguration)
}

func TestPasswordSealerAsPasswordSource(t *testing.T) {
	ctx := context.Background()
	sealer := newTestSealer(t, &mockKMSClient{})

	shared, err := sealer.Seal(ctx, "shared")
	require.NoError(t, err)
	boss, err := sealer.Seal(ctx, "boss-slot")
	require.NoError(t, err)

	sealer.Sealed = shared
	sealer.SealedFunc = func(cfg savex.Config) string {
		if strings.Contains(cfg.Path, "boss") {
			return boss
		}
		return ""
	}

	e := savex.NewTestEngine(t, savex.WithPasswordSource(sealer))
	for path, password := range map[string]string{"slot1.pak": "shared", "boss.pak": "boss-slot"} {
		cfg, err := e.Config(path, savex.WithEncryption(""))
		require.NoError(t, err)
		require.NoError(t, e.Save(ctx, "hp", 99, cfg))

		explicit, err := cfg.With(savex.WithEncryption(password))
		require.NoError(t, err)
		hp, err := savex.Load[int](ctx, e, "hp", explicit)
		require.NoError(t, err, path)
		assert.Equal(t, 99, hp)
	}

	empty := newTestSealer(t, &mockKMSClient{})
	_, err = empty.Password(ctx, savex.DefaultConfig())
	assert.ErrorIs(t, err, savex.ErrInvalidConfiguration)
}
