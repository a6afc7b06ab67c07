package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveKey(t *testing.T) {
	t.Run("64 hex chars are used as raw bytes", func(t *testing.T) {
		key := strings.Repeat("a", 64)
		expected, _ := hex.DecodeString(key)
		assert.Equal(t, expected, DeriveKey(key))
	})

	t.Run("passphrase is hashed", func(t *testing.T) {
		sum := sha256.Sum256([]byte("hello"))
		assert.Equal(t, sum[:], DeriveKey("hello"))
	})

	t.Run("64 chars that are not hex are hashed", func(t *testing.T) {
		key := strings.Repeat("z", 64)
		sum := sha256.Sum256([]byte(key))
		assert.Equal(t, sum[:], DeriveKey(key))
	})
}

func TestEncryptionService_RoundTrip(t *testing.T) {
	tests := []struct {
		name string
		key  string
	}{
		{"hex key", strings.Repeat("a", 64)},
		{"passphrase", "hello"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := NewEncryptionService(tt.key)
			require.NoError(t, err)

			ct, err := svc.Encrypt([]byte("webhook-secret"))
			require.NoError(t, err)
			assert.Equal(t, FormatVersion1, ct[0])
			assert.Len(t, ct, 1+ivSize+tagSize+len("webhook-secret"))

			pt, err := svc.Decrypt(ct)
			require.NoError(t, err)
			assert.Equal(t, "webhook-secret", string(pt))
		})
	}
}

func TestEncryptionService_EmptyPlaintext(t *testing.T) {
	svc, err := NewEncryptionService("hello")
	require.NoError(t, err)

	ct, err := svc.Encrypt(nil)
	require.NoError(t, err)

	pt, err := svc.Decrypt(ct)
	require.NoError(t, err)
	assert.Empty(t, pt)
}

func TestEncryptionService_LegacyLayout(t *testing.T) {
	key := "legacy-passphrase"
	svc, err := NewEncryptionService(key)
	require.NoError(t, err)

	block, err := aes.NewCipher(DeriveKey(key))
	require.NoError(t, err)
	gcm, err := cipher.NewGCM(block)
	require.NoError(t, err)

	iv := []byte("0123456789ab")
	sealed := gcm.Seal(nil, iv, []byte("old private key"), nil)
	ct, tag := sealed[:len(sealed)-16], sealed[len(sealed)-16:]

	legacy := append(append(append([]byte{}, iv...), tag...), ct...)

	pt, err := svc.Decrypt(legacy)
	require.NoError(t, err)
	assert.Equal(t, "old private key", string(pt))
}

func TestEncryptionService_TamperedCiphertext(t *testing.T) {
	svc, err := NewEncryptionService("hello")
	require.NoError(t, err)

	ct, err := svc.Encrypt([]byte("sensitive"))
	require.NoError(t, err)

	ct[len(ct)-1] ^= 0xff

	pt, err := svc.Decrypt(ct)
	assert.ErrorIs(t, err, ErrDecryptionFailed)
	assert.Nil(t, pt)
}

func TestEncryptionService_WrongKey(t *testing.T) {
	a, err := NewEncryptionService("key-a")
	require.NoError(t, err)
	b, err := NewEncryptionService("key-b")
	require.NoError(t, err)

	ct, err := a.EncryptString("secret")
	require.NoError(t, err)

	_, err = b.DecryptString(ct)
	assert.ErrorIs(t, err, ErrDecryptionFailed)
}

func TestEncryptionService_Errors(t *testing.T) {
	_, err := NewEncryptionService("")
	assert.ErrorIs(t, err, ErrEmptyKey)

	svc, err := NewEncryptionService("hello")
	require.NoError(t, err)

	_, err = svc.Decrypt([]byte{0x01, 0x02})
	assert.ErrorIs(t, err, ErrInvalidCiphertext)

	_, err = svc.DecryptString("not-hex")
	assert.Error(t, err)
}

func TestGenerateSecureToken(t *testing.T) {
	a, err := GenerateSecureToken()
	require.NoError(t, err)
	b, err := GenerateSecureToken()
	require.NoError(t, err)

	assert.Len(t, a, 64)
	assert.NotEqual(t, a, b)
}
