package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
)

const (
	// FormatVersion1 prefixes every ciphertext produced by Encrypt.
	FormatVersion1 byte = 0x01

	ivSize  = 12
	tagSize = 16
	keySize = 32
)

var (
	ErrEmptyKey          = errors.New("encryption key is required")
	ErrInvalidCiphertext = errors.New("ciphertext too short")
	ErrDecryptionFailed  = errors.New("decryption failed: authentication tag mismatch")
)

// EncryptionService encrypts secrets with AES-256-GCM under a single master key.
//
// Ciphertexts are laid out as version(1) ‖ IV(12) ‖ tag(16) ‖ ciphertext.
// Decrypt also accepts the unversioned IV ‖ tag ‖ ciphertext layout
// written before the version byte existed.
type EncryptionService struct {
	aead cipher.AEAD
}

// NewEncryptionService derives the master key and prepares the cipher
func NewEncryptionService(masterKey string) (*EncryptionService, error) {
	if masterKey == "" {
		return nil, ErrEmptyKey
	}

	block, err := aes.NewCipher(DeriveKey(masterKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	aead, err := cipher.NewGCMWithNonceSize(block, ivSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return &EncryptionService{aead: aead}, nil
}

// DeriveKey turns the configured master key into 32 key bytes. A string of
// exactly 64 hex characters is decoded as-is; anything else is SHA-256 hashed.
func DeriveKey(masterKey string) []byte {
	if len(masterKey) == keySize*2 {
		if raw, err := hex.DecodeString(masterKey); err == nil {
			return raw
		}
	}
	sum := sha256.Sum256([]byte(masterKey))
	return sum[:]
}

// Encrypt seals plaintext and returns the versioned layout
func (s *EncryptionService) Encrypt(plaintext []byte) ([]byte, error) {
	iv := make([]byte, ivSize)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return nil, fmt.Errorf("failed to create nonce: %w", err)
	}

	// GCM appends the tag to the ciphertext; the stored layout puts it first.
	sealed := s.aead.Seal(nil, iv, plaintext, nil)
	ct, tag := sealed[:len(sealed)-tagSize], sealed[len(sealed)-tagSize:]

	out := make([]byte, 0, 1+ivSize+tagSize+len(ct))
	out = append(out, FormatVersion1)
	out = append(out, iv...)
	out = append(out, tag...)
	out = append(out, ct...)
	return out, nil
}

// Decrypt opens a versioned or legacy ciphertext. Any authentication failure
// is returned as ErrDecryptionFailed.
func (s *EncryptionService) Decrypt(data []byte) ([]byte, error) {
	if len(data) < ivSize+tagSize {
		return nil, ErrInvalidCiphertext
	}

	if data[0] == FormatVersion1 && len(data) >= 1+ivSize+tagSize {
		if plaintext, err := s.open(data[1:]); err == nil {
			return plaintext, nil
		}
	}

	plaintext, err := s.open(data)
	if err != nil {
		return nil, err
	}
	return plaintext, nil
}

func (s *EncryptionService) open(body []byte) ([]byte, error) {
	iv := body[:ivSize]
	tag := body[ivSize : ivSize+tagSize]
	ct := body[ivSize+tagSize:]

	sealed := make([]byte, 0, len(ct)+tagSize)
	sealed = append(sealed, ct...)
	sealed = append(sealed, tag...)

	plaintext, err := s.aead.Open(nil, iv, sealed, nil)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	if plaintext == nil {
		plaintext = []byte{}
	}
	return plaintext, nil
}

// EncryptString encrypts a string and hex-encodes the result for TEXT columns
func (s *EncryptionService) EncryptString(plaintext string) (string, error) {
	ct, err := s.Encrypt([]byte(plaintext))
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(ct), nil
}

// DecryptString reverses EncryptString
func (s *EncryptionService) DecryptString(encryptedHex string) (string, error) {
	ct, err := hex.DecodeString(strings.TrimSpace(encryptedHex))
	if err != nil {
		return "", fmt.Errorf("failed to decode hex: %w", err)
	}
	plaintext, err := s.Decrypt(ct)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}

// GenerateSecureToken generates a random 32-byte hex token
func GenerateSecureToken() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate secure token: %w", err)
	}
	return hex.EncodeToString(bytes), nil
}
