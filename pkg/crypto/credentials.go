// Package crypto encrypts the persisted session file at rest. The bearer
// token inside it grants full API access for the logged-in user, so shared
// check-in machines can opt into sealing it with a site key.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
)

var (
	// ErrInvalidKey is returned when the encryption key is empty.
	ErrInvalidKey = errors.New("invalid encryption key: must not be empty")
	// ErrDecryptionFailed is returned when the ciphertext is corrupt or the
	// key does not match the one the file was sealed with.
	ErrDecryptionFailed = errors.New("decryption failed: invalid ciphertext or wrong key")
)

// SessionSealer provides AES-256-GCM authenticated encryption for the
// persisted session payload.
type SessionSealer struct {
	gcm cipher.AEAD
}

// NewSessionSealer creates a sealer from a key string. A base64-encoded
// 32-byte key is used directly; anything else is treated as a passphrase and
// hashed to 32 bytes with SHA-256.
func NewSessionSealer(keyInput string) (*SessionSealer, error) {
	if keyInput == "" {
		return nil, ErrInvalidKey
	}

	var key []byte
	decoded, err := base64.StdEncoding.DecodeString(keyInput)
	if err == nil && len(decoded) == 32 {
		key = decoded
	} else {
		hash := sha256.Sum256([]byte(keyInput))
		key = hash[:]
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return &SessionSealer{gcm: gcm}, nil
}

// Seal encrypts plaintext and returns base64(nonce || ciphertext || tag).
func (s *SessionSealer) Seal(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, s.gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	sealed := s.gcm.Seal(nonce, nonce, plaintext, nil)

	out := make([]byte, base64.StdEncoding.EncodedLen(len(sealed)))
	base64.StdEncoding.Encode(out, sealed)
	return out, nil
}

// Open decrypts base64(nonce || ciphertext || tag) back to plaintext.
func (s *SessionSealer) Open(sealed []byte) ([]byte, error) {
	data := make([]byte, base64.StdEncoding.DecodedLen(len(sealed)))
	n, err := base64.StdEncoding.Decode(data, sealed)
	if err != nil {
		return nil, fmt.Errorf("%w: base64 decode failed", ErrDecryptionFailed)
	}
	data = data[:n]

	nonceSize := s.gcm.NonceSize()
	if len(data) < nonceSize+s.gcm.Overhead() {
		return nil, fmt.Errorf("%w: ciphertext too short", ErrDecryptionFailed)
	}
	nonce, ciphertext := data[:nonceSize], data[nonceSize:]
	plaintext, err := s.gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: authentication failed", ErrDecryptionFailed)
	}
	return plaintext, nil
}
