// Package crypto seals proxy credentials at rest with AES-256-GCM.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
)

// sealedPrefix marks values produced by Seal. Values without it are treated as plaintext.
const sealedPrefix = "enc:v1:"

var (
	ErrInvalidKeySize    = errors.New("encryption key must be 32 bytes (256 bits)")
	ErrInvalidCiphertext = errors.New("invalid ciphertext: too short or malformed")
	ErrDecryptionFailed  = errors.New("decryption failed: authentication failed")
)

// AESCrypto seals and opens short secrets.
type AESCrypto struct {
	aead cipher.AEAD
}

// NewAESCrypto creates a cipher from a raw 32 byte key.
func NewAESCrypto(key []byte) (*AESCrypto, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("%w: got %d bytes", ErrInvalidKeySize, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return &AESCrypto{aead: aead}, nil
}

// NewAESCryptoFromPassphrase derives the key as SHA-256(passphrase). An empty passphrase
// yields a nil cipher, which stores secrets unsealed.
func NewAESCryptoFromPassphrase(passphrase string) (*AESCrypto, error) {
	if passphrase == "" {
		return nil, nil
	}
	key := sha256.Sum256([]byte(passphrase))
	return NewAESCrypto(key[:])
}

// Seal encrypts plaintext into "enc:v1:" + base64(nonce|ciphertext|tag).
// A nil receiver or empty input returns plaintext unchanged.
func (a *AESCrypto) Seal(plaintext string) (string, error) {
	if a == nil || plaintext == "" {
		return plaintext, nil
	}

	nonce := make([]byte, a.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	sealed := a.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return sealedPrefix + base64.StdEncoding.EncodeToString(sealed), nil
}

// Open reverses Seal. Values without the sealed prefix are returned as they are, so rows
// written before a key was configured stay readable.
func (a *AESCrypto) Open(value string) (string, error) {
	if !strings.HasPrefix(value, sealedPrefix) {
		return value, nil
	}
	if a == nil {
		return "", errors.New("sealed value found but no encryption key is configured")
	}

	decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(value, sealedPrefix))
	if err != nil {
		return "", fmt.Errorf("failed to decode base64: %w", err)
	}

	nonceSize := a.aead.NonceSize()
	if len(decoded) < nonceSize+a.aead.Overhead() {
		return "", ErrInvalidCiphertext
	}

	nonce, encrypted := decoded[:nonceSize], decoded[nonceSize:]
	plaintext, err := a.aead.Open(nil, nonce, encrypted, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecryptionFailed, err)
	}
	return string(plaintext), nil
}
