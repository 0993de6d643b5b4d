package util

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
)

// TokenCipher encrypts provider tokens at rest with AES-256-GCM. An empty
// key puts the cipher in a degraded pass-through mode in which values are
// stored as-is; config validation warns about this at startup.
type TokenCipher struct {
	aead cipher.AEAD
}

// NewTokenCipher builds a cipher from a hex-encoded 32-byte key. An empty
// key yields a pass-through cipher.
func NewTokenCipher(hexKey string) (*TokenCipher, error) {
	if hexKey == "" {
		return &TokenCipher{}, nil
	}

	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("decode encryption key: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("encryption key must be 32 bytes (64 hex chars)")
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create GCM: %w", err)
	}

	return &TokenCipher{aead: aead}, nil
}

// Enabled reports whether values are actually encrypted.
func (c *TokenCipher) Enabled() bool {
	return c.aead != nil
}

// Encrypt returns "iv:authTag:ciphertext" with each part hex-encoded, or the
// plaintext unchanged in pass-through mode.
func (c *TokenCipher) Encrypt(plaintext string) (string, error) {
	if c.aead == nil {
		return plaintext, nil
	}

	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	sealed := c.aead.Seal(nil, nonce, []byte(plaintext), nil)

	// GCM appends the 16-byte auth tag to the ciphertext; the stored format
	// keeps them as separate fields.
	tagStart := len(sealed) - c.aead.Overhead()
	ciphertext, tag := sealed[:tagStart], sealed[tagStart:]

	return hex.EncodeToString(nonce) + ":" + hex.EncodeToString(tag) + ":" + hex.EncodeToString(ciphertext), nil
}

// Decrypt is the inverse of Encrypt. A value with no ":" separator is
// treated as already-plaintext, which keeps rows written in pass-through
// mode readable after a key is configured.
func (c *TokenCipher) Decrypt(value string) (string, error) {
	if !strings.Contains(value, ":") {
		return value, nil
	}
	if c.aead == nil {
		return "", fmt.Errorf("encrypted value present but no encryption key configured")
	}

	parts := strings.SplitN(value, ":", 3)
	if len(parts) != 3 {
		return "", fmt.Errorf("malformed encrypted value")
	}

	nonce, err := hex.DecodeString(parts[0])
	if err != nil {
		return "", fmt.Errorf("decode iv: %w", err)
	}
	if len(nonce) != c.aead.NonceSize() {
		return "", fmt.Errorf("bad iv length %d", len(nonce))
	}
	tag, err := hex.DecodeString(parts[1])
	if err != nil {
		return "", fmt.Errorf("decode auth tag: %w", err)
	}
	ciphertext, err := hex.DecodeString(parts[2])
	if err != nil {
		return "", fmt.Errorf("decode ciphertext: %w", err)
	}

	plaintext, err := c.aead.Open(nil, nonce, append(ciphertext, tag...), nil)
	if err != nil {
		return "", fmt.Errorf("decrypt: %w", err)
	}

	return string(plaintext), nil
}
