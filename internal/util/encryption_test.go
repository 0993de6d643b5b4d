package util

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "000102030405060708090a0b0c0d0e0f000102030405060708090a0b0c0d0e0f"

func TestNewTokenCipher(t *testing.T) {
	t.Run("empty key yields pass-through cipher", func(t *testing.T) {
		c, err := NewTokenCipher("")
		require.NoError(t, err)
		assert.False(t, c.Enabled())
	})

	t.Run("valid 64-hex-char key enables encryption", func(t *testing.T) {
		c, err := NewTokenCipher(testKey)
		require.NoError(t, err)
		assert.True(t, c.Enabled())
	})

	t.Run("rejects non-hex key", func(t *testing.T) {
		_, err := NewTokenCipher("not-hex-at-all")
		assert.Error(t, err)
	})

	t.Run("rejects short key", func(t *testing.T) {
		_, err := NewTokenCipher("00112233")
		assert.Error(t, err)
	})
}

func TestTokenCipherEncrypt(t *testing.T) {
	c, err := NewTokenCipher(testKey)
	require.NoError(t, err)

	t.Run("round-trips a token", func(t *testing.T) {
		out, err := c.Encrypt("fitbit-access-token-abc123")
		require.NoError(t, err)

		back, err := c.Decrypt(out)
		require.NoError(t, err)
		assert.Equal(t, "fitbit-access-token-abc123", back)
	})

	t.Run("output has iv:tag:ciphertext shape", func(t *testing.T) {
		out, err := c.Encrypt("secret")
		require.NoError(t, err)

		parts := strings.Split(out, ":")
		require.Len(t, parts, 3)
		assert.Len(t, parts[0], 24) // 12-byte GCM nonce
		assert.Len(t, parts[1], 32) // 16-byte auth tag
		assert.NotEmpty(t, parts[2])
	})

	t.Run("same plaintext encrypts differently each time", func(t *testing.T) {
		a, err := c.Encrypt("secret")
		require.NoError(t, err)
		b, err := c.Encrypt("secret")
		require.NoError(t, err)
		assert.NotEqual(t, a, b)
	})

	t.Run("pass-through mode stores plaintext", func(t *testing.T) {
		plain, err := NewTokenCipher("")
		require.NoError(t, err)

		out, err := plain.Encrypt("token-value")
		require.NoError(t, err)
		assert.Equal(t, "token-value", out)
	})
}

func TestTokenCipherDecrypt(t *testing.T) {
	c, err := NewTokenCipher(testKey)
	require.NoError(t, err)

	t.Run("value without separator is returned as-is", func(t *testing.T) {
		back, err := c.Decrypt("legacy-plaintext-token")
		require.NoError(t, err)
		assert.Equal(t, "legacy-plaintext-token", back)
	})

	t.Run("tampered ciphertext fails authentication", func(t *testing.T) {
		out, err := c.Encrypt("secret")
		require.NoError(t, err)

		parts := strings.Split(out, ":")
		flipped := flipHexDigit(parts[2])
		_, err = c.Decrypt(parts[0] + ":" + parts[1] + ":" + flipped)
		assert.Error(t, err)
	})

	t.Run("tampered auth tag fails authentication", func(t *testing.T) {
		out, err := c.Encrypt("secret")
		require.NoError(t, err)

		parts := strings.Split(out, ":")
		flipped := flipHexDigit(parts[1])
		_, err = c.Decrypt(parts[0] + ":" + flipped + ":" + parts[2])
		assert.Error(t, err)
	})

	t.Run("encrypted value without key configured errors", func(t *testing.T) {
		plain, err := NewTokenCipher("")
		require.NoError(t, err)

		out, err := c.Encrypt("secret")
		require.NoError(t, err)

		_, err = plain.Decrypt(out)
		assert.Error(t, err)
	})

	t.Run("malformed hex errors", func(t *testing.T) {
		_, err := c.Decrypt("zz:zz:zz")
		assert.Error(t, err)
	})
}

func flipHexDigit(s string) string {
	b := []byte(s)
	if b[0] == '0' {
		b[0] = '1'
	} else {
		b[0] = '0'
	}
	return string(b)
}
