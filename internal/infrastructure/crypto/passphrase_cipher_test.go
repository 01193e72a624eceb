package crypto

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPassphraseCipher_RoundTrip(t *testing.T) {
	c := NewPassphraseCipher("your-secret-key")

	for _, plaintext := range []string{"", "hello", "exactly sixteen!", strings.Repeat("long text ", 50), "héllo wörld – 👋"} {
		ciphertext, err := c.Encrypt(plaintext)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(ciphertext, "U2FsdGVkX1"), "ciphertext should carry the Salted__ header")

		decrypted, err := c.Decrypt(ciphertext)
		require.NoError(t, err)
		assert.Equal(t, plaintext, decrypted)
	}
}

func TestPassphraseCipher_SaltsEveryMessage(t *testing.T) {
	c := NewPassphraseCipher("k")

	first, err := c.Encrypt("same")
	require.NoError(t, err)
	second, err := c.Encrypt("same")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestPassphraseCipher_DecryptsOpenSSLOutput(t *testing.T) {
	// Produced with: openssl enc -aes-256-cbc -md md5 -pass pass:<key> -base64
	cases := []struct {
		key        string
		ciphertext string
		plaintext  string
	}{
		{"your-secret-key", "U2FsdGVkX1+TZJKUgdJROFWK5ijJjdFyHpKVUv+/6BA=", "hello"},
		{"s3cr3t", "U2FsdGVkX1/Ri1Sq3hL5SB/6CRXA+CyA0TXkleFX3SFxyEwdpMl0P8orY+TVQ4kl", "héllo wörld – 👋"},
	}

	for _, tc := range cases {
		plaintext, err := NewPassphraseCipher(tc.key).Decrypt(tc.ciphertext)
		require.NoError(t, err)
		assert.Equal(t, tc.plaintext, plaintext)
	}
}

func TestPassphraseCipher_WrongKeyFails(t *testing.T) {
	ciphertext, err := NewPassphraseCipher("right").Encrypt("top secret message")
	require.NoError(t, err)

	_, err = NewPassphraseCipher("wrong").Decrypt(ciphertext)
	assert.Error(t, err)
}

func TestPassphraseCipher_RejectsMalformedInput(t *testing.T) {
	c := NewPassphraseCipher("k")

	for _, input := range []string{"not base64 !!", "aGVsbG8=", "U2FsdGVkX18xMjM0NTY3OA==", "U2FsdGVkX18xMjM0NTY3ODEyMzQ1Njc4OTAxMjM0NTY3"} {
		_, err := c.Decrypt(input)
		assert.ErrorIs(t, err, ErrMalformedCiphertext, input)
	}
}
