package crypto

import (
	"bytes"
	"crypto/aes"
	"encoding/base64"
	"errors"
	"fmt"
	"unicode/utf8"

	openssl "github.com/Luzifer/go-openssl/v4"
)

const saltSize = 8

var saltedPrefix = []byte("Salted__")

var (
	ErrMalformedCiphertext = errors.New("malformed ciphertext")
	ErrDecryptionFailed    = errors.New("decryption failed")
	ErrInvalidPlaintext    = errors.New("plaintext is not valid UTF-8")
)

// PassphraseCipher implements the OpenSSL "Salted__" passphrase format used by
// CryptoJS.AES: AES-256-CBC with PKCS#7 padding, key and IV derived from the
// passphrase and a random salt with EVP_BytesToKey (MD5, one round).
type PassphraseCipher struct {
	passphrase string
	openssl    *openssl.OpenSSL
}

func NewPassphraseCipher(passphrase string) *PassphraseCipher {
	return &PassphraseCipher{
		passphrase: passphrase,
		openssl:    openssl.New(),
	}
}

func (c *PassphraseCipher) Encrypt(plaintext string) (string, error) {
	out, err := c.openssl.EncryptBytes(c.passphrase, []byte(plaintext), openssl.BytesToKeyMD5)
	if err != nil {
		return "", fmt.Errorf("failed to encrypt: %w", err)
	}
	return string(out), nil
}

func (c *PassphraseCipher) Decrypt(ciphertext string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedCiphertext, err)
	}

	headerSize := len(saltedPrefix) + saltSize
	if len(raw) < headerSize+aes.BlockSize || !bytes.HasPrefix(raw, saltedPrefix) {
		return "", ErrMalformedCiphertext
	}
	if (len(raw)-headerSize)%aes.BlockSize != 0 {
		return "", ErrMalformedCiphertext
	}

	plain, err := c.openssl.DecryptBytes(c.passphrase, []byte(ciphertext), openssl.BytesToKeyMD5)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecryptionFailed, err)
	}
	if !utf8.Valid(plain) {
		return "", ErrInvalidPlaintext
	}
	return string(plain), nil
}
