package service

// MessageCipher encrypts message text with the shared symmetric key.
type MessageCipher interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}
