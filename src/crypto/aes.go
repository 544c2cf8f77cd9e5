package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"io"
)

const (
	// AESKeySize is the size of AES keys in bytes.
	AESKeySize = 16
	// NonceSize is the size of the GCM nonce in bytes.
	NonceSize = 12
	// TagSize is the size of the GCM authentication tag in bytes.
	TagSize = 12
)

// GenerateAESKey returns a random AES key.
func GenerateAESKey() ([]byte, error) {
	key := make([]byte, AESKeySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, err
	}
	return key, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != AESKeySize {
		return nil, fmt.Errorf("AES key must be %d bytes, got %d", AESKeySize, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCMWithTagSize(block, TagSize)
}

// EncryptAES seals plain with key. The output is the random nonce followed by
// the ciphertext and its tag.
func EncryptAES(plain []byte, key []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, NonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	return gcm.Seal(nonce, nonce, plain, nil), nil
}

// DecryptAES opens a ciphertext produced by EncryptAES. ok is false if the key
// is wrong or the data was tampered with.
func DecryptAES(sealed []byte, key []byte) (plain []byte, ok bool) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, false
	}

	if len(sealed) < NonceSize+TagSize {
		return nil, false
	}

	plain, err = gcm.Open(nil, sealed[:NonceSize], sealed[NonceSize:], nil)
	if err != nil {
		return nil, false
	}
	return plain, true
}
