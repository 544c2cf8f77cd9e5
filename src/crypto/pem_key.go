package crypto

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"os"
	"path/filepath"
	"sync"
)

const (
	pemKeyPath = "rsa_key.pem"
	pemKeyType = "RSA PRIVATE KEY"
)

// PemKey reads and writes an RSA private key in a PEM file.
type PemKey struct {
	l    sync.Mutex
	path string
}

// NewPemKey uses the rsa_key.pem file in the base directory.
func NewPemKey(base string) *PemKey {
	return &PemKey{
		path: filepath.Join(base, pemKeyPath),
	}
}

// Path returns the location of the key file.
func (k *PemKey) Path() string {
	return k.path
}

// ReadKey reads the key file.
func (k *PemKey) ReadKey() (*rsa.PrivateKey, error) {
	k.l.Lock()
	defer k.l.Unlock()

	buf, err := os.ReadFile(k.path)
	if err != nil {
		return nil, err
	}

	return ParsePemKey(buf)
}

// WriteKey writes key to the key file, creating the directory if needed.
func (k *PemKey) WriteKey(key *rsa.PrivateKey) error {
	k.l.Lock()
	defer k.l.Unlock()

	if err := os.MkdirAll(filepath.Dir(k.path), 0700); err != nil {
		return err
	}

	return os.WriteFile(k.path, ToPem(key), 0600)
}

// ToPem encodes key as a PKCS#1 PEM block.
func ToPem(key *rsa.PrivateKey) []byte {
	return pem.EncodeToMemory(&pem.Block{
		Type:  pemKeyType,
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})
}

// ParsePemKey decodes a PEM block produced by ToPem.
func ParsePemKey(buf []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(buf)
	if block == nil {
		return nil, errors.New("error decoding PEM block from data")
	}
	if block.Type != pemKeyType {
		return nil, errors.New("unexpected PEM block type " + block.Type)
	}
	return x509.ParsePKCS1PrivateKey(block.Bytes)
}
