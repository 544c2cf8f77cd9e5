package crypto

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
)

// RSAKeySize is the size of generated RSA keys in bits.
const RSAKeySize = 3072

// GenerateRSAKey creates a new RSA key pair.
func GenerateRSAKey() (*rsa.PrivateKey, error) {
	return rsa.GenerateKey(rand.Reader, RSAKeySize)
}

// EncryptRSA encrypts plain for the owner of pub and returns the base64
// encoded ciphertext.
func EncryptRSA(plain []byte, pub *rsa.PublicKey) (string, error) {
	out, err := rsa.EncryptOAEP(sha256.New(), rand.Reader, pub, plain, nil)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(out), nil
}

// DecryptRSA decrypts a ciphertext produced by EncryptRSA.
func DecryptRSA(cipherText string, priv *rsa.PrivateKey) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(cipherText)
	if err != nil {
		return nil, err
	}
	return rsa.DecryptOAEP(sha256.New(), rand.Reader, priv, raw, nil)
}

// SignRSA returns the base64 encoded PSS signature of data.
func SignRSA(data []byte, priv *rsa.PrivateKey) (string, error) {
	sig, err := rsa.SignPSS(rand.Reader, priv, crypto.SHA256, SHA256(data), nil)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(sig), nil
}

// VerifyRSA checks a signature produced by SignRSA.
func VerifyRSA(data []byte, sig string, pub *rsa.PublicKey) bool {
	raw, err := base64.StdEncoding.DecodeString(sig)
	if err != nil {
		return false
	}
	return rsa.VerifyPSS(pub, crypto.SHA256, SHA256(data), raw, nil) == nil
}
