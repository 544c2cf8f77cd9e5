package keys

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"

	"github.com/btcsuite/btcd/btcec"
)

var (
	errInvalidPublicKey  = errors.New("invalid public key")
	errInvalidPrivateKey = errors.New("private key out of range")
)

// Curve returns secp256k1, the curve of node keys.
func Curve() elliptic.Curve {
	return btcec.S256()
}

// GenerateECDSAKey creates a new node key.
func GenerateECDSAKey() (*ecdsa.PrivateKey, error) {
	priv, err := btcec.NewPrivateKey(btcec.S256())
	if err != nil {
		return nil, err
	}
	return priv.ToECDSA(), nil
}

// DumpPrivateKey returns the 32 byte big-endian scalar of priv.
func DumpPrivateKey(priv *ecdsa.PrivateKey) []byte {
	if priv == nil {
		return nil
	}
	return (*btcec.PrivateKey)(priv).Serialize()
}

// ParsePrivateKey is the inverse of DumpPrivateKey. The scalar must lie in
// [1, N-1].
func ParsePrivateKey(d []byte) (*ecdsa.PrivateKey, error) {
	if len(d) != btcec.PrivKeyBytesLen {
		return nil, fmt.Errorf("private key must be %d bytes, got %d", btcec.PrivKeyBytesLen, len(d))
	}

	n := new(big.Int).SetBytes(d)
	if n.Sign() == 0 || n.Cmp(btcec.S256().N) >= 0 {
		return nil, errInvalidPrivateKey
	}

	priv, _ := btcec.PrivKeyFromBytes(btcec.S256(), d)
	return priv.ToECDSA(), nil
}

// PrivateKeyHex is the hex form of DumpPrivateKey, as stored in key files.
func PrivateKeyHex(key *ecdsa.PrivateKey) string {
	return hex.EncodeToString(DumpPrivateKey(key))
}
