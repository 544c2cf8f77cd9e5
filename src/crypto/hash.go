package crypto

import (
	"crypto/sha256"
	"encoding/base64"
)

// SHA256 returns the SHA256 digest of data.
func SHA256(data []byte) []byte {
	sum := sha256.Sum256(data)
	return sum[:]
}

// Hash returns the base64 encoded SHA256 digest of s.
func Hash(s string) string {
	return base64.StdEncoding.EncodeToString(SHA256([]byte(s)))
}
