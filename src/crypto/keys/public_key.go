package keys

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/sha256"
	"encoding/base32"

	"github.com/mosaicnetworks/axolotl/src/common"
)

// LabelSize is the length of the routing label derived from a public key. It
// fits the key field of a node-validation packet.
const LabelSize = 4

var labelEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// ToPublicKey is a wrapper around elliptic.Unmarshal which calls Curve() to
// determine which elliptic.Curve to use. The argument pub is expected to be the
// uncompressed form of a point on the curve, as returned by FromPublicKey.
func ToPublicKey(pub []byte) *ecdsa.PublicKey {
	if len(pub) == 0 {
		return nil
	}
	x, y := elliptic.Unmarshal(Curve(), pub)
	if x == nil {
		return nil
	}
	return &ecdsa.PublicKey{Curve: Curve(), X: x, Y: y}
}

// FromPublicKey is a wrapper around elliptic.Marshal which calls Curve() to
// determine which elliptic.Curve to use. It outputs the point in uncompressed
// form.
func FromPublicKey(pub *ecdsa.PublicKey) []byte {
	if pub == nil || pub.X == nil || pub.Y == nil {
		return nil
	}
	return elliptic.Marshal(Curve(), pub.X, pub.Y)
}

// Label returns the 4 character routing key of a public key: the first
// characters of the base32 encoded SHA256 of its uncompressed form. There is
// obviously a risk of collision with only 20 bits.
func Label(pub *ecdsa.PublicKey) string {
	sum := sha256.Sum256(FromPublicKey(pub))
	return labelEncoding.EncodeToString(sum[:3])[:LabelSize]
}

// PublicKeyHex returns the hexadecimal reprentation of the uncompressed form
// of the public key.
func PublicKeyHex(pub *ecdsa.PublicKey) string {
	return common.EncodeToString(FromPublicKey(pub))
}

// ParsePublicKeyHex parses the output of PublicKeyHex.
func ParsePublicKeyHex(s string) (*ecdsa.PublicKey, error) {
	b, err := common.DecodeFromString(s)
	if err != nil {
		return nil, err
	}
	pub := ToPublicKey(b)
	if pub == nil {
		return nil, errInvalidPublicKey
	}
	return pub, nil
}
