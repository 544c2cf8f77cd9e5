package keys

import (
	"crypto/ecdsa"
	"encoding/base64"

	"github.com/btcsuite/btcd/btcec"
	"github.com/mosaicnetworks/axolotl/src/crypto"
)

// SignMessage signs the SHA256 digest of msg with a deterministic (RFC6979)
// nonce. The result is the base64 DER encoding of the signature.
func SignMessage(priv *ecdsa.PrivateKey, msg []byte) (string, error) {
	sig, err := (*btcec.PrivateKey)(priv).Sign(crypto.SHA256(msg))
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(sig.Serialize()), nil
}

// VerifyMessage reports whether sig, as produced by SignMessage, is a
// signature of msg by the owner of pub. Malformed signatures do not verify.
func VerifyMessage(pub *ecdsa.PublicKey, msg []byte, sig string) bool {
	if pub == nil {
		return false
	}

	der, err := base64.StdEncoding.DecodeString(sig)
	if err != nil {
		return false
	}

	s, err := btcec.ParseDERSignature(der, btcec.S256())
	if err != nil {
		return false
	}

	return s.Verify(crypto.SHA256(msg), (*btcec.PublicKey)(pub))
}
