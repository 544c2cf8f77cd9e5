// Package keys implements the identity keys of axolotl nodes.
//
// A node may own a secp256k1 key-pair, the curve used by Bitcoin and
// Ethereum. The 4 character public key carried in node-validation packets is
// then derived from the public key with Label, so that a routing key can be
// checked against the signatures of its owner.
package keys
