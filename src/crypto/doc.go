// Package crypto groups the symmetric and asymmetric primitives available to
// axolotl applications.
//
// AES keys are 16 bytes and are used in GCM mode with a 12 byte nonce and a
// 12 byte authentication tag. The nonce is prepended to the ciphertext.
//
// RSA keys are 3072 bits. Encryption uses OAEP and signatures use PSS, both
// with SHA256, and every output is base64 encoded so that it can be carried
// in text messages.
//
// Crack and Assemble split a string into interleaved parts, so that a
// ciphertext can be spread over several packets or routes.
package crypto
