package crypto

import (
	"bytes"
	"crypto/rsa"
	"os"
	"reflect"
	"strings"
	"sync"
	"testing"
)

var (
	rsaOnce sync.Once
	rsaKey  *rsa.PrivateKey
)

// testRSAKey generates one 3072 bit key for the whole package.
func testRSAKey(t *testing.T) *rsa.PrivateKey {
	rsaOnce.Do(func() {
		key, err := GenerateRSAKey()
		if err != nil {
			t.Fatalf("err: %v", err)
		}
		rsaKey = key
	})
	return rsaKey
}

func TestAES(t *testing.T) {
	key, err := GenerateAESKey()
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if len(key) != AESKeySize {
		t.Fatalf("key should be %d bytes, not %d", AESKeySize, len(key))
	}

	msg := []byte("the axolotl can regrow its limbs")

	sealed, err := EncryptAES(msg, key)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if len(sealed) != NonceSize+len(msg)+TagSize {
		t.Fatalf("sealed length should be %d, not %d", NonceSize+len(msg)+TagSize, len(sealed))
	}

	plain, ok := DecryptAES(sealed, key)
	if !ok {
		t.Fatalf("decryption should succeed")
	}
	if !bytes.Equal(plain, msg) {
		t.Fatalf("plain text should be %q, not %q", msg, plain)
	}

	// nonces are random
	other, _ := EncryptAES(msg, key)
	if bytes.Equal(other, sealed) {
		t.Fatalf("two encryptions should not be identical")
	}
}

func TestAESTamper(t *testing.T) {
	key, _ := GenerateAESKey()
	sealed, _ := EncryptAES([]byte("integrity"), key)

	tampered := append([]byte{}, sealed...)
	tampered[NonceSize] ^= 0x01
	if _, ok := DecryptAES(tampered, key); ok {
		t.Fatalf("tampered data should not decrypt")
	}

	wrong, _ := GenerateAESKey()
	if _, ok := DecryptAES(sealed, wrong); ok {
		t.Fatalf("wrong key should not decrypt")
	}

	if _, ok := DecryptAES(sealed[:NonceSize], key); ok {
		t.Fatalf("truncated data should not decrypt")
	}

	if _, err := EncryptAES([]byte("x"), []byte("short")); err == nil {
		t.Fatalf("short key should be refused")
	}
}

func TestRSA(t *testing.T) {
	key := testRSAKey(t)

	if key.N.BitLen() != RSAKeySize {
		t.Fatalf("key should have %d bits, not %d", RSAKeySize, key.N.BitLen())
	}

	aesKey, _ := GenerateAESKey()

	ct, err := EncryptRSA(aesKey, &key.PublicKey)
	if err != nil {
		t.Fatalf("err: %v", err)
	}

	pt, err := DecryptRSA(ct, key)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if !bytes.Equal(pt, aesKey) {
		t.Fatalf("decrypted key does not match")
	}

	if _, err := DecryptRSA("not base64!", key); err == nil {
		t.Fatalf("invalid base64 should fail")
	}
}

func TestRSASignature(t *testing.T) {
	key := testRSAKey(t)

	msg := []byte("J'aime mieux forger mon ame que la meubler")

	sig, err := SignRSA(msg, key)
	if err != nil {
		t.Fatalf("err: %v", err)
	}

	if !VerifyRSA(msg, sig, &key.PublicKey) {
		t.Fatalf("signature should verify")
	}

	if VerifyRSA([]byte("something else"), sig, &key.PublicKey) {
		t.Fatalf("signature should not verify another message")
	}

	if VerifyRSA(msg, "AAAA", &key.PublicKey) {
		t.Fatalf("garbage signature should not verify")
	}
}

func TestPem(t *testing.T) {
	dir, err := os.MkdirTemp("", "axolotl")
	if err != nil {
		t.Fatalf("err: %v ", err)
	}
	defer os.RemoveAll(dir)

	pemKey := NewPemKey(dir)

	// Try a read, should get nothing
	if _, err := pemKey.ReadKey(); err == nil {
		t.Fatalf("ReadKey should generate an error")
	}

	key := testRSAKey(t)
	if err := pemKey.WriteKey(key); err != nil {
		t.Fatalf("err: %v", err)
	}

	info, err := os.Stat(pemKey.Path())
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Fatalf("key file permissions should be 0600, not %o", info.Mode().Perm())
	}

	nKey, err := pemKey.ReadKey()
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if !reflect.DeepEqual(nKey.D, key.D) || !reflect.DeepEqual(nKey.N, key.N) {
		t.Fatalf("Keys do not match")
	}

	if _, err := ParsePemKey([]byte("garbage")); err == nil {
		t.Fatalf("garbage should not parse")
	}
}

func TestHash(t *testing.T) {
	// echo -n "hello" | sha256sum | xxd -r -p | base64
	expected := "LPJNul+wow4m6DsqxbninhsWHlwfp0JecwQzYpOLmCQ="
	if h := Hash("hello"); h != expected {
		t.Fatalf("hash should be %s, not %s", expected, h)
	}
}

func TestCrack(t *testing.T) {
	parts := Crack("abcdefgh", 3)
	expected := []string{"adg", "beh", "cf"}
	if !reflect.DeepEqual(parts, expected) {
		t.Fatalf("parts should be %v, not %v", expected, parts)
	}

	if s := Assemble(parts); s != "abcdefgh" {
		t.Fatalf("assembled string should be abcdefgh, not %s", s)
	}
}

func TestCrackAssembleInverse(t *testing.T) {
	s := strings.Repeat("0123456789abcdef", 7) + "xyz"
	for n := 1; n <= 12; n++ {
		parts := Crack(s, n)
		if len(parts) != n {
			t.Fatalf("Crack should return %d parts, not %d", n, len(parts))
		}
		for j, p := range parts {
			want := len(s) / n
			if j < len(s)%n {
				want++
			}
			if len(p) != want {
				t.Fatalf("n=%d: part %d should have %d characters, not %d", n, j, want, len(p))
			}
		}
		if got := Assemble(parts); got != s {
			t.Fatalf("n=%d: Assemble(Crack(s)) should be s, got %s", n, got)
		}
	}

	if parts := Crack("ab", 4); !reflect.DeepEqual(parts, []string{"a", "b", "", ""}) {
		t.Fatalf("short strings leave empty parts, got %v", parts)
	}
}
