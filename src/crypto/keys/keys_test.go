package keys

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func testDir(t *testing.T) string {
	dir, err := os.MkdirTemp("", "axolotl")
	if err != nil {
		t.Fatalf("err: %v ", err)
	}
	return dir
}

func TestSimpleKeyfile(t *testing.T) {
	dir := testDir(t)
	defer os.RemoveAll(dir)

	simpleKeyfile := NewSimpleKeyfile(filepath.Join(dir, "keys", "node_key"))

	// Try a read, should get nothing
	key, err := simpleKeyfile.ReadKey()
	if err == nil {
		t.Fatalf("ReadKey should generate an error")
	}
	if key != nil {
		t.Fatalf("key is not nil")
	}

	key, _ = GenerateECDSAKey()

	if err := simpleKeyfile.WriteKey(key); err != nil {
		t.Fatalf("err: %v", err)
	}

	nKey, err := simpleKeyfile.ReadKey()
	if err != nil {
		t.Fatalf("err: %v", err)
	}

	if !reflect.DeepEqual(*nKey, *key) {
		t.Fatalf("Keys do not match")
	}
}

func TestFilePermissions(t *testing.T) {
	dir := testDir(t)
	defer os.RemoveAll(dir)

	key, _ := GenerateECDSAKey()
	rawKey := []byte(PrivateKeyHex(key))

	badKeyPath := filepath.Join(dir, "node_key_bad")

	for _, fm := range []os.FileMode{0777, 0766, 0744, 0644, 0640, 0604} {
		os.Remove(badKeyPath)
		os.WriteFile(badKeyPath, rawKey, fm)
		os.Chmod(badKeyPath, fm)

		if _, err := NewSimpleKeyfile(badKeyPath).ReadKey(); err == nil {
			t.Fatalf("%o || key file should return permissions error", fm)
		}
	}

	goodKeyPath := filepath.Join(dir, "node_key_good")

	for _, fm := range []os.FileMode{0700, 0600, 0400} {
		os.Remove(goodKeyPath)
		os.WriteFile(goodKeyPath, rawKey, fm)
		os.Chmod(goodKeyPath, fm)

		if _, err := NewSimpleKeyfile(goodKeyPath).ReadKey(); err != nil {
			t.Fatalf("%o || key file should not return error. Got %v", fm, err)
		}
	}
}

func TestParsePrivateKey(t *testing.T) {
	key, _ := GenerateECDSAKey()

	dump := DumpPrivateKey(key)
	if len(dump) != 32 {
		t.Fatalf("dump should be 32 bytes, not %d", len(dump))
	}

	nKey, err := ParsePrivateKey(dump)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if nKey.D.Cmp(key.D) != 0 || nKey.X.Cmp(key.X) != 0 {
		t.Fatalf("Keys do not match")
	}

	if _, err := ParsePrivateKey(dump[:31]); err == nil {
		t.Fatalf("short dump should be refused")
	}
	if _, err := ParsePrivateKey(make([]byte, 32)); err == nil {
		t.Fatalf("zero key should be refused")
	}
}

func TestLabel(t *testing.T) {
	key, _ := GenerateECDSAKey()

	label := Label(&key.PublicKey)
	if len(label) != LabelSize {
		t.Fatalf("label should have %d characters, not %d", LabelSize, len(label))
	}
	for i := 0; i < len(label); i++ {
		if label[i] < 0x21 || label[i] > 0x7e {
			t.Fatalf("label %q should be printable", label)
		}
	}

	if Label(&key.PublicKey) != label {
		t.Fatalf("label should be deterministic")
	}

	pub, err := ParsePublicKeyHex(PublicKeyHex(&key.PublicKey))
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if Label(pub) != label {
		t.Fatalf("parsed public key should have the same label")
	}

	if _, err := ParsePublicKeyHex("0x1234"); err == nil {
		t.Fatalf("invalid point should be refused")
	}
}

func TestSignMessage(t *testing.T) {
	privKey, _ := GenerateECDSAKey()

	msg := []byte("J'aime mieux forger mon ame que la meubler")

	sig, err := SignMessage(privKey, msg)
	if err != nil {
		t.Fatalf("err: %v", err)
	}

	again, _ := SignMessage(privKey, msg)
	if again != sig {
		t.Fatalf("signatures should be deterministic")
	}

	if !VerifyMessage(&privKey.PublicKey, msg, sig) {
		t.Fatalf("signature should verify")
	}

	if VerifyMessage(&privKey.PublicKey, []byte("another message"), sig) {
		t.Fatalf("signature should not verify another message")
	}

	other, _ := GenerateECDSAKey()
	if VerifyMessage(&other.PublicKey, msg, sig) {
		t.Fatalf("signature should not verify with another key")
	}

	for _, bad := range []string{"", "###", "YWJj"} {
		if VerifyMessage(&privKey.PublicKey, msg, bad) {
			t.Fatalf("malformed signature %q should not verify", bad)
		}
	}
}
