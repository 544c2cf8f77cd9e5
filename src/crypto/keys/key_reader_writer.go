package keys

import (
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// SimpleKeyfile reads and writes a node key in an unencrypted file holding the
// hex dump of the key's D value.
type SimpleKeyfile struct {
	l       sync.Mutex
	keyfile string
}

// NewSimpleKeyfile instantiates a new SimpleKeyfile with an underlying file
func NewSimpleKeyfile(keyfile string) *SimpleKeyfile {
	return &SimpleKeyfile{
		keyfile: keyfile,
	}
}

// Path returns the location of the key file.
func (k *SimpleKeyfile) Path() string {
	return k.keyfile
}

// CheckFileInfo verifies that the file exists and has user permissions only.
func (k *SimpleKeyfile) CheckFileInfo() error {
	info, err := os.Stat(k.keyfile)
	if err != nil {
		return err
	}

	// get file permissions
	perm := info.Mode().Perm()

	// permissions of 'groups' and 'others'
	if perm&0077 != 0 {
		return fmt.Errorf("key file permissions should exclude 'groups' and 'others'. Got %o", perm)
	}

	return nil
}

// ReadKey reads the underlying file, which is expected to contain a raw hex
// dump of the key as produced by WriteKey.
func (k *SimpleKeyfile) ReadKey() (*ecdsa.PrivateKey, error) {
	k.l.Lock()
	defer k.l.Unlock()

	if err := k.CheckFileInfo(); err != nil {
		return nil, err
	}

	buf, err := os.ReadFile(k.keyfile)
	if err != nil {
		return nil, err
	}

	key, err := hex.DecodeString(strings.TrimSpace(string(buf)))
	if err != nil {
		return nil, err
	}

	return ParsePrivateKey(key)
}

// WriteKey writes a raw hex dump of the key to the underlying file.
func (k *SimpleKeyfile) WriteKey(key *ecdsa.PrivateKey) error {
	k.l.Lock()
	defer k.l.Unlock()

	if err := os.MkdirAll(filepath.Dir(k.keyfile), 0700); err != nil {
		return err
	}

	return os.WriteFile(k.keyfile, []byte(PrivateKeyHex(key)), 0600)
}
