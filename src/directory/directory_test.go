package directory

import (
	"context"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/mosaicnetworks/axolotl/src/common"
)

func testStore(t *testing.T, s Store) {
	ctx := context.Background()

	if _, err := s.Lookup(ctx, "abcd"); !common.IsStore(err, common.KeyNotFound) {
		t.Fatalf("expected KeyNotFound, got %v", err)
	}

	a := Record{PublicKey: "abcd", Host: "127.0.0.1", Port: 9001}
	w := Record{PublicKey: "wxyz", Host: "10.0.0.2", Port: 9002}

	for _, r := range []Record{w, a} {
		if err := s.Announce(ctx, r); err != nil {
			t.Fatalf("err: %v", err)
		}
	}

	got, err := s.Lookup(ctx, "abcd")
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if got != a {
		t.Fatalf("Lookup should return %v, not %v", a, got)
	}

	// re-announcing replaces the address
	a.Port = 9101
	if err := s.Announce(ctx, a); err != nil {
		t.Fatalf("err: %v", err)
	}
	got, _ = s.Lookup(ctx, "abcd")
	if got.Port != 9101 {
		t.Fatalf("Port should be 9101, not %d", got.Port)
	}

	list, err := s.List(ctx)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("List should return 2 records, not %d", len(list))
	}
	if list[0].PublicKey != "abcd" || list[1].PublicKey != "wxyz" {
		t.Fatalf("List should be sorted by key: %v", list)
	}

	if err := s.Announce(ctx, Record{Host: "x"}); !common.IsStore(err, common.InvalidKey) {
		t.Fatalf("expected InvalidKey, got %v", err)
	}
}

func TestStaticDirectory(t *testing.T) {
	testStore(t, NewStaticDirectory())
}

func TestJSONDirectory(t *testing.T) {
	dir, err := ioutil.TempDir("", "axolotl-json")
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	defer os.RemoveAll(dir)

	j := NewJSONDirectory(dir)
	testStore(t, j)

	// a fresh instance reads the same file
	other := NewJSONDirectory(dir)
	rec, err := other.Lookup(context.Background(), "wxyz")
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if rec.Addr() != "10.0.0.2:9002" {
		t.Fatalf("unexpected address %s", rec.Addr())
	}
}

func TestJSONDirectoryHandEdited(t *testing.T) {
	dir, err := ioutil.TempDir("", "axolotl-json")
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	defer os.RemoveAll(dir)

	content := `[{"public_key": "abcd", "host": "localhost", "port": 9001}]`
	if err := ioutil.WriteFile(filepath.Join(dir, PeersFile), []byte(content), 0600); err != nil {
		t.Fatalf("err: %v", err)
	}

	rec, err := NewJSONDirectory(dir).Lookup(context.Background(), "abcd")
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if rec.Host != "localhost" || rec.Port != 9001 {
		t.Fatalf("unexpected record %v", rec)
	}
}

func TestBadgerDirectory(t *testing.T) {
	dir, err := ioutil.TempDir("", "axolotl-badger")
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	defer os.RemoveAll(dir)

	b, err := NewBadgerDirectory(dir)
	if err != nil {
		t.Fatalf("err: %v", err)
	}

	testStore(t, b)

	if err := b.Delete("wxyz"); err != nil {
		t.Fatalf("err: %v", err)
	}

	if err := b.Close(); err != nil {
		t.Fatalf("err: %v", err)
	}

	// reopen and check persistence
	b, err = NewBadgerDirectory(dir)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	defer b.Close()

	rec, err := b.Lookup(context.Background(), "abcd")
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if rec.Port != 9101 {
		t.Fatalf("Port should be 9101, not %d", rec.Port)
	}

	if _, err := b.Lookup(context.Background(), "wxyz"); !common.IsStore(err, common.KeyNotFound) {
		t.Fatalf("deleted record should be gone, got %v", err)
	}
}

func TestChain(t *testing.T) {
	ctx := context.Background()

	first := NewStaticDirectory(Record{PublicKey: "abcd", Host: "first", Port: 1})
	second := NewStaticDirectory(
		Record{PublicKey: "abcd", Host: "second", Port: 2},
		Record{PublicKey: "wxyz", Host: "second", Port: 3},
	)

	c := Chain{first, second}

	rec, err := c.Lookup(ctx, "abcd")
	if err != nil || rec.Host != "first" {
		t.Fatalf("abcd should resolve from the first directory: %v %v", rec, err)
	}

	rec, err = c.Lookup(ctx, "wxyz")
	if err != nil || rec.Host != "second" {
		t.Fatalf("wxyz should resolve from the second directory: %v %v", rec, err)
	}

	if _, err := c.Lookup(ctx, "none"); !common.IsStore(err, common.KeyNotFound) {
		t.Fatalf("expected KeyNotFound, got %v", err)
	}

	if err := c.Announce(ctx, Record{PublicKey: "new1", Host: "h", Port: 4}); err != nil {
		t.Fatalf("err: %v", err)
	}
	if _, err := second.Lookup(ctx, "new1"); err != nil {
		t.Fatalf("announce should reach every registrar: %v", err)
	}
}

func TestNewRecord(t *testing.T) {
	rec, err := NewRecord("abcd", "127.0.0.1:9001")
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if rec.Host != "127.0.0.1" || rec.Port != 9001 {
		t.Fatalf("unexpected record %v", rec)
	}

	if _, err := NewRecord("abcd", "127.0.0.1:99999"); err == nil {
		t.Fatalf("out of range port should fail")
	}

	data, err := rec.Marshal()
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	var back Record
	if err := back.Unmarshal(data); err != nil {
		t.Fatalf("err: %v", err)
	}
	if back != rec {
		t.Fatalf("decoded record %v differs from %v", back, rec)
	}
}
