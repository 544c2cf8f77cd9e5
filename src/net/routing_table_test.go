package net

import (
	"sync"
	"testing"
)

func TestRoutingTableSetIsUpsert(t *testing.T) {
	r := NewRoutingTable()

	r.Set("abcd", "10.0.0.1", 9001, NoConn)
	r.Set("abcd", "10.0.0.2", 9002, ConnID(3))

	d, ok := r.Get("abcd")
	if !ok {
		t.Fatalf("abcd should be in the table")
	}
	if d.IP != "10.0.0.2" || d.Port != 9002 {
		t.Fatalf("second Set should overwrite the address, got %s", d.Addr())
	}
	if d.Conn != 3 {
		t.Fatalf("second Set should overwrite the handle, got %d", d.Conn)
	}
	if r.Count() != 1 {
		t.Fatalf("Count should be 1, not %d", r.Count())
	}
}

func TestRoutingTableGetMissing(t *testing.T) {
	r := NewRoutingTable()
	if !r.Empty() {
		t.Fatalf("new table should be empty")
	}
	if _, ok := r.Get("none"); ok {
		t.Fatalf("Get should miss on an unknown key")
	}
}

func TestRoutingTableClearConnection(t *testing.T) {
	r := NewRoutingTable()
	r.Set("wxyz", "127.0.0.1", 9002, ConnID(7))

	// a stale handle does not clear a newer connection
	if r.ClearConnection("wxyz", ConnID(6)) {
		t.Fatalf("ClearConnection with a stale handle should be a no-op")
	}

	if !r.ClearConnection("wxyz", ConnID(7)) {
		t.Fatalf("ClearConnection should clear the current handle")
	}

	d, ok := r.Get("wxyz")
	if !ok {
		t.Fatalf("entry should survive ClearConnection")
	}
	if d.Connected() {
		t.Fatalf("entry should be address-only")
	}
	if d.Addr() != "127.0.0.1:9002" {
		t.Fatalf("address should be retained, got %s", d.Addr())
	}

	if r.ClearConnection("none", NoConn) {
		t.Fatalf("ClearConnection on an unknown key should be a no-op")
	}
}

func TestRoutingTableSetConnection(t *testing.T) {
	r := NewRoutingTable()

	if r.SetConnection("abcd", ConnID(1)) {
		t.Fatalf("SetConnection should fail on an unknown key")
	}

	r.Set("abcd", "127.0.0.1", 9001, NoConn)
	if !r.SetConnection("abcd", ConnID(2)) {
		t.Fatalf("SetConnection should update an existing entry")
	}

	d, _ := r.Get("abcd")
	if d.Conn != 2 || d.Port != 9001 {
		t.Fatalf("unexpected entry %+v", d)
	}
}

func TestRoutingTableSnapshotAndClear(t *testing.T) {
	r := NewRoutingTable()
	r.Set("wxyz", "127.0.0.1", 2, NoConn)
	r.Set("abcd", "127.0.0.1", 1, NoConn)

	s := r.Snapshot()
	if len(s) != 2 || s[0].PublicKey != "abcd" || s[1].PublicKey != "wxyz" {
		t.Fatalf("unexpected snapshot %+v", s)
	}

	r.Delete("abcd")
	if r.Count() != 1 {
		t.Fatalf("Count should be 1 after Delete")
	}

	r.Clear()
	if !r.Empty() {
		t.Fatalf("table should be empty after Clear")
	}
}

func TestRoutingTableConcurrent(t *testing.T) {
	r := NewRoutingTable()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				r.Set("abcd", "127.0.0.1", uint16(j), ConnID(i))
				r.Get("abcd")
				r.ClearConnection("abcd", ConnID(i))
			}
		}(i)
	}
	wg.Wait()

	if r.Count() != 1 {
		t.Fatalf("Count should be 1, not %d", r.Count())
	}
}
