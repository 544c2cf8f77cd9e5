package net

import (
	"net"
	"sort"
	"strconv"
	"sync"
)

// ConnectionData is a routing entry: the last known address of a node and,
// while one is open, the handle of its Connection.
type ConnectionData struct {
	IP   string
	Port uint16
	Conn ConnID
}

// Addr returns the ip:port form of the entry's address.
func (d ConnectionData) Addr() string {
	return net.JoinHostPort(d.IP, strconv.Itoa(int(d.Port)))
}

// Connected reports whether the entry holds a connection handle.
func (d ConnectionData) Connected() bool {
	return d.Conn != NoConn
}

// Route is a routing entry together with its key.
type Route struct {
	PublicKey string
	ConnectionData
}

// RoutingTable maps public keys to ConnectionData. It is safe for concurrent
// use. Entries are never removed when a node disconnects; they are downgraded
// to address-only so that a later send can redial.
type RoutingTable struct {
	l       sync.Mutex
	entries map[string]ConnectionData
}

// NewRoutingTable returns an empty RoutingTable.
func NewRoutingTable() *RoutingTable {
	return &RoutingTable{
		entries: make(map[string]ConnectionData),
	}
}

// Set inserts or replaces the entry of key. A second Set on the same key
// overwrites both the address and the connection handle.
func (r *RoutingTable) Set(key string, ip string, port uint16, conn ConnID) {
	r.l.Lock()
	defer r.l.Unlock()

	r.entries[key] = ConnectionData{
		IP:   ip,
		Port: port,
		Conn: conn,
	}
}

// SetConnection replaces the connection handle of an existing entry, leaving
// its address untouched. It returns false if key is unknown.
func (r *RoutingTable) SetConnection(key string, conn ConnID) bool {
	r.l.Lock()
	defer r.l.Unlock()

	d, ok := r.entries[key]
	if !ok {
		return false
	}
	d.Conn = conn
	r.entries[key] = d
	return true
}

// ClearConnection downgrades the entry of key to address-only, provided it
// still points at conn. It returns true if the entry was changed.
func (r *RoutingTable) ClearConnection(key string, conn ConnID) bool {
	r.l.Lock()
	defer r.l.Unlock()

	d, ok := r.entries[key]
	if !ok || d.Conn != conn {
		return false
	}
	d.Conn = NoConn
	r.entries[key] = d
	return true
}

// Get returns a copy of the entry of key.
func (r *RoutingTable) Get(key string) (ConnectionData, bool) {
	r.l.Lock()
	defer r.l.Unlock()

	d, ok := r.entries[key]
	return d, ok
}

// Delete removes the entry of key.
func (r *RoutingTable) Delete(key string) {
	r.l.Lock()
	defer r.l.Unlock()

	delete(r.entries, key)
}

// Count returns the number of entries.
func (r *RoutingTable) Count() int {
	r.l.Lock()
	defer r.l.Unlock()

	return len(r.entries)
}

// Empty reports whether the table has no entries.
func (r *RoutingTable) Empty() bool {
	return r.Count() == 0
}

// Clear removes every entry.
func (r *RoutingTable) Clear() {
	r.l.Lock()
	defer r.l.Unlock()

	r.entries = make(map[string]ConnectionData)
}

// Snapshot returns a copy of every entry, sorted by key.
func (r *RoutingTable) Snapshot() []Route {
	r.l.Lock()
	res := make([]Route, 0, len(r.entries))
	for k, d := range r.entries {
		res = append(res, Route{PublicKey: k, ConnectionData: d})
	}
	r.l.Unlock()

	sort.Slice(res, func(i, j int) bool { return res[i].PublicKey < res[j].PublicKey })
	return res
}
