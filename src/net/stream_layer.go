package net

import (
	"net"
	"time"
)

// StreamLayer is the socket layer under an Endpoint: it accepts inbound
// connections and opens outbound ones.
type StreamLayer interface {
	net.Listener

	// Dial opens a connection to address, giving up after timeout.
	Dial(address string, timeout time.Duration) (net.Conn, error)

	// AdvertiseAddr returns the address other nodes should dial: the
	// advertise address if one was configured, the listen address otherwise.
	AdvertiseAddr() string
}

var _ StreamLayer = (*TCPStreamLayer)(nil)
