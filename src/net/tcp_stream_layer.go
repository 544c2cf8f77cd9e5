package net

import (
	"errors"
	"net"
	"time"
)

var (
	errNotAdvertisable = errors.New("local bind address is not advertisable")
	errNotTCP          = errors.New("local address is not a TCP address")
)

// TCPStreamLayer implements StreamLayer interface for plain TCP.
type TCPStreamLayer struct {
	advertise string
	listener  *net.TCPListener
}

// NewTCPStreamLayer binds a TCP listener on bindAddr. If advertiseAddr is set
// it must resolve to a specified TCP address.
func NewTCPStreamLayer(bindAddr string, advertiseAddr string) (*TCPStreamLayer, error) {
	// Try to bind
	list, err := net.Listen("tcp", bindAddr)
	if err != nil {
		return nil, err
	}

	// Verify that we have a usable advertise address
	if advertiseAddr != "" {
		resolved, err := net.ResolveTCPAddr("tcp", advertiseAddr)
		if err != nil {
			list.Close()
			return nil, err
		}
		if resolved.IP == nil || resolved.IP.IsUnspecified() {
			list.Close()
			return nil, errNotAdvertisable
		}
	}

	tcpList, ok := list.(*net.TCPListener)
	if !ok {
		list.Close()
		return nil, errNotTCP
	}

	return &TCPStreamLayer{
		advertise: advertiseAddr,
		listener:  tcpList,
	}, nil
}

// Dial implements the StreamLayer interface.
func (t *TCPStreamLayer) Dial(address string, timeout time.Duration) (net.Conn, error) {
	return net.DialTimeout("tcp", address, timeout)
}

// Accept implements the net.Listener interface.
func (t *TCPStreamLayer) Accept() (c net.Conn, err error) {
	return t.listener.Accept()
}

// Close implements the net.Listener interface.
func (t *TCPStreamLayer) Close() (err error) {
	return t.listener.Close()
}

// Addr implements the net.Listener interface.
func (t *TCPStreamLayer) Addr() net.Addr {
	return t.listener.Addr()
}

// AdvertiseAddr implements the StreamLayer interface.
func (t *TCPStreamLayer) AdvertiseAddr() string {
	// Use an advertise addr if provided
	if t.advertise != "" {
		return t.advertise
	}
	return t.listener.Addr().String()
}
