package net

import (
	"errors"
	"fmt"
	"time"

	"github.com/mosaicnetworks/axolotl/src/directory"
	"github.com/mosaicnetworks/axolotl/src/packet"
	"github.com/mosaicnetworks/axolotl/src/queue"
	"github.com/mosaicnetworks/axolotl/src/version"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

// Default Endpoint values.
const (
	DefaultDialTimeout      = 1000 * time.Millisecond
	DefaultHandshakeTimeout = 10 * time.Second
	DefaultLookupTimeout    = 5 * time.Second
	DefaultMaxOutbound      = 1024
	DefaultOverflowPolicy   = queue.DropNewest
)

// ErrInvalidKey is returned for public keys that cannot be carried in a
// node-validation packet.
var ErrInvalidKey = errors.New("public key must be 1 to 4 printable ASCII characters")

// Handlers are the application hooks of an Endpoint. They all run on the
// reactor goroutine, except OnMessage which runs on the goroutine calling
// Update. Handlers must not block.
type Handlers struct {
	// ShouldAccept is consulted for every inbound connection, before the
	// handshake. Returning false closes the connection. A nil ShouldAccept
	// accepts everything.
	ShouldAccept func(info ConnInfo) bool

	// OnConnect is called when a Connection has been validated and
	// registered in the RoutingTable.
	OnConnect func(info ConnInfo)

	// OnDisconnect is called when a registered node is disconnected, either
	// explicitly or because its Connection failed.
	OnDisconnect func(key string, id ConnID)

	// OnMessage handles packets for Update. A nil OnMessage logs every packet
	// as unhandled.
	OnMessage func(m *MetaPacket)
}

// Config is the configuration of an Endpoint. It is copied by NewEndpoint and
// never modified afterwards.
type Config struct {
	// PublicKey identifies this node. 1 to 4 printable characters.
	PublicKey string

	// BindAddr is the local address:port the Endpoint listens on.
	BindAddr string

	// AdvertiseAddr is the address announced to the directory, when
	// different from BindAddr.
	AdvertiseAddr string

	// StreamLayer overrides the TCP stream layer built from BindAddr.
	StreamLayer StreamLayer

	// ProtocolVersion is compared byte for byte with the version of every
	// peer during the handshake.
	ProtocolVersion string

	// Schema is the packet schema shared by all nodes.
	Schema packet.Schema

	// DialTimeout bounds resolving and connecting to a peer.
	DialTimeout time.Duration

	// HandshakeTimeout bounds the reception of the peer's validation packet.
	// Zero disables the deadline.
	HandshakeTimeout time.Duration

	// LookupTimeout bounds Directory lookups.
	LookupTimeout time.Duration

	// MaxOutbound caps the outbound queue of every Connection, with
	// OverflowPolicy deciding what gets dropped. Zero means unbounded.
	MaxOutbound    int
	OverflowPolicy queue.OverflowPolicy

	// Directory resolves keys absent from the RoutingTable. Optional.
	Directory directory.Directory

	// Announce registers this node with Directory on Start, if Directory is
	// also a Registrar.
	Announce bool

	// AddressBook records the address of every node reached by an outbound
	// dial. Optional.
	AddressBook directory.Registrar

	// Handlers are the application hooks.
	Handlers Handlers

	// Registerer receives the Endpoint metrics. Optional.
	Registerer prometheus.Registerer

	Logger *logrus.Entry
}

// NewDefaultConfig returns a Config with default values for key and bindAddr.
func NewDefaultConfig(key string, bindAddr string) Config {
	return Config{
		PublicKey:        key,
		BindAddr:         bindAddr,
		ProtocolVersion:  version.Protocol,
		Schema:           packet.DefaultSchema,
		DialTimeout:      DefaultDialTimeout,
		HandshakeTimeout: DefaultHandshakeTimeout,
		LookupTimeout:    DefaultLookupTimeout,
		MaxOutbound:      DefaultMaxOutbound,
		OverflowPolicy:   DefaultOverflowPolicy,
	}
}

// ValidateKey checks that key fits the public key field of a node-validation
// packet.
func ValidateKey(key string) error {
	if len(key) == 0 || len(key) >= packet.KeyWidth {
		return ErrInvalidKey
	}
	for i := 0; i < len(key); i++ {
		if key[i] < 0x21 || key[i] > 0x7e {
			return ErrInvalidKey
		}
	}
	return nil
}

func (c *Config) check() error {
	if err := ValidateKey(c.PublicKey); err != nil {
		return fmt.Errorf("%w: %q", err, c.PublicKey)
	}

	if c.ProtocolVersion == "" || len(c.ProtocolVersion) >= packet.VersionWidth {
		return fmt.Errorf("protocol version %q must be 1 to %d bytes", c.ProtocolVersion, packet.VersionWidth-1)
	}

	if size, ok := c.Schema.Size(packet.NodeValidation); !ok || size != packet.KeyWidth+packet.VersionWidth {
		return fmt.Errorf("schema must declare node-validation with %d bytes", packet.KeyWidth+packet.VersionWidth)
	}

	if c.StreamLayer == nil && c.BindAddr == "" {
		return errors.New("no bind address")
	}

	return nil
}
