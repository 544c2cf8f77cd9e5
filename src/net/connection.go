package net

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/mosaicnetworks/axolotl/src/packet"
	"github.com/mosaicnetworks/axolotl/src/queue"
	"github.com/sirupsen/logrus"
)

const (
	// read buffer for the receive loop
	bufSize = 4096
)

var (
	// ErrVersionMismatch is returned when a peer announces another protocol
	// version.
	ErrVersionMismatch = errors.New("protocol version mismatch")

	// ErrUnexpectedType is returned when the first packet of a peer is not a
	// node-validation packet.
	ErrUnexpectedType = errors.New("unexpected packet type during handshake")

	// ErrConnectionClosed is returned for operations on a closed Connection.
	ErrConnectionClosed = errors.New("connection closed")

	// ErrRejected is returned when the ShouldAccept hook refused a
	// connection.
	ErrRejected = errors.New("connection rejected by application")
)

// ConnID is the handle of a Connection in its Endpoint's arena.
type ConnID uint64

// NoConn is the empty handle.
const NoConn ConnID = 0

// State is the stage of a Connection.
type State int32

const (
	// Connecting is the state of an outbound Connection being dialed.
	Connecting State = iota
	// Handshaking is the state of a Connection exchanging validation packets.
	Handshaking
	// Established is the state of a validated Connection.
	Established
	// Closed is terminal.
	Closed
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "Connecting"
	case Handshaking:
		return "Handshaking"
	case Established:
		return "Established"
	case Closed:
		return "Closed"
	default:
		return "Unknown"
	}
}

// ConnInfo describes a Connection to the application hooks.
type ConnInfo struct {
	ID        ConnID
	PublicKey string
	IP        string
	Port      uint16
	Inbound   bool
}

// MetaPacket is a received packet annotated with its sender and the
// Connection it came from.
type MetaPacket struct {
	Packet *packet.Packet
	Sender string
	Source ConnID
}

// Connection is one TCP link. Apart from State, all of its fields belong to
// the reactor.
type Connection struct {
	id       ConnID
	endpoint *Endpoint
	inbound  bool

	conn net.Conn

	state int32

	// host and port are the dial target, then the remote socket address.
	host string
	port uint16

	// expectedKey is the key an outbound dial was made for, if any.
	expectedKey string
	remoteKey   string

	outbound *queue.Queue[*packet.Packet]
	writing  bool

	// handshake carries the verdict of the validation to the read loop.
	handshake chan bool
	closed    chan struct{}

	onSuccess func(ConnInfo)
	onReject  func(ConnInfo, error)

	// quiet suppresses hooks when the application closed the Connection.
	quiet bool

	sent     uint64
	received uint64

	logger *logrus.Entry
}

func newConnection(e *Endpoint, id ConnID, inbound bool) *Connection {
	return &Connection{
		id:        id,
		endpoint:  e,
		inbound:   inbound,
		state:     int32(Connecting),
		outbound:  queue.NewBounded[*packet.Packet](e.conf.MaxOutbound, e.conf.OverflowPolicy),
		handshake: make(chan bool, 1),
		closed:    make(chan struct{}),
		logger:    e.logger.WithField("conn", id),
	}
}

// ID returns the handle of the Connection.
func (c *Connection) ID() ConnID {
	return c.id
}

// State returns the current state. It is safe to call from any goroutine.
func (c *Connection) State() State {
	return State(atomic.LoadInt32(&c.state))
}

// IsOpen reports whether the Connection is Established.
func (c *Connection) IsOpen() bool {
	return c.State() == Established
}

func (c *Connection) setState(s State) {
	atomic.StoreInt32(&c.state, int32(s))
}

// Info returns the description passed to hooks.
func (c *Connection) Info() ConnInfo {
	return ConnInfo{
		ID:        c.id,
		PublicKey: c.remoteKey,
		IP:        c.host,
		Port:      c.port,
		Inbound:   c.inbound,
	}
}

func (c *Connection) target() string {
	return net.JoinHostPort(c.host, strconv.Itoa(int(c.port)))
}

// dial opens the socket of an outbound Connection outside of the reactor.
func (c *Connection) dial() {
	e := c.endpoint
	id := c.id
	target := c.target()

	go func() {
		conn, err := e.stream.Dial(target, e.conf.DialTimeout)
		e.postConn(id, func(c *Connection) {
			c.onDialed(conn, err)
		}, func() {
			if conn != nil {
				conn.Close()
			}
		})
	}()
}

func (c *Connection) onDialed(conn net.Conn, err error) {
	if err != nil {
		c.endpoint.metrics.dials.WithLabelValues("error").Inc()
		c.fail("dial", err)
		return
	}

	if c.State() == Closed || c.endpoint.IsShutdown() {
		conn.Close()
		return
	}

	c.endpoint.metrics.dials.WithLabelValues("success").Inc()
	c.attach(conn)
	c.startHandshake()
}

// attach binds a socket to the Connection and records the remote address.
func (c *Connection) attach(conn net.Conn) {
	c.conn = conn
	if addr, ok := conn.RemoteAddr().(*net.TCPAddr); ok {
		c.host = addr.IP.String()
		c.port = uint16(addr.Port)
	}
	c.logger = c.logger.WithField("remote", conn.RemoteAddr().String())
}

// startHandshake writes the local validation packet and starts reading.
func (c *Connection) startHandshake() {
	e := c.endpoint

	c.setState(Handshaking)

	if e.conf.HandshakeTimeout > 0 {
		c.conn.SetDeadline(time.Now().Add(e.conf.HandshakeTimeout))
	}

	vp, err := packet.NewValidation(e.conf.Schema, e.conf.PublicKey, e.conf.ProtocolVersion)
	if err != nil {
		c.fail("handshake", err)
		return
	}

	c.logger.Debug("Handshaking")

	c.writing = true
	c.write(vp, func(err error) {
		c.writing = false
		if err != nil {
			c.fail("handshake", err)
			return
		}
		c.drain()
	})

	e.wg.Add(1)
	go readLoop(e, c.id, bufio.NewReaderSize(c.conn, bufSize), c.handshake, c.closed)
}

// readLoop reads packets until the socket fails. The first packet must be the
// peer's validation; later packets are only read once the reactor has
// accepted it. Completions are posted with the handle, never the Connection.
func readLoop(e *Endpoint, id ConnID, r *bufio.Reader, handshake <-chan bool, closed <-chan struct{}) {
	defer e.wg.Done()

	header := make([]byte, packet.HeaderSize)

	first := true
	for {
		p, err := readPacket(r, e.conf.Schema, header, first)
		if err != nil {
			stage := "read"
			if first {
				stage = "handshake"
			}
			e.postConn(id, func(c *Connection) {
				c.fail(stage, err)
			}, nil)
			return
		}

		if first {
			e.postConn(id, func(c *Connection) {
				c.onValidation(p)
			}, nil)

			select {
			case ok := <-handshake:
				if !ok {
					return
				}
			case <-closed:
				return
			}

			first = false
			continue
		}

		e.postConn(id, func(c *Connection) {
			c.deliver(p)
		}, nil)
	}
}

func readPacket(r *bufio.Reader, schema packet.Schema, header []byte, first bool) (*packet.Packet, error) {
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, err
	}

	t, err := packet.ParseHeader(header)
	if err != nil {
		return nil, err
	}

	if first && t != packet.NodeValidation {
		return nil, fmt.Errorf("%w: %d", ErrUnexpectedType, t)
	}

	size, ok := schema.Size(t)
	if !ok {
		return nil, fmt.Errorf("%w: %d", packet.ErrUnknownType, t)
	}

	p := packet.New(schema, t)
	if size > 0 {
		body := make([]byte, size)
		if _, err := io.ReadFull(r, body); err != nil {
			return nil, err
		}
		p.SetBody(body)
	}

	return p, nil
}

// onValidation checks the peer's validation packet.
func (c *Connection) onValidation(p *packet.Packet) {
	if c.State() != Handshaking {
		return
	}

	e := c.endpoint

	key, version, err := packet.ReadValidation(p)
	if err != nil {
		c.fail("handshake", err)
		return
	}

	if version != e.conf.ProtocolVersion {
		c.fail("handshake", fmt.Errorf("%w: local %q, remote %q", ErrVersionMismatch, e.conf.ProtocolVersion, version))
		return
	}

	if err := ValidateKey(key); err != nil {
		c.fail("handshake", err)
		return
	}

	if c.expectedKey != "" && key != c.expectedKey {
		c.logger.WithFields(logrus.Fields{
			"expected": c.expectedKey,
			"remote":   key,
		}).Warn("Peer identified with a different key")
	}

	if e.conf.HandshakeTimeout > 0 {
		c.conn.SetDeadline(time.Time{})
	}

	c.remoteKey = key
	c.logger = c.logger.WithField("key", key)
	c.setState(Established)
	c.handshake <- true

	c.logger.Debug("Established")

	e.onEstablished(c)

	if c.onSuccess != nil && c.State() == Established {
		c.onSuccess(c.Info())
	}

	c.drain()
}

// deliver hands a received packet to the Endpoint.
func (c *Connection) deliver(p *packet.Packet) {
	if c.State() != Established {
		return
	}
	c.received++
	c.endpoint.receive(&MetaPacket{
		Packet: p,
		Sender: c.remoteKey,
		Source: c.id,
	})
}

// send queues p. The drain is kicked if no write is in flight.
func (c *Connection) send(p *packet.Packet) {
	e := c.endpoint

	if c.State() == Closed {
		e.metrics.packetsDropped.WithLabelValues("closed").Inc()
		c.logger.WithField("packet", p).Debug("Dropping packet for closed connection")
		return
	}

	if err := c.outbound.PushBack(p); err != nil {
		e.metrics.packetsDropped.WithLabelValues("overflow").Inc()
		c.logger.WithField("packet", p).Warn("Outbound queue full, dropping packet")
		return
	}

	c.drain()
}

// drain writes queued packets one at a time while Established.
func (c *Connection) drain() {
	if c.writing || c.State() != Established {
		return
	}

	p, ok := c.outbound.PopFront()
	if !ok {
		return
	}

	c.writing = true
	c.write(p, func(err error) {
		c.writing = false
		if err != nil {
			c.fail("write", err)
			return
		}
		c.sent++
		c.endpoint.metrics.packetsOut.WithLabelValues(typeLabel(p.Type)).Inc()
		c.drain()
	})
}

// write puts header and body on the socket outside of the reactor and posts
// done back when the write completes.
func (c *Connection) write(p *packet.Packet, done func(error)) {
	e := c.endpoint
	id := c.id
	conn := c.conn
	data := p.Marshal()

	go func() {
		_, err := conn.Write(data)
		e.postConn(id, func(*Connection) {
			done(err)
		}, nil)
	}()
}

// close shuts the Connection down on behalf of the application. Hooks are not
// invoked.
func (c *Connection) close() {
	c.quiet = true
	c.fail("close", ErrConnectionClosed)
}

// fail moves the Connection to Closed, closes the socket, and reports the
// failure. It is idempotent.
func (c *Connection) fail(stage string, err error) {
	prev := c.State()
	if prev == Closed {
		return
	}
	c.setState(Closed)

	if c.conn != nil {
		c.conn.Close()
	}
	close(c.closed)

	select {
	case c.handshake <- false:
	default:
	}

	c.outbound.Clear()

	e := c.endpoint

	if c.quiet {
		c.logger.Debug("Closed")
	} else {
		e.metrics.rejects.WithLabelValues(stage).Inc()
		c.logger.WithFields(logrus.Fields{
			"stage": stage,
			"state": prev,
			"error": err,
		}).Warn("Connection failed")
	}

	e.onClosed(c, prev, err)

	if c.onReject != nil && !c.quiet {
		c.onReject(c.Info(), err)
	}
}
