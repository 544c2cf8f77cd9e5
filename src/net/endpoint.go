package net

import (
	"context"
	"errors"
	"net"
	"sync"

	"github.com/mosaicnetworks/axolotl/src/directory"
	"github.com/mosaicnetworks/axolotl/src/packet"
	"github.com/mosaicnetworks/axolotl/src/queue"
	"github.com/sirupsen/logrus"
)

var (
	// ErrTransportShutdown is returned when operations on an Endpoint are
	// invoked after it's been stopped.
	ErrTransportShutdown = errors.New("transport shutdown")

	// ErrAlreadyStarted is returned by a second call to Start.
	ErrAlreadyStarted = errors.New("endpoint already started")
)

// pendingDial collects the callers waiting for a key to be connected.
type pendingDial struct {
	conn    ConnID
	waiters []func(ConnID)
}

// Endpoint is an axolotl node. It listens for inbound connections, dials
// other nodes, and routes packets by public key.
type Endpoint struct {
	conf   Config
	logger *logrus.Entry

	stream  StreamLayer
	reactor *reactor
	inbound *queue.Queue[*MetaPacket]
	routes  *RoutingTable
	metrics *metrics

	// owned by the reactor
	conns   map[ConnID]*Connection
	pending map[string]*pendingDial
	nextID  ConnID

	wg sync.WaitGroup

	started      bool
	shutdown     bool
	shutdownCh   chan struct{}
	shutdownLock sync.Mutex

	// stopCtx is cancelled by Stop to release blocked Update calls.
	stopCtx    context.Context
	cancelStop context.CancelFunc
}

// NewEndpoint creates an Endpoint from conf. Nothing is bound until Start is
// called.
func NewEndpoint(conf Config) (*Endpoint, error) {
	if err := conf.check(); err != nil {
		return nil, err
	}

	logger := conf.Logger
	if logger == nil {
		log := logrus.New()
		log.Level = logrus.DebugLevel
		logger = logrus.NewEntry(log)
	}
	logger = logger.WithField("node", conf.PublicKey)

	stopCtx, cancelStop := context.WithCancel(context.Background())

	e := &Endpoint{
		conf:       conf,
		logger:     logger,
		reactor:    newReactor(),
		inbound:    queue.New[*MetaPacket](),
		routes:     NewRoutingTable(),
		conns:      make(map[ConnID]*Connection),
		pending:    make(map[string]*pendingDial),
		shutdownCh: make(chan struct{}),
		stopCtx:    stopCtx,
		cancelStop: cancelStop,
	}

	e.metrics = newMetrics(conf.Registerer, conf.PublicKey, func() float64 {
		return float64(e.inbound.Len())
	})

	return e, nil
}

// Start binds the listener and starts the accept loop and the reactor. A bind
// failure is returned, and the Endpoint can be started again.
func (e *Endpoint) Start() error {
	e.shutdownLock.Lock()
	defer e.shutdownLock.Unlock()

	if e.shutdown {
		return ErrTransportShutdown
	}
	if e.started {
		return ErrAlreadyStarted
	}

	stream := e.conf.StreamLayer
	if stream == nil {
		tcp, err := NewTCPStreamLayer(e.conf.BindAddr, e.conf.AdvertiseAddr)
		if err != nil {
			e.logger.WithError(err).WithField("bind_addr", e.conf.BindAddr).Error("Failed to bind")
			return err
		}
		stream = tcp
	}

	e.stream = stream
	e.started = true

	go e.reactor.run()

	e.wg.Add(1)
	go e.listen()

	e.logger.WithFields(logrus.Fields{
		"listen":    e.stream.Addr().String(),
		"advertise": e.stream.AdvertiseAddr(),
		"protocol":  e.conf.ProtocolVersion,
	}).Info("Endpoint started")

	if e.conf.Announce && e.conf.Directory != nil {
		e.announce()
	}

	return nil
}

// Stop closes the listener and every Connection, and stops the reactor. It
// is idempotent.
func (e *Endpoint) Stop() {
	e.shutdownLock.Lock()
	if e.shutdown {
		e.shutdownLock.Unlock()
		return
	}
	e.shutdown = true
	close(e.shutdownCh)
	e.cancelStop()
	started := e.started
	e.shutdownLock.Unlock()

	if started {
		e.stream.Close()
	}

	e.reactor.post(e.closeAll)
	e.reactor.stop(started)

	// The reactor is gone: leftover tasks may have created Connections.
	e.closeAll()

	e.wg.Wait()

	e.logger.Debug("Endpoint stopped")
}

// IsShutdown is used to check if the Endpoint is stopped.
func (e *Endpoint) IsShutdown() bool {
	select {
	case <-e.shutdownCh:
		return true
	default:
		return false
	}
}

func (e *Endpoint) closeAll() {
	for _, c := range e.conns {
		c.close()
	}
	for key, pd := range e.pending {
		e.dropPending(key, pd, "endpoint stopped")
	}
}

// listen accepts inbound connections until the stream is closed.
func (e *Endpoint) listen() {
	defer e.wg.Done()

	for {
		// Accept incoming connections
		conn, err := e.stream.Accept()
		if err != nil {
			if e.IsShutdown() {
				return
			}
			e.logger.WithField("error", err).Error("Failed to accept connection")
			continue
		}
		e.logger.WithFields(logrus.Fields{
			"node": conn.LocalAddr(),
			"from": conn.RemoteAddr(),
		}).Debug("accepted connection")

		if !e.reactor.post(func() { e.onAccept(conn) }) {
			conn.Close()
			return
		}
	}
}

func (e *Endpoint) onAccept(conn net.Conn) {
	if e.IsShutdown() {
		conn.Close()
		return
	}

	e.metrics.accepts.Inc()

	c := e.newConn(true)
	c.attach(conn)

	if h := e.conf.Handlers.ShouldAccept; h != nil && !h(c.Info()) {
		c.logger.Info("Connection refused by application")
		c.close()
		return
	}

	c.startHandshake()
}

func (e *Endpoint) newConn(inbound bool) *Connection {
	e.nextID++
	c := newConnection(e, e.nextID, inbound)
	e.conns[c.id] = c
	return c
}

// postConn runs fn on the reactor with the Connection of id. If the
// Connection is gone by then, or if the reactor is stopped, gone is called
// instead.
func (e *Endpoint) postConn(id ConnID, fn func(*Connection), gone func()) {
	ok := e.reactor.post(func() {
		if c, ok := e.conns[id]; ok {
			fn(c)
			return
		}
		if gone != nil {
			gone()
		}
	})
	if !ok && gone != nil {
		gone()
	}
}

// Connect dials host:port. onSuccess is called once the peer is validated and
// registered, onReject if the dial or the handshake fails, or later if the
// Connection breaks. Both run on the reactor and may be nil.
func (e *Endpoint) Connect(host string, port uint16, onSuccess func(ConnInfo), onReject func(ConnInfo, error)) {
	ok := e.reactor.post(func() {
		e.connect(host, port, "", onSuccess, onReject)
	})
	if !ok && onReject != nil {
		onReject(ConnInfo{IP: host, Port: port}, ErrTransportShutdown)
	}
}

func (e *Endpoint) connect(host string, port uint16, expectedKey string, onSuccess func(ConnInfo), onReject func(ConnInfo, error)) *Connection {
	c := e.newConn(false)
	c.host = host
	c.port = port
	c.expectedKey = expectedKey
	c.onSuccess = onSuccess
	c.onReject = onReject

	c.logger.WithFields(logrus.Fields{
		"target": c.target(),
		"key":    expectedKey,
	}).Debug("Dialing")

	if e.IsShutdown() {
		c.fail("dial", ErrTransportShutdown)
		return c
	}

	c.dial()
	return c
}

// AssureConnection calls onReady, on the reactor, with an open Connection to
// key. A known key with an open Connection is served immediately. A known
// key without one is redialed at its last address. An unknown key is
// resolved through the Directory, then dialed. onReady is never called if
// the Connection cannot be established.
func (e *Endpoint) AssureConnection(key string, onReady func(ConnID)) {
	if !e.reactor.post(func() { e.assure(key, onReady) }) {
		e.logger.WithField("key", key).Debug("AssureConnection after shutdown")
	}
}

func (e *Endpoint) assure(key string, onReady func(ConnID)) {
	if key == e.conf.PublicKey {
		e.logger.Error("Refusing to connect to self")
		return
	}

	entry, known := e.routes.Get(key)
	if known {
		if c, ok := e.conns[entry.Conn]; ok && c.IsOpen() {
			onReady(c.id)
			return
		}
	}

	if pd, ok := e.pending[key]; ok {
		pd.waiters = append(pd.waiters, onReady)
		return
	}

	pd := &pendingDial{waiters: []func(ConnID){onReady}}
	e.pending[key] = pd

	if known {
		e.logger.WithFields(logrus.Fields{
			"key":  key,
			"addr": entry.Addr(),
		}).Debug("Redialing")
		pd.conn = e.connect(entry.IP, entry.Port, key, nil, nil).id
		return
	}

	e.lookup(key, pd)
}

// lookup resolves key with the Directory outside of the reactor and dials
// the result.
func (e *Endpoint) lookup(key string, pd *pendingDial) {
	dir := e.conf.Directory
	if dir == nil {
		e.metrics.lookups.WithLabelValues("none").Inc()
		e.dropPending(key, pd, "unknown key and no directory")
		return
	}

	timeout := e.conf.LookupTimeout

	go func() {
		ctx := context.Background()
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}

		rec, err := dir.Lookup(ctx, key)

		e.reactor.post(func() {
			if e.pending[key] != pd {
				// served by an inbound connection in the meantime
				return
			}
			if err != nil {
				e.metrics.lookups.WithLabelValues("miss").Inc()
				e.logger.WithError(err).WithField("key", key).Warn("Directory lookup failed")
				e.dropPending(key, pd, "lookup failed")
				return
			}
			e.metrics.lookups.WithLabelValues("hit").Inc()
			pd.conn = e.connect(rec.Host, rec.Port, key, nil, nil).id
		})
	}()
}

func (e *Endpoint) dropPending(key string, pd *pendingDial, reason string) {
	if e.pending[key] == pd {
		delete(e.pending, key)
	}
	if len(pd.waiters) > 0 {
		e.metrics.packetsDropped.WithLabelValues("unreachable").Add(float64(len(pd.waiters)))
		e.logger.WithFields(logrus.Fields{
			"key":     key,
			"waiters": len(pd.waiters),
			"reason":  reason,
		}).Warn("Dropping requests for unreachable node")
	}
}

// onEstablished registers a validated Connection. A key has at most one open
// Connection: when a second one is validated, the one dialed by the node
// with the lower key is kept, and if both were dialed from the same side the
// older one is kept. The other is closed quietly.
func (e *Endpoint) onEstablished(c *Connection) {
	key := c.remoteKey

	e.metrics.connections.Inc()

	if c.expectedKey != "" && c.expectedKey != key {
		if pd, ok := e.pending[c.expectedKey]; ok && pd.conn == c.id {
			e.dropPending(c.expectedKey, pd, "peer identified with another key")
		}
	}

	if old := e.openConn(key); old != nil && old != c {
		if !e.prefer(c, old) {
			c.logger.WithField("kept", old.id).Debug("Closing duplicate connection")
			c.close()
			e.servePending(key, old.id)
			if c.onSuccess != nil {
				c.onSuccess(old.Info())
			}
			return
		}
		old.logger.WithField("kept", c.id).Debug("Closing duplicate connection")
		old.close()
	}

	// An inbound link comes from an ephemeral port: keep the known address.
	if _, ok := e.routes.Get(key); ok && c.inbound {
		e.routes.SetConnection(key, c.id)
	} else {
		e.routes.Set(key, c.host, c.port, c.id)
	}

	if h := e.conf.Handlers.OnConnect; h != nil {
		h(c.Info())
	}

	e.servePending(key, c.id)

	if !c.inbound && e.conf.AddressBook != nil {
		e.record(directory.Record{PublicKey: key, Host: c.host, Port: c.port})
	}
}

// openConn returns the open Connection registered for key, if any.
func (e *Endpoint) openConn(key string) *Connection {
	entry, ok := e.routes.Get(key)
	if !ok {
		return nil
	}
	if c, ok := e.conns[entry.Conn]; ok && c.IsOpen() {
		return c
	}
	return nil
}

// prefer reports whether c should replace old as the link to their node.
// Both ends of a crossed dial reach the same verdict.
func (e *Endpoint) prefer(c, old *Connection) bool {
	if c.inbound == old.inbound {
		return false
	}
	// c was dialed by the remote node if it is inbound.
	if c.inbound {
		return c.remoteKey < e.conf.PublicKey
	}
	return e.conf.PublicKey < c.remoteKey
}

// servePending hands id to the callers waiting for key.
func (e *Endpoint) servePending(key string, id ConnID) {
	pd, ok := e.pending[key]
	if !ok {
		return
	}
	delete(e.pending, key)
	for _, w := range pd.waiters {
		w(id)
	}
}

// onClosed removes a Connection from the arena and the RoutingTable.
func (e *Endpoint) onClosed(c *Connection, prev State, err error) {
	delete(e.conns, c.id)

	if prev == Established {
		e.metrics.connections.Dec()
		if e.routes.ClearConnection(c.remoteKey, c.id) && !c.quiet {
			if h := e.conf.Handlers.OnDisconnect; h != nil {
				h(c.remoteKey, c.id)
			}
		}
		return
	}

	if c.expectedKey != "" {
		if pd, ok := e.pending[c.expectedKey]; ok && pd.conn == c.id {
			if open := e.openConn(c.expectedKey); open != nil {
				e.servePending(c.expectedKey, open.id)
				return
			}
			e.dropPending(c.expectedKey, pd, err.Error())
		}
	}
}

// SendNode sends p to the node identified by key, connecting to it first if
// needed.
func (e *Endpoint) SendNode(key string, p *packet.Packet) {
	if !e.checkOutgoing(p) {
		return
	}
	e.AssureConnection(key, func(id ConnID) {
		if c, ok := e.conns[id]; ok {
			c.send(p)
		}
	})
}

// SendConn sends p on the Connection id, if it is open.
func (e *Endpoint) SendConn(id ConnID, p *packet.Packet) {
	if !e.checkOutgoing(p) {
		return
	}
	ok := e.reactor.post(func() {
		c, ok := e.conns[id]
		if !ok || !c.IsOpen() {
			e.metrics.packetsDropped.WithLabelValues("closed").Inc()
			e.logger.WithField("conn", id).Warn("Dropping packet for unknown or closed connection")
			return
		}
		c.send(p)
	})
	if !ok {
		e.metrics.packetsDropped.WithLabelValues("shutdown").Inc()
	}
}

func (e *Endpoint) checkOutgoing(p *packet.Packet) bool {
	if err := p.Validate(); err != nil {
		e.metrics.packetsDropped.WithLabelValues("invalid").Inc()
		e.logger.WithError(err).WithField("packet", p).Error("Refusing to send malformed packet")
		return false
	}
	return true
}

// Disconnect invokes the OnDisconnect hook for key, closes its Connection,
// and downgrades its routing entry to address-only.
func (e *Endpoint) Disconnect(key string) {
	e.reactor.post(func() {
		entry, ok := e.routes.Get(key)
		if !ok {
			return
		}

		if h := e.conf.Handlers.OnDisconnect; h != nil {
			h(key, entry.Conn)
		}

		e.routes.ClearConnection(key, entry.Conn)

		if c, ok := e.conns[entry.Conn]; ok {
			c.close()
		}
	})
}

// Update dispatches up to maxPackets received packets to the OnMessage
// handler, on the calling goroutine. maxPackets <= 0 dispatches everything
// currently queued. If wait is set, Update first blocks until a packet is
// available, or until Stop is called. It returns the number of packets
// dispatched.
func (e *Endpoint) Update(maxPackets int, wait bool) int {
	if wait {
		e.inbound.WaitContext(e.stopCtx)
	}
	return e.dispatch(maxPackets)
}

// UpdateContext is Update with a wait cancelled by ctx. It also returns when
// the Endpoint is stopped with nothing left to dispatch, with
// ErrTransportShutdown.
func (e *Endpoint) UpdateContext(ctx context.Context, maxPackets int) (int, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer context.AfterFunc(e.stopCtx, cancel)()

	if err := e.inbound.WaitContext(ctx); err != nil {
		if e.stopCtx.Err() != nil {
			return 0, ErrTransportShutdown
		}
		return 0, err
	}
	return e.dispatch(maxPackets), nil
}

func (e *Endpoint) dispatch(maxPackets int) int {
	n := 0
	for maxPackets <= 0 || n < maxPackets {
		m, ok := e.inbound.PopFront()
		if !ok {
			break
		}
		n++

		if h := e.conf.Handlers.OnMessage; h != nil {
			h(m)
			continue
		}

		e.logger.WithFields(logrus.Fields{
			"sender": m.Sender,
			"packet": m.Packet,
		}).Error("Unhandled packet")
	}
	return n
}

// receive queues a packet for Update.
func (e *Endpoint) receive(m *MetaPacket) {
	e.metrics.packetsIn.WithLabelValues(typeLabel(m.Packet.Type)).Inc()
	e.inbound.PushBack(m)
}

// announce registers the advertised address with the Directory.
func (e *Endpoint) announce() {
	if _, ok := e.conf.Directory.(directory.Registrar); !ok {
		e.logger.Warn("Directory does not accept announcements")
		return
	}

	rec, err := directory.NewRecord(e.conf.PublicKey, e.stream.AdvertiseAddr())
	if err != nil {
		e.logger.WithError(err).Warn("Cannot announce")
		return
	}

	if ip := net.ParseIP(rec.Host); ip != nil && ip.IsUnspecified() {
		e.logger.WithField("addr", rec.Addr()).Warn("Cannot announce an unspecified address, set an advertise address")
		return
	}

	go e.publish(e.conf.Directory.(directory.Registrar), rec)
}

// record saves the address of a node reached by an outbound dial.
func (e *Endpoint) record(rec directory.Record) {
	go e.publish(e.conf.AddressBook, rec)
}

func (e *Endpoint) publish(reg directory.Registrar, rec directory.Record) {
	ctx := context.Background()
	if e.conf.LookupTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.conf.LookupTimeout)
		defer cancel()
	}

	if err := reg.Announce(ctx, rec); err != nil {
		e.logger.WithError(err).WithField("key", rec.PublicKey).Warn("Failed to publish address")
		return
	}

	e.logger.WithFields(logrus.Fields{
		"key":  rec.PublicKey,
		"addr": rec.Addr(),
	}).Debug("Published address")
}

// Routes returns the RoutingTable.
func (e *Endpoint) Routes() *RoutingTable {
	return e.routes
}

// PublicKey returns the key of this node.
func (e *Endpoint) PublicKey() string {
	return e.conf.PublicKey
}

// Config returns a copy of the configuration.
func (e *Endpoint) Config() Config {
	return e.conf
}

// LocalAddr returns the address the Endpoint listens on, or an empty string
// before Start.
func (e *Endpoint) LocalAddr() string {
	e.shutdownLock.Lock()
	defer e.shutdownLock.Unlock()

	if e.stream == nil {
		return ""
	}
	return e.stream.Addr().String()
}

// AdvertiseAddr returns the address announced to other nodes.
func (e *Endpoint) AdvertiseAddr() string {
	e.shutdownLock.Lock()
	defer e.shutdownLock.Unlock()

	if e.stream == nil {
		return e.conf.AdvertiseAddr
	}
	return e.stream.AdvertiseAddr()
}

// Stats is a snapshot of the Endpoint.
type Stats struct {
	PublicKey    string `json:"public_key"`
	ListenAddr   string `json:"listen_addr"`
	Connections  int    `json:"connections"`
	Established  int    `json:"established"`
	PendingDials int    `json:"pending_dials"`
	Routes       int    `json:"routes"`
	InboundQueue int    `json:"inbound_queue"`
}

// Stats returns a snapshot of the Endpoint. Connection counts are only
// available while the Endpoint is running.
func (e *Endpoint) Stats() Stats {
	s := Stats{
		PublicKey:    e.conf.PublicKey,
		ListenAddr:   e.LocalAddr(),
		Routes:       e.routes.Count(),
		InboundQueue: e.inbound.Len(),
	}

	if e.running() {
		e.reactor.call(func() {
			s.Connections = len(e.conns)
			s.PendingDials = len(e.pending)
			for _, c := range e.conns {
				if c.IsOpen() {
					s.Established++
				}
			}
		})
	}

	return s
}

// ConnState returns the state of the Connection id, or Closed if it is not
// in the arena.
func (e *Endpoint) ConnState(id ConnID) State {
	state := Closed
	if !e.running() {
		return state
	}
	e.reactor.call(func() {
		if c, ok := e.conns[id]; ok {
			state = c.State()
		}
	})
	return state
}

func (e *Endpoint) running() bool {
	e.shutdownLock.Lock()
	defer e.shutdownLock.Unlock()
	return e.started && !e.shutdown
}
