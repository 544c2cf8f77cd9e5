package node

import (
	"bufio"
	"context"
	"errors"
	"io"
	"strings"

	"github.com/mosaicnetworks/axolotl/src/net"
	"github.com/mosaicnetworks/axolotl/src/packet"
	"github.com/sirupsen/logrus"
)

// ErrNoRecipient is returned by SendText when no destination key is known.
var ErrNoRecipient = errors.New("no recipient key")

// TextHandler receives the text messages of other nodes.
type TextHandler func(sender string, text string)

// Node is the chat application running on top of an Endpoint.
type Node struct {
	endpoint *net.Endpoint
	schema   packet.Schema
	onText   TextHandler
	logger   *logrus.Entry
}

// NewNode creates a Node and its Endpoint from conf. The OnMessage handler of
// conf is replaced by the Node's dispatcher. If onText is nil, messages are
// logged at info level.
func NewNode(conf net.Config, onText TextHandler) (*Node, error) {
	logger := conf.Logger
	if logger == nil {
		logger = logrus.NewEntry(logrus.New())
	}

	n := &Node{
		schema: conf.Schema,
		onText: onText,
		logger: logger.WithField("node", conf.PublicKey),
	}

	if n.onText == nil {
		n.onText = n.logText
	}

	conf.Handlers.OnMessage = n.onMessage

	if conf.Handlers.OnConnect == nil {
		conf.Handlers.OnConnect = func(info net.ConnInfo) {
			n.logger.WithFields(logrus.Fields{
				"key":     info.PublicKey,
				"inbound": info.Inbound,
			}).Info("Node connected")
		}
	}

	if conf.Handlers.OnDisconnect == nil {
		conf.Handlers.OnDisconnect = func(key string, id net.ConnID) {
			n.logger.WithField("key", key).Info("Node disconnected")
		}
	}

	endpoint, err := net.NewEndpoint(conf)
	if err != nil {
		return nil, err
	}
	n.endpoint = endpoint

	return n, nil
}

// Endpoint returns the underlying Endpoint.
func (n *Node) Endpoint() *net.Endpoint {
	return n.endpoint
}

// Start starts the Endpoint.
func (n *Node) Start() error {
	return n.endpoint.Start()
}

// Shutdown stops the Endpoint.
func (n *Node) Shutdown() {
	n.endpoint.Stop()
}

// Connect dials a node by address. Failures are logged.
func (n *Node) Connect(host string, port uint16) {
	n.endpoint.Connect(host, port, nil, func(info net.ConnInfo, err error) {
		n.logger.WithFields(logrus.Fields{
			"ip":    info.IP,
			"port":  info.Port,
			"error": err,
		}).Warn("Connection failed")
	})
}

// Run dispatches received packets until ctx is done, or until the Endpoint is
// stopped. It returns ctx.Err() or net.ErrTransportShutdown.
func (n *Node) Run(ctx context.Context) error {
	for {
		if _, err := n.endpoint.UpdateContext(ctx, 0); err != nil {
			return err
		}
	}
}

// SendText sends text to the node identified by key.
func (n *Node) SendText(key string, text string) error {
	if key == "" {
		return ErrNoRecipient
	}
	n.endpoint.SendNode(key, packet.NewText(n.schema, text))
	return nil
}

// Chat sends every line read from r, until r is exhausted or ctx is done.
// Lines without an @key prefix go to defaultKey.
func (n *Node) Chat(ctx context.Context, r io.Reader, defaultKey string) error {
	lines := make(chan string)
	errCh := make(chan error, 1)

	go func() {
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		errCh <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-errCh:
			return err
		case line := <-lines:
			key, text := parseLine(line, defaultKey)
			if text == "" {
				continue
			}
			if err := n.SendText(key, text); err != nil {
				n.logger.WithError(err).Warn("Dropping line, use @key to address a node")
			}
		}
	}
}

// parseLine splits an "@key text" line.
func parseLine(line string, defaultKey string) (key string, text string) {
	if strings.HasPrefix(line, "@") {
		if i := strings.IndexByte(line, ' '); i > 1 {
			return line[1:i], line[i+1:]
		}
	}
	return defaultKey, line
}

func (n *Node) onMessage(m *net.MetaPacket) {
	switch m.Packet.Type {
	case packet.TextMessage:
		text, err := packet.ReadText(m.Packet)
		if err != nil {
			n.logger.WithError(err).WithField("sender", m.Sender).Error("Malformed text message")
			return
		}
		n.onText(m.Sender, text)
	default:
		// only text messages are routed to the application
		n.logger.WithFields(logrus.Fields{
			"sender": m.Sender,
			"packet": m.Packet,
		}).Error("This message should not have got to this handler")
	}
}

func (n *Node) logText(sender string, text string) {
	n.logger.WithField("sender", sender).Info(text)
}
