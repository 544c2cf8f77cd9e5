package wamp

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"
	"time"

	"github.com/gammazero/nexus/v3/client"
	"github.com/gammazero/nexus/v3/router"
	"github.com/gammazero/nexus/v3/wamp"
	"github.com/mosaicnetworks/axolotl/src/common"
	"github.com/mosaicnetworks/axolotl/src/directory"
	"github.com/sirupsen/logrus"
)

// Client implements the directory.Directory and directory.Registrar
// interfaces through a WAMP directory Server.
type Client struct {
	routerURL string
	config    client.Config
	client    *client.Client
	logger    *logrus.Entry
}

// NewClient opens a connection to the directory server at url, which must
// carry a ws:// or wss:// scheme.
func NewClient(
	url string,
	realm string,
	insecureSkipVerify bool,
	responseTimeout time.Duration,
	logger *logrus.Entry,
) (*Client, error) {

	cfg := client.Config{
		Realm:           realm,
		ResponseTimeout: responseTimeout,
		Logger:          logger,
	}

	if insecureSkipVerify {
		logger.Debug("Skip Verify. Accepting any certificate provided by directory server.")
		cfg.TlsCfg = &tls.Config{InsecureSkipVerify: true}
	}

	if !strings.Contains(url, "://") {
		url = fmt.Sprintf("ws://%s", url)
	}

	res := &Client{
		routerURL: url,
		config:    cfg,
		logger:    logger,
	}

	if err := res.Connect(); err != nil {
		return nil, err
	}

	return res, nil
}

// NewLocalClient attaches a Client to an in-process router.
func NewLocalClient(r router.Router, realm string, responseTimeout time.Duration, logger *logrus.Entry) (*Client, error) {
	cfg := client.Config{
		Realm:           realm,
		ResponseTimeout: responseTimeout,
		Logger:          logger,
	}

	cli, err := client.ConnectLocal(r, cfg)
	if err != nil {
		return nil, err
	}

	return &Client{
		config: cfg,
		client: cli,
		logger: logger,
	}, nil
}

// Connect creates a new WAMP client connected to the router specified by the
// client's routerURL. If a WAMP client already exists and is already
// connected, it does nothing.
func (c *Client) Connect() error {
	if c.client != nil && c.client.Connected() {
		return nil
	}

	cli, err := client.ConnectNet(
		context.Background(),
		c.routerURL,
		c.config,
	)
	if err != nil {
		return err
	}

	c.client = cli

	return nil
}

// Lookup implements the directory.Directory interface.
func (c *Client) Lookup(ctx context.Context, key string) (directory.Record, error) {
	result, err := c.call(ctx, LookupProcedure, wamp.List{key})
	if err != nil {
		if strings.Contains(err.Error(), ErrNotFound) {
			return directory.Record{}, common.NewStoreErr("Record", common.KeyNotFound, key)
		}
		return directory.Record{}, err
	}

	return parseLookupResult(key, result.Arguments)
}

// parseLookupResult reads the [host, port] reply of a lookup.
func parseLookupResult(key string, args wamp.List) (directory.Record, error) {
	if len(args) != 2 {
		return directory.Record{}, fmt.Errorf("lookup %s: expected 2 results, got %d", key, len(args))
	}

	host, ok := wamp.AsString(args[0])
	if !ok {
		return directory.Record{}, fmt.Errorf("lookup %s: bad host", key)
	}

	port, ok := wamp.AsInt64(args[1])
	if !ok || port < 0 || port > 65535 {
		return directory.Record{}, fmt.Errorf("lookup %s: bad port %v", key, args[1])
	}

	return directory.Record{PublicKey: key, Host: host, Port: uint16(port)}, nil
}

// Announce implements the directory.Registrar interface.
func (c *Client) Announce(ctx context.Context, rec directory.Record) error {
	_, err := c.call(ctx, AnnounceProcedure, wamp.List{rec.PublicKey, rec.Host, int64(rec.Port)})
	return err
}

func (c *Client) call(ctx context.Context, procedure string, args wamp.List) (*wamp.Result, error) {
	if c.config.ResponseTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.ResponseTimeout)
		defer cancel()
	}

	result, err := c.client.Call(ctx, procedure, nil, args, nil, nil)
	if err != nil {
		c.logger.WithError(err).WithField("procedure", procedure).Debug("Call failed")
		return nil, err
	}

	return result, nil
}

// Close closes the connection to the WAMP server
func (c *Client) Close() error {
	return c.client.Close()
}
