// Package axolotl wires a complete node from a config.Config: identity key,
// directory, endpoint, chat application and HTTP service.
package axolotl

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"

	"github.com/mosaicnetworks/axolotl/src/config"
	"github.com/mosaicnetworks/axolotl/src/crypto/keys"
	"github.com/mosaicnetworks/axolotl/src/directory"
	"github.com/mosaicnetworks/axolotl/src/directory/wamp"
	"github.com/mosaicnetworks/axolotl/src/node"
	"github.com/mosaicnetworks/axolotl/src/service"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

// Axolotl is a node and the components it depends on.
type Axolotl struct {
	Config      *config.Config
	Node        *node.Node
	Directory   directory.Directory
	AddressBook directory.Registrar
	Registry    *prometheus.Registry
	Service     *service.Service

	// OnText receives text messages. It must be set before Init. Messages
	// are logged if it is nil.
	OnText node.TextHandler

	closers []io.Closer
	logger  *logrus.Entry
}

// NewAxolotl creates an uninitialised Axolotl. Call Init before Start.
func NewAxolotl(conf *config.Config) *Axolotl {
	return &Axolotl{
		Config:   conf,
		Registry: prometheus.NewRegistry(),
		logger:   conf.Logger(),
	}
}

// Init loads the key, opens the directory and creates the node and the
// service.
func (a *Axolotl) Init() error {
	if err := a.initKey(); err != nil {
		return err
	}

	if err := a.initDirectory(); err != nil {
		return err
	}

	if err := a.initNode(); err != nil {
		a.closeAll()
		return err
	}

	if err := a.initService(); err != nil {
		a.closeAll()
		return err
	}

	return nil
}

// initKey loads or creates the private key unless an explicit public key is
// configured.
func (a *Axolotl) initKey() error {
	if a.Config.PublicKey != "" || a.Config.Key != nil {
		return nil
	}

	privKey, err := keys.NewSimpleKeyfile(a.Config.Keyfile()).ReadKey()
	if err != nil {
		a.logger.WithError(err).Warn("Cannot read private key from file")

		privKey, err = Keygen(a.Config.DataDir)
		if err != nil {
			a.logger.WithError(err).Error("Cannot generate a new private key")
			return err
		}

		a.logger.WithField("public_key", keys.PublicKeyHex(&privKey.PublicKey)).Info("Created a new key")
	}

	a.Config.Key = privKey

	a.logger.WithField("key", a.Config.NodeKey()).Debug("Loaded node key")

	return nil
}

func (a *Axolotl) initDirectory() error {
	switch a.Config.Directory {
	case config.DirectoryNone, "":
		return nil
	case config.DirectoryJSON:
		dir := directory.NewJSONDirectory(a.Config.DataDir)
		a.Directory = dir
		a.AddressBook = dir

		a.logger.WithField("path", dir.Path()).Debug("Using JSON directory")
	case config.DirectoryBadger:
		a.logger.WithField("path", a.Config.DatabaseDir).Debug("Attempting to load or create database")

		dir, err := directory.NewBadgerDirectory(a.Config.DatabaseDir)
		if err != nil {
			return err
		}
		a.Directory = dir
		a.AddressBook = dir
		a.closers = append(a.closers, dir)
	case config.DirectoryWAMP:
		cli, err := wamp.NewClient(
			a.Config.DirectoryAddr,
			a.Config.DirectoryRealm,
			a.Config.DirectorySkipVerify,
			a.Config.LookupTimeout,
			a.logger.WithField("component", "directory-client"),
		)
		if err != nil {
			return fmt.Errorf("connecting to directory %s: %w", a.Config.DirectoryAddr, err)
		}
		a.Directory = cli
		a.closers = append(a.closers, cli)
	default:
		return fmt.Errorf("unknown directory %q", a.Config.Directory)
	}

	return nil
}

func (a *Axolotl) initNode() error {
	conf, err := a.Config.EndpointConfig()
	if err != nil {
		return err
	}

	conf.Directory = a.Directory
	conf.AddressBook = a.AddressBook
	conf.Registerer = a.Registry

	n, err := node.NewNode(conf, a.OnText)
	if err != nil {
		return fmt.Errorf("failed to initialize node: %w", err)
	}

	a.Node = n

	return nil
}

func (a *Axolotl) initService() error {
	if !a.Config.NoService && a.Config.ServiceAddr != "" {
		a.Service = service.NewService(
			a.Config.ServiceAddr,
			a.Node.Endpoint(),
			a.Registry,
			a.logger.WithField("component", "service"),
		)
	}
	return nil
}

// Start starts the node, the service and the initial dial.
func (a *Axolotl) Start() error {
	if err := a.Node.Start(); err != nil {
		return err
	}

	if a.Service != nil {
		go a.Service.Serve()
	}

	if a.Config.RemoteAddr != "" {
		host, port, err := splitHostPort(a.Config.RemoteAddr)
		if err != nil {
			return err
		}
		a.Node.Connect(host, port)
	}

	return nil
}

// Run dispatches received messages until ctx is done.
func (a *Axolotl) Run(ctx context.Context) error {
	return a.Node.Run(ctx)
}

// Shutdown stops the service and the node and closes the directory.
func (a *Axolotl) Shutdown() {
	if a.Service != nil {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		a.Service.Shutdown(ctx)
		cancel()
	}

	if a.Node != nil {
		a.Node.Shutdown()
	}

	a.closeAll()
}

func (a *Axolotl) closeAll() {
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			a.logger.WithError(err).Warn("Error closing")
		}
	}
	a.closers = nil
}

func splitHostPort(addr string) (string, uint16, error) {
	host, p, err := net.SplitHostPort(addr)
	if err != nil {
		return "", 0, err
	}
	port, err := strconv.ParseUint(p, 10, 16)
	if err != nil {
		return "", 0, fmt.Errorf("invalid port in %s: %w", addr, err)
	}
	return host, uint16(port), nil
}

// Keygen creates a new private key in datadir. It refuses to overwrite an
// existing key.
func Keygen(datadir string) (*ecdsa.PrivateKey, error) {
	keyfile := keys.NewSimpleKeyfile(keyfilePath(datadir))

	if _, err := keyfile.ReadKey(); err == nil {
		return nil, fmt.Errorf("another key already lives under %s", datadir)
	}

	privKey, err := keys.GenerateECDSAKey()
	if err != nil {
		return nil, err
	}

	if err := keyfile.WriteKey(privKey); err != nil {
		return nil, err
	}

	return privKey, nil
}

func keyfilePath(datadir string) string {
	c := config.Config{DataDir: datadir}
	return c.Keyfile()
}
