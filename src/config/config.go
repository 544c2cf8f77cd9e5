package config

import (
	"crypto/ecdsa"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/mosaicnetworks/axolotl/src/common"
	"github.com/mosaicnetworks/axolotl/src/crypto/keys"
	"github.com/mosaicnetworks/axolotl/src/net"
	"github.com/mosaicnetworks/axolotl/src/queue"
	"github.com/mosaicnetworks/axolotl/src/version"
	"github.com/rifflock/lfshook"
	"github.com/sirupsen/logrus"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"
)

// Default filenames.
const (
	// DefaultKeyfile is the default name of the file containing the node's
	// private key
	DefaultKeyfile = "node_key"

	// DefaultBadgerFile is the default name of the folder containing the Badger
	// address book
	DefaultBadgerFile = "badger_db"

	// DefaultCertFile is the default name of the file containing the TLS
	// certificate of the directory server.
	DefaultCertFile = "cert.pem"

	// DefaultCertKeyFile is the default name of the file containing the TLS
	// key of the directory server.
	DefaultCertKeyFile = "key.pem"
)

// Directory kinds.
const (
	DirectoryNone   = "none"
	DirectoryJSON   = "json"
	DirectoryBadger = "badger"
	DirectoryWAMP   = "wamp"
)

// Overflow policies.
const (
	OverflowUnbounded  = "unbounded"
	OverflowDropNewest = "drop-newest"
	OverflowDropOldest = "drop-oldest"
)

// Default configuration values.
const (
	DefaultLogLevel            = "debug"
	DefaultBindAddr            = "127.0.0.1:42069"
	DefaultServiceAddr         = "127.0.0.1:8000"
	DefaultDialTimeout         = net.DefaultDialTimeout
	DefaultHandshakeTimeout    = net.DefaultHandshakeTimeout
	DefaultLookupTimeout       = net.DefaultLookupTimeout
	DefaultMaxOutbound         = net.DefaultMaxOutbound
	DefaultOverflow            = OverflowDropNewest
	DefaultDirectory           = DirectoryNone
	DefaultDirectoryAddr       = "127.0.0.1:2443"
	DefaultDirectoryRealm      = "main"
	DefaultDirectorySkipVerify = false
	DefaultAnnounce            = false
	DefaultNoService           = false
)

// Config contains all the configuration properties of an axolotl node.
type Config struct {
	// DataDir is the top-level directory containing axolotl configuration and
	// data
	DataDir string `mapstructure:"datadir"`

	// LogLevel determines the chattiness of the log output.
	LogLevel string `mapstructure:"log"`

	// LogFile, if set, receives a copy of every log entry.
	LogFile string `mapstructure:"log-file"`

	// PublicKey is the 4 character key identifying this node. If empty, it
	// is derived from the private key in the data directory.
	PublicKey string `mapstructure:"key"`

	// BindAddr is the local address:port where this node accepts connections.
	BindAddr string `mapstructure:"listen"`

	// AdvertiseAddr is the address announced to the directory, when the bind
	// address is not routable.
	AdvertiseAddr string `mapstructure:"advertise"`

	// RemoteAddr is dialed on start-up if set.
	RemoteAddr string `mapstructure:"remote-addr"`

	// RemoteKey is the node that receives the lines typed on stdin.
	RemoteKey string `mapstructure:"remote-key"`

	// Protocol is the version string exchanged in the handshake. Nodes with
	// different versions cannot talk to each other.
	Protocol string `mapstructure:"protocol"`

	// DialTimeout is the timeout of outbound TCP connections.
	DialTimeout time.Duration `mapstructure:"dial-timeout"`

	// HandshakeTimeout bounds the validation of a new connection. Zero waits
	// forever.
	HandshakeTimeout time.Duration `mapstructure:"handshake-timeout"`

	// LookupTimeout is the timeout of directory requests.
	LookupTimeout time.Duration `mapstructure:"lookup-timeout"`

	// MaxOutbound is the number of packets that can be queued on a single
	// connection. Zero is unbounded.
	MaxOutbound int `mapstructure:"max-outbound"`

	// Overflow is the policy applied when a connection queue is full:
	// unbounded, drop-newest or drop-oldest.
	Overflow string `mapstructure:"overflow"`

	// Directory selects how unknown keys are resolved: none, json (peers.json
	// in the datadir), badger (persistent address book in the datadir) or
	// wamp (remote directory server).
	Directory string `mapstructure:"directory"`

	// DirectoryAddr is the address of the WAMP directory server.
	DirectoryAddr string `mapstructure:"directory-addr"`

	// DirectoryRealm is the WAMP realm of the directory procedures.
	DirectoryRealm string `mapstructure:"directory-realm"`

	// DirectorySkipVerify disables the verification of the directory
	// server's certificate. This should be used only for testing.
	DirectorySkipVerify bool `mapstructure:"directory-skip-verify"`

	// Announce registers the node with the directory on start-up.
	Announce bool `mapstructure:"announce"`

	// NoService disables the HTTP API service.
	NoService bool `mapstructure:"no-service"`

	// ServiceAddr is the address:port of the optional HTTP service.
	ServiceAddr string `mapstructure:"service-listen"`

	// DatabaseDir is the directory containing the badger address book.
	DatabaseDir string `mapstructure:"db"`

	// Key is the private key of the node.
	Key *ecdsa.PrivateKey `mapstructure:"-"`

	logger *logrus.Logger
}

// NewDefaultConfig returns a config object with default values.
func NewDefaultConfig() *Config {
	config := &Config{
		DataDir:             DefaultDataDir(),
		LogLevel:            DefaultLogLevel,
		BindAddr:            DefaultBindAddr,
		ServiceAddr:         DefaultServiceAddr,
		Protocol:            version.Protocol,
		DialTimeout:         DefaultDialTimeout,
		HandshakeTimeout:    DefaultHandshakeTimeout,
		LookupTimeout:       DefaultLookupTimeout,
		MaxOutbound:         DefaultMaxOutbound,
		Overflow:            DefaultOverflow,
		Directory:           DefaultDirectory,
		DirectoryAddr:       DefaultDirectoryAddr,
		DirectoryRealm:      DefaultDirectoryRealm,
		DirectorySkipVerify: DefaultDirectorySkipVerify,
		Announce:            DefaultAnnounce,
		NoService:           DefaultNoService,
		DatabaseDir:         DefaultDatabaseDir(),
	}

	return config
}

// NewTestConfig returns a config object with default values and a special
// logger for debugging tests.
func NewTestConfig(t testing.TB, level logrus.Level) *Config {
	config := NewDefaultConfig()
	config.logger = common.NewTestLogger(t, level)
	return config
}

// SetDataDir sets the top-level directory, and updates the database
// directory if it is currently set to the default value.
func (c *Config) SetDataDir(dataDir string) {
	c.DataDir = dataDir
	if c.DatabaseDir == DefaultDatabaseDir() {
		c.DatabaseDir = filepath.Join(dataDir, DefaultBadgerFile)
	}
}

// Keyfile returns the full path of the file containing the private key.
func (c *Config) Keyfile() string {
	return filepath.Join(c.DataDir, DefaultKeyfile)
}

// CertFile returns the full path of the directory server's certificate.
func (c *Config) CertFile() string {
	return filepath.Join(c.DataDir, DefaultCertFile)
}

// CertKeyFile returns the full path of the directory server's TLS key.
func (c *Config) CertKeyFile() string {
	return filepath.Join(c.DataDir, DefaultCertKeyFile)
}

// NodeKey returns the public key of the node: PublicKey if set, or the label
// of the private key.
func (c *Config) NodeKey() string {
	if c.PublicKey == "" && c.Key != nil {
		return keys.Label(&c.Key.PublicKey)
	}
	return c.PublicKey
}

// OverflowPolicy parses the Overflow option.
func (c *Config) OverflowPolicy() (queue.OverflowPolicy, error) {
	switch c.Overflow {
	case OverflowUnbounded:
		return queue.Unbounded, nil
	case OverflowDropNewest, "":
		return queue.DropNewest, nil
	case OverflowDropOldest:
		return queue.DropOldest, nil
	default:
		return queue.Unbounded, fmt.Errorf("unknown overflow policy %q", c.Overflow)
	}
}

// EndpointConfig translates the configuration into the options of a network
// Endpoint. The Directory and the Handlers are left to the caller.
func (c *Config) EndpointConfig() (net.Config, error) {
	policy, err := c.OverflowPolicy()
	if err != nil {
		return net.Config{}, err
	}

	conf := net.NewDefaultConfig(c.NodeKey(), c.BindAddr)
	conf.AdvertiseAddr = c.AdvertiseAddr
	conf.ProtocolVersion = c.Protocol
	conf.DialTimeout = c.DialTimeout
	conf.HandshakeTimeout = c.HandshakeTimeout
	conf.LookupTimeout = c.LookupTimeout
	conf.MaxOutbound = c.MaxOutbound
	conf.OverflowPolicy = policy
	conf.Announce = c.Announce
	conf.Logger = c.Logger()

	if err := net.ValidateKey(conf.PublicKey); err != nil {
		return net.Config{}, fmt.Errorf("%w: %q", err, conf.PublicKey)
	}

	return conf, nil
}

// Logger returns a formatted logrus Entry, with prefix set to "axolotl".
func (c *Config) Logger() *logrus.Entry {
	if c.logger == nil {
		c.logger = logrus.New()
		c.logger.Level = LogLevel(c.LogLevel)
		c.logger.Formatter = new(prefixed.TextFormatter)

		if c.LogFile != "" {
			c.logger.Hooks.Add(newFileHook(c.LogFile))
		}
	}
	return c.logger.WithField("prefix", "axolotl")
}

// newFileHook copies every level to path.
func newFileHook(path string) logrus.Hook {
	pathMap := lfshook.PathMap{}
	for _, level := range logrus.AllLevels {
		pathMap[level] = path
	}
	return lfshook.NewHook(pathMap, &logrus.TextFormatter{})
}

// DefaultDatabaseDir returns the default path for the badger database files.
func DefaultDatabaseDir() string {
	return filepath.Join(DefaultDataDir(), DefaultBadgerFile)
}

// DefaultDataDir return the default directory name for top-level axolotl
// config based on the underlying OS, attempting to respect conventions.
func DefaultDataDir() string {
	// Try to place the data folder in the user's home dir
	home := HomeDir()
	if home != "" {
		if runtime.GOOS == "darwin" {
			return filepath.Join(home, ".Axolotl")
		} else if runtime.GOOS == "windows" {
			return filepath.Join(home, "AppData", "Roaming", "Axolotl")
		} else {
			return filepath.Join(home, ".axolotl")
		}
	}
	// As we cannot guess a stable location, return empty and handle later
	return ""
}

// HomeDir returns the user's home directory.
func HomeDir() string {
	if home := os.Getenv("HOME"); home != "" {
		return home
	}
	if usr, err := user.Current(); err == nil {
		return usr.HomeDir
	}
	return ""
}

// LogLevel parses a string into a Logrus log level.
func LogLevel(l string) logrus.Level {
	switch l {
	case "trace":
		return logrus.TraceLevel
	case "debug":
		return logrus.DebugLevel
	case "info", "notice":
		return logrus.InfoLevel
	case "warn":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	case "fatal":
		return logrus.FatalLevel
	case "panic":
		return logrus.PanicLevel
	default:
		return logrus.DebugLevel
	}
}
