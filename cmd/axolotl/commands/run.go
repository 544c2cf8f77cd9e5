package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/mosaicnetworks/axolotl/src/axolotl"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	_config = NewDefaultCLIConfig()
)

//NewRunCmd returns the command that starts an axolotl node
func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "run",
		Short:   "Run node",
		PreRunE: loadConfig,
		RunE:    runAxolotl,
	}
	AddRunFlags(cmd)
	return cmd
}

/*******************************************************************************
* RUN
*******************************************************************************/

func runAxolotl(cmd *cobra.Command, args []string) error {
	engine := axolotl.NewAxolotl(&_config.Axolotl)

	if err := engine.Init(); err != nil {
		_config.Axolotl.Logger().Error("Cannot initialize engine:", err)
		return err
	}

	if err := engine.Start(); err != nil {
		_config.Axolotl.Logger().Error("Cannot start engine:", err)
		engine.Shutdown()
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Lines typed on stdin go to the remote key, or to the key named with
	// @key at the start of the line.
	go func() {
		if err := engine.Node.Chat(ctx, os.Stdin, _config.Axolotl.RemoteKey); err != nil {
			_config.Axolotl.Logger().WithError(err).Debug("Stopped reading stdin")
		}
	}()

	done := make(chan struct{})
	go func() {
		defer close(done)
		engine.Run(ctx)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	cancel()
	<-done
	engine.Shutdown()

	return nil
}

/*******************************************************************************
* CONFIG
*******************************************************************************/

//AddRunFlags adds flags to the Run command
func AddRunFlags(cmd *cobra.Command) {

	cmd.Flags().String("datadir", _config.Axolotl.DataDir, "Top-level directory for configuration and data")
	cmd.Flags().String("log", _config.Axolotl.LogLevel, "trace, debug, info, warn, error, fatal, panic")
	cmd.Flags().String("log-file", _config.Axolotl.LogFile, "Also write logs to this file")

	// Identity
	cmd.Flags().StringP("key", "K", _config.Axolotl.PublicKey, "4 character public key of this node (default derived from the key in datadir)")
	cmd.Flags().StringP("remote-key", "R", _config.Axolotl.RemoteKey, "Public key of the node receiving stdin")
	cmd.Flags().String("protocol", _config.Axolotl.Protocol, "Protocol version exchanged in the handshake")

	// Network
	cmd.Flags().StringP("listen", "l", _config.Axolotl.BindAddr, "Listen IP:Port for axolotl node")
	cmd.Flags().Uint16P("localport", "L", _config.LocalPort, "Override the port of the listen address")
	cmd.Flags().StringP("advertise", "a", _config.Axolotl.AdvertiseAddr, "Advertise IP:Port for axolotl node")
	cmd.Flags().String("remote-addr", _config.Axolotl.RemoteAddr, "IP:Port of a node to connect to on start-up")
	cmd.Flags().StringP("remoteip", "I", _config.RemoteIP, "IP of a node to connect to on start-up")
	cmd.Flags().Uint16P("remoteport", "P", _config.RemotePort, "Port of a node to connect to on start-up")
	cmd.Flags().Duration("dial-timeout", _config.Axolotl.DialTimeout, "TCP dial timeout")
	cmd.Flags().Duration("handshake-timeout", _config.Axolotl.HandshakeTimeout, "Handshake timeout, 0 waits forever")
	cmd.Flags().Int("max-outbound", _config.Axolotl.MaxOutbound, "Max queued packets per connection, 0 is unbounded")
	cmd.Flags().String("overflow", _config.Axolotl.Overflow, "Full queue policy: unbounded, drop-newest, drop-oldest")

	// Directory
	cmd.Flags().String("directory", _config.Axolotl.Directory, "Key resolution: none, json, badger, wamp")
	cmd.Flags().String("directory-addr", _config.Axolotl.DirectoryAddr, "IP:Port of the WAMP directory server")
	cmd.Flags().String("directory-realm", _config.Axolotl.DirectoryRealm, "WAMP realm of the directory")
	cmd.Flags().Bool("directory-skip-verify", _config.Axolotl.DirectorySkipVerify, "Skip verification of the directory certificate")
	cmd.Flags().Duration("lookup-timeout", _config.Axolotl.LookupTimeout, "Directory request timeout")
	cmd.Flags().Bool("announce", _config.Axolotl.Announce, "Register with the directory on start-up")

	// Store
	cmd.Flags().String("db", _config.Axolotl.DatabaseDir, "Address book directory")

	// Service
	cmd.Flags().StringP("service-listen", "s", _config.Axolotl.ServiceAddr, "Listen IP:Port for HTTP service")
	cmd.Flags().Bool("no-service", _config.Axolotl.NoService, "Disable HTTP service")
}

func loadConfig(cmd *cobra.Command, args []string) error {

	err := bindFlagsLoadViper(cmd)
	if err != nil {
		return err
	}

	// If --datadir was explicitely set, but not --db, this will update the
	// default database dir to be inside the new datadir
	_config.Axolotl.SetDataDir(_config.Axolotl.DataDir)

	if err := _config.apply(); err != nil {
		return err
	}

	logFields := logrus.Fields{
		"axolotl.DataDir":          _config.Axolotl.DataDir,
		"axolotl.PublicKey":        _config.Axolotl.PublicKey,
		"axolotl.BindAddr":         _config.Axolotl.BindAddr,
		"axolotl.AdvertiseAddr":    _config.Axolotl.AdvertiseAddr,
		"axolotl.RemoteAddr":       _config.Axolotl.RemoteAddr,
		"axolotl.RemoteKey":        _config.Axolotl.RemoteKey,
		"axolotl.Protocol":         _config.Axolotl.Protocol,
		"axolotl.HandshakeTimeout": _config.Axolotl.HandshakeTimeout,
		"axolotl.MaxOutbound":      _config.Axolotl.MaxOutbound,
		"axolotl.Overflow":         _config.Axolotl.Overflow,
		"axolotl.Directory":        _config.Axolotl.Directory,
		"axolotl.LogLevel":         _config.Axolotl.LogLevel,
	}

	if !_config.Axolotl.NoService {
		logFields["axolotl.ServiceAddr"] = _config.Axolotl.ServiceAddr
	}

	_config.Axolotl.Logger().WithFields(logFields).Debug("RUN")

	return nil
}

// Bind all flags and read the config into viper
func bindFlagsLoadViper(cmd *cobra.Command) error {
	// Register flags with viper. Include flags from this command and all other
	// persistent flags from the parent
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	// first unmarshal to read from CLI flags
	if err := viper.Unmarshal(_config); err != nil {
		return err
	}

	// look for config file in [datadir]/axolotl.toml (.json, .yaml also work)
	viper.SetConfigName("axolotl")               // name of config file (without extension)
	viper.AddConfigPath(_config.Axolotl.DataDir) // search root directory

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		_config.Axolotl.Logger().Debugf("Using config file: %s", viper.ConfigFileUsed())
	} else if _, ok := err.(viper.ConfigFileNotFoundError); ok {
		_config.Axolotl.Logger().Debugf("No config file found in: %s", _config.Axolotl.DataDir)
	} else {
		return err
	}

	// second unmarshal to read from config file
	return viper.Unmarshal(_config)
}
