package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mosaicnetworks/axolotl/src/config"
	"github.com/mosaicnetworks/axolotl/src/directory"
	"github.com/mosaicnetworks/axolotl/src/directory/wamp"
	"github.com/spf13/cobra"
)

var (
	dirDataDir  string
	dirLogLevel string
	dirListen   string
	dirRealm    string
	dirStore    string
	dirTLS      bool
)

// NewDirectoryCmd returns the command that runs a WAMP directory server
// through which nodes resolve each other's keys.
func NewDirectoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "directory",
		Short: "Run a directory server",
		RunE:  runDirectory,
	}

	AddDirectoryFlags(cmd)

	return cmd
}

//AddDirectoryFlags adds flags to the directory command
func AddDirectoryFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&dirDataDir, "datadir", config.DefaultDataDir(), "Top-level directory for configuration and data")
	cmd.Flags().StringVar(&dirLogLevel, "log", config.DefaultLogLevel, "trace, debug, info, warn, error, fatal, panic")
	cmd.Flags().StringVarP(&dirListen, "listen", "l", config.DefaultDirectoryAddr, "Listen IP:Port for the directory server")
	cmd.Flags().StringVar(&dirRealm, "realm", config.DefaultDirectoryRealm, "WAMP realm")
	cmd.Flags().StringVar(&dirStore, "store", config.DirectoryBadger, "Backend: badger or json")
	cmd.Flags().BoolVar(&dirTLS, "tls", false, "Serve over TLS with cert.pem and key.pem from datadir")
}

func runDirectory(cmd *cobra.Command, args []string) error {
	conf := config.NewDefaultConfig()
	conf.LogLevel = dirLogLevel
	conf.SetDataDir(dirDataDir)

	logger := conf.Logger().WithField("component", "directory-server")

	var store directory.Store
	switch dirStore {
	case config.DirectoryBadger:
		db, err := directory.NewBadgerDirectory(conf.DatabaseDir)
		if err != nil {
			return err
		}
		defer db.Close()
		store = db
	case config.DirectoryJSON:
		store = directory.NewJSONDirectory(conf.DataDir)
	default:
		return fmt.Errorf("unknown store %q", dirStore)
	}

	certFile, keyFile := "", ""
	if dirTLS {
		certFile, keyFile = conf.CertFile(), conf.CertKeyFile()
	}

	server, err := wamp.NewServer(dirListen, dirRealm, store, certFile, keyFile, logger)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Run()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		server.Shutdown()
		return nil
	case err := <-errCh:
		server.Shutdown()
		return err
	}
}
