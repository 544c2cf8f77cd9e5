package commands

import (
	"net"
	"strconv"

	"github.com/mosaicnetworks/axolotl/src/config"
)

//CLIConfig contains configuration for the Run command
type CLIConfig struct {
	Axolotl config.Config `mapstructure:",squash"`

	// LocalPort overrides the port of the listen address.
	LocalPort uint16 `mapstructure:"localport"`

	// RemoteIP and RemotePort form the address dialed on start-up.
	RemoteIP   string `mapstructure:"remoteip"`
	RemotePort uint16 `mapstructure:"remoteport"`
}

//NewDefaultCLIConfig creates a CLIConfig with default values
func NewDefaultCLIConfig() *CLIConfig {
	return &CLIConfig{
		Axolotl: *config.NewDefaultConfig(),
	}
}

// apply folds the short network options into the node configuration.
func (c *CLIConfig) apply() error {
	if c.LocalPort != 0 {
		host, _, err := net.SplitHostPort(c.Axolotl.BindAddr)
		if err != nil {
			return err
		}
		c.Axolotl.BindAddr = net.JoinHostPort(host, strconv.Itoa(int(c.LocalPort)))
	}

	if c.RemoteIP != "" && c.RemotePort != 0 {
		c.Axolotl.RemoteAddr = net.JoinHostPort(c.RemoteIP, strconv.Itoa(int(c.RemotePort)))
	}

	return nil
}
