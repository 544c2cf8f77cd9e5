package commands

import (
	"github.com/spf13/cobra"
)

//RootCmd is the root command for axolotl
var RootCmd = &cobra.Command{
	Use:   "axolotl",
	Short: "axolotl peer-to-peer node",
	Long: `
▄▀█ ▀▄▀ █▀█ █░░ █▀█ ▀█▀ █░░
█▀█ █░█ █▄█ █▄▄ █▄█ ░█░ █▄▄

Nodes exchanging fixed-size packets over TCP.`,
	TraverseChildren: true,
}
