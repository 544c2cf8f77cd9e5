package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mosaicnetworks/axolotl/src/axolotl"
	"github.com/mosaicnetworks/axolotl/src/config"
	"github.com/mosaicnetworks/axolotl/src/crypto/keys"
	"github.com/spf13/cobra"
)

var (
	keygenDataDir string
	pubKeyFile    string
)

// NewKeygenCmd produces a KeygenCmd which create a key pair
func NewKeygenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Create new key pair",
		RunE:  keygen,
	}

	AddKeygenFlags(cmd)

	return cmd
}

//AddKeygenFlags adds flags to the keygen command
func AddKeygenFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&keygenDataDir, "datadir", config.DefaultDataDir(), "Directory where the private key will be written")
	cmd.Flags().StringVar(&pubKeyFile, "pub", "", "File where the public key will be written (default <datadir>/key.pub)")
}

func keygen(cmd *cobra.Command, args []string) error {
	key, err := axolotl.Keygen(keygenDataDir)
	if err != nil {
		return err
	}

	c := config.Config{DataDir: keygenDataDir}
	fmt.Printf("Your private key has been saved to: %s\n", c.Keyfile())

	if pubKeyFile == "" {
		pubKeyFile = filepath.Join(keygenDataDir, "key.pub")
	}

	if err := os.WriteFile(pubKeyFile, []byte(keys.PublicKeyHex(&key.PublicKey)), 0600); err != nil {
		return fmt.Errorf("writing public key: %s", err)
	}

	fmt.Printf("Your public key has been saved to: %s\n", pubKeyFile)
	fmt.Printf("Your node key is: %s\n", keys.Label(&key.PublicKey))

	return nil
}
