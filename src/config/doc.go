// Package config defines the configuration for an axolotl node.
//
// Regardless of how a node is started, directly from Go code or as a
// standalone process from the command line, it uses the Config object defined
// in this package. On top of the configuration options, a node relies on a
// data directory, defined by Config.DataDir, where it expects to find a few
// additional files:
//
//  node_key // (optional) the raw secp256k1 private key (cf. axolotl keygen).
//  peers.json // (optional) a JSON address book used by the json directory.
//  badger_db // (optional) the address book used by the badger directory.
//  cert.pem // (optional) a certificate for the WAMP directory server.
//  axolotl.toml // (optional) configuration file read by the CLI.
package config
