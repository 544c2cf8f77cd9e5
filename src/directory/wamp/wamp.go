// Package wamp implements a directory service using RPC over WebSockets.
//
// The Server embeds a WAMP router and a local callee that answers lookups and
// announcements from a directory.Store. The Client implements the
// directory.Directory and directory.Registrar interfaces by calling those
// procedures, so a fleet of nodes can find each other by public key without
// sharing a peers.json file.
package wamp

const (
	// LookupProcedure resolves a public key. Args: [key]. Result: [host, port].
	LookupProcedure = "axolotl.directory.lookup"

	// AnnounceProcedure registers an address. Args: [key, host, port].
	AnnounceProcedure = "axolotl.directory.announce"

	// ErrNotFound is returned when the key is unknown to the directory.
	ErrNotFound = "axolotl.error.not_found"

	// ErrBadRequest is returned when an invocation has malformed arguments.
	ErrBadRequest = "axolotl.error.bad_request"

	// ErrInternal is returned when the backing store failed.
	ErrInternal = "axolotl.error.internal"
)
