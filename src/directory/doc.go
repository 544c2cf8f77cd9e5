// Package directory resolves node public keys to network addresses.
//
// The Endpoint consults a Directory when it has to reach a key that is absent
// from its routing table. Implementations range from a static in-memory map to
// a persistent Badger database and a remote WAMP service (see the wamp
// sub-package). A Directory that is also a Registrar can be told about the
// local node so that others can find it.
package directory
