// Package net implements the networking core of an axolotl node.
//
// An Endpoint listens for TCP connections, dials other nodes, and exchanges
// fixed-schema packets (see the packet package) with them. Every link is a
// Connection which goes through the following states:
//
//	Connecting -> Handshaking -> Established -> Closed
//
// Connecting only applies to outbound links, while the address is resolved
// and dialed. In Handshaking, both sides send a node-validation packet
// carrying their public key and protocol version, without waiting for the
// other. A peer with a different protocol version, or one that sends anything
// else first, is rejected. Once validated, the Connection is registered in the
// RoutingTable under the peer's public key and packets flow in both
// directions.
//
// Reactor
//
// All Connection state belongs to a single goroutine per Endpoint, the
// reactor. Socket reads run in one goroutine per Connection and socket writes
// in short-lived goroutines, but their completions are posted back to the
// reactor, as are all calls made by the application (Connect, SendNode,
// Disconnect...). Connections live in an arena owned by the reactor and are
// referred to everywhere else by their ConnID.
//
// Packets received on any Connection are pushed into a single inbound queue.
// The application drains it with Update, which invokes the OnMessage handler
// on the calling goroutine.
//
// Ordering
//
// Packets sent to one Connection are written one at a time, in order. Packets
// sent with SendNode to a key that is not connected yet wait until the dial
// completes and are then written in the order they were submitted.
package net
