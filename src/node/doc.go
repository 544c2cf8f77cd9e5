// Package node implements the chat application of an axolotl node.
//
// A Node wraps a net.Endpoint. It handles the text-message packets dispatched
// by the Endpoint and hands their content to a TextHandler, and it turns lines
// of input into text-message packets sent to other nodes by public key.
//
// Dispatch
//
// The Endpoint queues every received packet. Run drains that queue on the
// calling goroutine until its context is cancelled, so text handlers never run
// on the network reactor and may block.
//
// Input
//
// Chat reads lines from an io.Reader. A line starting with @key is sent to
// that node, any other line goes to the default remote key. Text longer than
// 255 bytes is truncated to fit the 256 byte packet body.
package node
