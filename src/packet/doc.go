// Package packet implements the wire unit exchanged between axolotl nodes.
//
// A packet is a fixed size header carrying a type tag, followed by a body
// whose length is NOT transmitted. Both peers derive it from a Schema, a table
// indexed by packet type. Nodes must agree on the Schema; there is no
// negotiation.
//
//	[type: uint32 little-endian][body: Schema[type] bytes]
//
// The body is a stack. Push appends a field to the end of the buffer and Pop
// removes one from the end, so fields are read back in the reverse order they
// were written:
//
//	p := packet.New(packet.DefaultSchema, packet.NodeValidation)
//	p.PushString("abcd", KeyWidth)         // first in
//	p.PushString("axolotl_alpha", VersionWidth)
//
//	version, _ := p.PopString(VersionWidth) // first out
//	key, _ := p.PopString(KeyWidth)
//
// Anyone adding a field to a packet type has to add it on both sides, in
// mirrored positions, and keep the total equal to the Schema size.
//
// Reference schema:
//
//	0 NodeValidation  19 bytes  push key [5], push version [14]
//	1 TextMessage    256 bytes  push text [256]
package packet
