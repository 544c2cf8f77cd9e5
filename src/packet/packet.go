package packet

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

// Type is the tag carried in the packet header.
type Type uint32

const (
	// NodeValidation is the handshake packet.
	NodeValidation Type = iota
	// TextMessage carries a fixed size text buffer.
	TextMessage
)

const (
	// HeaderSize is the number of bytes of the encoded header.
	HeaderSize = 4

	// KeyWidth is the width of a public key field, terminator included.
	KeyWidth = 5

	// VersionWidth is the width of a protocol-version field, terminator
	// included.
	VersionWidth = 14

	// TextWidth is the width of the text buffer of a TextMessage.
	TextWidth = 256
)

var (
	// ErrShortBody is returned when popping more bytes than the body holds.
	ErrShortBody = errors.New("packet body too short")

	// ErrBodySize is returned when a body does not match its schema size.
	ErrBodySize = errors.New("packet body does not match schema size")

	// ErrUnknownType is returned for type ordinals absent from the schema.
	ErrUnknownType = errors.New("unknown packet type")

	// ErrFieldWidth is returned when a string does not fit its field.
	ErrFieldWidth = errors.New("string does not fit field")
)

var byteOrder = binary.LittleEndian

// Packet is a header and a stack-discipline body.
type Packet struct {
	Type   Type
	body   []byte
	schema Schema
}

// New creates an empty packet of type t. The body capacity is taken from the
// schema when the type is known.
func New(schema Schema, t Type) *Packet {
	size, _ := schema.Size(t)
	return &Packet{
		Type:   t,
		body:   make([]byte, 0, size),
		schema: schema,
	}
}

// Push appends the fixed-layout encoding of v to the body. v must be a value
// accepted by encoding/binary, ie. no slices of unknown length, no strings,
// no pointers to variable data.
func (p *Packet) Push(v interface{}) error {
	n := binary.Size(v)
	if n < 0 {
		return fmt.Errorf("push %T: not a fixed-layout value", v)
	}
	var buf bytes.Buffer
	buf.Grow(n)
	if err := binary.Write(&buf, byteOrder, v); err != nil {
		return err
	}
	p.body = append(p.body, buf.Bytes()...)
	return nil
}

// Pop removes the last binary.Size(v) bytes of the body and decodes them into
// v, which must be a pointer.
func (p *Packet) Pop(v interface{}) error {
	n := binary.Size(v)
	if n < 0 {
		return fmt.Errorf("pop %T: not a fixed-layout value", v)
	}
	if n > len(p.body) {
		return ErrShortBody
	}
	start := len(p.body) - n
	if err := binary.Read(bytes.NewReader(p.body[start:]), byteOrder, v); err != nil {
		return err
	}
	p.body = p.body[:start]
	return nil
}

// PushString appends s as a NUL padded buffer of the given width. s must
// leave room for the terminator.
func (p *Packet) PushString(s string, width int) error {
	if len(s) >= width {
		return fmt.Errorf("%w: %q in %d bytes", ErrFieldWidth, s, width)
	}
	field := make([]byte, width)
	copy(field, s)
	p.body = append(p.body, field...)
	return nil
}

// PopString removes a NUL padded buffer of the given width from the end of the
// body and returns its contents up to the first NUL.
func (p *Packet) PopString(width int) (string, error) {
	if width > len(p.body) {
		return "", ErrShortBody
	}
	start := len(p.body) - width
	s := CString(p.body[start:])
	p.body = p.body[:start]
	return s, nil
}

// Body returns the raw body.
func (p *Packet) Body() []byte {
	return p.body
}

// SetBody replaces the body, as done by a receiver after reading it off the
// wire.
func (p *Packet) SetBody(b []byte) {
	p.body = b
}

// Len is the number of bytes currently in the body.
func (p *Packet) Len() int {
	return len(p.body)
}

// BodySize is the body size declared by the schema, -1 for unknown types.
func (p *Packet) BodySize() int {
	size, ok := p.schema.Size(p.Type)
	if !ok {
		return -1
	}
	return size
}

// Validate checks that the body holds exactly the number of bytes the schema
// assigns to the packet type.
func (p *Packet) Validate() error {
	size, ok := p.schema.Size(p.Type)
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownType, p.Type)
	}
	if len(p.body) != size {
		return fmt.Errorf("%w: type %d has %d bytes, want %d", ErrBodySize, p.Type, len(p.body), size)
	}
	return nil
}

// MarshalHeader encodes the header.
func (p *Packet) MarshalHeader() []byte {
	return MarshalHeader(p.Type)
}

// Marshal returns header and body as they are written on the wire.
func (p *Packet) Marshal() []byte {
	out := make([]byte, 0, HeaderSize+len(p.body))
	out = append(out, p.MarshalHeader()...)
	return append(out, p.body...)
}

// String renders {type, declared body size}.
func (p *Packet) String() string {
	return fmt.Sprintf("{type: %d, size: %d}", p.Type, p.BodySize())
}

// MarshalHeader encodes a header carrying t.
func MarshalHeader(t Type) []byte {
	b := make([]byte, HeaderSize)
	byteOrder.PutUint32(b, uint32(t))
	return b
}

// ParseHeader decodes a header.
func ParseHeader(b []byte) (Type, error) {
	if len(b) < HeaderSize {
		return 0, ErrShortBody
	}
	return Type(byteOrder.Uint32(b)), nil
}

// CString returns the bytes of b up to the first NUL.
func CString(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		return string(b[:i])
	}
	return string(b)
}
