package packet

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"
)

type mixedField struct {
	A uint16
	B [3]byte
}

func TestPushPopReverseOrder(t *testing.T) {
	schema, ordinal := DefaultSchema.Extend(4 + 8 + 5)

	p := New(schema, ordinal)

	if err := p.Push(uint32(7)); err != nil {
		t.Fatalf("err: %v", err)
	}
	if err := p.Push(int64(-42)); err != nil {
		t.Fatalf("err: %v", err)
	}
	if err := p.Push(mixedField{A: 513, B: [3]byte{'x', 'y', 'z'}}); err != nil {
		t.Fatalf("err: %v", err)
	}

	if err := p.Validate(); err != nil {
		t.Fatalf("err: %v", err)
	}

	var m mixedField
	var i int64
	var u uint32

	if err := p.Pop(&m); err != nil {
		t.Fatalf("err: %v", err)
	}
	if err := p.Pop(&i); err != nil {
		t.Fatalf("err: %v", err)
	}
	if err := p.Pop(&u); err != nil {
		t.Fatalf("err: %v", err)
	}

	if m.A != 513 || m.B != [3]byte{'x', 'y', 'z'} {
		t.Fatalf("mixed field should be {513 xyz}, not %v", m)
	}
	if i != -42 {
		t.Fatalf("int64 field should be -42, not %d", i)
	}
	if u != 7 {
		t.Fatalf("uint32 field should be 7, not %d", u)
	}
	if p.Len() != 0 {
		t.Fatalf("body should be empty, has %d bytes", p.Len())
	}
}

func TestPopShortBody(t *testing.T) {
	p := New(DefaultSchema, TextMessage)
	p.Push(uint16(1))

	var v uint32
	if err := p.Pop(&v); !errors.Is(err, ErrShortBody) {
		t.Fatalf("expected ErrShortBody, got %v", err)
	}
	if p.Len() != 2 {
		t.Fatalf("failed pop should not consume bytes")
	}
}

func TestPushRejectsVariableLayout(t *testing.T) {
	p := New(DefaultSchema, TextMessage)
	if err := p.Push("not fixed"); err == nil {
		t.Fatalf("pushing a string should fail")
	}
}

func TestValidationRoundTrip(t *testing.T) {
	p, err := NewValidation(DefaultSchema, "abcd", "axolotl_alpha")
	if err != nil {
		t.Fatalf("err: %v", err)
	}

	if err := p.Validate(); err != nil {
		t.Fatalf("err: %v", err)
	}

	// The version occupies the last 14 bytes of the body.
	if CString(p.Body()[KeyWidth:]) != "axolotl_alpha" {
		t.Fatalf("version should be at the end of the body")
	}

	wire := p.Marshal()
	typ, err := ParseHeader(wire)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if typ != NodeValidation {
		t.Fatalf("type should be NodeValidation, not %d", typ)
	}

	q := New(DefaultSchema, typ)
	q.SetBody(append([]byte{}, wire[HeaderSize:]...))

	key, version, err := ReadValidation(q)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if key != "abcd" || version != "axolotl_alpha" {
		t.Fatalf("got key %q version %q", key, version)
	}
}

func TestTextRoundTrip(t *testing.T) {
	p := NewText(DefaultSchema, "hello")
	if err := p.Validate(); err != nil {
		t.Fatalf("err: %v", err)
	}

	text, err := ReadText(p)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if text != "hello" {
		t.Fatalf("text should be hello, not %q", text)
	}

	long := bytes.Repeat([]byte("a"), 400)
	p = NewText(DefaultSchema, string(long))
	if err := p.Validate(); err != nil {
		t.Fatalf("err: %v", err)
	}
	text, _ = ReadText(p)
	if len(text) != TextWidth-1 {
		t.Fatalf("long text should be truncated to %d, got %d", TextWidth-1, len(text))
	}
}

func TestPushStringWidth(t *testing.T) {
	p := New(DefaultSchema, NodeValidation)
	if err := p.PushString("abcde", KeyWidth); !errors.Is(err, ErrFieldWidth) {
		t.Fatalf("expected ErrFieldWidth, got %v", err)
	}
}

func TestValidateSize(t *testing.T) {
	p := New(DefaultSchema, TextMessage)
	p.PushString("short", 10)
	if err := p.Validate(); !errors.Is(err, ErrBodySize) {
		t.Fatalf("expected ErrBodySize, got %v", err)
	}

	u := New(DefaultSchema, Type(9))
	if err := u.Validate(); !errors.Is(err, ErrUnknownType) {
		t.Fatalf("expected ErrUnknownType, got %v", err)
	}
	if u.BodySize() != -1 {
		t.Fatalf("unknown type should have size -1")
	}
}

func TestString(t *testing.T) {
	p := New(DefaultSchema, NodeValidation)
	if s := p.String(); s != "{type: 0, size: 19}" {
		t.Fatalf("unexpected rendering %s", s)
	}
	p = New(DefaultSchema, TextMessage)
	if s := p.String(); s != "{type: 1, size: 256}" {
		t.Fatalf("unexpected rendering %s", s)
	}
}

func TestHeaderLittleEndian(t *testing.T) {
	h := MarshalHeader(TextMessage)
	if !bytes.Equal(h, []byte{1, 0, 0, 0}) {
		t.Fatalf("unexpected header %v", h)
	}
	if _, err := ParseHeader(h[:2]); !errors.Is(err, ErrShortBody) {
		t.Fatalf("expected ErrShortBody, got %v", err)
	}
}

func TestTextTruncatesOnRuneBoundary(t *testing.T) {
	// 254 bytes of ASCII followed by a 2 byte rune straddling the limit
	long := strings.Repeat("x", TextWidth-2) + "é"

	text, err := ReadText(NewText(DefaultSchema, long))
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if !utf8.ValidString(text) {
		t.Fatalf("truncated text should be valid UTF-8: %q", text[len(text)-4:])
	}
	if text != long[:TextWidth-2] {
		t.Fatalf("text should be cut before the rune, got %d bytes", len(text))
	}

	exact := strings.Repeat("x", TextWidth-3) + "é"
	if text, _ := ReadText(NewText(DefaultSchema, exact)); text != exact {
		t.Fatalf("text of %d bytes should not be truncated", len(exact))
	}
}
