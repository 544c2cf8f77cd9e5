package packet

import "unicode/utf8"

// NewValidation builds the node-validation packet sent by both sides of a
// handshake. The key is pushed first and the version second.
func NewValidation(schema Schema, key, version string) (*Packet, error) {
	p := New(schema, NodeValidation)
	if err := p.PushString(key, KeyWidth); err != nil {
		return nil, err
	}
	if err := p.PushString(version, VersionWidth); err != nil {
		return nil, err
	}
	return p, nil
}

// ReadValidation pops the version then the key of a node-validation packet.
func ReadValidation(p *Packet) (key, version string, err error) {
	if version, err = p.PopString(VersionWidth); err != nil {
		return "", "", err
	}
	if key, err = p.PopString(KeyWidth); err != nil {
		return "", "", err
	}
	return key, version, nil
}

// NewText builds a TextMessage packet. Text longer than TextWidth-1 bytes is
// truncated on a rune boundary.
func NewText(schema Schema, text string) *Packet {
	if len(text) > TextWidth-1 {
		n := TextWidth - 1
		for n > 0 && !utf8.RuneStart(text[n]) {
			n--
		}
		text = text[:n]
	}
	p := New(schema, TextMessage)
	p.PushString(text, TextWidth)
	return p
}

// ReadText pops the text buffer of a TextMessage packet.
func ReadText(p *Packet) (string, error) {
	return p.PopString(TextWidth)
}
