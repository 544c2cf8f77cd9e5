package packet

// Schema maps a packet type ordinal to its body size in bytes.
type Schema []int

// DefaultSchema is the reference schema.
var DefaultSchema = Schema{
	NodeValidation: KeyWidth + VersionWidth,
	TextMessage:    TextWidth,
}

// Size returns the body size of t and whether t is part of the schema.
func (s Schema) Size(t Type) (int, bool) {
	if int64(t) >= int64(len(s)) {
		return 0, false
	}
	return s[t], true
}

// Extend returns a copy of s with an additional type of the given size and
// the ordinal it was assigned.
func (s Schema) Extend(size int) (Schema, Type) {
	ext := make(Schema, len(s), len(s)+1)
	copy(ext, s)
	return append(ext, size), Type(len(s))
}
