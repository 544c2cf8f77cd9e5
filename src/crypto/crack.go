package crypto

import "strings"

// Crack splits s into n parts. Part j holds the characters at positions
// i*n+j, so the first len(s)%n parts are one byte longer than the others.
func Crack(s string, n int) []string {
	if n <= 0 {
		return nil
	}

	size := len(s) / n
	left := len(s) % n

	parts := make([][]byte, n)
	for j := range parts {
		l := size
		if j < left {
			l++
		}
		parts[j] = make([]byte, 0, l)
	}

	for i := 0; i < len(s); i++ {
		parts[i%n] = append(parts[i%n], s[i])
	}

	res := make([]string, n)
	for j, p := range parts {
		res[j] = string(p)
	}
	return res
}

// Assemble is the inverse of Crack.
func Assemble(parts []string) string {
	n := len(parts)

	length := 0
	for _, p := range parts {
		length += len(p)
	}

	var b strings.Builder
	b.Grow(length)

	for i := 0; i < length; i++ {
		p := parts[i%n]
		if i/n >= len(p) {
			// malformed: parts are not the output of Crack
			break
		}
		b.WriteByte(p[i/n])
	}
	return b.String()
}
