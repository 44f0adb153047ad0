package normalize

import (
	"strings"
	"unicode/utf8"
)

// Sanitize strips control characters that have no business in stored PR text:
// NUL and the rest of C0 except \n \r \t, DEL, and the C1 range U+0080..U+009F.
// Invalid UTF-8 bytes are dropped too. Clean input is returned unchanged
// without allocating
func Sanitize(s string) string {
	i := firstDirty(s)
	if i < 0 {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))
	b.WriteString(s[:i])
	for i < len(s) {
		r, size := utf8.DecodeRuneInString(s[i:])
		if r == utf8.RuneError && size == 1 {
			i++
			continue
		}
		if !dirtyRune(r) {
			b.WriteString(s[i : i+size])
		}
		i += size
	}
	return b.String()
}

// firstDirty returns the byte offset of the first byte Sanitize would drop,
// or -1 when s is already clean
func firstDirty(s string) int {
	for i := 0; i < len(s); {
		if c := s[i]; c < utf8.RuneSelf {
			if dirtyRune(rune(c)) {
				return i
			}
			i++
			continue
		}
		r, size := utf8.DecodeRuneInString(s[i:])
		if (r == utf8.RuneError && size == 1) || dirtyRune(r) {
			return i
		}
		i += size
	}
	return -1
}

func dirtyRune(r rune) bool {
	switch {
	case r == '\n' || r == '\r' || r == '\t':
		return false
	case r < 0x20: // C0
		return true
	case r == 0x7F: // DEL
		return true
	case r >= 0x80 && r <= 0x9F: // C1
		return true
	}
	return false
}
