package rd

import "strings"

// escapable are the characters a backslash escapes in every mode.
const escapable = `\%{}`

// Escape quotes s so that it is read back as literal text in a leaf of the
// given kind. Backslashes, percent signs and braces are escaped. In R-like
// and verbatim text a backslash that cannot start an escape or a macro is
// left alone.
func Escape(s string, kind Kind) string {
	if !strings.ContainsAny(s, escapable) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s) + 8)
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case '%', '{', '}':
			b.WriteByte('\\')
		case '\\':
			if kind == Text || i+1 == len(s) || strings.IndexByte(escapable, s[i+1]) >= 0 || isLetter(rune(s[i+1])) {
				b.WriteByte('\\')
			}
		}
		b.WriteByte(c)
	}
	return b.String()
}

// Unescape removes Rd escapes: a backslash before one of \ % { } is dropped.
// Any other backslash is kept.
func Unescape(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) && strings.IndexByte(escapable, s[i+1]) >= 0 {
			i++
		}
		b.WriteByte(s[i])
	}
	return b.String()
}
