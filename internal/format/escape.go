package format

import "strings"

// Escape replaces & < > " ' with entities.
//
// An ampersand that already starts a character reference (&amp;, &#039;,
// &#x27;) is left alone, so Escape(Escape(s)) == Escape(s).
func Escape(s string) string {
	if !strings.ContainsAny(s, `&<>"'`) {
		return s
	}

	var b strings.Builder
	b.Grow(len(s) + len(s)/8)

	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '&':
			if n := entityLen(s[i:]); n > 0 {
				b.WriteString(s[i : i+n])
				i += n - 1
				continue
			}
			b.WriteString("&amp;")
		case '<':
			b.WriteString("&lt;")
		case '>':
			b.WriteString("&gt;")
		case '"':
			b.WriteString("&quot;")
		case '\'':
			b.WriteString("&#039;")
		default:
			b.WriteByte(c)
		}
	}

	return b.String()
}

// entityLen returns the length of the character reference at the start of s
// (including '&' and ';'), or 0 if s does not start with one.
func entityLen(s string) int {
	if len(s) < 3 || s[0] != '&' {
		return 0
	}

	i := 1
	switch {
	case s[1] == '#' && len(s) > 2 && (s[2] == 'x' || s[2] == 'X'):
		i = 3
		start := i
		for i < len(s) && isHex(s[i]) {
			i++
		}
		if i == start {
			return 0
		}
	case s[1] == '#':
		i = 2
		start := i
		for i < len(s) && s[i] >= '0' && s[i] <= '9' {
			i++
		}
		if i == start {
			return 0
		}
	case isAlpha(s[1]):
		for i < len(s) && (isAlpha(s[i]) || (s[i] >= '0' && s[i] <= '9')) {
			i++
		}
	default:
		return 0
	}

	if i >= len(s) || s[i] != ';' {
		return 0
	}
	return i + 1
}

func isAlpha(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isHex(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}
