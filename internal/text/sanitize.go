package text

import "strings"

// Sanitize strips ANSI escape sequences and control characters from
// model- or server-supplied text before it reaches the terminal, so a
// hostile narrative cannot inject cursor movement or styling.
func Sanitize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	runes := []rune(s)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if r == 0x1b { // ESC: skip a CSI/OSC sequence wholesale
			i += escapeLen(runes[i:]) - 1
			continue
		}
		if r == '\n' || r == '\t' {
			b.WriteRune(r)
			continue
		}
		if r < 0x20 || r == 0x7f {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// escapeLen returns how many runes the escape sequence starting at rs[0]
// occupies (at least 1).
func escapeLen(rs []rune) int {
	if len(rs) < 2 {
		return 1
	}
	switch rs[1] {
	case '[': // CSI: parameters then a final byte in 0x40-0x7e
		for i := 2; i < len(rs); i++ {
			if rs[i] >= 0x40 && rs[i] <= 0x7e {
				return i + 1
			}
		}
		return len(rs)
	case ']': // OSC: terminated by BEL or ST
		for i := 2; i < len(rs); i++ {
			if rs[i] == 0x07 {
				return i + 1
			}
			if rs[i] == 0x1b && i+1 < len(rs) && rs[i+1] == '\\' {
				return i + 2
			}
		}
		return len(rs)
	default:
		return 2
	}
}
