package lexer

import "github.com/xplshn/gasm/pkg/diag"

var simpleEscapes = map[byte]byte{
	'n': '\n', 't': '\t', 'r': '\r', '\\': '\\', '\'': '\'', '"': '"',
	'a': '\a', 'b': '\b', 'f': '\f', 'v': '\v', 'e': 0x1b,
}

// DecodeEscape decodes the escape sequence at the start of text, which must
// begin with a backslash. It returns the byte and how many bytes of text the
// sequence used. Octal takes up to three digits and \x up to two hex digits.
func DecodeEscape(text string) (byte, int, error) {
	if len(text) < 2 || text[0] != '\\' {
		return 0, 0, diag.New(diag.UnexpectedToken, text)
	}
	c := text[1]
	if b, ok := simpleEscapes[c]; ok {
		return b, 2, nil
	}

	switch {
	case c >= '0' && c <= '7':
		val, n := 0, 1
		for n < 4 && n < len(text) && text[n] >= '0' && text[n] <= '7' {
			val = val*8 + int(text[n]-'0')
			n++
		}
		if val > 0xff {
			return 0, 0, diag.New(diag.UnexpectedToken, text[:n])
		}
		return byte(val), n, nil
	case c == 'x':
		val, n := 0, 2
		for n < 4 && n < len(text) && isHexDigit(rune(text[n])) {
			val = val*16 + hexValue(text[n])
			n++
		}
		if n == 2 {
			return 0, 0, diag.New(diag.UnexpectedToken, text[:2])
		}
		return byte(val), n, nil
	}
	return 0, 0, diag.New(diag.UnexpectedToken, text[:2])
}

// DecodeString decodes every escape in s.
func DecodeString(s string) ([]byte, error) {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); {
		if s[i] != '\\' {
			out = append(out, s[i])
			i++
			continue
		}
		b, n, err := DecodeEscape(s[i:])
		if err != nil {
			return nil, err
		}
		out = append(out, b)
		i += n
	}
	return out, nil
}

func hexValue(c byte) int {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0')
	case c >= 'a' && c <= 'f':
		return int(c-'a') + 10
	}
	return int(c-'A') + 10
}
