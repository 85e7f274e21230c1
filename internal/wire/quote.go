package wire

import (
	"errors"
	"strconv"
	"unicode/utf16"
	"unicode/utf8"
)

var (
	errUnterminated  = errors.New("unterminated string")
	errInvalidEscape = errors.New("invalid escape sequence")
	errControlChar   = errors.New("control character in string")
)

const hexDigits = "0123456789abcdef"

// AppendQuote appends s to dst as a quoted string literal. Quote, backslash
// and control characters are escaped; everything else is copied verbatim.
func AppendQuote(dst []byte, s string) []byte {
	dst = append(dst, '"')
	start := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 0x20 && c != '"' && c != '\\' {
			continue
		}
		dst = append(dst, s[start:i]...)
		switch c {
		case '"', '\\':
			dst = append(dst, '\\', c)
		case '\n':
			dst = append(dst, '\\', 'n')
		case '\r':
			dst = append(dst, '\\', 'r')
		case '\t':
			dst = append(dst, '\\', 't')
		case '\b':
			dst = append(dst, '\\', 'b')
		case '\f':
			dst = append(dst, '\\', 'f')
		default:
			dst = append(dst, '\\', 'u', '0', '0', hexDigits[c>>4], hexDigits[c&0xf])
		}
		start = i + 1
	}
	dst = append(dst, s[start:]...)
	return append(dst, '"')
}

// unquote decodes the string literal starting at src[0] == '"'. It returns
// the decoded text and the number of bytes consumed including both quotes.
func unquote(src []byte) (string, int, error) {
	i := 1
	start := i
	var out []byte
	for i < len(src) {
		c := src[i]
		switch {
		case c == '"':
			if out == nil {
				return string(src[start:i]), i + 1, nil
			}
			out = append(out, src[start:i]...)
			return string(out), i + 1, nil
		case c == '\\':
			out = append(out, src[start:i]...)
			n, err := appendEscape(&out, src[i:])
			if err != nil {
				return "", i, err
			}
			i += n
			start = i
		case c < 0x20:
			return "", i, errControlChar
		default:
			i++
		}
	}
	return "", i, errUnterminated
}

// appendEscape decodes the escape sequence at the start of src and returns
// its length in bytes.
func appendEscape(out *[]byte, src []byte) (int, error) {
	if len(src) < 2 {
		return 0, errUnterminated
	}
	switch src[1] {
	case '"', '\\', '/':
		*out = append(*out, src[1])
	case 'b':
		*out = append(*out, '\b')
	case 'f':
		*out = append(*out, '\f')
	case 'n':
		*out = append(*out, '\n')
	case 'r':
		*out = append(*out, '\r')
	case 't':
		*out = append(*out, '\t')
	case 'u':
		r, ok := parseHex4(src[2:])
		if !ok {
			return 0, errInvalidEscape
		}
		n := 6
		if utf16.IsSurrogate(r) {
			// A high surrogate only forms a rune with a following \u low surrogate.
			if len(src) >= 12 && src[6] == '\\' && src[7] == 'u' {
				if r2, ok := parseHex4(src[8:]); ok {
					if dec := utf16.DecodeRune(r, r2); dec != utf8.RuneError {
						*out = utf8.AppendRune(*out, dec)
						return 12, nil
					}
				}
			}
			r = utf8.RuneError
		}
		*out = utf8.AppendRune(*out, r)
		return n, nil
	default:
		return 0, errInvalidEscape
	}
	return 2, nil
}

func parseHex4(b []byte) (rune, bool) {
	if len(b) < 4 {
		return 0, false
	}
	v, err := strconv.ParseUint(string(b[:4]), 16, 32)
	if err != nil {
		return 0, false
	}
	return rune(v), true
}
