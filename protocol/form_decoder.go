package protocol

import (
	"net/url"
	"strings"
)

// DecodeKeyValues decodes "k1=v1&k2=v2" input into a fresh map.
// Tokens without '=' are dropped and later duplicates overwrite earlier ones.
func DecodeKeyValues(input string) map[string]string {
	dst := make(map[string]string)
	decodeKeyValuesInto(dst, input, nil)
	return dst
}

func decodeKeyValuesInto(dst map[string]string, input string, diag *Diagnostics) {
	for _, token := range strings.Split(input, "&") {
		if token == "" {
			continue
		}
		key, value, ok := strings.Cut(token, "=")
		if !ok {
			diag.dropPair(token)
			continue
		}
		dst[percentDecode(key)] = percentDecode(value)
	}
}

// percentDecode reverses form URL-encoding: '+' becomes a space and %XX
// becomes the encoded byte. Escapes that are not two hex digits are kept
// as literal text instead of failing the whole value.
func percentDecode(s string) string {
	if !strings.ContainsAny(s, "%+") {
		return s
	}
	if decoded, err := url.QueryUnescape(s); err == nil {
		return decoded
	}

	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c == '+':
			b.WriteByte(' ')
		case c == '%' && i+2 < len(s) && isHex(s[i+1]) && isHex(s[i+2]):
			b.WriteByte(unhex(s[i+1])<<4 | unhex(s[i+2]))
			i += 2
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

func isHex(c byte) bool {
	return ('0' <= c && c <= '9') || ('a' <= c && c <= 'f') || ('A' <= c && c <= 'F')
}

func unhex(c byte) byte {
	switch {
	case '0' <= c && c <= '9':
		return c - '0'
	case 'a' <= c && c <= 'f':
		return c - 'a' + 10
	default:
		return c - 'A' + 10
	}
}
