package request

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// ErrBadEscape is returned for a '%' that is neither doubled nor followed by
// two hex digits
var ErrBadEscape = errors.New("malformed percent escape")

func unhex(c byte) (byte, bool) {
	switch {
	case '0' <= c && c <= '9':
		return c - '0', true
	case 'a' <= c && c <= 'f':
		return c - 'a' + 10, true
	case 'A' <= c && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}

// unescape decodes %XX escapes, "%%" and '+'. The result of an escape is
// never decoded again.
func unescape(s string) (string, error) {
	if !strings.ContainsAny(s, "%+") {
		return s, nil
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '+':
			b.WriteByte(' ')
		case '%':
			if i+1 < len(s) && s[i+1] == '%' {
				b.WriteByte('%')
				i++
				continue
			}
			if i+2 >= len(s) {
				return "", fmt.Errorf("%w: truncated escape at offset %d", ErrBadEscape, i)
			}
			hi, ok1 := unhex(s[i+1])
			lo, ok2 := unhex(s[i+2])
			if !ok1 || !ok2 {
				return "", fmt.Errorf("%w: %q at offset %d", ErrBadEscape, s[i:i+3], i)
			}
			b.WriteByte(hi<<4 | lo)
			i += 2
		default:
			b.WriteByte(c)
		}
	}
	return b.String(), nil
}

// DecodeParams decodes a raw query or urlencoded body.
//
// The whole string is unescaped first and split afterwards, so an escaped
// '&' or '=' acts as a delimiter. Empty segments between '&' are skipped and
// produce no parameter. A parameter without '=' has an empty value; the last
// of duplicate parameters wins.
func DecodeParams(raw string) (map[string]string, error) {
	params := map[string]string{}
	if raw == "" {
		return params, nil
	}
	decoded, err := unescape(raw)
	if err != nil {
		return nil, err
	}
	for _, param := range strings.Split(decoded, "&") {
		if param == "" {
			continue
		}
		name, value, _ := strings.Cut(param, "=")
		params[name] = value
	}
	return params, nil
}

// DecodeCookies decodes a Cookie header value.
//
// Leading non-graphic characters are trimmed from cookie names. Fragments
// without '=', with an empty name or with an empty value are skipped. The
// last of duplicate cookies wins.
func DecodeCookies(raw string) map[string]string {
	cookies := map[string]string{}
	for _, cookie := range strings.Split(raw, ";") {
		name, value, ok := strings.Cut(cookie, "=")
		if !ok {
			continue
		}
		name = strings.TrimLeftFunc(name, func(r rune) bool { return !unicode.IsGraphic(r) || unicode.IsSpace(r) })
		if name == "" || value == "" {
			continue
		}
		cookies[name] = value
	}
	return cookies
}
