package oembed

import (
	"strconv"
	"strings"
)

// Size carries optional maxwidth/maxheight hints. Zero means absent.
type Size struct {
	MaxWidth  int
	MaxHeight int
}

// BuildRequestURL appends the encoded resource URL and size hints to a provider endpoint.
// Values are passed through without range checks.
func BuildRequestURL(endpoint, url string, size Size) string {
	var b strings.Builder
	b.WriteString(endpoint)
	b.WriteString("url=")
	b.WriteString(quote(url))
	if size.MaxWidth != 0 {
		b.WriteString("&maxwidth=")
		b.WriteString(strconv.Itoa(size.MaxWidth))
	}
	if size.MaxHeight != 0 {
		b.WriteString("&maxheight=")
		b.WriteString(strconv.Itoa(size.MaxHeight))
	}
	return b.String()
}

// RequestURL builds the fetch URL for p.
func (p Provider) RequestURL(url string, size Size) string {
	return BuildRequestURL(p.Endpoint, url, size)
}

const upperhex = "0123456789ABCDEF"

// quote percent-encodes every UTF-8 byte of s except ASCII letters, digits and "_.-/".
func quote(s string) string {
	var b strings.Builder
	b.Grow(len(s) * 3)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isUnreserved(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(upperhex[c>>4])
		b.WriteByte(upperhex[c&15])
	}
	return b.String()
}

func isUnreserved(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	case c == '_', c == '.', c == '-', c == '/':
		return true
	}
	return false
}
