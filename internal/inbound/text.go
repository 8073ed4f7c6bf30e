package inbound

import (
	"regexp"
	"strings"
)

var (
	angleAddrRe = regexp.MustCompile(`<([^>]+)>`)
	lineBreakRe = regexp.MustCompile(`(?i)<br\s*/?>|</p\s*>`)
	tagRe       = regexp.MustCompile(`<[^>]*>`)

	// decoded one after another, in this order
	entities = [][2]string{
		{"&nbsp;", " "},
		{"&amp;", "&"},
		{"&lt;", "<"},
		{"&gt;", ">"},
	}
)

// ExtractEmail pulls the address out of `Name <addr>`. Input without angle
// brackets is returned trimmed.
func ExtractEmail(raw string) string {
	if m := angleAddrRe.FindStringSubmatch(raw); m != nil {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(raw)
}

// BareAddress reduces a header-style address list to its first bare address.
func BareAddress(raw string) string {
	if strings.Contains(raw, "<") {
		return ExtractEmail(raw)
	}
	first, _, _ := strings.Cut(raw, ",")
	return strings.TrimSpace(first)
}

// HTMLToText is a lossy tag stripper, not a parser. Steps run in this order:
// line breaks and paragraph ends become newlines, every other tag is removed,
// four entities are decoded in turn, and the result is trimmed.
func HTMLToText(html string) string {
	s := lineBreakRe.ReplaceAllString(html, "\n")
	s = tagRe.ReplaceAllString(s, "")
	for _, e := range entities {
		s = strings.ReplaceAll(s, e[0], e[1])
	}
	return strings.TrimSpace(s)
}
