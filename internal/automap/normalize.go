// Package automap matches CSV headers to schema columns by normalized name
// and picks the best-fitting schema among candidates.
package automap

import (
	"strings"
	"unicode"
)

// Normalize reduces a header or column name to its comparable form: all
// whitespace, underscores, and hyphens removed, everything lowercased.
// "Asset ID", "asset_id", and "ASSET-ID" all normalize to "assetid".
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsSpace(r) || r == '_' || r == '-' {
			continue
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

// slugKey derives a stable machine key from a raw header for ad-hoc columns.
// Letters and digits are kept lowercased, separators collapse to underscores,
// and anything else is dropped.
func slugKey(header string) string {
	var b strings.Builder
	prevSep := false
	for _, r := range strings.ToLower(strings.TrimSpace(header)) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			prevSep = false
		case r == ' ' || r == '-' || r == '_':
			if !prevSep && b.Len() > 0 {
				b.WriteRune('_')
				prevSep = true
			}
		}
	}
	key := strings.TrimSuffix(b.String(), "_")
	if key == "" {
		return "column"
	}
	return key
}
