package slug

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// foldAccents decomposes accented characters and drops the combining
// marks, so "Café" folds to "Cafe" before slugging.
var foldAccents = transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Make builds a URL-safe slug from a title: accents folded, lowercased,
// words joined by single hyphens, everything else dropped.
// Returns an empty string when nothing slugable remains.
func Make(title string) string {
	if folded, _, err := transform.String(foldAccents, title); err == nil {
		title = folded
	}

	var b strings.Builder
	pending := false
	for _, r := range strings.ToLower(title) {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			if pending && b.Len() > 0 {
				b.WriteByte('-')
			}
			b.WriteRune(r)
			pending = false
		case r == '-' || r == '_' || unicode.IsSpace(r):
			pending = true
		}
	}
	return b.String()
}
