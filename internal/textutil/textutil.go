// Package textutil provides text cleanup helpers for scraped content.
package textutil

import (
	"regexp"
	"strings"
)

var whitespaceRe = regexp.MustCompile(`\s+`)

// Normalize cleans scraped text: full-width spaces become half-width,
// runs of whitespace collapse to one space, and surrounding whitespace
// is trimmed.
func Normalize(text string) string {
	if text == "" {
		return ""
	}
	text = strings.ReplaceAll(text, "　", " ")
	text = whitespaceRe.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}
