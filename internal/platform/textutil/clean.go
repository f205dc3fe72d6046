package textutil

import (
	"strings"
	"unicode"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/text/unicode/norm"
)

var strictPolicy = bluemonday.StrictPolicy()

// CleanText strips markup, drops control characters, normalises the input to
// NFC, and collapses surrounding whitespace. Used for customer supplied free
// text before it is persisted.
func CleanText(value string) string {
	if value == "" {
		return ""
	}
	stripped := strictPolicy.Sanitize(value)
	normalised := norm.NFC.String(stripped)

	cleaned := make([]rune, 0, len(normalised))
	for _, r := range normalised {
		if unicode.IsControl(r) && r != '\n' {
			continue
		}
		cleaned = append(cleaned, r)
	}
	return strings.TrimSpace(string(cleaned))
}

// CleanTextLimit applies CleanText and truncates to at most limit runes.
func CleanTextLimit(value string, limit int) string {
	cleaned := CleanText(value)
	if limit <= 0 {
		return cleaned
	}
	runes := []rune(cleaned)
	if len(runes) <= limit {
		return cleaned
	}
	return strings.TrimSpace(string(runes[:limit]))
}
