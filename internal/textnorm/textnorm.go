// Package textnorm folds free-form user and catalog text into comparable forms.
package textnorm

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	nonSlug     = regexp.MustCompile(`[^a-z0-9]+`)
	multiSpace  = regexp.MustCompile(`\s+`)
	leadingSeps = "-_/.,;:| \t\n'\""
)

// Fold removes diacritics and lowercases s ("Île-de-France" → "ile-de-france").
// A transformer chain is stateful, so one is built per call.
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(out)
}

// Slug converts a geography code to the catalog's canonical slug: leading
// separators stripped, diacritics folded, lowercased, and every run of
// whitespace or punctuation replaced by a single "-".
func Slug(s string) string {
	s = strings.TrimLeft(strings.TrimSpace(s), leadingSeps)
	s = Fold(s)
	s = nonSlug.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// Words folds s and collapses whitespace so keyword lookups can use plain
// substring matching.
func Words(s string) string {
	s = Fold(s)
	s = multiSpace.ReplaceAllString(s, " ")
	return " " + strings.TrimSpace(s) + " "
}

// ContainsAny reports whether the folded text contains any of the folded
// keywords. Keywords are expected to be pre-folded.
func ContainsAny(folded string, keywords []string) (string, bool) {
	for _, kw := range keywords {
		if strings.Contains(folded, kw) {
			return kw, true
		}
	}
	return "", false
}
