// Package libraryurl computes library slugs, padded ids and canonical URLs,
// and parses the canonical and legacy URL shapes.
package libraryurl

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var nonSlugRun = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify canonicalizes a title into a URL slug: NFKD-folded with combining
// marks dropped so accented letters keep their base letter, lowercased,
// non-alphanumeric runs collapsed to a single hyphen, no leading or trailing
// hyphen. Empty input yields "".
func Slugify(title string) string {
	fold := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)))
	s, _, err := transform.String(fold, title)
	if err != nil {
		s = norm.NFKD.String(title)
	}
	s = nonSlugRun.ReplaceAllString(strings.ToLower(s), "-")
	return strings.Trim(s, "-")
}

// LibrarySlug is the slug of a library: its slugified title, else its
// slugified storage identity, else its slugified id. The result is always
// URL-safe unless every input is empty of letters and digits, in which case
// the id is returned as is.
func LibrarySlug(title, identity, libraryID string) string {
	for _, s := range []string{title, identity, libraryID} {
		if slug := Slugify(s); slug != "" {
			return slug
		}
	}
	return libraryID
}
