// Package slug builds URL-safe organization slugs.
package slug

import (
	"crypto/rand"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// SuffixLength is the number of random characters appended to a slug.
const SuffixLength = 6

const fallback = "organization"

// Generator produces a unique-ish slug for a name.
type Generator func(name string) string

// Make converts name to lowercase ASCII words joined by "-".
// Accents are stripped, "@" becomes "at" and all other punctuation is dropped.
func Make(name string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, name)
	if err != nil {
		folded = name
	}
	folded = strings.ToLower(strings.ReplaceAll(folded, "@", " at "))

	var b strings.Builder
	pendingSep := false
	for _, r := range folded {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			if pendingSep && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingSep = false
			b.WriteRune(r)
		case r == '-', r == '_', unicode.IsSpace(r):
			pendingSep = true
		}
		// everything else is dropped so "John's" becomes "johns"
	}

	if b.Len() == 0 {
		return fallback
	}
	return b.String()
}

// Suffix returns SuffixLength random lowercase alphanumeric characters.
func Suffix() string {
	return strings.ToLower(rand.Text()[:SuffixLength])
}

// New returns Make(name) followed by "-" and a random suffix.
func New(name string) string {
	return Make(name) + "-" + Suffix()
}
