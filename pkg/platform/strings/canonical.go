// Package strings provides string canonicalization utilities.
package strings

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Canonical folds s to a comparison key: NFKC, lowercased, with runs of
// whitespace collapsed to one space and format characters dropped.
//
// Example:
//
//	Canonical("  Ｐython​  3 ")
//	// Returns: "python 3"
func Canonical(s string) string {
	s = norm.NFKC.String(s)
	var b strings.Builder
	b.Grow(len(s))
	space := false
	for _, r := range s {
		switch {
		case unicode.Is(unicode.Cf, r):
			continue
		case unicode.IsSpace(r):
			space = b.Len() > 0
			continue
		}
		if space {
			b.WriteByte(' ')
			space = false
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

// DedupeCanonical canonicalizes each element and drops empties and
// duplicates. Order of first occurrence is preserved.
//
// Example:
//
//	DedupeCanonical([]string{"  Go ", "go", "", "Rust"})
//	// Returns: []string{"go", "rust"}
func DedupeCanonical(values []string) []string {
	if len(values) == 0 {
		return values
	}

	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))

	for _, v := range values {
		c := Canonical(v)
		if c == "" {
			continue
		}
		if _, ok := seen[c]; !ok {
			seen[c] = struct{}{}
			result = append(result, c)
		}
	}

	return result
}
