// Package sanitize turns free-text tool names into canonical, URL-safe
// identifiers. All functions are pure and never return an error; callers
// must reject empty names and invalid slugs before any paid operation.
package sanitize

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultMaxNameLength bounds sanitized tool names.
const DefaultMaxNameLength = 100

var (
	whitespaceRe  = regexp.MustCompile(`\s+`)
	nonSlugRe     = regexp.MustCompile(`[^a-z0-9-]`)
	repeatDashRe  = regexp.MustCompile(`-{2,}`)
	validSlugRe   = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*$`)
	minSlugLength = 2
)

// ToolName strips control characters, collapses whitespace, trims, and
// truncates to maxLength (DefaultMaxNameLength when maxLength <= 0).
func ToolName(raw string, maxLength int) string {
	if maxLength <= 0 {
		maxLength = DefaultMaxNameLength
	}

	var b strings.Builder
	for _, r := range raw {
		if unicode.IsControl(r) {
			continue
		}
		b.WriteRune(r)
	}

	name := whitespaceRe.ReplaceAllString(b.String(), " ")
	name = strings.TrimSpace(name)

	if len(name) > maxLength {
		// Back off to a rune boundary so the cut never splits a
		// multi-byte character.
		cut := maxLength
		for cut > 0 && !utf8.RuneStart(name[cut]) {
			cut--
		}
		name = strings.TrimSpace(name[:cut])
	}
	return name
}

// Slug lower-cases, collapses whitespace to "-", strips everything outside
// [a-z0-9-], trims leading and trailing dashes, and collapses repeated
// dashes. May return the empty string.
func Slug(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = whitespaceRe.ReplaceAllString(s, "-")
	s = nonSlugRe.ReplaceAllString(s, "")
	s = repeatDashRe.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	return s
}

// ValidSlug reports whether slug is at least two characters long, starts
// with a lower-case letter or digit, and contains only [a-z0-9-].
func ValidSlug(slug string) bool {
	return len(slug) >= minSlugLength && validSlugRe.MatchString(slug)
}
