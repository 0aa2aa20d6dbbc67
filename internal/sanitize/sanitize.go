// Package sanitize normalizes and validates free-text auth inputs before
// they reach validation or storage.
package sanitize

import (
	"regexp"
	"strings"
)

// unsafeChars are stripped from free-text inputs before storage. They are
// the characters considered unsafe for downstream rendering.
const unsafeChars = `<>"'%;()&+`

var (
	usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)
	emailRegex    = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
)

// Clean strips unsafe characters and surrounding whitespace.
func Clean(value string) string {
	var b strings.Builder
	b.Grow(len(value))
	for _, ch := range value {
		if strings.ContainsRune(unsafeChars, ch) {
			continue
		}
		b.WriteRune(ch)
	}
	return strings.TrimSpace(b.String())
}

// CleanEmail strips unsafe characters, trims, and lowercases an email
// address or login identifier.
func CleanEmail(value string) string {
	return strings.ToLower(Clean(value))
}

// ValidUsername reports whether the (already cleaned) username is at least
// 3 characters of letters, digits and underscores.
func ValidUsername(username string) bool {
	return len(username) >= 3 && usernameRegex.MatchString(username)
}

// ValidEmail reports whether the (already cleaned) value matches a basic
// email-address pattern.
func ValidEmail(email string) bool {
	return emailRegex.MatchString(email)
}
