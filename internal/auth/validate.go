package auth

import (
	"regexp"
	"strings"
)

var (
	emailPattern    = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{3,20}$`)
)

// NormalizeEmail lowercases and trims an email address before validation or
// comparison. All stored emails are normalized.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidEmail reports whether email has a plausible mailbox format.
func ValidEmail(email string) bool {
	return email != "" && emailPattern.MatchString(email)
}

// ValidUsername reports whether username is 3-20 characters of letters,
// digits, underscore or hyphen.
func ValidUsername(username string) bool {
	return username != "" && usernamePattern.MatchString(username)
}

// ValidIdentity reports whether the opaque caller principal is usable as a
// primary key. The transport assigns it; we only bound its size.
func ValidIdentity(identity string) bool {
	return identity != "" && len(identity) <= 128
}
