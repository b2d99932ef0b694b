package textutil

import "strings"

const unknownToken = "unknown"

// SanitizeToken lowercases value and replaces every rune outside [a-z0-9_-]
// with an underscore. Leading and trailing separators are dropped; an empty
// result becomes "unknown".
func SanitizeToken(value string) string {
	mapped := strings.Map(func(r rune) rune {
		switch {
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, strings.TrimSpace(value))
	if out := strings.Trim(mapped, "_-"); out != "" {
		return out
	}
	return unknownToken
}

// IsToken reports whether value is already a sanitized token.
func IsToken(value string) bool {
	return value != "" && SanitizeToken(value) == value
}
