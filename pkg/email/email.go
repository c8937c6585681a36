// Package email derives display names from email addresses for accounts
// registered without profile details.
package email

import (
	"strings"
	"unicode"
)

const fallbackName = "User"

// DeriveNameFromEmail splits the local part of an address on common
// separators and returns a capitalized (first, last) name pair. Parts
// that cannot be derived fall back to "User".
func DeriveNameFromEmail(address string) (string, string) {
	local, _, _ := strings.Cut(address, "@")
	if local == "" {
		local = address
	}

	parts := strings.FieldsFunc(local, isSeparator)
	switch len(parts) {
	case 0:
		return fallbackName, fallbackName
	case 1:
		return capitalize(parts[0]), fallbackName
	default:
		return capitalize(parts[0]), capitalize(parts[len(parts)-1])
	}
}

func isSeparator(r rune) bool {
	return r == '.' || r == '_' || r == '-' || r == '+'
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	runes := []rune(s)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
