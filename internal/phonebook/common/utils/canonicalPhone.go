package utils

import "strings"

// CanonicalPhone returns a phone number in the form used for storage keys and lookups:
// surrounding whitespace removed, everything else preserved exactly as entered.
// Numbers are opaque identifiers here, so "555-1234" and "5551234" are distinct.
func CanonicalPhone(phone string) string {
	return strings.TrimSpace(phone)
}
