// Package phone validates and normalizes guest phone numbers.
package phone

import (
	"regexp"
	"strings"
)

// DefaultCountryCode is prefixed to bare national numbers of 10 or 11 digits.
// Country cannot be inferred from digit count alone, so non-Brazilian numbers
// of that length are normalized incorrectly unless they already carry a "+".
const DefaultCountryCode = "55"

var acceptedShape = regexp.MustCompile(`^\+?[0-9]{8,15}$`)

// IsValid reports whether raw looks like a phone number: after dropping every
// character except digits and a single leading '+', it must be 8-15 digits.
func IsValid(raw string) bool {
	return acceptedShape.MatchString(clean(raw))
}

// Format normalizes raw to an international form. Input that already starts
// with '+' is returned unchanged; 10 or 11 digit numbers get the default
// country code; anything else just gets a '+' prefix.
func Format(raw string) string {
	if strings.HasPrefix(raw, "+") {
		return raw
	}
	digits := Digits(raw)
	if len(digits) == 10 || len(digits) == 11 {
		return "+" + DefaultCountryCode + digits
	}
	return "+" + digits
}

// Digits strips every non-digit character.
func Digits(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func clean(raw string) string {
	trimmed := strings.TrimSpace(raw)
	digits := Digits(trimmed)
	if strings.HasPrefix(trimmed, "+") {
		return "+" + digits
	}
	return digits
}
