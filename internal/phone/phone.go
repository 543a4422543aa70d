// Package phone canonicalizes raw phone input into dispatch-ready
// E.164 digits (no '+' prefix).
package phone

import "strings"

// OnlyDigits strips everything that is not an ASCII digit.
func OnlyDigits(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Normalize returns E.164 digits for raw. A 10-digit national number is
// prefixed with defaultCountry; input already carrying defaultCountry is
// returned unchanged; any other length is assumed to already carry a
// foreign country code. Empty result means the input is invalid.
// Idempotent: Normalize(Normalize(x, c), c) == Normalize(x, c).
func Normalize(raw, defaultCountry string) string {
	digits := OnlyDigits(raw)
	if digits == "" {
		return ""
	}
	if strings.HasPrefix(digits, defaultCountry) {
		return digits
	}
	if len(digits) == 10 {
		return defaultCountry + digits
	}
	return digits
}

// Last10 returns the last 10 digits of raw, useful for cross-referencing
// identifiers stored in national format.
func Last10(raw string) string {
	d := OnlyDigits(raw)
	if len(d) <= 10 {
		return d
	}
	return d[len(d)-10:]
}
