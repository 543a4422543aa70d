package dialog

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// stripDiacritics decomposes and drops combining marks, so "menú" and
// "menu" match the same command.
var stripDiacritics = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// normalizeInput case-folds and strips diacritics from inbound text
// before command matching. The original text is kept separately for
// names, emails and draft fragments.
func normalizeInput(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	out, _, err := transform.String(stripDiacritics, s)
	if err != nil {
		return s
	}
	return out
}

// emailPattern is the usual local@domain.tld shape with a TLD of at
// least two characters.
var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]{2,}$`)

func isValidEmail(s string) bool {
	return emailPattern.MatchString(strings.TrimSpace(s))
}
