package plagiarism

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Normalize canonicalizes extracted text for storage and comparison.
// Compatibility forms are folded (ligatures, full-width digits), the text is
// lowercased, every rune that is not a letter, digit or whitespace is removed
// and whitespace runs collapse to a single space.
func Normalize(raw string) string {
	if raw == "" {
		return ""
	}

	folded := strings.ToLower(norm.NFKC.String(raw))

	var b strings.Builder
	b.Grow(len(folded))
	pendingSpace := false
	for _, r := range folded {
		switch {
		case unicode.IsSpace(r):
			pendingSpace = b.Len() > 0
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if pendingSpace {
				b.WriteByte(' ')
				pendingSpace = false
			}
			b.WriteRune(r)
		}
	}

	// Removing marks can leave sequences that compose differently
	return norm.NFC.String(b.String())
}
