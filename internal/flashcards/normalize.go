package flashcards

import (
	"strings"
	"unicode"
)

// allowedPunctuation is the only punctuation that survives Normalize.
const allowedPunctuation = ".,!?;:"

// Normalize strips every rune that is not a letter, number, underscore,
// whitespace or allowed punctuation, then collapses whitespace runs into a
// single space and trims the result.
//
// Stripping happens before collapsing so that removing a symbol between two
// spaces cannot leave a double space behind; this keeps Normalize idempotent.
func Normalize(text string) string {
	stripped := strings.Map(func(r rune) rune {
		switch {
		case unicode.IsLetter(r), unicode.IsNumber(r), r == '_':
			return r
		case unicode.IsSpace(r):
			return r
		case strings.ContainsRune(allowedPunctuation, r):
			return r
		default:
			return -1
		}
	}, text)

	return strings.Join(strings.Fields(stripped), " ")
}
