package planner

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/aristath/finassist/internal/textfold"
)

// wholeWordMax is the longest keyword matched as a whole word. Longer
// keywords are stems matched by prefix, so "importe" hits "import", while
// "add" does not hit "address".
const wholeWordMax = 3

func fold(s string) string {
	return textfold.Fold(s)
}

// words splits folded text into letter/digit runs.
func words(s string) []string {
	return strings.FieldsFunc(fold(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// matchesAny reports whether any word matches one of the keywords.
func matchesAny(ws []string, keywords []string) bool {
	for _, w := range ws {
		for _, kw := range keywords {
			if utf8.RuneCountInString(kw) <= wholeWordMax {
				if w == kw {
					return true
				}
				continue
			}
			if strings.HasPrefix(w, kw) {
				return true
			}
		}
	}
	return false
}
