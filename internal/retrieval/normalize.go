package retrieval

import (
	"strings"
	"unicode"

	"github.com/aristath/finassist/internal/textfold"
)

// DefaultKeyPrefix bounds the normalized query length used in cache keys.
const DefaultKeyPrefix = 100

// NormalizeQuery folds q to lower case without diacritics, strips
// punctuation and symbols, collapses whitespace and truncates the result to
// maxRunes runes.
func NormalizeQuery(q string, maxRunes int) string {
	if maxRunes <= 0 {
		maxRunes = DefaultKeyPrefix
	}

	var b strings.Builder
	b.Grow(len(q))
	pendingSpace := false
	n := 0
	for _, r := range textfold.Fold(q) {
		if unicode.IsPunct(r) || unicode.IsSymbol(r) {
			continue
		}
		if unicode.IsSpace(r) {
			pendingSpace = b.Len() > 0
			continue
		}
		if pendingSpace {
			if n+1 >= maxRunes {
				break
			}
			b.WriteByte(' ')
			n++
			pendingSpace = false
		}
		if n >= maxRunes {
			break
		}
		b.WriteRune(r)
		n++
	}
	return b.String()
}

// CacheKey builds the cache key for a user's query.
func CacheKey(userID, query string, maxRunes int) string {
	return userID + "\x00" + NormalizeQuery(query, maxRunes)
}
