package index

import (
	"strings"
	"unicode"
)

// tokenize lower-cases text, splits on non-alphanumeric boundaries, drops
// words shorter than minWordLength and words in the stop-word set, and
// returns the distinct surviving tokens in first-seen order. maxWords <= 0
// means unlimited.
func tokenize(text string, minWordLength int, stopwords map[string]struct{}, maxWords int) []string {
	text = strings.ToLower(text)
	words := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	seen := make(map[string]struct{}, len(words))
	tokens := make([]string, 0, len(words))
	for _, word := range words {
		if len(word) < minWordLength {
			continue
		}
		if _, isStop := stopwords[word]; isStop {
			continue
		}
		if _, dup := seen[word]; dup {
			continue
		}
		if maxWords > 0 && len(tokens) >= maxWords {
			break
		}
		seen[word] = struct{}{}
		tokens = append(tokens, word)
	}
	return tokens
}

func stopwordSet(words []string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[strings.ToLower(w)] = struct{}{}
	}
	return set
}
