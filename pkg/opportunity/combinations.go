package opportunity

import (
	"slices"
	"strings"
	"unicode/utf8"
)

// DefaultCombinationLength is the phrase length cap callers use when none is
// given.
const DefaultCombinationLength = 100

// KeywordCombinations joins every contiguous run of keywords into a phrase,
// extending each run while the phrase stays within maxLen characters.
// Phrases are unique and ordered by descending word count; equal counts keep
// the order they were found in.
func KeywordCombinations(keywords []string, maxLen int) []string {
	var words []string
	for _, k := range keywords {
		if k = strings.TrimSpace(k); k != "" {
			words = append(words, k)
		}
	}

	seen := make(map[string]struct{})
	type phrase struct {
		text  string
		words int
	}
	var out []phrase

	for i := range words {
		current := ""
		for j := i; j < len(words); j++ {
			next := words[j]
			if current != "" {
				next = current + " " + words[j]
			}
			if utf8.RuneCountInString(next) > maxLen {
				break
			}
			current = next
			if _, ok := seen[current]; ok {
				continue
			}
			seen[current] = struct{}{}
			out = append(out, phrase{text: current, words: len(strings.Fields(current))})
		}
	}

	slices.SortStableFunc(out, func(a, b phrase) int { return b.words - a.words })

	result := make([]string, len(out))
	for i, p := range out {
		result[i] = p.text
	}
	return result
}
