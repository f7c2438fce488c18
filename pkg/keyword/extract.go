package keyword

import (
	"context"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Extractor turns free text into candidate search keywords, most relevant first.
type Extractor interface {
	Extract(ctx context.Context, text string) ([]string, error)
}

// ExtractorFunc adapts a plain function to Extractor.
type ExtractorFunc func(ctx context.Context, text string) ([]string, error)

// Extract calls f.
func (f ExtractorFunc) Extract(ctx context.Context, text string) ([]string, error) {
	return f(ctx, text)
}

// DefaultStopwords are English words never returned as keywords.
var DefaultStopwords = []string{
	"a", "an", "the", "and", "or", "but", "in", "on", "at", "to",
	"for", "of", "with", "by", "from", "as", "into", "onto", "over",
	"is", "are", "was", "were", "be", "been", "being", "am",
	"have", "has", "had", "do", "does", "did", "will", "would",
	"could", "should", "may", "might", "must", "shall",
	"this", "that", "these", "those", "there", "here",
	"it", "its", "i", "me", "we", "us", "our", "you", "your", "yours",
	"he", "him", "his", "she", "her", "they", "them", "their", "my",
	"how", "what", "when", "where", "why", "which", "who", "whom",
	"not", "no", "nor", "just", "about", "up", "out", "if", "so",
	"can", "all", "any", "each", "every", "more", "most", "also",
	"than", "then", "very", "too", "only", "own", "same", "such",
	"some", "other", "both", "few", "again", "once", "while",
	"get", "got", "let", "via", "per",
}

// Tokenizer is a local Extractor. It folds case and diacritics, splits on
// anything that is not a letter or digit, and drops stopwords, digit-only
// tokens and single characters. Duplicates keep their first position.
type Tokenizer struct {
	stopwords map[string]struct{}
}

// NewTokenizer creates a tokenizer with DefaultStopwords plus extra.
func NewTokenizer(extra ...string) *Tokenizer {
	sw := make(map[string]struct{}, len(DefaultStopwords)+len(extra))
	for _, w := range DefaultStopwords {
		sw[w] = struct{}{}
	}
	for _, w := range extra {
		sw[strings.ToLower(strings.TrimSpace(w))] = struct{}{}
	}
	return &Tokenizer{stopwords: sw}
}

// Extract implements Extractor. It never fails.
func (t *Tokenizer) Extract(_ context.Context, text string) ([]string, error) {
	return t.Tokens(text), nil
}

// Tokens returns the keywords of text in order of first appearance.
func (t *Tokenizer) Tokens(text string) []string {
	folded := fold(text)

	words := strings.FieldsFunc(folded, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	seen := make(map[string]struct{}, len(words))
	var tokens []string
	for _, w := range words {
		if len([]rune(w)) < 2 || isDigits(w) {
			continue
		}
		if _, ok := t.stopwords[w]; ok {
			continue
		}
		if _, ok := seen[w]; ok {
			continue
		}
		seen[w] = struct{}{}
		tokens = append(tokens, w)
	}
	return tokens
}

func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC, cases.Lower(language.English))
	out, _, err := transform.String(t, s)
	if err != nil {
		return strings.ToLower(s)
	}
	return out
}

func isDigits(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
