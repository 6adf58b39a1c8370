// Package tokenize normalizes extracted text into word tokens and
// groups them into the ordered, bounded chunks the embedding stage
// consumes.
package tokenize

import (
	"strings"
	"unicode"
)

// Normalize lowercases text and strips everything except letters
// (accented included), digits, whitespace, hyphens and apostrophes.
func Normalize(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range strings.ToLower(text) {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), unicode.IsSpace(r):
			b.WriteRune(r)
		case r == '-' || r == '\'':
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Words normalizes text and splits it into word tokens, in input order.
func Words(text string) []string {
	return strings.Fields(Normalize(text))
}

// Chunks groups tokens into consecutive chunks of at most max tokens,
// preserving order. The last chunk may be shorter.
func Chunks(tokens []string, max int) [][]string {
	if max <= 0 || len(tokens) == 0 {
		return nil
	}
	chunks := make([][]string, 0, (len(tokens)+max-1)/max)
	for start := 0; start < len(tokens); start += max {
		end := start + max
		if end > len(tokens) {
			end = len(tokens)
		}
		chunks = append(chunks, tokens[start:end])
	}
	return chunks
}
