package lexical

import (
	"strings"
	"unicode"
)

// Tokenizer splits text into index and query terms.
type Tokenizer func(text string) []string

// DefaultTokenizer lower-cases the input and splits on every
// non-alphanumeric rune, so "Hello, World-2" yields
// ["hello", "world", "2"].
func DefaultTokenizer(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
