// Package segment provides word and sentence segmentation over plain
// text. The locator's word-based strategies and the position manager's
// structural indices (paragraph/sentence/word) are built on it.
package segment

import (
	"strings"
	"unicode"
)

// Span is a half-open byte range [Start,End) within the segmented text.
type Span struct {
	Start int
	End   int
}

// Words returns the byte spans of whitespace-delimited words in s.
func Words(s string) []Span {
	var spans []Span
	start := -1
	for i, r := range s {
		if unicode.IsSpace(r) {
			if start >= 0 {
				spans = append(spans, Span{Start: start, End: i})
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		spans = append(spans, Span{Start: start, End: len(s)})
	}
	return spans
}

// WordTexts returns the words of s as strings.
func WordTexts(s string) []string {
	return strings.Fields(s)
}

// CountWords returns the number of whitespace-delimited words in s.
func CountWords(s string) int {
	return len(strings.Fields(s))
}

// Sentences returns byte spans of sentences in s. A sentence ends at
// '.', '!' or '?' followed by a space; the trailing remainder is its
// own sentence.
func Sentences(s string) []Span {
	var spans []Span
	start := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c == '.' || c == '!' || c == '?') && i+1 < len(s) && s[i+1] == ' ' {
			spans = append(spans, Span{Start: start, End: i + 1})
			start = i + 2
		}
	}
	if start < len(s) {
		if strings.TrimSpace(s[start:]) != "" {
			spans = append(spans, Span{Start: start, End: len(s)})
		}
	}
	return spans
}

// WordIndexAt returns the index of the word containing (or nearest
// before) byte offset off, or -1 for text without words.
func WordIndexAt(s string, off int) int {
	spans := Words(s)
	if len(spans) == 0 {
		return -1
	}
	for i, sp := range spans {
		if off < sp.End {
			return i
		}
	}
	return len(spans) - 1
}

// SentenceIndexAt returns the index of the sentence containing (or
// nearest before) byte offset off, or -1 for empty text.
func SentenceIndexAt(s string, off int) int {
	spans := Sentences(s)
	if len(spans) == 0 {
		return -1
	}
	for i, sp := range spans {
		if off < sp.End {
			return i
		}
	}
	return len(spans) - 1
}
