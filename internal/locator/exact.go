package locator

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/dgallion1/anchor/internal/doctree"
	"github.com/dgallion1/anchor/internal/normalize"
)

// exact scans each leaf's normalized text for the normalized needle.
// Verbatim survival of the text is the common case, so this runs first
// for long tokens and reports full confidence.
func (s *Searcher) exact(scope *doctree.Node, needle string) *Match {
	cur := NewCursor(scope)
	for leaf, ok := cur.Next(); ok; leaf, ok = cur.Next() {
		norm := normalize.Normalize(leaf.Text)
		idx := strings.Index(norm, needle)
		if idx < 0 {
			continue
		}
		seg, ok := segmentForNormMatch(leaf, norm, idx, needle)
		if !ok {
			continue
		}
		return &Match{Segments: []doctree.Segment{seg}, Confidence: 1.0, Strategy: StrategyExact}
	}
	return nil
}

// exactWordBoundary is the short-token variant: the needle must sit on
// word boundaries, and confidence is reduced because a token this short
// carries little identity of its own.
func (s *Searcher) exactWordBoundary(scope *doctree.Node, needle string) *Match {
	cur := NewCursor(scope)
	for leaf, ok := cur.Next(); ok; leaf, ok = cur.Next() {
		norm := normalize.Normalize(leaf.Text)
		for from := 0; from < len(norm); {
			idx := strings.Index(norm[from:], needle)
			if idx < 0 {
				break
			}
			idx += from
			if wordBounded(norm, idx, idx+len(needle)) {
				seg, ok := segmentForNormMatch(leaf, norm, idx, needle)
				if ok {
					return &Match{Segments: []doctree.Segment{seg}, Confidence: 0.85, Strategy: StrategyExact}
				}
			}
			from = idx + 1
		}
	}
	return nil
}

// segmentForNormMatch converts a byte match in normalized leaf text to
// an original-text segment.
func segmentForNormMatch(leaf *doctree.Node, norm string, byteIdx int, needle string) (doctree.Segment, bool) {
	runeStart := utf8.RuneCountInString(norm[:byteIdx])
	runeEnd := runeStart + utf8.RuneCountInString(needle)
	start, end, ok := normalize.MapRange(leaf.Text, runeStart, runeEnd)
	if !ok {
		return doctree.Segment{}, false
	}
	return doctree.Segment{Leaf: leaf, Start: start, End: end}, true
}

// wordBounded reports whether s[start:end] begins and ends on word
// boundaries.
func wordBounded(s string, start, end int) bool {
	if start > 0 {
		r, _ := utf8.DecodeLastRuneInString(s[:start])
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return false
		}
	}
	if end < len(s) {
		r, _ := utf8.DecodeRuneInString(s[end:])
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
