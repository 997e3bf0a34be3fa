package locator

import (
	"strings"
	"unicode/utf8"

	"github.com/dgallion1/anchor/internal/doctree"
	"github.com/dgallion1/anchor/internal/normalize"
)

// contextual disambiguates an occurrence of the needle by the words
// recorded around it: an occurrence only counts if enough of the
// context words appear within a symmetric window, with word-boundary
// hits weighted double over bare substring hits.
func (s *Searcher) contextual(scope *doctree.Node, needle, contextText string) *Match {
	ctxWords := strings.Fields(normalize.Normalize(contextText))
	if len(ctxWords) == 0 {
		return nil
	}
	if len(ctxWords) > s.ContextMaxWords {
		ctxWords = ctxWords[:s.ContextMaxWords]
	}

	leaves := doctree.Leaves(scope)
	if len(leaves) == 0 {
		return nil
	}
	ct := buildConcat(leaves, 0, len(leaves), " ")
	needleRunes := utf8.RuneCountInString(needle)
	runes := []rune(ct.text)

	for from := 0; from < len(ct.text); {
		idx := strings.Index(ct.text[from:], needle)
		if idx < 0 {
			break
		}
		idx += from
		from = idx + 1

		runeStart := ct.runeIndex(idx)
		runeEnd := runeStart + needleRunes

		lo := runeStart - s.ContextWindow
		if lo < 0 {
			lo = 0
		}
		hi := runeEnd + s.ContextWindow
		if hi > len(runes) {
			hi = len(runes)
		}
		window := string(runes[lo:hi])

		score := 0
		for _, w := range ctxWords {
			switch {
			case containsWord(window, w):
				score += 2
			case strings.Contains(window, w):
				score++
			}
		}
		frac := float64(score) / float64(2*len(ctxWords))
		if frac < s.ContextMinFraction {
			continue
		}
		segs := ct.segmentsFor(runeStart, runeEnd)
		if segs == nil {
			continue
		}
		return &Match{Segments: segs, Confidence: 0.7, Strategy: StrategyContext, ContextUsed: true}
	}
	return nil
}

// containsWord reports whether w occurs in s on word boundaries.
func containsWord(s, w string) bool {
	for from := 0; from < len(s); {
		idx := strings.Index(s[from:], w)
		if idx < 0 {
			return false
		}
		idx += from
		if wordBounded(s, idx, idx+len(w)) {
			return true
		}
		from = idx + 1
	}
	return false
}
