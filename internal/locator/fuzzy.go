package locator

import (
	"strings"
	"unicode/utf8"

	"github.com/dgallion1/anchor/internal/doctree"
	"github.com/dgallion1/anchor/internal/normalize"
	"github.com/dgallion1/anchor/internal/segment"
)

// editTolerance is the per-word Levenshtein distance still counted as a
// (partial-credit) match.
const editTolerance = 2

// partialCredit is the score a near-miss word contributes relative to
// an equal word.
const partialCredit = 0.7

// fuzzy slides a window of the needle's word count over each leaf's
// words, scoring per-word equality with partial credit for small edit
// distances. The best window above the acceptance threshold wins;
// its similarity is the match confidence.
func (s *Searcher) fuzzy(scope *doctree.Node, needle string) *Match {
	needleWords := strings.Fields(needle)
	if len(needleWords) == 0 {
		return nil
	}

	var bestSeg doctree.Segment
	bestSim := 0.0

	cur := NewCursor(scope)
	for leaf, ok := cur.Next(); ok; leaf, ok = cur.Next() {
		norm := normalize.Normalize(leaf.Text)
		spans := segment.Words(norm)
		if len(spans) < len(needleWords) {
			continue
		}
		for w := 0; w+len(needleWords) <= len(spans); w++ {
			sim := windowSimilarity(needleWords, norm, spans[w:w+len(needleWords)])
			if sim <= s.FuzzyAcceptance || sim <= bestSim {
				continue
			}
			seg, segOK := segmentForNormSpan(leaf, norm, spans[w].Start, spans[w+len(needleWords)-1].End)
			if !segOK {
				continue
			}
			bestSeg = seg
			bestSim = sim
		}
	}
	if bestSim == 0 {
		return nil
	}
	return &Match{Segments: []doctree.Segment{bestSeg}, Confidence: bestSim, Strategy: StrategyFuzzy}
}

// windowSimilarity scores needle words against a same-length window of
// leaf word spans.
func windowSimilarity(needleWords []string, norm string, window []segment.Span) float64 {
	total := 0.0
	for j, w := range needleWords {
		lw := norm[window[j].Start:window[j].End]
		switch {
		case lw == w:
			total += 1
		case levenshtein(lw, w, editTolerance) <= editTolerance:
			total += partialCredit
		}
	}
	return total / float64(len(needleWords))
}

// wordSimilarity compares two texts word-by-word with the same scoring
// as the fuzzy window. Used by cross-node to scale confidence by how
// faithfully the covered span reproduces the needle.
func wordSimilarity(a, b string) float64 {
	aw := strings.Fields(normalize.Normalize(a))
	bw := strings.Fields(normalize.Normalize(b))
	if len(aw) == 0 || len(bw) == 0 {
		return 0
	}
	n := len(aw)
	if len(bw) < n {
		n = len(bw)
	}
	total := 0.0
	for i := 0; i < n; i++ {
		switch {
		case aw[i] == bw[i]:
			total += 1
		case levenshtein(aw[i], bw[i], editTolerance) <= editTolerance:
			total += partialCredit
		}
	}
	longer := len(aw)
	if len(bw) > longer {
		longer = len(bw)
	}
	return total / float64(longer)
}

// segmentForNormSpan maps a byte span of normalized leaf text back to
// an original-text segment.
func segmentForNormSpan(leaf *doctree.Node, norm string, byteStart, byteEnd int) (doctree.Segment, bool) {
	runeStart := utf8.RuneCountInString(norm[:byteStart])
	runeEnd := utf8.RuneCountInString(norm[:byteEnd])
	start, end, ok := normalize.MapRange(leaf.Text, runeStart, runeEnd)
	if !ok {
		return doctree.Segment{}, false
	}
	return doctree.Segment{Leaf: leaf, Start: start, End: end}, true
}

// levenshtein computes edit distance with early exit once the distance
// provably exceeds max; it then returns max+1.
func levenshtein(a, b string, max int) int {
	ar := []rune(a)
	br := []rune(b)
	if len(ar) > len(br) {
		ar, br = br, ar
	}
	if len(br)-len(ar) > max {
		return max + 1
	}
	prev := make([]int, len(ar)+1)
	curr := make([]int, len(ar)+1)
	for i := range prev {
		prev[i] = i
	}
	for j := 1; j <= len(br); j++ {
		curr[0] = j
		rowMin := curr[0]
		for i := 1; i <= len(ar); i++ {
			cost := 1
			if ar[i-1] == br[j-1] {
				cost = 0
			}
			d := prev[i-1] + cost
			if v := prev[i] + 1; v < d {
				d = v
			}
			if v := curr[i-1] + 1; v < d {
				d = v
			}
			curr[i] = d
			if d < rowMin {
				rowMin = d
			}
		}
		if rowMin > max {
			return max + 1
		}
		prev, curr = curr, prev
	}
	return prev[len(ar)]
}
