package locator

import (
	"strings"

	"github.com/dgallion1/anchor/internal/doctree"
	"github.com/dgallion1/anchor/internal/normalize"
	"github.com/dgallion1/anchor/internal/segment"
)

// partialMinCoverage is the word coverage that qualifies a window even
// without a long consecutive run.
const partialMinCoverage = 0.6

// partialMinRun is the shortest consecutive matched-word run that
// qualifies a window on its own.
const partialMinRun = 2

// partial tolerates missing or substituted words: the needle's words
// are aligned against each same-length window of leaf words, and a
// window qualifies on a consecutive matched run of at least two words
// or on sixty percent coverage. Confidence scales with coverage and
// stays below the fuzzy band.
func (s *Searcher) partial(scope *doctree.Node, needle string) *Match {
	needleWords := strings.Fields(needle)
	if len(needleWords) < partialMinRun {
		return nil
	}

	var bestSeg doctree.Segment
	bestCoverage := 0.0

	cur := NewCursor(scope)
	for leaf, ok := cur.Next(); ok; leaf, ok = cur.Next() {
		norm := normalize.Normalize(leaf.Text)
		spans := segment.Words(norm)
		if len(spans) < partialMinRun {
			continue
		}
		limit := len(spans) - len(needleWords)
		if limit < 0 {
			limit = 0
		}
		for w := 0; w <= limit; w++ {
			end := w + len(needleWords)
			if end > len(spans) {
				end = len(spans)
			}
			window := spans[w:end]

			matched := make([]bool, len(window))
			count := 0
			run, maxRun := 0, 0
			firstHit, lastHit := -1, -1
			for j := range window {
				lw := norm[window[j].Start:window[j].End]
				nw := needleWords[j]
				if lw == nw || levenshtein(lw, nw, editTolerance) <= editTolerance {
					matched[j] = true
					count++
					run++
					if run > maxRun {
						maxRun = run
					}
					if firstHit < 0 {
						firstHit = j
					}
					lastHit = j
				} else {
					run = 0
				}
			}
			if count == 0 {
				continue
			}
			coverage := float64(count) / float64(len(needleWords))
			if maxRun < partialMinRun && coverage < partialMinCoverage {
				continue
			}
			if coverage <= bestCoverage {
				continue
			}
			seg, segOK := segmentForNormSpan(leaf, norm, window[firstHit].Start, window[lastHit].End)
			if !segOK {
				continue
			}
			bestSeg = seg
			bestCoverage = coverage
		}
	}
	if bestCoverage == 0 {
		return nil
	}
	conf := 0.4 + 0.4*bestCoverage
	if conf > 0.79 {
		conf = 0.79
	}
	return &Match{Segments: []doctree.Segment{bestSeg}, Confidence: conf, Strategy: StrategyPartial}
}
