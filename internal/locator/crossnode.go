package locator

import (
	"strings"
	"unicode/utf8"

	"github.com/dgallion1/anchor/internal/doctree"
)

// crossNode finds text that inline markup has split across adjacent
// leaves. Windows of up to MaxCrossNodeLeaves consecutive leaves are
// flattened and searched; a hit must actually span more than one leaf,
// otherwise the exact strategy already had its chance. Two separator
// modes are tried: a space between leaves (the usual block split) and
// no separator (a word split mid-leaf by a formatting tag).
func (s *Searcher) crossNode(scope *doctree.Node, needle string) *Match {
	leaves := doctree.Leaves(scope)
	if len(leaves) < 2 {
		return nil
	}
	needleRunes := utf8.RuneCountInString(needle)

	for _, sep := range []string{" ", ""} {
		for from := 0; from < len(leaves)-1; from++ {
			to := from + s.MaxCrossNodeLeaves
			if to > len(leaves) {
				to = len(leaves)
			}
			ct := buildConcat(leaves, from, to, sep)
			for start := 0; start < len(ct.text); {
				idx := strings.Index(ct.text[start:], needle)
				if idx < 0 {
					break
				}
				idx += start
				start = idx + 1
				runeStart := ct.runeIndex(idx)
				runeEnd := runeStart + needleRunes
				first, last := ct.leafSpan(runeStart, runeEnd)
				if first < 0 || first == last {
					// Single-leaf hit; let exact handle it (and avoid
					// re-reporting the same span at lower confidence).
					continue
				}
				segs := ct.segmentsFor(runeStart, runeEnd)
				if segs == nil {
					continue
				}
				sim := wordSimilarity(needle, coveredText(segs))
				conf := 0.6 + 0.3*sim
				if conf >= 0.9 {
					conf = 0.89
				}
				return &Match{Segments: segs, Confidence: conf, Strategy: StrategyCrossNode}
			}
		}
	}
	return nil
}

// coveredText is the text a set of segments actually covers in the
// tree, joined the way a reader would see it.
func coveredText(segs []doctree.Segment) string {
	parts := make([]string, 0, len(segs))
	for _, seg := range segs {
		parts = append(parts, seg.Leaf.Text[seg.Start:seg.End])
	}
	return strings.Join(parts, " ")
}
