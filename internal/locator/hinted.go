package locator

import (
	"math"
	"strings"

	"github.com/dgallion1/anchor/internal/doctree"
	"github.com/dgallion1/anchor/internal/normalize"
)

// hinted decodes the locator hint, resolves it to an anchor leaf and
// searches a bounded radius of leaves around it. All occurrences in the
// radius are collected and scored by distance from the anchor, with a
// slight bonus for longer needles; the best one wins. With a Layout
// present, distance is rendered vertical distance; otherwise it falls
// back to leaf-index distance.
func (s *Searcher) hinted(scope *doctree.Node, needle, hint string) *Match {
	d := Decode(hint)
	if d == nil {
		return nil
	}
	anchor, ok := ResolveDescriptor(s.Root, d)
	if !ok {
		return nil
	}

	leaves := doctree.Leaves(scope)
	anchorIdx := -1
	for i, l := range leaves {
		if l == anchor.Leaf {
			anchorIdx = i
			break
		}
	}
	if anchorIdx < 0 {
		// Hint resolved outside the search scope.
		return nil
	}

	lo := anchorIdx - s.HintRadius
	if lo < 0 {
		lo = 0
	}
	hi := anchorIdx + s.HintRadius
	if hi > len(leaves)-1 {
		hi = len(leaves) - 1
	}

	// With geometry available, distances are measured in rendered
	// pixels and normalized by the window's vertical span so they stay
	// on hintScore's 0..radius scale.
	geom := s.hintGeometry(anchor, leaves, lo, hi)

	type candidate struct {
		seg  doctree.Segment
		dist float64
	}
	var best *candidate
	bestScore := 0.0

	for i := lo; i <= hi; i++ {
		leaf := leaves[i]
		norm := normalize.Normalize(leaf.Text)
		for from := 0; from < len(norm); {
			idx := strings.Index(norm[from:], needle)
			if idx < 0 {
				break
			}
			idx += from
			seg, segOK := segmentForNormMatch(leaf, norm, idx, needle)
			if !segOK {
				break
			}
			dist, ok := geom.dist(leaf, seg.Start)
			if !ok {
				dist = math.Abs(float64(i - anchorIdx))
			}
			if leaf == anchor.Leaf {
				// Same-leaf tiebreak: nearer byte offsets win.
				dist += math.Abs(float64(seg.Start-anchor.Offset)) / 10000
			}
			score := s.hintScore(dist, len(needle))
			if best == nil || score > bestScore || (score == bestScore && dist < best.dist) {
				best = &candidate{seg: seg, dist: dist}
				bestScore = score
			}
			from = idx + len(needle)
		}
	}
	if best == nil {
		return nil
	}
	return &Match{Segments: []doctree.Segment{best.seg}, Confidence: bestScore, Strategy: StrategyLocationHinted}
}

// hintGeometry precomputes the anchor's rendered position and the
// search window's vertical span, so occurrence distances can be
// normalized onto hintScore's 0..radius scale.
type hintGeometry struct {
	layout  doctree.Layout
	anchorY float64
	scale   float64
}

func (s *Searcher) hintGeometry(anchor Anchor, leaves []*doctree.Node, lo, hi int) hintGeometry {
	g := hintGeometry{}
	if s.Layout == nil {
		return g
	}
	anchorY, ok := s.Layout.OffsetTop(anchor.Leaf, anchor.Offset)
	if !ok {
		return g
	}
	span := 0.0
	if loY, okLo := s.Layout.OffsetTop(leaves[lo], 0); okLo {
		if hiY, okHi := s.Layout.OffsetTop(leaves[hi], len(leaves[hi].Text)); okHi {
			span = math.Max(anchorY-loY, hiY-anchorY)
		}
	}
	if span <= 0 {
		span = 1
	}
	radius := float64(s.HintRadius)
	if radius <= 0 {
		radius = 1
	}
	g.layout = s.Layout
	g.anchorY = anchorY
	g.scale = radius / span
	return g
}

// dist returns the occurrence's distance from the anchor in radius
// units, or false when no geometry is available for the leaf.
func (g hintGeometry) dist(leaf *doctree.Node, offset int) (float64, bool) {
	if g.layout == nil {
		return 0, false
	}
	y, ok := g.layout.OffsetTop(leaf, offset)
	if !ok {
		return 0, false
	}
	return math.Abs(y-g.anchorY) * g.scale, true
}

// hintScore maps anchor distance and needle length into the 0.85–0.95
// confidence band.
func (s *Searcher) hintScore(dist float64, needleLen int) float64 {
	radius := float64(s.HintRadius)
	if radius <= 0 {
		radius = 1
	}
	proximity := 1 - math.Min(1, dist/radius)
	lengthBonus := math.Min(0.02, float64(needleLen)/5000)
	score := 0.85 + 0.08*proximity + lengthBonus
	if score > 0.95 {
		score = 0.95
	}
	return score
}
