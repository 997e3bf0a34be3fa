package locator

import (
	"unicode/utf8"

	"github.com/dgallion1/anchor/internal/doctree"
	"github.com/dgallion1/anchor/internal/normalize"
)

// concatText is a run of consecutive leaves flattened to one normalized
// string, with a per-rune map back to (leaf, rune offset in that
// leaf's normalized text). Separator runes map to leaf index -1.
type concatText struct {
	text   string
	pos    []concatPos
	leaves []*doctree.Node
}

type concatPos struct {
	leaf    int
	runeIdx int
}

// buildConcat flattens leaves[from:to] joined by sep (either " " or ""
// — the empty separator catches words split mid-leaf by inline markup).
func buildConcat(leaves []*doctree.Node, from, to int, sep string) concatText {
	var ct concatText
	buf := make([]byte, 0, 256)
	for i := from; i < to; i++ {
		norm := normalize.Normalize(leaves[i].Text)
		if norm == "" {
			continue
		}
		if len(buf) > 0 && sep != "" {
			buf = append(buf, sep...)
			for range utf8.RuneCountInString(sep) {
				ct.pos = append(ct.pos, concatPos{leaf: -1})
			}
		}
		r := 0
		for range norm {
			ct.pos = append(ct.pos, concatPos{leaf: i, runeIdx: r})
			r++
		}
		buf = append(buf, norm...)
	}
	ct.text = string(buf)
	ct.leaves = leaves
	return ct
}

// segmentsFor maps a normalized rune range of the concatenation back to
// original-text segments, one per touched leaf.
func (ct *concatText) segmentsFor(runeStart, runeEnd int) []doctree.Segment {
	if runeStart < 0 || runeEnd > len(ct.pos) || runeStart >= runeEnd {
		return nil
	}
	type span struct{ lo, hi int }
	perLeaf := map[int]*span{}
	var order []int
	for i := runeStart; i < runeEnd; i++ {
		p := ct.pos[i]
		if p.leaf < 0 {
			continue
		}
		if s, ok := perLeaf[p.leaf]; ok {
			if p.runeIdx < s.lo {
				s.lo = p.runeIdx
			}
			if p.runeIdx > s.hi {
				s.hi = p.runeIdx
			}
		} else {
			perLeaf[p.leaf] = &span{lo: p.runeIdx, hi: p.runeIdx}
			order = append(order, p.leaf)
		}
	}
	var segs []doctree.Segment
	for _, li := range order {
		s := perLeaf[li]
		leaf := ct.leaves[li]
		start, end, ok := normalize.MapRange(leaf.Text, s.lo, s.hi+1)
		if !ok {
			return nil
		}
		segs = append(segs, doctree.Segment{Leaf: leaf, Start: start, End: end})
	}
	return segs
}

// leafSpan reports the first and last leaf index covered by a rune
// range, or (-1,-1) if none.
func (ct *concatText) leafSpan(runeStart, runeEnd int) (int, int) {
	first, last := -1, -1
	for i := runeStart; i < runeEnd && i < len(ct.pos); i++ {
		if ct.pos[i].leaf < 0 {
			continue
		}
		if first < 0 {
			first = ct.pos[i].leaf
		}
		last = ct.pos[i].leaf
	}
	return first, last
}

// runeIndex converts a byte offset in ct.text to a rune index.
func (ct *concatText) runeIndex(byteOff int) int {
	return utf8.RuneCountInString(ct.text[:byteOff])
}
