package locator

import (
	"github.com/dgallion1/anchor/internal/doctree"
	"github.com/dgallion1/anchor/internal/segment"
)

// Anchor is a resolved position: a text leaf plus a byte offset into
// its original text.
type Anchor struct {
	Leaf   *doctree.Node
	Offset int
}

// ChapterTextLen returns the length of the chapter's flattened text:
// leaves joined by a single separator character. Chapter character
// offsets (KindChapterOffset, KindChapterRelative) are measured against
// this flattening.
func ChapterTextLen(chapter *doctree.Node) int {
	total := 0
	for i, leaf := range doctree.Leaves(chapter) {
		if i > 0 {
			total++
		}
		total += len(leaf.Text)
	}
	return total
}

// ResolveOffset maps a chapter character offset to a leaf + byte
// offset. Offsets past the end clamp to the last leaf.
func ResolveOffset(chapter *doctree.Node, off int) (Anchor, bool) {
	if chapter == nil || off < 0 {
		return Anchor{}, false
	}
	leaves := doctree.Leaves(chapter)
	if len(leaves) == 0 {
		return Anchor{}, false
	}
	pos := 0
	for i, leaf := range leaves {
		if i > 0 {
			pos++
		}
		if off < pos+len(leaf.Text) {
			inLeaf := off - pos
			if inLeaf < 0 {
				inLeaf = 0
			}
			return Anchor{Leaf: leaf, Offset: inLeaf}, true
		}
		pos += len(leaf.Text)
	}
	last := leaves[len(leaves)-1]
	return Anchor{Leaf: last, Offset: len(last.Text)}, true
}

// OffsetOf is the inverse of ResolveOffset: the chapter character
// offset of a byte offset within one of its leaves.
func OffsetOf(chapter, leaf *doctree.Node, inLeaf int) (int, bool) {
	pos := 0
	for i, l := range doctree.Leaves(chapter) {
		if i > 0 {
			pos++
		}
		if l == leaf {
			if inLeaf < 0 || inLeaf > len(l.Text) {
				return 0, false
			}
			return pos + inLeaf, true
		}
		pos += len(l.Text)
	}
	return 0, false
}

// ResolveWord maps a paragraph index + word index within a chapter to a
// leaf + byte offset at the start of that word.
func ResolveWord(chapter *doctree.Node, para, word int) (Anchor, bool) {
	if chapter == nil || para < 0 || word < 0 {
		return Anchor{}, false
	}
	paras := doctree.Paragraphs(chapter)
	if para >= len(paras) {
		return Anchor{}, false
	}
	seen := 0
	for _, leaf := range doctree.Leaves(paras[para]) {
		spans := segment.Words(leaf.Text)
		if word < seen+len(spans) {
			return Anchor{Leaf: leaf, Offset: spans[word-seen].Start}, true
		}
		seen += len(spans)
	}
	return Anchor{}, false
}

// ResolveDescriptor resolves a decoded locator against the document
// root. Scroll-offset locators carry no tree position and resolve
// false; they are handled by the position restorer against the
// viewport instead.
func ResolveDescriptor(root *doctree.Node, d *Descriptor) (Anchor, bool) {
	if d == nil {
		return Anchor{}, false
	}
	switch d.Kind {
	case KindChapterOffset:
		return ResolveOffset(doctree.Chapter(root, d.Chapter), d.Offset)
	case KindChapterWord:
		return ResolveWord(doctree.Chapter(root, d.Chapter), d.Paragraph, d.Word)
	case KindChapterRelative:
		ch := doctree.Chapter(root, d.Chapter)
		if ch == nil {
			return Anchor{}, false
		}
		return ResolveOffset(ch, int(d.Fraction*float64(ChapterTextLen(ch))))
	}
	return Anchor{}, false
}
