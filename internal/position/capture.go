package position

import (
	"log/slog"
	"math"
	"strings"

	"github.com/dgallion1/anchor/internal/anchorerr"
	"github.com/dgallion1/anchor/internal/doctree"
	"github.com/dgallion1/anchor/internal/locator"
	"github.com/dgallion1/anchor/internal/sched"
	"github.com/dgallion1/anchor/internal/segment"
)

// Manager captures and restores reading positions over one document.
type Manager struct {
	tree     *doctree.Tree
	layout   doctree.Layout
	display  Display
	searcher *locator.Searcher
	clock    sched.Clock
	log      *slog.Logger
	cfg      Config

	fontSettings FontSettings
	dispSettings DisplaySettings
}

// NewManager wires a position manager over a rendered tree.
func NewManager(tree *doctree.Tree, layout doctree.Layout, display Display, searcher *locator.Searcher, clock sched.Clock, log *slog.Logger, cfg Config) *Manager {
	return &Manager{
		tree:     tree,
		layout:   layout,
		display:  display,
		searcher: searcher,
		clock:    clock,
		log:      log,
		cfg:      cfg,
	}
}

// SetEnvironment records the typography and display settings folded
// into each snapshot's fingerprint.
func (m *Manager) SetEnvironment(font FontSettings, disp DisplaySettings) {
	m.fontSettings = font
	m.dispSettings = disp
}

// Capture snapshots the current reading position. When a selection
// anchor is supplied it wins; otherwise the anchor is the text leaf
// nearest a point slightly below the viewport top. The vertical center
// is deliberately avoided: it is unstable when a block is only
// partially visible.
func (m *Manager) Capture(selection *locator.Anchor) (*Snapshot, error) {
	vp := m.display.Viewport()
	var snap *Snapshot
	var err error
	m.tree.View(func() {
		snap, err = m.capture(vp, selection)
	})
	return snap, err
}

func (m *Manager) capture(vp Viewport, selection *locator.Anchor) (*Snapshot, error) {
	root := m.tree.Root()

	anchor := selection
	if anchor == nil {
		point := vp.ScrollY + 0.2*vp.Height
		leaf := m.nearestLeaf(root, point)
		if leaf == nil {
			return nil, anchorerr.New(anchorerr.TextNotFound, "document has no text leaves")
		}
		anchor = &locator.Anchor{Leaf: leaf, Offset: 0}
	}

	chIdx, chapter := chapterOf(root, anchor.Leaf)
	if chapter == nil {
		return nil, anchorerr.New(anchorerr.ChapterNotFound, "anchor leaf is outside every chapter")
	}
	off, ok := locator.OffsetOf(chapter, anchor.Leaf, anchor.Offset)
	if !ok {
		return nil, anchorerr.New(anchorerr.PositionOutOfBounds, "anchor offset is outside its chapter")
	}

	snap := &Snapshot{
		Primary:         locator.EncodeChapterOffset(chIdx, off),
		ChapterFraction: fractionOf(off, locator.ChapterTextLen(chapter)),
		TextContext:     contextWindow(flatText(chapter), off, m.cfg.ContextBefore, m.cfg.ContextAfter),
		ParagraphIndex:  -1,
		SentenceIndex:   -1,
		WordIndex:       -1,
		Viewport:        vp,
		FontSettings:    m.fontSettings,
		DisplaySettings: m.dispSettings,
		Timestamp:       m.clock.Now(),
		Strategy:        "capture",
		Confidence:      1.0,
	}
	snap.SettingsHash = SettingsHash(vp, m.fontSettings, m.dispSettings)

	if para, word, sent, ok := structuralIndices(chapter, anchor.Leaf, anchor.Offset); ok {
		snap.ParagraphIndex = para
		snap.WordIndex = word
		snap.SentenceIndex = sent
		snap.Backup = locator.EncodeChapterWord(chIdx, para, word)
	}

	m.log.Debug("position captured", "primary", snap.Primary, "backup", snap.Backup)
	return snap, nil
}

// nearestLeaf returns the text leaf whose rendered top is closest to
// the given document-space y coordinate.
func (m *Manager) nearestLeaf(root *doctree.Node, point float64) *doctree.Node {
	var best *doctree.Node
	bestDist := math.Inf(1)
	for _, leaf := range doctree.Leaves(root) {
		top, ok := m.layout.OffsetTop(leaf, 0)
		if !ok {
			continue
		}
		if d := math.Abs(top - point); d < bestDist {
			best = leaf
			bestDist = d
		}
	}
	return best
}

// chapterOf finds the chapter containing a leaf.
func chapterOf(root, leaf *doctree.Node) (int, *doctree.Node) {
	for i, ch := range doctree.Chapters(root) {
		if leaf.Attached(ch) {
			return i, ch
		}
	}
	return -1, nil
}

// structuralIndices computes the paragraph, word and sentence indices
// of an anchor within its chapter, matching the counting scheme the
// chapter-word locator resolves against.
func structuralIndices(chapter, leaf *doctree.Node, inLeaf int) (para, word, sent int, ok bool) {
	for pi, p := range doctree.Paragraphs(chapter) {
		if !leaf.Attached(p) {
			continue
		}
		words := 0
		for _, l := range doctree.Leaves(p) {
			if l == leaf {
				wi := segment.WordIndexAt(l.Text, inLeaf)
				if wi < 0 {
					return 0, 0, 0, false
				}
				word = words + wi
				if off, okOff := locator.OffsetOf(p, leaf, inLeaf); okOff {
					sent = segment.SentenceIndexAt(flatText(p), off)
				}
				return pi, word, sent, true
			}
			words += segment.CountWords(l.Text)
		}
	}
	return 0, 0, 0, false
}

// flatText joins a scope's leaves with single separators, mirroring
// how chapter character offsets are measured.
func flatText(scope *doctree.Node) string {
	var b strings.Builder
	for i, leaf := range doctree.Leaves(scope) {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(leaf.Text)
	}
	return b.String()
}

// contextWindow slices a symmetric rune window around a byte offset.
func contextWindow(text string, off, before, after int) string {
	if off < 0 {
		off = 0
	}
	if off > len(text) {
		off = len(text)
	}
	runes := []rune(text[:off])
	start := len(runes) - before
	if start < 0 {
		start = 0
	}
	head := string(runes[start:])

	tail := []rune(text[off:])
	if len(tail) > after {
		tail = tail[:after]
	}
	return head + string(tail)
}
