package doctree

import "sync"

// Layout maps leaves to on-screen geometry. The engine only needs
// vertical positions: distance scoring for location-hinted search and
// targets for scroll restoration. Rendering technology stays outside
// the core; any renderer that can answer these two questions can drive
// it.
type Layout interface {
	// OffsetTop returns the y coordinate of the given byte offset
	// within a text leaf, or false if the leaf is not laid out.
	OffsetTop(leaf *Node, offset int) (float64, bool)
	// Height returns the total laid-out document height.
	Height() float64
}

// FlowLayout is a deterministic character-flow layout: every leaf is
// reflowed at CharsPerLine monospace characters per line, block
// elements are separated by BlockGap. It stands in for a real renderer
// in the service and in tests; positions are stable for a given
// (tree, font) pair, which is all the engine relies on.
type FlowLayout struct {
	Root         *Node
	CharsPerLine int
	LineHeight   float64
	BlockGap     float64

	mu     sync.RWMutex
	tops   map[*Node]float64
	height float64
}

// NewFlowLayout lays out the tree under root.
func NewFlowLayout(root *Node, charsPerLine int, lineHeight, blockGap float64) *FlowLayout {
	if charsPerLine <= 0 {
		charsPerLine = 80
	}
	if lineHeight <= 0 {
		lineHeight = 20
	}
	l := &FlowLayout{
		Root:         root,
		CharsPerLine: charsPerLine,
		LineHeight:   lineHeight,
		BlockGap:     blockGap,
		tops:         make(map[*Node]float64),
	}
	l.Reflow()
	return l
}

// Reflow recomputes leaf positions; call after structural mutations or
// font changes. As a tree observer it runs under the tree's write
// lock; the layout's own lock keeps OffsetTop/Height readers out
// while the maps are rebuilt.
func (l *FlowLayout) Reflow() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.tops = make(map[*Node]float64)
	y := 0.0
	var walk func(n *Node)
	walk = func(n *Node) {
		if n.IsTextLeaf() {
			l.tops[n] = y
			lines := (len(n.Text) + l.CharsPerLine - 1) / l.CharsPerLine
			if lines < 1 {
				lines = 1
			}
			y += float64(lines) * l.LineHeight
			return
		}
		isBlock := n.Type == ElementNode && blockTag(n.Tag)
		for _, c := range n.Children {
			walk(c)
		}
		if isBlock {
			y += l.BlockGap
		}
	}
	walk(l.Root)
	l.height = y
}

func (l *FlowLayout) OffsetTop(leaf *Node, offset int) (float64, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	top, ok := l.tops[leaf]
	if !ok {
		return 0, false
	}
	if offset < 0 {
		offset = 0
	}
	line := offset / l.CharsPerLine
	return top + float64(line)*l.LineHeight, true
}

func (l *FlowLayout) Height() float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.height
}

func blockTag(tag string) bool {
	switch tag {
	case "p", "h1", "h2", "h3", "h4", "h5", "h6", "li", "blockquote", "section":
		return true
	}
	return false
}
