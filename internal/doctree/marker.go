package doctree

import (
	"errors"
	"fmt"
)

// MarkerTag is the element tag used for inserted annotation markers.
const MarkerTag = "mark"

// Marker attribute keys. The tree carries only the plain annotation id,
// never a reference back to the annotation object.
const (
	AttrAnnotationID = "data-annotation-id"
	AttrKind         = "data-kind"
	AttrColor        = "data-color"
)

var ErrInvalidRange = errors.New("doctree: invalid text range")

// Segment addresses a contiguous byte range [Start,End) inside one text
// leaf. Cross-node matches are a sequence of segments over consecutive
// leaves.
type Segment struct {
	Leaf  *Node
	Start int
	End   int
}

// WrapSegments wraps each segment's text in a marker element carrying
// attrs, splitting the affected leaves. It returns the inserted marker
// nodes in document order. On a bad range nothing is mutated and
// ErrInvalidRange is returned.
func (t *Tree) WrapSegments(segs []Segment, attrs map[string]string) ([]*Node, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, s := range segs {
		if s.Leaf == nil || s.Leaf.Type != TextNode || s.Leaf.Parent == nil {
			return nil, fmt.Errorf("%w: segment has no attached text leaf", ErrInvalidRange)
		}
		if s.Start < 0 || s.End > len(s.Leaf.Text) || s.Start >= s.End {
			return nil, fmt.Errorf("%w: [%d,%d) in leaf of %d bytes", ErrInvalidRange, s.Start, s.End, len(s.Leaf.Text))
		}
	}

	markers := make([]*Node, 0, len(segs))
	for _, s := range segs {
		parent := s.Leaf.Parent
		idx := s.Leaf.indexIn(parent)
		if idx < 0 {
			return markers, fmt.Errorf("%w: leaf detached mid-wrap", ErrInvalidRange)
		}

		marker := NewElement(MarkerTag)
		for k, v := range attrs {
			marker.SetAttr(k, v)
		}
		marker.Append(NewText(s.Leaf.Text[s.Start:s.End]))

		repl := make([]*Node, 0, 3)
		if s.Start > 0 {
			repl = append(repl, NewText(s.Leaf.Text[:s.Start]))
		}
		repl = append(repl, marker)
		if s.End < len(s.Leaf.Text) {
			repl = append(repl, NewText(s.Leaf.Text[s.End:]))
		}
		for _, r := range repl {
			r.Parent = parent
		}
		children := append([]*Node{}, parent.Children[:idx]...)
		children = append(children, repl...)
		children = append(children, parent.Children[idx+1:]...)
		parent.Children = children
		s.Leaf.Parent = nil
		markers = append(markers, marker)
	}
	t.bump()
	return markers, nil
}

// Unwrap removes a marker element, splicing its text children back into
// the parent and merging adjacent text leaves. Unwrapping an already
// detached marker is a no-op.
func (t *Tree) Unwrap(marker *Node) {
	t.mu.Lock()
	defer t.mu.Unlock()

	parent := marker.Parent
	if parent == nil {
		return
	}
	idx := marker.indexIn(parent)
	if idx < 0 {
		return
	}

	children := append([]*Node{}, parent.Children[:idx]...)
	for _, c := range marker.Children {
		c.Parent = parent
		children = append(children, c)
	}
	children = append(children, parent.Children[idx+1:]...)
	parent.Children = mergeTextSiblings(children)
	for _, c := range parent.Children {
		c.Parent = parent
	}
	marker.Parent = nil
	t.bump()
}

// mergeTextSiblings joins consecutive text nodes so unwrap restores the
// leaf structure wrap split apart.
func mergeTextSiblings(nodes []*Node) []*Node {
	var out []*Node
	for _, n := range nodes {
		if n.Type == TextNode && len(out) > 0 && out[len(out)-1].Type == TextNode {
			out[len(out)-1] = NewText(out[len(out)-1].Text + n.Text)
			continue
		}
		out = append(out, n)
	}
	return out
}

// IsMarker reports whether n is an annotation marker that still carries
// its id tag.
func IsMarker(n *Node) bool {
	return n != nil && n.Type == ElementNode && n.Tag == MarkerTag && n.Attr(AttrAnnotationID) != ""
}

// FindMarker returns the marker for an annotation id under root, or nil.
func FindMarker(root *Node, annotationID string) *Node {
	var found *Node
	root.Walk(func(n *Node) bool {
		if IsMarker(n) && n.Attr(AttrAnnotationID) == annotationID {
			found = n
			return false
		}
		return true
	})
	return found
}
