package locator

import "github.com/dgallion1/anchor/internal/doctree"

// Cursor is a lazy, restartable, forward-only sequence of text-bearing
// leaves under a scope. Every search strategy walks the document
// through a Cursor; none of them mutate the tree.
type Cursor struct {
	scope *doctree.Node
	stack []*doctree.Node
}

// NewCursor positions a cursor at the start of scope.
func NewCursor(scope *doctree.Node) *Cursor {
	c := &Cursor{scope: scope}
	c.Reset()
	return c
}

// Reset restarts the cursor from the beginning of the scope.
func (c *Cursor) Reset() {
	c.stack = c.stack[:0]
	if c.scope != nil {
		c.stack = append(c.stack, c.scope)
	}
}

// Next returns the next text leaf in document order, or false when the
// scope is exhausted.
func (c *Cursor) Next() (*doctree.Node, bool) {
	for len(c.stack) > 0 {
		n := c.stack[len(c.stack)-1]
		c.stack = c.stack[:len(c.stack)-1]
		for i := len(n.Children) - 1; i >= 0; i-- {
			c.stack = append(c.stack, n.Children[i])
		}
		if n.IsTextLeaf() {
			return n, true
		}
	}
	return nil, false
}
