// Package doctree holds the in-memory document tree the anchoring engine
// searches and annotates. The tree is the rendered form of a book: one
// "section" element per chapter, block elements (p, h1..h6) under that,
// and text leaves at the bottom. Inline elements (em, strong, a, mark)
// may split what reads as one run of text across several leaves.
package doctree

import (
	"strings"
	"sync"
)

// NodeType discriminates element nodes from text leaves.
type NodeType int

const (
	ElementNode NodeType = iota
	TextNode
)

// Node is a single node in the document tree. Text is only set on
// TextNode leaves; Tag and Attrs only on ElementNode.
type Node struct {
	Type     NodeType
	Tag      string
	Text     string
	Attrs    map[string]string
	Parent   *Node
	Children []*Node
}

// NewElement creates an element node.
func NewElement(tag string) *Node {
	return &Node{Type: ElementNode, Tag: tag}
}

// NewText creates a text leaf.
func NewText(text string) *Node {
	return &Node{Type: TextNode, Text: text}
}

// Attr returns the named attribute, or "".
func (n *Node) Attr(key string) string {
	if n.Attrs == nil {
		return ""
	}
	return n.Attrs[key]
}

// SetAttr sets an attribute on an element node.
func (n *Node) SetAttr(key, value string) {
	if n.Attrs == nil {
		n.Attrs = make(map[string]string)
	}
	n.Attrs[key] = value
}

// Append adds child to the end of n's children.
func (n *Node) Append(child *Node) {
	child.Parent = n
	n.Children = append(n.Children, child)
}

// IsTextLeaf reports whether n directly bears readable text.
func (n *Node) IsTextLeaf() bool {
	return n.Type == TextNode && strings.TrimSpace(n.Text) != ""
}

// Walk visits n and its descendants in document order. Return false
// from fn to stop the walk.
func (n *Node) Walk(fn func(*Node) bool) bool {
	if !fn(n) {
		return false
	}
	for _, c := range n.Children {
		if !c.Walk(fn) {
			return false
		}
	}
	return true
}

// TextContent concatenates all text leaves under n.
func (n *Node) TextContent() string {
	var b strings.Builder
	n.Walk(func(c *Node) bool {
		if c.Type == TextNode {
			if b.Len() > 0 && c.Text != "" {
				b.WriteString(" ")
			}
			b.WriteString(c.Text)
		}
		return true
	})
	return b.String()
}

// Attached reports whether n is still reachable from root.
func (n *Node) Attached(root *Node) bool {
	for p := n; p != nil; p = p.Parent {
		if p == root {
			return true
		}
	}
	return false
}

// indexIn returns n's position among parent's children, or -1.
func (n *Node) indexIn(parent *Node) int {
	for i, c := range parent.Children {
		if c == n {
			return i
		}
	}
	return -1
}

// Tree wraps a root node with a revision counter and mutation
// observers. Every structural change goes through Tree methods so the
// stability detector can watch for churn. Mutations take the write
// lock; concurrent readers (searches, layout queries, revalidation
// walks) must hold the read lock via View, since wrap/unwrap rewrites
// the child slices those walks iterate.
type Tree struct {
	mu        sync.RWMutex
	root      *Node
	rev       int64
	observers []func()
}

// NewTree creates a tree around root.
func NewTree(root *Node) *Tree {
	return &Tree{root: root}
}

// Root returns the tree's root node.
func (t *Tree) Root() *Node {
	return t.root
}

// Revision returns the current mutation revision. It increases on every
// structural change and never decreases.
func (t *Tree) Revision() int64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.rev
}

// View runs fn with the tree's read lock held, excluding structural
// mutations for its duration. All node and layout walks that can run
// concurrently with wrap/unwrap go through here. fn must not call
// mutating Tree methods or View itself.
func (t *Tree) View(fn func()) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	fn()
}

// Observe registers fn to be called (under the tree lock) after every
// structural mutation.
func (t *Tree) Observe(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.observers = append(t.observers, fn)
}

func (t *Tree) bump() {
	t.rev++
	for _, fn := range t.observers {
		fn()
	}
}

// ReplaceChildren swaps out a node's children wholesale (re-render of a
// chapter region).
func (t *Tree) ReplaceChildren(n *Node, children []*Node) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, c := range children {
		c.Parent = n
	}
	n.Children = children
	t.bump()
}

// AppendChild adds a child under parent and records the mutation.
func (t *Tree) AppendChild(parent, child *Node) {
	t.mu.Lock()
	defer t.mu.Unlock()
	parent.Append(child)
	t.bump()
}

// Chapters returns the chapter-level sections of the document: the
// element children of root tagged "section".
func Chapters(root *Node) []*Node {
	var out []*Node
	for _, c := range root.Children {
		if c.Type == ElementNode && c.Tag == "section" {
			out = append(out, c)
		}
	}
	return out
}

// Chapter returns the idx-th chapter section, or nil.
func Chapter(root *Node, idx int) *Node {
	chs := Chapters(root)
	if idx < 0 || idx >= len(chs) {
		return nil
	}
	return chs[idx]
}

// Paragraphs returns the paragraph-level blocks under scope that carry
// text, in document order. Nested blocks are not descended into twice:
// the innermost text-bearing block wins.
func Paragraphs(scope *Node) []*Node {
	var out []*Node
	var walk func(n *Node)
	walk = func(n *Node) {
		before := len(out)
		for _, c := range n.Children {
			walk(c)
		}
		if len(out) == before && n.Type == ElementNode && blockTag(n.Tag) && n.Tag != "section" && hasDirectText(n) {
			out = append(out, n)
		}
	}
	walk(scope)
	return out
}

func hasDirectText(n *Node) bool {
	found := false
	n.Walk(func(c *Node) bool {
		if c.IsTextLeaf() {
			found = true
			return false
		}
		return true
	})
	return found
}

// Leaves collects the text-bearing leaves under scope in document order.
func Leaves(scope *Node) []*Node {
	var out []*Node
	scope.Walk(func(n *Node) bool {
		if n.IsTextLeaf() {
			out = append(out, n)
		}
		return true
	})
	return out
}
