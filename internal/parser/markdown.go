package parser

import (
	"bytes"
	"io"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// MarkdownParser handles Markdown files using goldmark. Headings open
// new sections; emphasis and other inline containers split a paragraph
// into separate text leaves.
type MarkdownParser struct{}

func (p *MarkdownParser) Parse(r io.Reader, filename string) (*Document, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	md := goldmark.New()
	doc := md.Parser().Parse(text.NewReader(src))

	b := newBuilder()
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		switch node := n.(type) {
		case *ast.Heading:
			b.section(string(node.Text(src)), node.Level)
		case *ast.List:
			for li := node.FirstChild(); li != nil; li = li.NextSibling() {
				b.block("li", listItemSpans(li, src)...)
			}
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			b.block("pre", blockLines(n, src))
		default:
			b.block(blockTagFor(n), inlineSpans(n, src)...)
		}
	}

	return &Document{
		Title: titleFromFilename(filename, ".md", ".markdown"),
		Root:  b.done(),
	}, nil
}

func blockTagFor(n ast.Node) string {
	if _, ok := n.(*ast.Blockquote); ok {
		return "blockquote"
	}
	return "p"
}

// inlineSpans flattens a block's inline content into leaf spans. Plain
// text runs merge into one span; emphasis, links and code spans each
// become their own.
func inlineSpans(n ast.Node, src []byte) []string {
	var spans []string
	var cur bytes.Buffer

	flush := func() {
		if s := strings.TrimSpace(cur.String()); s != "" {
			spans = append(spans, cur.String())
		}
		cur.Reset()
	}

	var walk func(ast.Node)
	walk = func(n ast.Node) {
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			switch node := c.(type) {
			case *ast.Text:
				cur.Write(node.Value(src))
				if node.HardLineBreak() || node.SoftLineBreak() {
					cur.WriteByte(' ')
				}
			case *ast.Emphasis, *ast.Link, *ast.CodeSpan:
				flush()
				spans = append(spans, string(textOf(c, src)))
			default:
				walk(c)
			}
		}
	}
	if n.Type() == ast.TypeBlock && n.FirstChild() == nil {
		return []string{blockLines(n, src)}
	}
	walk(n)
	flush()
	return spans
}

func listItemSpans(li ast.Node, src []byte) []string {
	var spans []string
	for c := li.FirstChild(); c != nil; c = c.NextSibling() {
		spans = append(spans, inlineSpans(c, src)...)
	}
	return spans
}

// textOf collects all text beneath an inline node.
func textOf(n ast.Node, src []byte) []byte {
	var buf bytes.Buffer
	if t, ok := n.(*ast.Text); ok {
		return t.Value(src)
	}
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		buf.Write(textOf(c, src))
	}
	return buf.Bytes()
}

// blockLines returns a block node's raw source lines.
func blockLines(n ast.Node, src []byte) string {
	var buf bytes.Buffer
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		line := lines.At(i)
		buf.Write(line.Value(src))
	}
	return strings.TrimRight(buf.String(), "\n")
}
