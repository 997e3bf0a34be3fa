package parser

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
)

// HTMLParser handles HTML files. Heading tags open new sections;
// inline elements inside a block split it into separate text leaves,
// which is what later lets annotations straddle formatting boundaries.
type HTMLParser struct{}

func (p *HTMLParser) Parse(r io.Reader, filename string) (*Document, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	title := titleFromFilename(filename, ".html", ".htm")
	if t := findTitle(doc); t != "" {
		title = t
	}

	b := newBuilder()
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if level := headingLevel(n.Data); level > 0 {
				b.section(textContent(n), level)
				return
			}
			switch n.Data {
			case "script", "style", "nav", "footer", "header":
				return
			case "p", "li", "td", "blockquote", "pre":
				b.block(n.Data, blockSpans(n)...)
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}

	body := findBody(doc)
	if body == nil {
		body = doc
	}
	walk(body)

	return &Document{Title: title, Root: b.done()}, nil
}

// blockSpans splits a block element's content at inline-element
// boundaries: plain text runs merge, each inline child becomes its
// own span.
func blockSpans(n *html.Node) []string {
	var spans []string
	var cur strings.Builder

	flush := func() {
		if strings.TrimSpace(cur.String()) != "" {
			spans = append(spans, collapseSpace(cur.String()))
		}
		cur.Reset()
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		switch {
		case c.Type == html.TextNode:
			cur.WriteString(c.Data)
		case c.Type == html.ElementNode && inlineTag(c.Data):
			flush()
			if t := textContent(c); t != "" {
				spans = append(spans, t)
			}
		case c.Type == html.ElementNode:
			// Nested block inside a block: flatten its text.
			flush()
			if t := textContent(c); t != "" {
				spans = append(spans, t)
			}
		}
	}
	flush()
	return spans
}

func inlineTag(tag string) bool {
	switch tag {
	case "em", "strong", "i", "b", "a", "code", "span", "u", "s", "mark", "sub", "sup":
		return true
	}
	return false
}

// collapseSpace squeezes runs of whitespace the way a renderer would.
func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func headingLevel(tag string) int {
	switch tag {
	case "h1":
		return 1
	case "h2":
		return 2
	case "h3":
		return 3
	case "h4":
		return 4
	case "h5":
		return 5
	case "h6":
		return 6
	}
	return 0
}

func textContent(n *html.Node) string {
	var buf strings.Builder
	var extract func(*html.Node)
	extract = func(n *html.Node) {
		if n.Type == html.TextNode {
			buf.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extract(c)
		}
	}
	extract(n)
	return collapseSpace(buf.String())
}

func findTitle(n *html.Node) string {
	if n.Type == html.ElementNode && n.Data == "title" {
		return textContent(n)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if t := findTitle(c); t != "" {
			return t
		}
	}
	return ""
}

func findBody(n *html.Node) *html.Node {
	if n.Type == html.ElementNode && n.Data == "body" {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if b := findBody(c); b != nil {
			return b
		}
	}
	return nil
}
