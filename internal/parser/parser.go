// Package parser turns raw chapter bytes into the in-memory document
// tree the anchoring engine searches. Each format producer emits a
// body of section chapters; block elements hold text leaves, and
// inline boundaries (emphasis, links, docx runs) split a block into
// multiple leaves.
package parser

import (
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dgallion1/anchor/internal/doctree"
)

// Document is one parsed source file: a display title plus the tree
// root whose section children are the chapters.
type Document struct {
	Title string
	Root  *doctree.Node
}

// Parser converts raw document bytes into a Document.
type Parser interface {
	Parse(r io.Reader, filename string) (*Document, error)
}

// SupportedExtensions lists file extensions this service can handle.
var SupportedExtensions = map[string]bool{
	".txt":  true,
	".md":   true,
	".csv":  true,
	".html": true,
	".htm":  true,
	".pdf":  true,
	".docx": true,
}

// ForFile returns the appropriate parser for a filename.
func ForFile(filename string) (Parser, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".txt":
		return &TextParser{}, nil
	case ".md", ".markdown":
		return &MarkdownParser{}, nil
	case ".csv":
		return &CSVParser{}, nil
	case ".html", ".htm":
		return &HTMLParser{}, nil
	case ".pdf":
		return &PDFParser{}, nil
	case ".docx":
		return &DOCXParser{}, nil
	default:
		return nil, fmt.Errorf("unsupported file extension: %s", ext)
	}
}

// IsSupportedExtension checks if a file extension is supported.
func IsSupportedExtension(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return SupportedExtensions[ext]
}

// Section attributes set by the producers.
const (
	AttrTitle = "title"
	AttrLevel = "level"
	AttrID    = "id"
)

// builder accumulates sections as heading boundaries arrive. Text
// before the first heading goes into an untitled leading section.
type builder struct {
	root    *doctree.Node
	current *doctree.Node
}

func newBuilder() *builder {
	return &builder{root: doctree.NewElement("body")}
}

// section starts a new chapter. level 0 means an untitled section.
func (b *builder) section(title string, level int) {
	sec := doctree.NewElement("section")
	sec.SetAttr(AttrID, "ch-"+strconv.Itoa(len(b.root.Children)))
	if title != "" {
		sec.SetAttr(AttrTitle, title)
	}
	if level > 0 {
		sec.SetAttr(AttrLevel, strconv.Itoa(level))
		h := doctree.NewElement("h" + strconv.Itoa(level))
		h.Append(doctree.NewText(title))
		sec.Append(h)
	}
	b.root.Append(sec)
	b.current = sec
}

// block appends a block element with one text leaf per span. Empty
// spans are dropped; a block with no surviving span is not added.
func (b *builder) block(tag string, spans ...string) {
	var leaves []*doctree.Node
	for _, s := range spans {
		if strings.TrimSpace(s) == "" {
			continue
		}
		leaves = append(leaves, doctree.NewText(s))
	}
	if len(leaves) == 0 {
		return
	}
	if b.current == nil {
		b.section("", 0)
	}
	el := doctree.NewElement(tag)
	for _, l := range leaves {
		el.Append(l)
	}
	b.current.Append(el)
}

// done returns the finished root. A source with no content at all
// still yields a single empty section so chapter indices resolve.
func (b *builder) done() *doctree.Node {
	if len(b.root.Children) == 0 {
		b.section("", 0)
	}
	return b.root
}

func titleFromFilename(filename string, exts ...string) string {
	t := filename
	for _, ext := range exts {
		t = strings.TrimSuffix(t, ext)
	}
	return t
}
