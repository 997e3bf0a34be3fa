// Package book exposes documents to the anchoring engine through a
// narrow capability interface and ties one open document's tree,
// applicator and position manager together as a Session.
package book

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/dgallion1/anchor/internal/parser"
)

// Metadata is the display information for a book.
type Metadata struct {
	Title    string `json:"title"`
	Author   string `json:"author,omitempty"`
	Language string `json:"language,omitempty"`
}

// NavPoint is one table-of-contents entry.
type NavPoint struct {
	Title   string `json:"title"`
	Chapter int    `json:"chapter"`
}

// Book is everything the engine needs from a document container. The
// container format (directory, archive, remote store) stays behind
// this interface.
type Book interface {
	// Ready reports whether the book's content is accessible.
	Ready(ctx context.Context) error
	Metadata() Metadata
	// Spine lists the content entries in reading order.
	Spine() []string
	// ReadEntry opens one spine entry's raw bytes.
	ReadEntry(name string) (io.ReadCloser, error)
}

// manifest is the optional book.json sidecar of a DirBook.
type manifest struct {
	Title    string   `json:"title"`
	Author   string   `json:"author"`
	Language string   `json:"language"`
	Spine    []string `json:"spine"`
}

// DirBook serves a book from a plain directory. A book.json manifest
// supplies metadata and spine order; without one every supported file
// in the directory joins the spine in name order.
type DirBook struct {
	dir  string
	meta Metadata
	span []string
}

// OpenDir loads a directory-backed book.
func OpenDir(dir string) (*DirBook, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("open book dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("open book dir: %s is not a directory", dir)
	}

	b := &DirBook{dir: dir, meta: Metadata{Title: filepath.Base(dir)}}

	raw, err := os.ReadFile(filepath.Join(dir, "book.json"))
	switch {
	case err == nil:
		var m manifest
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, fmt.Errorf("parse book.json: %w", err)
		}
		if m.Title != "" {
			b.meta.Title = m.Title
		}
		b.meta.Author = m.Author
		b.meta.Language = m.Language
		b.span = m.Spine
	case os.IsNotExist(err):
		// No manifest: supported files in name order.
		entries, err := os.ReadDir(dir)
		if err != nil {
			return nil, fmt.Errorf("read book dir: %w", err)
		}
		for _, e := range entries {
			if !e.IsDir() && parser.IsSupportedExtension(e.Name()) {
				b.span = append(b.span, e.Name())
			}
		}
		sort.Strings(b.span)
	default:
		return nil, fmt.Errorf("read book.json: %w", err)
	}

	if len(b.span) == 0 {
		return nil, fmt.Errorf("book %s has no readable content", dir)
	}
	return b, nil
}

func (b *DirBook) Ready(ctx context.Context) error {
	for _, name := range b.span {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := os.Stat(filepath.Join(b.dir, name)); err != nil {
			return fmt.Errorf("spine entry %s: %w", name, err)
		}
	}
	return nil
}

func (b *DirBook) Metadata() Metadata { return b.meta }

func (b *DirBook) Spine() []string {
	out := make([]string, len(b.span))
	copy(out, b.span)
	return out
}

func (b *DirBook) ReadEntry(name string) (io.ReadCloser, error) {
	for _, s := range b.span {
		if s == name {
			return os.Open(filepath.Join(b.dir, name))
		}
	}
	return nil, fmt.Errorf("entry %s is not in the spine", name)
}
