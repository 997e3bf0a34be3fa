package parser

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fumiama/go-docx"
)

// DOCXParser handles .docx files. Heading styles open new sections;
// each formatting run inside a paragraph becomes its own text leaf.
type DOCXParser struct{}

func (p *DOCXParser) Parse(r io.Reader, filename string) (*Document, error) {
	// go-docx needs a ReadSeeker+size, so write to temp file.
	tmp, err := os.CreateTemp("", "anchor-docx-*.docx")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	size, err := io.Copy(tmp, r)
	if err != nil {
		tmp.Close()
		return nil, fmt.Errorf("write temp file: %w", err)
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("seek temp file: %w", err)
	}

	doc, err := docx.Parse(tmp, int64(size))
	tmp.Close()
	if err != nil {
		return nil, fmt.Errorf("parse docx: %w", err)
	}

	b := newBuilder()
	for _, item := range doc.Document.Body.Items {
		para, ok := item.(*docx.Paragraph)
		if !ok {
			continue
		}
		if level := docxHeadingLevel(para); level > 0 {
			if t := docxParagraphText(para); t != "" {
				b.section(t, level)
			}
			continue
		}
		b.block("p", docxRunSpans(para)...)
	}

	return &Document{
		Title: titleFromFilename(filename, ".docx"),
		Root:  b.done(),
	}, nil
}

func docxHeadingLevel(para *docx.Paragraph) int {
	if para.Properties == nil || para.Properties.Style == nil {
		return 0
	}
	style := para.Properties.Style.Val
	for level := 1; level <= 6; level++ {
		if strings.EqualFold(style, fmt.Sprintf("Heading%d", level)) ||
			strings.EqualFold(style, fmt.Sprintf("heading %d", level)) {
			return level
		}
	}
	return 0
}

// docxRunSpans returns one span per formatting run, preserving the
// run boundaries as leaf boundaries.
func docxRunSpans(para *docx.Paragraph) []string {
	var spans []string
	for _, child := range para.Children {
		run, ok := child.(*docx.Run)
		if !ok {
			continue
		}
		var buf strings.Builder
		for _, rc := range run.Children {
			if t, ok := rc.(*docx.Text); ok {
				buf.WriteString(t.Text)
			}
		}
		if s := buf.String(); strings.TrimSpace(s) != "" {
			spans = append(spans, s)
		}
	}
	return spans
}

func docxParagraphText(para *docx.Paragraph) string {
	return strings.TrimSpace(strings.Join(docxRunSpans(para), ""))
}
