package parser

import (
	"bufio"
	"io"
	"strings"
)

// TextParser handles plain text files. Blank lines separate
// paragraphs; the whole file is one chapter.
type TextParser struct{}

func (p *TextParser) Parse(r io.Reader, filename string) (*Document, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	b := newBuilder()
	var current strings.Builder

	flush := func() {
		if current.Len() > 0 {
			b.block("p", current.String())
			current.Reset()
		}
	}

	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}
		if current.Len() > 0 {
			current.WriteString("\n")
		}
		current.WriteString(line)
	}
	flush()

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return &Document{
		Title: titleFromFilename(filename, ".txt"),
		Root:  b.done(),
	}, nil
}
