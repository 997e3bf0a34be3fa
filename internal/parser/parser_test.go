package parser

import (
	"strings"
	"testing"

	"github.com/dgallion1/anchor/internal/doctree"
)

func TestForFile_KnownExtensions(t *testing.T) {
	for _, name := range []string{"a.txt", "b.md", "c.csv", "d.html", "e.pdf", "f.docx"} {
		if _, err := ForFile(name); err != nil {
			t.Errorf("ForFile(%s): %v", name, err)
		}
	}
	if _, err := ForFile("g.xyz"); err == nil {
		t.Error("ForFile should reject unknown extensions")
	}
	if IsSupportedExtension("g.xyz") {
		t.Error("IsSupportedExtension(.xyz) = true")
	}
}

func TestTextParser_ParagraphsBecomeBlocks(t *testing.T) {
	input := "First paragraph line one.\nStill the first paragraph.\n\nSecond paragraph.\n\n\nThird."
	doc, err := (&TextParser{}).Parse(strings.NewReader(input), "story.txt")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if doc.Title != "story" {
		t.Errorf("title = %q", doc.Title)
	}

	chapters := doctree.Chapters(doc.Root)
	if len(chapters) != 1 {
		t.Fatalf("chapters = %d, want 1", len(chapters))
	}
	paras := doctree.Paragraphs(chapters[0])
	if len(paras) != 3 {
		t.Fatalf("paragraphs = %d, want 3", len(paras))
	}
	if got := paras[0].TextContent(); !strings.Contains(got, "Still the first") {
		t.Errorf("first paragraph = %q", got)
	}
}

func TestMarkdownParser_HeadingsOpenSections(t *testing.T) {
	input := "intro before any heading\n\n# One\n\nbody of one\n\n## Two\n\nbody of two\n"
	doc, err := (&MarkdownParser{}).Parse(strings.NewReader(input), "doc.md")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	chapters := doctree.Chapters(doc.Root)
	if len(chapters) != 3 {
		t.Fatalf("chapters = %d, want intro + 2 headed", len(chapters))
	}
	if chapters[0].Attr(AttrTitle) != "" {
		t.Errorf("leading section should be untitled, got %q", chapters[0].Attr(AttrTitle))
	}
	if chapters[1].Attr(AttrTitle) != "One" || chapters[1].Attr(AttrLevel) != "1" {
		t.Errorf("section 1 attrs = %q/%q", chapters[1].Attr(AttrTitle), chapters[1].Attr(AttrLevel))
	}
	if chapters[2].Attr(AttrTitle) != "Two" || chapters[2].Attr(AttrLevel) != "2" {
		t.Errorf("section 2 attrs = %q/%q", chapters[2].Attr(AttrTitle), chapters[2].Attr(AttrLevel))
	}
	if !strings.Contains(chapters[2].TextContent(), "body of two") {
		t.Errorf("section 2 text = %q", chapters[2].TextContent())
	}
}

func TestMarkdownParser_EmphasisSplitsLeaves(t *testing.T) {
	input := "the *quick brown* fox jumps\n"
	doc, err := (&MarkdownParser{}).Parse(strings.NewReader(input), "doc.md")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	leaves := doctree.Leaves(doc.Root)
	if len(leaves) != 3 {
		t.Fatalf("leaves = %d, want text/emphasis/text split", len(leaves))
	}
	if leaves[1].Text != "quick brown" {
		t.Errorf("emphasised leaf = %q", leaves[1].Text)
	}
}

func TestHTMLParser_InlineSplitsAndHeadings(t *testing.T) {
	input := `<html><head><title>Field Notes</title></head><body>
<h1>Dawn</h1>
<p>the <em>quick brown</em> fox jumps over the lazy dog</p>
<script>ignored()</script>
<h2>Dusk</h2>
<p>plain closing paragraph</p>
</body></html>`
	doc, err := (&HTMLParser{}).Parse(strings.NewReader(input), "notes.html")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if doc.Title != "Field Notes" {
		t.Errorf("title = %q", doc.Title)
	}

	chapters := doctree.Chapters(doc.Root)
	if len(chapters) != 2 {
		t.Fatalf("chapters = %d, want 2", len(chapters))
	}

	// First chapter: heading leaf + the split paragraph.
	leaves := doctree.Leaves(chapters[0])
	texts := make([]string, len(leaves))
	for i, l := range leaves {
		texts[i] = l.Text
	}
	want := []string{"Dawn", "the", "quick brown", "fox jumps over the lazy dog"}
	if len(texts) != len(want) {
		t.Fatalf("leaves = %q, want %q", texts, want)
	}
	for i := range want {
		if texts[i] != want[i] {
			t.Errorf("leaf %d = %q, want %q", i, texts[i], want[i])
		}
	}

	if got := chapters[1].TextContent(); !strings.Contains(got, "plain closing") {
		t.Errorf("second chapter = %q", got)
	}
	if strings.Contains(doc.Root.TextContent(), "ignored()") {
		t.Error("script content leaked into the tree")
	}
}

func TestCSVParser_BatchesRows(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("name,role\n")
	for i := 0; i < 25; i++ {
		sb.WriteString("alice,engineer\n")
	}
	doc, err := (&CSVParser{}).Parse(strings.NewReader(sb.String()), "team.csv")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	chapters := doctree.Chapters(doc.Root)
	if len(chapters) != 2 {
		t.Fatalf("chapters = %d, want 2 batches of 20", len(chapters))
	}
	if chapters[0].Attr(AttrTitle) != "Rows 2-21" {
		t.Errorf("first batch title = %q", chapters[0].Attr(AttrTitle))
	}
	if got := len(doctree.Paragraphs(chapters[1])); got != 5 {
		t.Errorf("second batch rows = %d, want 5", got)
	}
	if got := doctree.Paragraphs(chapters[0])[0].TextContent(); got != "name: alice, role: engineer" {
		t.Errorf("row text = %q", got)
	}
}

func TestEmptyInputStillYieldsAChapter(t *testing.T) {
	doc, err := (&TextParser{}).Parse(strings.NewReader(""), "empty.txt")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(doctree.Chapters(doc.Root)) != 1 {
		t.Error("empty input should still resolve chapter 0")
	}
}
