package locator

import "testing"

func TestCodec_RoundTrip(t *testing.T) {
	cases := []Descriptor{
		{Kind: KindChapterOffset, Chapter: 0, Offset: 0},
		{Kind: KindChapterOffset, Chapter: 2, Offset: 150},
		{Kind: KindChapterWord, Chapter: 3, Paragraph: 7, Word: 12},
		{Kind: KindChapterRelative, Chapter: 1, ID: "ch1", Fraction: 0.25},
		{Kind: KindChapterRelative, Chapter: 0, ID: "intro", Fraction: 1},
		{Kind: KindScrollOffset, Scroll: 1234.5},
		{Kind: KindScrollOffset, Scroll: 0},
	}
	for _, want := range cases {
		s := Encode(want)
		got := Decode(s)
		if got == nil {
			t.Fatalf("Decode(%q) = nil", s)
		}
		if *got != want {
			t.Errorf("round trip %q: got %+v, want %+v", s, *got, want)
		}
	}
}

func TestDecode_RejectsGarbage(t *testing.T) {
	bad := []string{
		"",
		"chapter-1-100",              // no envelope
		"locator()",
		"locator(chapter-1)",
		"locator(chapter-x-10)",
		"locator(1/ch@1.5)",          // fraction out of range
		"locator(1/ch@-0.1)",
		"locator(@abc)",
		"locator(chapter-1-p2)",      // missing word part
		"not a locator at all",
	}
	for _, s := range bad {
		if d := Decode(s); d != nil {
			t.Errorf("Decode(%q) = %+v, want nil", s, d)
		}
	}
}

func TestDecode_GrammarOrder(t *testing.T) {
	// chapter-<c>-p<p>-w<w> must win over chapter-<c>-<o> parsing.
	d := Decode("locator(chapter-2-p3-w4)")
	if d == nil || d.Kind != KindChapterWord {
		t.Fatalf("got %+v, want ChapterWord", d)
	}
	if d.Chapter != 2 || d.Paragraph != 3 || d.Word != 4 {
		t.Errorf("fields wrong: %+v", d)
	}
}
