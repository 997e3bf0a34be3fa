package segment

import "testing"

func TestWords_Spans(t *testing.T) {
	s := "  the quick  fox"
	spans := Words(s)
	if len(spans) != 3 {
		t.Fatalf("expected 3 words, got %d", len(spans))
	}
	want := []string{"the", "quick", "fox"}
	for i, sp := range spans {
		if s[sp.Start:sp.End] != want[i] {
			t.Errorf("word %d = %q, want %q", i, s[sp.Start:sp.End], want[i])
		}
	}
}

func TestSentences_BasicSplitting(t *testing.T) {
	s := "First one. Second one! Third?"
	spans := Sentences(s)
	if len(spans) != 3 {
		t.Fatalf("expected 3 sentences, got %d", len(spans))
	}
	if got := s[spans[0].Start:spans[0].End]; got != "First one." {
		t.Errorf("sentence 0 = %q", got)
	}
	if got := s[spans[2].Start:spans[2].End]; got != "Third?" {
		t.Errorf("sentence 2 = %q", got)
	}
}

func TestSentences_NoTerminator(t *testing.T) {
	spans := Sentences("no terminator here")
	if len(spans) != 1 {
		t.Fatalf("expected 1 sentence, got %d", len(spans))
	}
}

func TestWordIndexAt(t *testing.T) {
	s := "the quick brown fox"
	cases := []struct {
		off  int
		want int
	}{
		{0, 0},
		{4, 1},
		{8, 1},
		{10, 2},
		{100, 3},
	}
	for _, tc := range cases {
		if got := WordIndexAt(s, tc.off); got != tc.want {
			t.Errorf("WordIndexAt(%d) = %d, want %d", tc.off, got, tc.want)
		}
	}
	if WordIndexAt("   ", 0) != -1 {
		t.Error("expected -1 for wordless text")
	}
}

func TestSentenceIndexAt(t *testing.T) {
	s := "One. Two. Three."
	if got := SentenceIndexAt(s, 0); got != 0 {
		t.Errorf("offset 0 in sentence %d, want 0", got)
	}
	if got := SentenceIndexAt(s, 6); got != 1 {
		t.Errorf("offset 6 in sentence %d, want 1", got)
	}
	if got := SentenceIndexAt(s, 99); got != 2 {
		t.Errorf("offset 99 in sentence %d, want 2", got)
	}
}
