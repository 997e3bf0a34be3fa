// Package locator implements the text-location engine: a compact string
// codec for positions within a document, a lazy cursor over text
// leaves, and the multi-strategy search ladder that relocates a text
// fragment after the document has been re-rendered.
package locator

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// DescriptorKind tags the shape of a decoded locator.
type DescriptorKind string

const (
	KindChapterOffset   DescriptorKind = "chapter_offset"
	KindChapterWord     DescriptorKind = "chapter_word"
	KindChapterRelative DescriptorKind = "chapter_relative"
	KindScrollOffset    DescriptorKind = "scroll_offset"
)

// Descriptor is a decoded locator. Which fields are meaningful depends
// on Kind.
type Descriptor struct {
	Kind      DescriptorKind
	Chapter   int
	Offset    int     // ChapterOffset: character offset into chapter text
	Paragraph int     // ChapterWord
	Word      int     // ChapterWord
	ID        string  // ChapterRelative: chapter id token
	Fraction  float64 // ChapterRelative: progress through chapter, 0..1
	Scroll    float64 // ScrollOffset: raw scroll position
}

const (
	envelopePrefix = "locator("
	envelopeSuffix = ")"
)

var (
	chapterWordRe     = regexp.MustCompile(`^chapter-(\d+)-p(\d+)-w(\d+)$`)
	chapterOffsetRe   = regexp.MustCompile(`^chapter-(\d+)-(\d+)$`)
	chapterRelativeRe = regexp.MustCompile(`^(\d+)/([^@]*)@(-?[0-9.]+)$`)
	scrollOffsetRe    = regexp.MustCompile(`^@(-?[0-9.]+)$`)
)

// EncodeChapterOffset encodes a chapter + character offset locator.
func EncodeChapterOffset(chapter, offset int) string {
	return fmt.Sprintf("locator(chapter-%d-%d)", chapter, offset)
}

// EncodeChapterWord encodes a chapter + paragraph + word locator.
func EncodeChapterWord(chapter, paragraph, word int) string {
	return fmt.Sprintf("locator(chapter-%d-p%d-w%d)", chapter, paragraph, word)
}

// EncodeChapterRelative encodes a chapter + fractional progress locator.
func EncodeChapterRelative(chapter int, id string, fraction float64) string {
	return fmt.Sprintf("locator(%d/%s@%s)", chapter, id, strconv.FormatFloat(fraction, 'f', -1, 64))
}

// EncodeScrollOffset encodes a raw scroll offset locator.
func EncodeScrollOffset(offset float64) string {
	return fmt.Sprintf("locator(@%s)", strconv.FormatFloat(offset, 'f', -1, 64))
}

// Encode serializes a Descriptor back to its string form.
func Encode(d Descriptor) string {
	switch d.Kind {
	case KindChapterOffset:
		return EncodeChapterOffset(d.Chapter, d.Offset)
	case KindChapterWord:
		return EncodeChapterWord(d.Chapter, d.Paragraph, d.Word)
	case KindChapterRelative:
		return EncodeChapterRelative(d.Chapter, d.ID, d.Fraction)
	case KindScrollOffset:
		return EncodeScrollOffset(d.Scroll)
	}
	return ""
}

// Decode parses a locator string. It returns nil for anything it does
// not recognize and never panics: callers treat nil as "no hint
// available" and fall through to other strategies.
func Decode(s string) *Descriptor {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, envelopePrefix) || !strings.HasSuffix(s, envelopeSuffix) {
		return nil
	}
	inner := s[len(envelopePrefix) : len(s)-len(envelopeSuffix)]

	if m := chapterWordRe.FindStringSubmatch(inner); m != nil {
		ch, err1 := strconv.Atoi(m[1])
		p, err2 := strconv.Atoi(m[2])
		w, err3 := strconv.Atoi(m[3])
		if err1 != nil || err2 != nil || err3 != nil {
			return nil
		}
		return &Descriptor{Kind: KindChapterWord, Chapter: ch, Paragraph: p, Word: w}
	}
	if m := chapterOffsetRe.FindStringSubmatch(inner); m != nil {
		ch, err1 := strconv.Atoi(m[1])
		off, err2 := strconv.Atoi(m[2])
		if err1 != nil || err2 != nil {
			return nil
		}
		return &Descriptor{Kind: KindChapterOffset, Chapter: ch, Offset: off}
	}
	if m := chapterRelativeRe.FindStringSubmatch(inner); m != nil {
		ch, err1 := strconv.Atoi(m[1])
		frac, err2 := strconv.ParseFloat(m[3], 64)
		if err1 != nil || err2 != nil || frac < 0 || frac > 1 {
			return nil
		}
		return &Descriptor{Kind: KindChapterRelative, Chapter: ch, ID: m[2], Fraction: frac}
	}
	if m := scrollOffsetRe.FindStringSubmatch(inner); m != nil {
		off, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return nil
		}
		return &Descriptor{Kind: KindScrollOffset, Scroll: off}
	}
	return nil
}
