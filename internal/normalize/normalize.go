// Package normalize canonicalizes text for comparison. Everything the
// locator searches goes through Normalize first; matches are then
// mapped back to byte offsets in the original text, because markers
// must wrap the text as it actually appears in the tree.
package normalize

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Normalize collapses whitespace runs to a single space, maps smart
// quotes to straight quotes, en/em dashes to hyphens and the ellipsis
// glyph to three dots, and trims both ends. It is idempotent:
// Normalize(Normalize(s)) == Normalize(s).
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	pendingSpace := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			if b.Len() > 0 {
				pendingSpace = true
			}
			continue
		}
		if pendingSpace {
			b.WriteByte(' ')
			pendingSpace = false
		}
		switch r {
		case '‘', '’':
			b.WriteByte('\'')
		case '“', '”':
			b.WriteByte('"')
		case '–', '—':
			b.WriteByte('-')
		case '…':
			b.WriteString("...")
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// offsets returns, for each rune of Normalize(original), the byte
// offset in original where that rune originates. A collapsed
// whitespace run maps to its first whitespace rune; the three dots of
// an expanded ellipsis all map to the glyph.
func offsets(original string) []int {
	var offs []int
	pendingSpace := false
	pendingOffset := 0
	for i, r := range original {
		if unicode.IsSpace(r) {
			if len(offs) > 0 && !pendingSpace {
				pendingSpace = true
				pendingOffset = i
			}
			continue
		}
		if pendingSpace {
			offs = append(offs, pendingOffset)
			pendingSpace = false
		}
		if r == '…' {
			offs = append(offs, i, i, i)
		} else {
			offs = append(offs, i)
		}
	}
	return offs
}

// MapIndex returns the byte offset in original corresponding to the
// normIdx-th rune of Normalize(original). An index one past the end
// maps to the end of the trimmed original.
func MapIndex(original string, normIdx int) (int, bool) {
	offs := offsets(original)
	if normIdx < 0 || normIdx > len(offs) {
		return 0, false
	}
	if normIdx == len(offs) {
		if len(offs) == 0 {
			return 0, true
		}
		last := offs[len(offs)-1]
		_, size := utf8.DecodeRuneInString(original[last:])
		return last + size, true
	}
	return offs[normIdx], true
}

// MapRange maps the half-open normalized rune range [normStart,normEnd)
// back to a byte range in original.
func MapRange(original string, normStart, normEnd int) (start, end int, ok bool) {
	offs := offsets(original)
	if normStart < 0 || normEnd > len(offs) || normStart >= normEnd {
		return 0, 0, false
	}
	last := offs[normEnd-1]
	_, size := utf8.DecodeRuneInString(original[last:])
	return offs[normStart], last + size, true
}

// RuneLen returns the rune count of Normalize(s) without allocating the
// normalized string.
func RuneLen(s string) int {
	return len(offsets(s))
}
