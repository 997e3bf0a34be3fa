package position

import (
	"context"

	"github.com/dgallion1/anchor/internal/doctree"
	"github.com/dgallion1/anchor/internal/locator"
)

// Validate re-scores a possibly stale snapshot against the current
// document. Confidence starts at 1.0 and only ever decreases; the
// deductions are independent checks, except that a missing chapter is
// charged once no matter how many locators point at it.
func (m *Manager) Validate(ctx context.Context, snap *Snapshot) Validation {
	var v Validation
	m.tree.View(func() {
		v = m.validate(ctx, snap)
	})
	return v
}

func (m *Manager) validate(ctx context.Context, snap *Snapshot) Validation {
	v := Validation{Confidence: 1.0}
	root := m.tree.Root()

	chargeLocator := func(raw string, penalty float64) {
		d := locator.Decode(raw)
		if d == nil {
			v.Confidence -= penalty
			return
		}
		if chapterKind(d.Kind) && doctree.Chapter(root, d.Chapter) == nil {
			if !v.ChapterAbsent {
				v.Confidence -= 0.4
				v.ChapterAbsent = true
			}
			return
		}
		if d.Kind == locator.KindScrollOffset {
			// Resolves against the viewport, not the tree.
			return
		}
		if _, ok := locator.ResolveDescriptor(root, d); !ok {
			v.Confidence -= penalty
		}
	}

	chargeLocator(snap.Primary, 0.3)
	if snap.Backup != "" {
		chargeLocator(snap.Backup, 0.1)
	}

	if snap.TextContext != "" {
		match, err := m.searcher.Find(ctx, root, snap.TextContext, locator.Options{})
		if err != nil || match == nil {
			v.Confidence -= 0.2
		}
	}

	if snap.SettingsHash != "" {
		current := SettingsHash(m.display.Viewport(), m.fontSettings, m.dispSettings)
		if snap.SettingsHash != current {
			v.Confidence -= 0.1
		}
	}

	if v.Confidence < 0 {
		v.Confidence = 0
	}
	v.Valid = v.Confidence > m.cfg.ValidityThreshold
	return v
}

func chapterKind(k locator.DescriptorKind) bool {
	switch k {
	case locator.KindChapterOffset, locator.KindChapterWord, locator.KindChapterRelative:
		return true
	}
	return false
}
