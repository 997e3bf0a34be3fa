package position

import (
	"context"
	"math"
	"time"

	"github.com/dgallion1/anchor/internal/anchorerr"
	"github.com/dgallion1/anchor/internal/doctree"
	"github.com/dgallion1/anchor/internal/locator"
)

// Base confidence per restoration strategy, before validation
// weighting. Text strategies use the locator match's own confidence.
const (
	confLocatorPrimary   = 0.9
	confLocatorBackup    = 0.85
	confParagraphWord    = 0.75
	confChapterPercent   = 0.6
	confViewportRelative = 0.55
	confFallbackTop      = 0.15
)

// step is one candidate strategy in the cascade.
type step struct {
	name string
	run  func(ctx context.Context) (y, conf float64, err error)
}

// Restore walks the strategy cascade over a snapshot: each applicable
// strategy runs in order, its confidence weighted by how well the
// snapshot validated, and the first result clearing the acceptance
// threshold wins an eased scroll plus confirmation pulse. When
// everything fails the reader lands on the first text leaf and the
// full attempt log is returned.
func (m *Manager) Restore(ctx context.Context, snap *Snapshot) Result {
	v := m.Validate(ctx, snap)
	weight := 0.5 + 0.5*v.Confidence
	log := m.log.With("primary", snap.Primary)

	var steps []step
	m.tree.View(func() { steps = m.cascade(snap, v) })

	res := Result{}
	for i, s := range steps {
		if i > 0 {
			if err := m.clock.Sleep(ctx, m.cfg.InterAttemptDelay); err != nil {
				res.Attempts = append(res.Attempts, Attempt{
					Strategy: s.name, Err: err.Error(), Timestamp: m.clock.Now(),
				})
				return res
			}
		}

		// Each step's tree and layout reads run under the read lock;
		// the lock is released before the scroll animation.
		var y, conf float64
		var err error
		m.tree.View(func() { y, conf, err = s.run(ctx) })
		weighted := conf * weight
		att := Attempt{
			Strategy:   s.name,
			Confidence: weighted,
			Timestamp:  m.clock.Now(),
		}
		if err != nil {
			att.Err = err.Error()
			res.Attempts = append(res.Attempts, att)
			log.Debug("restoration step failed", "strategy", s.name, "error", err)
			continue
		}
		if weighted <= m.cfg.AcceptThreshold {
			att.Err = "confidence below acceptance threshold"
			res.Attempts = append(res.Attempts, att)
			continue
		}

		att.Success = true
		res.Attempts = append(res.Attempts, att)
		res.Success = true
		res.Strategy = s.name
		res.Confidence = weighted
		res.ScrollY = y
		m.scrollTo(ctx, y)
		snap.Strategy = s.name
		snap.Confidence = weighted
		log.Info("position restored", "strategy", s.name, "confidence", weighted)
		return res
	}

	// Total failure: land on the very first text leaf, report failure
	// with the per-strategy log.
	if m.cfg.EnableFallbackTop {
		y := 0.0
		m.tree.View(func() {
			if leaves := doctree.Leaves(m.tree.Root()); len(leaves) > 0 {
				if top, ok := m.layout.OffsetTop(leaves[0], 0); ok {
					y = top
				}
			}
		})
		weighted := confFallbackTop * weight
		res.Attempts = append(res.Attempts, Attempt{
			Strategy:   StrategyFallbackTop,
			Confidence: weighted,
			Timestamp:  m.clock.Now(),
		})
		res.Strategy = StrategyFallbackTop
		res.Confidence = weighted
		res.ScrollY = y
		m.scrollTo(ctx, y)
		snap.Strategy = StrategyFallbackTop
		snap.Confidence = weighted
	}
	log.Warn("position restoration fell through", "attempts", len(res.Attempts))
	return res
}

// cascade builds the ordered strategy list, filtered by what the
// snapshot actually carries. When the validated chapter is gone, every
// chapter-bound strategy is dropped up front.
func (m *Manager) cascade(snap *Snapshot, v Validation) []step {
	var steps []step
	chapter := m.snapshotChapter(snap)
	chapterOK := chapter != nil && !v.ChapterAbsent

	if snap.Primary != "" && (chapterOK || locatorKindOf(snap.Primary) == locator.KindScrollOffset) {
		steps = append(steps, step{StrategyLocatorPrimary, func(ctx context.Context) (float64, float64, error) {
			return m.resolveLocator(snap.Primary, confLocatorPrimary)
		}})
	}
	if snap.Backup != "" && chapterOK {
		steps = append(steps, step{StrategyLocatorBackup, func(ctx context.Context) (float64, float64, error) {
			return m.resolveLocator(snap.Backup, confLocatorBackup)
		}})
	}
	if snap.TextContext != "" {
		steps = append(steps, step{StrategyTextExact, func(ctx context.Context) (float64, float64, error) {
			return m.findText(ctx, snap.TextContext, []locator.Strategy{locator.StrategyExact})
		}})
		steps = append(steps, step{StrategyTextFuzzy, func(ctx context.Context) (float64, float64, error) {
			return m.findText(ctx, snap.TextContext, []locator.Strategy{
				locator.StrategyFuzzy, locator.StrategyCrossNode, locator.StrategyPartial,
			})
		}})
	}
	if chapterOK && snap.ParagraphIndex >= 0 && snap.WordIndex >= 0 {
		steps = append(steps, step{StrategyParagraphWord, func(ctx context.Context) (float64, float64, error) {
			anchor, ok := locator.ResolveWord(chapter, snap.ParagraphIndex, snap.WordIndex)
			if !ok {
				return 0, 0, anchorerr.New(anchorerr.LocatorNotFound, "paragraph/word indices no longer resolve")
			}
			return m.anchorTop(anchor, confParagraphWord)
		}})
	}
	if chapterOK {
		steps = append(steps, step{StrategyChapterPercent, func(ctx context.Context) (float64, float64, error) {
			off := int(snap.ChapterFraction * float64(locator.ChapterTextLen(chapter)))
			anchor, ok := locator.ResolveOffset(chapter, off)
			if !ok {
				return 0, 0, anchorerr.New(anchorerr.ChapterNotFound, "chapter has no resolvable text")
			}
			return m.anchorTop(anchor, confChapterPercent)
		}})
	}
	if snap.Viewport.DocHeight > 0 {
		steps = append(steps, step{StrategyViewportRelative, func(ctx context.Context) (float64, float64, error) {
			y := snap.Viewport.ScrollY * (m.layout.Height() / snap.Viewport.DocHeight)
			return y, confViewportRelative, nil
		}})
	}
	return steps
}

// snapshotChapter resolves the chapter the snapshot's locators name.
func (m *Manager) snapshotChapter(snap *Snapshot) *doctree.Node {
	for _, raw := range []string{snap.Primary, snap.Backup} {
		d := locator.Decode(raw)
		if d == nil || !chapterKind(d.Kind) {
			continue
		}
		if ch := doctree.Chapter(m.tree.Root(), d.Chapter); ch != nil {
			return ch
		}
	}
	return nil
}

func locatorKindOf(raw string) locator.DescriptorKind {
	if d := locator.Decode(raw); d != nil {
		return d.Kind
	}
	return ""
}

// resolveLocator turns a stored locator string into a scroll target.
func (m *Manager) resolveLocator(raw string, conf float64) (float64, float64, error) {
	d := locator.Decode(raw)
	if d == nil {
		return 0, 0, anchorerr.New(anchorerr.LocatorParseError, "malformed locator "+raw)
	}
	if d.Kind == locator.KindScrollOffset {
		y := d.Scroll
		if h := m.layout.Height(); y > h {
			y = h
		}
		if y < 0 {
			y = 0
		}
		return y, conf, nil
	}
	anchor, ok := locator.ResolveDescriptor(m.tree.Root(), d)
	if !ok {
		return 0, 0, anchorerr.New(anchorerr.LocatorNotFound, "locator does not resolve: "+raw)
	}
	return m.anchorTop(anchor, conf)
}

// findText searches the whole document for the snapshot's context
// window under a restricted strategy set.
func (m *Manager) findText(ctx context.Context, text string, allowed []locator.Strategy) (float64, float64, error) {
	match, err := m.searcher.Find(ctx, m.tree.Root(), text, locator.Options{Allowed: allowed})
	if err != nil {
		return 0, 0, err
	}
	if match == nil {
		return 0, 0, anchorerr.New(anchorerr.TextNotFound, "context text not found")
	}
	seg := match.Segments[0]
	return m.anchorTop(locator.Anchor{Leaf: seg.Leaf, Offset: seg.Start}, match.Confidence)
}

func (m *Manager) anchorTop(anchor locator.Anchor, conf float64) (float64, float64, error) {
	top, ok := m.layout.OffsetTop(anchor.Leaf, anchor.Offset)
	if !ok {
		return 0, 0, anchorerr.New(anchorerr.PositionOutOfBounds, "anchor has no rendered geometry")
	}
	return top, conf, nil
}

// scrollTo animates the viewport to the target with a cubic ease-out
// curve, then fires the confirmation pulse. Steps are paced through
// the clock so tests can run them on virtual time.
func (m *Manager) scrollTo(ctx context.Context, target float64) {
	start := m.display.Viewport().ScrollY
	steps := m.cfg.ScrollSteps
	if steps < 1 {
		steps = 1
	}
	for i := 1; i <= steps; i++ {
		if err := m.clock.Sleep(ctx, m.cfg.ScrollDuration/time.Duration(steps)); err != nil {
			// Cancelled mid-animation: jump straight to the target.
			m.display.SetScroll(target)
			return
		}
		t := float64(i) / float64(steps)
		eased := 1 - math.Pow(1-t, 3)
		m.display.SetScroll(start + (target-start)*eased)
	}
	m.display.Pulse(target)
}
