package position

import (
	"context"
	"io"
	"log/slog"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/dgallion1/anchor/internal/doctree"
	"github.com/dgallion1/anchor/internal/locator"
	"github.com/dgallion1/anchor/internal/sched"
)

type fakeDisplay struct {
	vp      Viewport
	scrolls []float64
	pulses  []float64
}

func (d *fakeDisplay) Viewport() Viewport { return d.vp }
func (d *fakeDisplay) SetScroll(y float64) {
	d.vp.ScrollY = y
	d.scrolls = append(d.scrolls, y)
}
func (d *fakeDisplay) Pulse(y float64) { d.pulses = append(d.pulses, y) }

// testConfig zeroes every delay so the fake clock never needs a
// driver goroutine.
func testConfig() Config {
	cfg := DefaultConfig()
	cfg.InterAttemptDelay = 0
	cfg.ScrollDuration = 0
	cfg.ScrollSteps = 4
	return cfg
}

const (
	para0 = "First paragraph with a handful of words." // 40 bytes
	para1 = "Second paragraph continues the story. Another sentence follows here."
)

func buildDoc(extraChapter bool) *doctree.Tree {
	root := doctree.NewElement("body")
	sec := doctree.NewElement("section")
	for _, text := range []string{para0, para1} {
		p := doctree.NewElement("p")
		p.Append(doctree.NewText(text))
		sec.Append(p)
	}
	root.Append(sec)
	if extraChapter {
		sec2 := doctree.NewElement("section")
		p := doctree.NewElement("p")
		p.Append(doctree.NewText("Zebra quartz jukebox vexing formaldehyde pyramids glowing underneath."))
		sec2.Append(p)
		root.Append(sec2)
	}
	return doctree.NewTree(root)
}

func newTestManager(tree *doctree.Tree, display *fakeDisplay) *Manager {
	layout := doctree.NewFlowLayout(tree.Root(), 40, 10, 0)
	clock := sched.NewFake(time.Unix(0, 0))
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewManager(tree, layout, display, locator.NewSearcher(tree.Root()), clock, log, testConfig())
}

func TestCapture_SelectionAnchor(t *testing.T) {
	tree := buildDoc(false)
	display := &fakeDisplay{vp: Viewport{Width: 800, Height: 100, DocHeight: 30}}
	m := newTestManager(tree, display)

	leaf := doctree.Leaves(tree.Root())[1]
	inLeaf := strings.Index(para1, "Another")
	snap, err := m.Capture(&locator.Anchor{Leaf: leaf, Offset: inLeaf})
	if err != nil {
		t.Fatalf("capture: %v", err)
	}

	chapter := doctree.Chapter(tree.Root(), 0)
	wantOff, _ := locator.OffsetOf(chapter, leaf, inLeaf)
	if snap.Primary != locator.EncodeChapterOffset(0, wantOff) {
		t.Errorf("primary = %s, want offset %d", snap.Primary, wantOff)
	}
	if snap.Backup != locator.EncodeChapterWord(0, 1, 5) {
		t.Errorf("backup = %s, want chapter-0-p1-w5", snap.Backup)
	}
	if snap.ParagraphIndex != 1 || snap.WordIndex != 5 || snap.SentenceIndex != 1 {
		t.Errorf("indices = p%d w%d s%d", snap.ParagraphIndex, snap.WordIndex, snap.SentenceIndex)
	}
	if !strings.Contains(snap.TextContext, "Another sentence") {
		t.Errorf("context window %q misses the anchor text", snap.TextContext)
	}
	if snap.ChapterFraction <= 0 || snap.ChapterFraction >= 1 {
		t.Errorf("chapter fraction = %f", snap.ChapterFraction)
	}
	if snap.SettingsHash == "" || snap.Confidence != 1.0 {
		t.Errorf("hash %q / confidence %f", snap.SettingsHash, snap.Confidence)
	}
}

func TestCapture_AnchorsNearViewportTop(t *testing.T) {
	tree := buildDoc(false)
	// Leaf tops under the 40-char flow: para0 at y=0, para1 at y=10.
	// The anchor point is 0.2*Height=20 below a zero scroll, so para1
	// (distance 10) beats para0 (distance 20).
	display := &fakeDisplay{vp: Viewport{Width: 800, Height: 100, ScrollY: 0, DocHeight: 30}}
	m := newTestManager(tree, display)

	snap, err := m.Capture(nil)
	if err != nil {
		t.Fatalf("capture: %v", err)
	}
	if want := locator.EncodeChapterOffset(0, len(para0)+1); snap.Primary != want {
		t.Errorf("primary = %s, want %s", snap.Primary, want)
	}
	if snap.ParagraphIndex != 1 || snap.WordIndex != 0 || snap.SentenceIndex != 0 {
		t.Errorf("indices = p%d w%d s%d", snap.ParagraphIndex, snap.WordIndex, snap.SentenceIndex)
	}
}

func TestValidate_IntactSnapshotKeepsFullConfidence(t *testing.T) {
	tree := buildDoc(false)
	display := &fakeDisplay{vp: Viewport{Width: 800, Height: 100, DocHeight: 30}}
	m := newTestManager(tree, display)

	leaf := doctree.Leaves(tree.Root())[1]
	snap, err := m.Capture(&locator.Anchor{Leaf: leaf, Offset: strings.Index(para1, "Another")})
	if err != nil {
		t.Fatalf("capture: %v", err)
	}

	v := m.Validate(context.Background(), snap)
	if math.Abs(v.Confidence-1.0) > 1e-9 || !v.Valid {
		t.Errorf("validation = %+v, want full confidence", v)
	}
}

func TestValidate_EnvironmentChangeDeducts(t *testing.T) {
	tree := buildDoc(false)
	display := &fakeDisplay{vp: Viewport{Width: 800, Height: 100, DocHeight: 30}}
	m := newTestManager(tree, display)

	leaf := doctree.Leaves(tree.Root())[1]
	snap, _ := m.Capture(&locator.Anchor{Leaf: leaf, Offset: 0})

	display.vp.Width = 360 // re-flow sized viewport
	v := m.Validate(context.Background(), snap)
	if math.Abs(v.Confidence-0.9) > 1e-9 {
		t.Errorf("confidence = %f, want 0.9 after env hash change", v.Confidence)
	}
	if !v.Valid {
		t.Error("snapshot should stay valid")
	}
}

func TestValidate_RemovedChapterChargedOnce(t *testing.T) {
	tree := buildDoc(true)
	display := &fakeDisplay{vp: Viewport{Width: 800, Height: 100, DocHeight: 40}}
	m := newTestManager(tree, display)

	leaves := doctree.Leaves(tree.Root())
	snap, err := m.Capture(&locator.Anchor{Leaf: leaves[2], Offset: 0})
	if err != nil {
		t.Fatalf("capture: %v", err)
	}

	// Drop the whole second chapter; primary, backup and context all
	// point into the void.
	root := tree.Root()
	tree.ReplaceChildren(root, root.Children[:1])

	v := m.Validate(context.Background(), snap)
	if !v.ChapterAbsent {
		t.Fatal("chapter absence not detected")
	}
	// 1.0 - 0.4 (chapter) - 0.2 (context): the backup locator's
	// missing chapter must not be charged a second time.
	if math.Abs(v.Confidence-0.4) > 1e-9 {
		t.Errorf("confidence = %f, want 0.4", v.Confidence)
	}
	if !v.Valid {
		t.Error("0.4 is above the 0.3 validity cutoff")
	}
}

func TestRestore_PrimaryLocatorWins(t *testing.T) {
	tree := buildDoc(false)
	display := &fakeDisplay{vp: Viewport{Width: 800, Height: 100, DocHeight: 30}}
	m := newTestManager(tree, display)

	leaf := doctree.Leaves(tree.Root())[1]
	snap, _ := m.Capture(&locator.Anchor{Leaf: leaf, Offset: strings.Index(para1, "Another")})

	res := m.Restore(context.Background(), snap)
	if !res.Success {
		t.Fatalf("restore failed: %+v", res)
	}
	if res.Strategy != StrategyLocatorPrimary {
		t.Errorf("strategy = %s", res.Strategy)
	}
	if math.Abs(res.Confidence-confLocatorPrimary) > 1e-9 {
		t.Errorf("confidence = %f, want %f", res.Confidence, confLocatorPrimary)
	}
	if len(res.Attempts) != 1 || !res.Attempts[0].Success {
		t.Errorf("attempts = %+v", res.Attempts)
	}
	if res.ScrollY != 10 { // para1's laid-out top
		t.Errorf("scroll target = %f, want 10", res.ScrollY)
	}
	if display.vp.ScrollY != 10 || len(display.pulses) != 1 {
		t.Errorf("display scrolled to %f, pulses %v", display.vp.ScrollY, display.pulses)
	}
	if snap.Strategy != StrategyLocatorPrimary {
		t.Errorf("snapshot not superseded: %s", snap.Strategy)
	}
}

func TestRestore_RemovedChapterFallsBackToTop(t *testing.T) {
	tree := buildDoc(true)
	display := &fakeDisplay{vp: Viewport{Width: 800, Height: 100, ScrollY: 25, DocHeight: 40}}
	m := newTestManager(tree, display)

	leaves := doctree.Leaves(tree.Root())
	snap, err := m.Capture(&locator.Anchor{Leaf: leaves[2], Offset: 0})
	if err != nil {
		t.Fatalf("capture: %v", err)
	}

	root := tree.Root()
	tree.ReplaceChildren(root, root.Children[:1])
	m.layout.(*doctree.FlowLayout).Reflow()

	res := m.Restore(context.Background(), snap)
	if res.Success {
		t.Fatal("restore must report failure")
	}
	if res.Strategy != StrategyFallbackTop {
		t.Errorf("strategy = %s, want fallback-top", res.Strategy)
	}
	if res.Confidence < 0.05 || res.Confidence > 0.2 {
		t.Errorf("confidence = %f, want within the fallback band", res.Confidence)
	}

	// Chapter-bound strategies are filtered out up front; the text and
	// viewport strategies are each tried once before the fallback.
	var tried []string
	for _, a := range res.Attempts {
		if a.Success {
			t.Errorf("no attempt should succeed: %+v", a)
		}
		tried = append(tried, a.Strategy)
	}
	want := []string{StrategyTextExact, StrategyTextFuzzy, StrategyViewportRelative, StrategyFallbackTop}
	if len(tried) != len(want) {
		t.Fatalf("tried %v, want %v", tried, want)
	}
	for i := range want {
		if tried[i] != want[i] {
			t.Errorf("attempt %d = %s, want %s", i, tried[i], want[i])
		}
	}
	if display.vp.ScrollY != 0 {
		t.Errorf("fallback should land on the document top, got %f", display.vp.ScrollY)
	}
}

func TestRestore_ScrollOffsetLocator(t *testing.T) {
	tree := buildDoc(false)
	display := &fakeDisplay{vp: Viewport{Width: 800, Height: 100, DocHeight: 30}}
	m := newTestManager(tree, display)

	snap := &Snapshot{
		Primary:        locator.EncodeScrollOffset(12.5),
		ParagraphIndex: -1, SentenceIndex: -1, WordIndex: -1,
	}
	res := m.Restore(context.Background(), snap)
	if !res.Success || res.Strategy != StrategyLocatorPrimary {
		t.Fatalf("restore = %+v", res)
	}
	if display.vp.ScrollY != 12.5 {
		t.Errorf("scroll = %f, want 12.5", display.vp.ScrollY)
	}
}

func TestScrollTo_EasedStepsReachTarget(t *testing.T) {
	tree := buildDoc(false)
	display := &fakeDisplay{vp: Viewport{Width: 800, Height: 100, DocHeight: 30}}
	m := newTestManager(tree, display)

	m.scrollTo(context.Background(), 20)
	if len(display.scrolls) != 4 {
		t.Fatalf("steps = %d, want 4", len(display.scrolls))
	}
	for i := 1; i < len(display.scrolls); i++ {
		if display.scrolls[i] <= display.scrolls[i-1] {
			t.Errorf("scroll not monotonic at step %d: %v", i, display.scrolls)
		}
	}
	if last := display.scrolls[len(display.scrolls)-1]; last != 20 {
		t.Errorf("final scroll = %f, want 20", last)
	}
	// Ease-out: the first step covers more than a linear quarter.
	if display.scrolls[0] <= 5 {
		t.Errorf("first eased step = %f, want > 5", display.scrolls[0])
	}
	if len(display.pulses) != 1 || display.pulses[0] != 20 {
		t.Errorf("pulse = %v", display.pulses)
	}
}
