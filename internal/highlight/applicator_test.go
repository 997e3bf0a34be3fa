package highlight

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/dgallion1/anchor/internal/anchorerr"
	"github.com/dgallion1/anchor/internal/doctree"
	"github.com/dgallion1/anchor/internal/locator"
	"github.com/dgallion1/anchor/internal/sched"
	"github.com/dgallion1/anchor/internal/store"
)

// fastConfig removes all real waiting so tests run instantly under the
// fake clock: zero-length sleeps are immediately ready.
func fastConfig() Config {
	cfg := DefaultConfig()
	cfg.BaseDelay = 0
	cfg.MaxDelay = 0
	cfg.AttemptTimeout = 5 * time.Second
	cfg.Stability = StabilityConfig{CheckInterval: 0, StabilityThreshold: 1, MaxWaitTime: 0}
	return cfg
}

func newTestApplicator(paras ...string) (*Applicator, *doctree.Tree) {
	root := doctree.NewElement("body")
	sec := doctree.NewElement("section")
	for _, p := range paras {
		para := doctree.NewElement("p")
		para.Append(doctree.NewText(p))
		sec.Append(para)
	}
	root.Append(sec)
	tree := doctree.NewTree(root)

	clock := sched.NewFake(time.Unix(0, 0))
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	report := NewReport(clock, DefaultReportCap)
	app := NewApplicator(tree, locator.NewSearcher(root), clock, log, report, fastConfig())
	return app, tree
}

func TestApply_ExactPhraseWithLocator(t *testing.T) {
	app, tree := newTestApplicator(
		"A chapter opens with some length of introductory prose to push the offset forward before anything notable happens in the narrative at all.",
		"And then the quick brown fox jumps over the lazy dog.",
	)

	out := app.Apply(context.Background(), tree.Root(), store.Annotation{
		ID:            "a1",
		CanonicalText: "the quick brown fox",
		Locator:       "locator(chapter-0-150)",
		Kind:          store.KindHighlight,
		Color:         "yellow",
	})
	if !out.Applied {
		t.Fatalf("not applied: %+v", out)
	}
	if out.Strategy != locator.StrategyExact && out.Strategy != locator.StrategyLocationHinted {
		t.Errorf("strategy = %s, want exact or location_hinted", out.Strategy)
	}
	if out.Confidence < 0.85 {
		t.Errorf("confidence = %f, want >= 0.85", out.Confidence)
	}

	m := doctree.FindMarker(tree.Root(), "a1")
	if m == nil {
		t.Fatal("marker not inserted")
	}
	if m.TextContent() != "the quick brown fox" {
		t.Errorf("marker wraps %q", m.TextContent())
	}
	if m.Attr(doctree.AttrColor) != "yellow" || m.Attr(doctree.AttrKind) != "highlight" {
		t.Error("marker missing kind/color tags")
	}
}

func TestApply_Idempotent(t *testing.T) {
	app, tree := newTestApplicator("the quick brown fox jumps over the lazy dog")
	ann := store.Annotation{ID: "a1", CanonicalText: "quick brown fox", Kind: store.KindHighlight}

	first := app.Apply(context.Background(), tree.Root(), ann)
	second := app.Apply(context.Background(), tree.Root(), ann)
	if !first.Applied || !second.Applied {
		t.Fatalf("expected both applications to succeed: %+v / %+v", first, second)
	}

	// Only one marker may exist.
	count := 0
	tree.Root().Walk(func(n *doctree.Node) bool {
		if doctree.IsMarker(n) {
			count++
		}
		return true
	})
	if count != 1 {
		t.Errorf("marker count = %d, want 1", count)
	}
}

func TestApply_EmptyTextRejectedUpfront(t *testing.T) {
	app, tree := newTestApplicator("anything")

	out := app.Apply(context.Background(), tree.Root(), store.Annotation{ID: "a1", CanonicalText: "   ", Kind: store.KindNote})
	if out.Applied || out.State != StateFailed {
		t.Fatalf("expected immediate failure, got %+v", out)
	}
	if out.ErrorKind != anchorerr.InvalidAnnotation {
		t.Errorf("error kind = %s, want invalid_annotation", out.ErrorKind)
	}
}

func TestApply_RemovedTextSkipsWithErrorLog(t *testing.T) {
	app, tree := newTestApplicator("completely different prose with nothing to find")

	out := app.Apply(context.Background(), tree.Root(), store.Annotation{
		ID:            "gone",
		CanonicalText: "the vanished sentence nobody kept",
		Kind:          store.KindHighlight,
	})
	if out.Applied {
		t.Fatal("must not apply removed text")
	}
	if out.State != StateSkipped {
		t.Errorf("state = %s, want skipped", out.State)
	}
	if out.ErrorKind != anchorerr.TextNotFound {
		t.Errorf("error kind = %s, want text_not_found", out.ErrorKind)
	}

	// One error-level entry per failed attempt.
	stats := app.report.Stats()
	if stats.ByLevel[LevelError] != app.cfg.MaxAttempts {
		t.Errorf("error entries = %d, want %d", stats.ByLevel[LevelError], app.cfg.MaxAttempts)
	}
	if doctree.FindMarker(tree.Root(), "gone") != nil {
		t.Error("content must be untouched on skip")
	}
}

func TestApply_ShortTokenCapsRetries(t *testing.T) {
	app, _ := newTestApplicator("letters but not the needle")
	root := app.tree.Root()

	out := app.Apply(context.Background(), root, store.Annotation{ID: "s1", CanonicalText: "zq", Kind: store.KindHighlight})
	if out.Applied || out.ErrorKind != anchorerr.TextTooShort {
		t.Fatalf("got %+v, want text_too_short skip", out)
	}
	stats := app.report.Stats()
	if stats.ByLevel[LevelError] != 2 {
		t.Errorf("error entries = %d, want the TextTooShort cap of 2", stats.ByLevel[LevelError])
	}
}

func TestRemove_UnwrapsAndForgets(t *testing.T) {
	app, tree := newTestApplicator("the quick brown fox jumps")
	ann := store.Annotation{ID: "a1", CanonicalText: "quick brown", Kind: store.KindHighlight}

	if out := app.Apply(context.Background(), tree.Root(), ann); !out.Applied {
		t.Fatalf("setup apply failed: %+v", out)
	}
	app.Remove("a1")

	if doctree.FindMarker(tree.Root(), "a1") != nil {
		t.Error("marker still present after removal")
	}
	if app.Tracker().IsApplied("a1") {
		t.Error("tracker still reports applied")
	}
	leaf := doctree.Leaves(tree.Root())[0]
	if leaf.Text != "the quick brown fox jumps" {
		t.Errorf("text not restored: %q", leaf.Text)
	}
}

func TestTracker_RevalidationFlagsDetachedMarkers(t *testing.T) {
	app, tree := newTestApplicator("the quick brown fox jumps")
	ann := store.Annotation{ID: "a1", CanonicalText: "quick brown", Kind: store.KindHighlight}
	if out := app.Apply(context.Background(), tree.Root(), ann); !out.Applied {
		t.Fatalf("setup apply failed: %+v", out)
	}

	// Re-render wipes the paragraph; the marker is now detached.
	sec := tree.Root().Children[0]
	tree.ReplaceChildren(sec, nil)

	app.Tracker().Revalidate()
	if app.Tracker().IsApplied("a1") {
		t.Error("detached marker still counted as applied")
	}
	unapplied := app.Tracker().Unapplied()
	if len(unapplied) != 1 || unapplied[0] != "a1" {
		t.Errorf("Unapplied() = %v", unapplied)
	}
	// Entry is flagged, not removed: the id remains visible.
	if _, _, ok := app.Tracker().Get("a1"); !ok {
		t.Error("tracker entry should survive invalidation")
	}
}

// stallFinder parks every search until released, recording the context
// state it saw on the way out.
type stallFinder struct {
	started chan struct{}
	release chan *locator.Match
	ctxErr  error
}

func (f *stallFinder) Find(ctx context.Context, scope *doctree.Node, text string, opts locator.Options) (*locator.Match, error) {
	f.started <- struct{}{}
	select {
	case <-ctx.Done():
		f.ctxErr = ctx.Err()
		return nil, ctx.Err()
	case m := <-f.release:
		f.ctxErr = ctx.Err()
		return m, nil
	}
}

func newStallFinder() *stallFinder {
	return &stallFinder{started: make(chan struct{}, 1), release: make(chan *locator.Match)}
}

func TestApply_AttemptTimeoutFailsNonRecoverable(t *testing.T) {
	root := doctree.NewElement("body")
	sec := doctree.NewElement("section")
	para := doctree.NewElement("p")
	para.Append(doctree.NewText("the quick brown fox jumps"))
	sec.Append(para)
	root.Append(sec)
	tree := doctree.NewTree(root)

	clock := sched.NewFake(time.Unix(0, 0))
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	finder := newStallFinder()
	cfg := fastConfig()
	app := NewApplicator(tree, finder, clock, log, NewReport(clock, DefaultReportCap), cfg)

	outCh := make(chan Outcome, 1)
	go func() {
		outCh <- app.Apply(context.Background(), tree.Root(), store.Annotation{
			ID: "slow", CanonicalText: "quick brown fox", Kind: store.KindHighlight,
		})
	}()

	<-finder.started
	for clock.Pending() == 0 {
		time.Sleep(time.Millisecond)
	}
	clock.Advance(cfg.AttemptTimeout)

	out := <-outCh
	if out.Applied || out.State != StateFailed {
		t.Fatalf("outcome = %+v, want a failed state", out)
	}
	if out.ErrorKind != anchorerr.TimeoutExceeded {
		t.Errorf("error kind = %s, want %s", out.ErrorKind, anchorerr.TimeoutExceeded)
	}
	if doctree.FindMarker(tree.Root(), "slow") != nil {
		t.Error("marker inserted despite timeout")
	}
}

func TestRemove_LetsInFlightAttemptFinish(t *testing.T) {
	root := doctree.NewElement("body")
	sec := doctree.NewElement("section")
	para := doctree.NewElement("p")
	para.Append(doctree.NewText("the quick brown fox jumps"))
	sec.Append(para)
	root.Append(sec)
	tree := doctree.NewTree(root)

	clock := sched.NewFake(time.Unix(0, 0))
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	finder := newStallFinder()
	app := NewApplicator(tree, finder, clock, log, NewReport(clock, DefaultReportCap), fastConfig())

	outCh := make(chan Outcome, 1)
	go func() {
		outCh <- app.Apply(context.Background(), tree.Root(), store.Annotation{
			ID: "a1", CanonicalText: "quick brown fox", Kind: store.KindHighlight,
		})
	}()

	<-finder.started
	app.Remove("a1")

	leaf := doctree.Leaves(tree.Root())[0]
	finder.release <- &locator.Match{
		Segments:   []doctree.Segment{{Leaf: leaf, Start: 4, End: 19}},
		Confidence: 1.0,
		Strategy:   locator.StrategyExact,
	}

	out := <-outCh
	if finder.ctxErr != nil {
		t.Fatalf("removal aborted the in-flight attempt: %v", finder.ctxErr)
	}
	if out.Applied || out.State != StateSkipped {
		t.Fatalf("outcome = %+v, want skipped after removal", out)
	}
	if doctree.FindMarker(tree.Root(), "a1") != nil {
		t.Error("marker inserted for a removed annotation")
	}
	if app.Tracker().IsApplied("a1") {
		t.Error("removed annotation still tracked as applied")
	}
}
