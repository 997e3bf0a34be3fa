package book

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dgallion1/anchor/internal/doctree"
	"github.com/dgallion1/anchor/internal/highlight"
	"github.com/dgallion1/anchor/internal/locator"
	"github.com/dgallion1/anchor/internal/parser"
	"github.com/dgallion1/anchor/internal/position"
	"github.com/dgallion1/anchor/internal/sched"
	"github.com/dgallion1/anchor/internal/store"
)

// SessionConfig sizes the virtual screen a session renders into and
// carries the engine knobs.
type SessionConfig struct {
	Highlight            highlight.Config
	Position             position.Config
	FuzzyAcceptance      float64
	ViewportWidth        float64
	ViewportHeight       float64
	CharsPerLine         int
	LineHeight           float64
	BlockGap             float64
	PDFFallbackPdftotext bool
}

// DefaultSessionConfig returns the service defaults.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		Highlight:            highlight.DefaultConfig(),
		Position:             position.DefaultConfig(),
		FuzzyAcceptance:      0.7,
		ViewportWidth:        800,
		ViewportHeight:       1000,
		CharsPerLine:         80,
		LineHeight:           20,
		BlockGap:             12,
		PDFFallbackPdftotext: true,
	}
}

// screen is the session's virtual display: a scroll position over the
// flow layout. Pulses surface on the event stream.
type screen struct {
	mu     sync.Mutex
	vp     position.Viewport
	layout *doctree.FlowLayout
	events *hub
}

func (s *screen) Viewport() position.Viewport {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vp.DocHeight = s.layout.Height()
	return s.vp
}

func (s *screen) SetScroll(y float64) {
	s.mu.Lock()
	s.vp.ScrollY = y
	s.mu.Unlock()
}

func (s *screen) Pulse(y float64) {
	s.events.publish(Event{Type: EventScrollPulse, ScrollY: y})
}

// Session is one open book: the parsed document tree plus the engine
// components working over it.
type Session struct {
	ID   string
	book Book
	meta Metadata

	tree     *doctree.Tree
	layout   *doctree.FlowLayout
	screen   *screen
	searcher *locator.Searcher

	applicator *highlight.Applicator
	positions  *position.Manager
	report     *highlight.Report
	events     *hub
	log        *slog.Logger

	cancel context.CancelFunc
}

// Open parses every spine entry of a ready book into one document tree
// and wires the engine over it. Chapters from all entries are merged
// in spine order.
func Open(ctx context.Context, b Book, clock sched.Clock, log *slog.Logger, cfg SessionConfig) (*Session, error) {
	if err := b.Ready(ctx); err != nil {
		return nil, fmt.Errorf("book not ready: %w", err)
	}

	root := doctree.NewElement("body")
	for _, entry := range b.Spine() {
		p, err := entryParser(entry, cfg)
		if err != nil {
			return nil, fmt.Errorf("spine entry %s: %w", entry, err)
		}
		rc, err := b.ReadEntry(entry)
		if err != nil {
			return nil, err
		}
		doc, err := p.Parse(rc, entry)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", entry, err)
		}
		for _, sec := range doc.Root.Children {
			root.Append(sec)
		}
	}

	tree := doctree.NewTree(root)
	layout := doctree.NewFlowLayout(root, cfg.CharsPerLine, cfg.LineHeight, cfg.BlockGap)
	tree.Observe(layout.Reflow)

	events := newHub()
	scr := &screen{
		vp:     position.Viewport{Width: cfg.ViewportWidth, Height: cfg.ViewportHeight},
		layout: layout,
		events: events,
	}
	searcher := locator.NewSearcher(root)
	searcher.Layout = layout
	if cfg.FuzzyAcceptance > 0 {
		searcher.FuzzyAcceptance = cfg.FuzzyAcceptance
	}
	report := highlight.NewReport(clock, highlight.DefaultReportCap)
	id := store.NewID()
	log = log.With("session_id", id)

	s := &Session{
		ID:         id,
		book:       b,
		meta:       b.Metadata(),
		tree:       tree,
		layout:     layout,
		screen:     scr,
		searcher:   searcher,
		report:     report,
		events:     events,
		log:        log,
		applicator: highlight.NewApplicator(tree, searcher, clock, log, report, cfg.Highlight),
		positions:  position.NewManager(tree, layout, scr, searcher, clock, log, cfg.Position),
	}

	runCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	go s.applicator.Tracker().Run(runCtx, clock, cfg.Highlight.RevalidateInterval)

	return s, nil
}

// entryParser picks the parser for a spine entry and threads the
// session's format knobs into it.
func entryParser(name string, cfg SessionConfig) (parser.Parser, error) {
	p, err := parser.ForFile(name)
	if err != nil {
		return nil, err
	}
	if pdf, ok := p.(*parser.PDFParser); ok {
		pdf.FallbackPdftotext = cfg.PDFFallbackPdftotext
	}
	return p, nil
}

// Metadata returns the book's display information.
func (s *Session) Metadata() Metadata { return s.meta }

// Navigation lists the merged chapters as table-of-contents entries.
func (s *Session) Navigation() []NavPoint {
	var nav []NavPoint
	s.tree.View(func() {
		for i, ch := range doctree.Chapters(s.tree.Root()) {
			title := ch.Attr(parser.AttrTitle)
			if title == "" {
				title = fmt.Sprintf("Chapter %d", i+1)
			}
			nav = append(nav, NavPoint{Title: title, Chapter: i})
		}
	})
	return nav
}

// Subscribe attaches an event listener; the returned func detaches it.
func (s *Session) Subscribe() (<-chan Event, func()) {
	return s.events.Subscribe()
}

// Report exposes the session's diagnostic log.
func (s *Session) Report() *highlight.Report { return s.report }

// Tree exposes the document tree for read access.
func (s *Session) Tree() *doctree.Tree { return s.tree }

// ApplyAnnotations runs each annotation's application as its own
// goroutine; tree mutation is serialized inside the tree. Outcomes
// keep the input order.
func (s *Session) ApplyAnnotations(ctx context.Context, anns []store.Annotation) []highlight.Outcome {
	outcomes := make([]highlight.Outcome, len(anns))
	var wg sync.WaitGroup
	for i, ann := range anns {
		wg.Add(1)
		go func(i int, ann store.Annotation) {
			defer wg.Done()
			out := s.applicator.Apply(ctx, s.tree.Root(), ann)
			outcomes[i] = out
			s.events.publish(outcomeEvent(out))
		}(i, ann)
	}
	wg.Wait()
	return outcomes
}

func outcomeEvent(out highlight.Outcome) Event {
	e := Event{
		AnnotationID: out.ID,
		Strategy:     string(out.Strategy),
		Confidence:   out.Confidence,
		Detail:       string(out.ErrorKind),
	}
	switch out.State {
	case highlight.StateApplied:
		e.Type = EventAnnotationApplied
	case highlight.StateFailed:
		e.Type = EventAnnotationFailed
	default:
		e.Type = EventAnnotationSkipped
	}
	return e
}

// RemoveAnnotation cancels any pending retry and unwraps the markers.
func (s *Session) RemoveAnnotation(id string) {
	s.applicator.Remove(id)
}

// ActivateMarker publishes a marker-activation event for an applied
// annotation, as when the reader taps a highlight.
func (s *Session) ActivateMarker(id string) bool {
	strategy, conf, ok := s.applicator.Tracker().Get(id)
	if !ok || !s.applicator.Tracker().IsApplied(id) {
		return false
	}
	s.events.publish(Event{
		Type:         EventMarkerActivated,
		AnnotationID: id,
		Strategy:     string(strategy),
		Confidence:   conf,
	})
	return true
}

// CapturePosition snapshots the current reading position.
func (s *Session) CapturePosition(selection *locator.Anchor) (*position.Snapshot, error) {
	return s.positions.Capture(selection)
}

// RestorePosition runs the restoration cascade and announces the
// landing point.
func (s *Session) RestorePosition(ctx context.Context, snap *position.Snapshot) position.Result {
	res := s.positions.Restore(ctx, snap)
	s.events.publish(Event{
		Type:       EventPositionRestored,
		Strategy:   res.Strategy,
		Confidence: res.Confidence,
		ScrollY:    res.ScrollY,
	})
	return res
}

// Close stops the revalidation loop and detaches all listeners.
func (s *Session) Close() {
	s.cancel()
	s.events.closeAll()
}
