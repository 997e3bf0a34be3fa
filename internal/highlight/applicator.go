package highlight

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/dgallion1/anchor/internal/anchorerr"
	"github.com/dgallion1/anchor/internal/doctree"
	"github.com/dgallion1/anchor/internal/locator"
	"github.com/dgallion1/anchor/internal/normalize"
	"github.com/dgallion1/anchor/internal/sched"
	"github.com/dgallion1/anchor/internal/store"
)

// State is an annotation's position in the application state machine.
type State string

const (
	StatePending    State = "pending"
	StateAttempting State = "attempting"
	StateApplied    State = "applied"
	StateSkipped    State = "skipped"
	StateFailed     State = "failed"
)

// Outcome is the per-annotation result reported to callers. A skipped
// annotation simply never gets a marker; the content is untouched.
type Outcome struct {
	ID         string           `json:"id"`
	Applied    bool             `json:"applied"`
	State      State            `json:"state"`
	Strategy   locator.Strategy `json:"strategy,omitempty"`
	Confidence float64          `json:"confidence,omitempty"`
	ErrorKind  anchorerr.Kind   `json:"error_kind,omitempty"`
}

// Config holds the applicator's retry and timing knobs.
type Config struct {
	MaxAttempts        int
	AttemptTimeout     time.Duration
	BaseDelay          time.Duration
	BackoffMultiplier  float64
	MaxDelay           time.Duration
	RevalidateInterval time.Duration
	Stability          StabilityConfig
}

// DefaultConfig returns the service defaults.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:        5,
		AttemptTimeout:     5 * time.Second,
		BaseDelay:          1 * time.Second,
		BackoffMultiplier:  2,
		MaxDelay:           10 * time.Second,
		RevalidateInterval: DefaultRevalidateInterval,
		Stability:          DefaultStabilityConfig(),
	}
}

// Finder is the relocation search the applicator drives. It is
// satisfied by locator.Searcher.
type Finder interface {
	Find(ctx context.Context, scope *doctree.Node, searchText string, opts locator.Options) (*locator.Match, error)
}

// Applicator runs the highlight-application state machine. It
// exclusively owns the marker nodes it inserts; the tracker holds
// lookup-only references for revalidation.
type Applicator struct {
	tree     *doctree.Tree
	searcher Finder
	clock    sched.Clock
	log      *slog.Logger
	report   *Report
	cfg      Config
	tracker  *Tracker

	mu           sync.Mutex
	states       map[string]State
	retryCancels map[string]context.CancelFunc
}

// NewApplicator wires an applicator over a tree.
func NewApplicator(tree *doctree.Tree, searcher Finder, clock sched.Clock, log *slog.Logger, report *Report, cfg Config) *Applicator {
	return &Applicator{
		tree:         tree,
		searcher:     searcher,
		clock:        clock,
		log:          log,
		report:       report,
		cfg:          cfg,
		tracker:      NewTracker(tree),
		states:       make(map[string]State),
		retryCancels: make(map[string]context.CancelFunc),
	}
}

// Tracker exposes the marker tracker for revalidation loops and
// activation lookups.
func (a *Applicator) Tracker() *Tracker {
	return a.tracker
}

// StateOf returns the recorded state for an annotation id.
func (a *Applicator) StateOf(id string) (State, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	s, ok := a.states[id]
	return s, ok
}

func (a *Applicator) setState(id string, s State) {
	a.mu.Lock()
	a.states[id] = s
	a.mu.Unlock()
}

// Apply runs the state machine for one annotation:
// Pending -> Attempting -> {Applied | Skipped | Failed}. Re-applying an
// already-tracked annotation succeeds immediately.
func (a *Applicator) Apply(ctx context.Context, scope *doctree.Node, ann store.Annotation) Outcome {
	log := a.log.With("annotation_id", ann.ID)

	if a.tracker.IsApplied(ann.ID) {
		strategy, conf, _ := a.tracker.Get(ann.ID)
		return Outcome{ID: ann.ID, Applied: true, State: StateApplied, Strategy: strategy, Confidence: conf}
	}

	if strings.TrimSpace(ann.CanonicalText) == "" {
		e := anchorerr.New(anchorerr.InvalidAnnotation, "empty canonical text").WithContext(ann.ID)
		log.Error("rejecting annotation", "error", e)
		a.report.Log(LevelError, e.Error(), ann.ID, "")
		a.setState(ann.ID, StateFailed)
		a.report.RecordOutcome(false)
		return Outcome{ID: ann.ID, Applied: false, State: StateFailed, ErrorKind: e.Kind}
	}

	a.setState(ann.ID, StatePending)
	if err := WaitForStable(ctx, a.tree, a.clock, a.cfg.Stability); err != nil {
		a.setState(ann.ID, StateSkipped)
		a.report.RecordOutcome(false)
		return Outcome{ID: ann.ID, Applied: false, State: StateSkipped, ErrorKind: anchorerr.Classify(err).Kind}
	}

	retryCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	a.mu.Lock()
	a.retryCancels[ann.ID] = cancel
	a.mu.Unlock()
	defer func() {
		a.mu.Lock()
		delete(a.retryCancels, ann.ID)
		a.mu.Unlock()
	}()

	var allowed []locator.Strategy
	var lastErr *anchorerr.Error

	for attempt := 1; attempt <= a.cfg.MaxAttempts; attempt++ {
		a.setState(ann.ID, StateAttempting)

		// The attempt runs on the outer context: an in-flight search
		// completes (or hits its own timeout) even if the annotation
		// is removed meanwhile. Removal is honored before the result
		// is acted on, and between attempts via retryCtx.
		match, e := a.attempt(ctx, scope, ann, allowed)
		if retryCtx.Err() != nil {
			a.report.RecordOutcome(false)
			log.Info("annotation removed mid-attempt")
			return Outcome{ID: ann.ID, Applied: false, State: StateSkipped, ErrorKind: anchorerr.Classify(retryCtx.Err()).Kind}
		}
		if match != nil {
			markers, wrapErr := a.tree.WrapSegments(match.Segments, map[string]string{
				doctree.AttrAnnotationID: ann.ID,
				doctree.AttrKind:         string(ann.Kind),
				doctree.AttrColor:        ann.Color,
			})
			if wrapErr == nil {
				a.tracker.Register(ann.ID, markers, match.Strategy, match.Confidence)
				a.setState(ann.ID, StateApplied)
				a.report.RecordOutcome(true)
				a.report.Log(LevelInfo, fmt.Sprintf("applied on attempt %d", attempt), ann.ID, match.Strategy)
				log.Info("annotation applied", "strategy", match.Strategy, "confidence", match.Confidence, "attempt", attempt)
				return Outcome{ID: ann.ID, Applied: true, State: StateApplied, Strategy: match.Strategy, Confidence: match.Confidence}
			}
			e = anchorerr.Classify(wrapErr)
			e.Strategy = match.Strategy
		}

		lastErr = e
		a.report.Log(LevelError, fmt.Sprintf("attempt %d: %s", attempt, e.Error()), ann.ID, e.Strategy)
		log.Warn("attempt failed", "attempt", attempt, "kind", e.Kind, "recoverable", e.Recoverable)

		if !anchorerr.ShouldRetry(e, attempt, a.cfg.MaxAttempts) {
			break
		}
		if fb := anchorerr.Fallbacks(e); len(fb) > 0 {
			allowed = fb
		} else if len(allowed) > 0 {
			// Already narrowed and the classifier has nothing new to
			// suggest: further attempts would repeat the same search.
			lastErr = anchorerr.New(anchorerr.StrategyExhausted, "no remaining fallback strategies").WithContext(ann.ID)
			a.report.Log(LevelError, lastErr.Error(), ann.ID, "")
			break
		}

		delay := Backoff(attempt, a.cfg.BaseDelay, a.cfg.BackoffMultiplier, a.cfg.MaxDelay)
		if err := a.clock.Sleep(retryCtx, delay); err != nil {
			// Retry cancelled by removal or shutdown.
			a.setState(ann.ID, StateSkipped)
			a.report.RecordOutcome(false)
			return Outcome{ID: ann.ID, Applied: false, State: StateSkipped, ErrorKind: lastErr.Kind}
		}
	}

	a.report.RecordOutcome(false)
	if lastErr != nil && !lastErr.Recoverable {
		a.setState(ann.ID, StateFailed)
		log.Error("annotation failed", "kind", lastErr.Kind)
		return Outcome{ID: ann.ID, Applied: false, State: StateFailed, ErrorKind: lastErr.Kind}
	}
	kind := anchorerr.Unknown
	if lastErr != nil {
		kind = lastErr.Kind
	}
	a.setState(ann.ID, StateSkipped)
	log.Info("annotation skipped", "kind", kind)
	return Outcome{ID: ann.ID, Applied: false, State: StateSkipped, ErrorKind: kind}
}

// attempt runs one search under the per-attempt time budget. The
// deadline runs on the Clock, not wall time, so timeout behavior is
// exercised on virtual time like every other wait. The search walks
// the tree under its read lock.
func (a *Applicator) attempt(ctx context.Context, scope *doctree.Node, ann store.Annotation, allowed []locator.Strategy) (*locator.Match, *anchorerr.Error) {
	attemptCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	type result struct {
		match *locator.Match
		err   error
	}
	done := make(chan result, 1)
	go func() {
		var r result
		a.tree.View(func() {
			r.match, r.err = a.searcher.Find(attemptCtx, scope, ann.CanonicalText, locator.Options{
				Hint:    ann.Locator,
				Context: ann.TextContext,
				Allowed: allowed,
			})
		})
		done <- r
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return nil, anchorerr.Classify(r.err).WithContext(ann.ID)
		}
		if r.match == nil {
			if normalize.RuneLen(ann.CanonicalText) < 3 {
				return nil, anchorerr.New(anchorerr.TextTooShort, fmt.Sprintf("%q is too short to relocate reliably", ann.CanonicalText)).WithContext(ann.ID)
			}
			return nil, anchorerr.New(anchorerr.TextNotFound, "text not found by any allowed strategy").WithContext(ann.ID)
		}
		return r.match, nil
	case <-a.clock.After(a.cfg.AttemptTimeout):
		cancel()
		return nil, anchorerr.New(anchorerr.TimeoutExceeded,
			fmt.Sprintf("search exceeded the %s attempt budget", a.cfg.AttemptTimeout)).WithContext(ann.ID)
	}
}

// Remove cancels any pending retry, unwraps the annotation's markers
// and drops its tracking state.
func (a *Applicator) Remove(id string) {
	a.mu.Lock()
	if cancel, ok := a.retryCancels[id]; ok {
		cancel()
		delete(a.retryCancels, id)
	}
	delete(a.states, id)
	a.mu.Unlock()

	for _, m := range a.tracker.Drop(id) {
		a.tree.Unwrap(m)
	}
}
