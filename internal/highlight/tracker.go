package highlight

import (
	"context"
	"sync"
	"time"

	"github.com/dgallion1/anchor/internal/doctree"
	"github.com/dgallion1/anchor/internal/locator"
	"github.com/dgallion1/anchor/internal/sched"
)

// DefaultRevalidateInterval is how often applied markers are rechecked.
const DefaultRevalidateInterval = 30 * time.Second

// tracked is the bookkeeping for one applied annotation. The tracker
// holds marker pointers for validation lookups only; the applicator
// owns the nodes.
type tracked struct {
	markers    []*doctree.Node
	strategy   locator.Strategy
	confidence float64
	applied    bool
}

// Tracker maps annotation ids to their inserted markers and
// periodically revalidates them. A marker detached from the tree or
// stripped of its id tag flips the entry to unapplied; entries are
// never auto-removed, so callers can notice and re-apply.
type Tracker struct {
	mu      sync.Mutex
	tree    *doctree.Tree
	entries map[string]*tracked
}

// NewTracker creates a tracker over the tree.
func NewTracker(tree *doctree.Tree) *Tracker {
	return &Tracker{tree: tree, entries: make(map[string]*tracked)}
}

// Register records a successful application.
func (t *Tracker) Register(id string, markers []*doctree.Node, strategy locator.Strategy, confidence float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[id] = &tracked{markers: markers, strategy: strategy, confidence: confidence, applied: true}
}

// IsApplied reports whether id has a valid applied marker.
func (t *Tracker) IsApplied(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[id]
	return ok && e.applied
}

// Get returns the tracked strategy and confidence for an applied id.
func (t *Tracker) Get(id string) (locator.Strategy, float64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[id]
	if !ok {
		return "", 0, false
	}
	return e.strategy, e.confidence, true
}

// Drop removes the entry and returns its markers for unwrapping.
func (t *Tracker) Drop(id string) []*doctree.Node {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[id]
	if !ok {
		return nil
	}
	delete(t.entries, id)
	return e.markers
}

// Revalidate checks every applied entry's markers against the tree.
// The parent-pointer walk runs under the tree's read lock so it cannot
// race a concurrent wrap or unwrap.
func (t *Tracker) Revalidate() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.tree.View(func() {
		root := t.tree.Root()
		for _, e := range t.entries {
			if !e.applied {
				continue
			}
			for _, m := range e.markers {
				if !m.Attached(root) || !doctree.IsMarker(m) {
					e.applied = false
					break
				}
			}
		}
	})
}

// Unapplied returns ids whose markers went invalid since application.
func (t *Tracker) Unapplied() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []string
	for id, e := range t.entries {
		if !e.applied {
			out = append(out, id)
		}
	}
	return out
}

// Run revalidates on a fixed interval until ctx is done.
func (t *Tracker) Run(ctx context.Context, clock sched.Clock, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultRevalidateInterval
	}
	for {
		if err := clock.Sleep(ctx, interval); err != nil {
			return
		}
		t.Revalidate()
	}
}
