package highlight

import (
	"context"
	"time"

	"github.com/dgallion1/anchor/internal/doctree"
	"github.com/dgallion1/anchor/internal/sched"
)

// StabilityConfig controls how long the applicator waits for the tree
// to stop mutating before committing to a search.
type StabilityConfig struct {
	CheckInterval      time.Duration // poll period
	StabilityThreshold int           // consecutive quiet checks required
	MaxWaitTime        time.Duration // hard cap; resolve anyway past this
}

// DefaultStabilityConfig returns the defaults used by the service.
func DefaultStabilityConfig() StabilityConfig {
	return StabilityConfig{
		CheckInterval:      100 * time.Millisecond,
		StabilityThreshold: 3,
		MaxWaitTime:        3 * time.Second,
	}
}

// WaitForStable blocks until the tree has been quiet for
// StabilityThreshold consecutive checks. Any mutation resets the
// streak. A permanently churning tree cannot block forever: once
// MaxWaitTime elapses the wait resolves regardless.
func WaitForStable(ctx context.Context, tree *doctree.Tree, clock sched.Clock, cfg StabilityConfig) error {
	deadline := clock.Now().Add(cfg.MaxWaitTime)
	last := tree.Revision()
	streak := 0
	for {
		if err := clock.Sleep(ctx, cfg.CheckInterval); err != nil {
			return err
		}
		cur := tree.Revision()
		if cur == last {
			streak++
		} else {
			streak = 0
			last = cur
		}
		if streak >= cfg.StabilityThreshold {
			return nil
		}
		if !clock.Now().Before(deadline) {
			// Timeout fallback.
			return nil
		}
	}
}
