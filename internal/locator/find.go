package locator

import (
	"context"
	"strings"

	"github.com/dgallion1/anchor/internal/doctree"
	"github.com/dgallion1/anchor/internal/normalize"
)

// Strategy names a search heuristic. The values are stable: they appear
// in outcomes, logs and persisted annotations.
type Strategy string

const (
	StrategyExact          Strategy = "exact"
	StrategyLocationHinted Strategy = "location_hinted"
	StrategyCrossNode      Strategy = "cross_node"
	StrategyFuzzy          Strategy = "fuzzy"
	StrategyPartial        Strategy = "partial"
	StrategyContext        Strategy = "context"
)

// Match is the result of one search call. Offsets in Segments are byte
// offsets into the original, un-normalized leaf text. Matches are
// ephemeral and never persisted.
type Match struct {
	Segments    []doctree.Segment
	Confidence  float64
	Strategy    Strategy
	ContextUsed bool
}

// Options tune a single Find call.
type Options struct {
	// Hint is an encoded locator near which the text was last seen.
	Hint string
	// Context is surrounding text recorded with the annotation, used
	// to disambiguate short or repeated fragments.
	Context string
	// Allowed restricts the strategy ladder. Nil means all strategies.
	// The retry loop narrows this set between attempts.
	Allowed []Strategy
}

// shortTokenRunes is the normalized length under which a needle is
// treated as a short token: precision-first strategy order, and no
// match at all without a hint or context.
const shortTokenRunes = 3

// Searcher runs the strategy ladder over a document tree. The zero
// value is not usable; construct with NewSearcher.
type Searcher struct {
	Root *doctree.Node

	// Layout, when set, lets the hinted strategy score occurrences by
	// rendered vertical distance instead of leaf-index distance.
	Layout doctree.Layout

	// Empirically chosen knobs, overridable through config.
	MaxCrossNodeLeaves int     // leaves concatenated per cross-node window
	HintRadius         int     // leaves searched around a decoded hint
	FuzzyAcceptance    float64 // minimum fuzzy similarity
	ContextWindow      int     // runes each side of an occurrence
	ContextMinFraction float64 // required fraction of context words
	ContextMaxWords    int     // context words considered
}

// NewSearcher creates a Searcher with default thresholds.
func NewSearcher(root *doctree.Node) *Searcher {
	return &Searcher{
		Root:               root,
		MaxCrossNodeLeaves: 10,
		HintRadius:         20,
		FuzzyAcceptance:    0.7,
		ContextWindow:      300,
		ContextMinFraction: 0.4,
		ContextMaxWords:    10,
	}
}

// Find relocates searchText within scope. It returns (nil, nil) when no
// strategy produced an acceptable match; the only error condition is
// context cancellation. The ladder runs in precision order and the
// first satisfying hit wins.
func (s *Searcher) Find(ctx context.Context, scope *doctree.Node, searchText string, opts Options) (*Match, error) {
	if scope == nil || strings.TrimSpace(searchText) == "" {
		return nil, nil
	}
	needle := normalize.Normalize(searchText)
	if needle == "" {
		return nil, nil
	}

	short := normalize.RuneLen(needle) < shortTokenRunes
	var ladder []Strategy
	if short {
		if opts.Hint == "" && strings.TrimSpace(opts.Context) == "" {
			return nil, nil
		}
		// Precision before recall for short tokens: a two-character
		// needle matches almost anywhere.
		ladder = []Strategy{StrategyLocationHinted, StrategyContext, StrategyExact}
	} else {
		ladder = []Strategy{StrategyExact, StrategyLocationHinted, StrategyCrossNode, StrategyFuzzy, StrategyPartial, StrategyContext}
	}

	for _, strat := range ladder {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !strategyAllowed(strat, opts.Allowed) {
			continue
		}
		var m *Match
		switch strat {
		case StrategyExact:
			if short {
				m = s.exactWordBoundary(scope, needle)
			} else {
				m = s.exact(scope, needle)
			}
		case StrategyLocationHinted:
			m = s.hinted(scope, needle, opts.Hint)
		case StrategyCrossNode:
			m = s.crossNode(scope, needle)
		case StrategyFuzzy:
			m = s.fuzzy(scope, needle)
		case StrategyPartial:
			m = s.partial(scope, needle)
		case StrategyContext:
			m = s.contextual(scope, needle, opts.Context)
		}
		if m != nil {
			return m, nil
		}
	}
	return nil, nil
}

func strategyAllowed(s Strategy, allowed []Strategy) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, a := range allowed {
		if a == s {
			return true
		}
	}
	return false
}
