// Package anchorerr defines the closed error taxonomy shared by the
// highlight applicator and the position restorer, and the classifier
// that maps raw failures onto it. Every failure in the engine is
// classified here before a retry/skip/fail decision is made; nothing
// escapes as an unhandled fault.
package anchorerr

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgallion1/anchor/internal/doctree"
	"github.com/dgallion1/anchor/internal/locator"
)

// Kind is one of the closed set of failure categories.
type Kind string

const (
	TextNotFound                  Kind = "text_not_found"
	TextTooShort                  Kind = "text_too_short"
	TextAmbiguous                 Kind = "text_ambiguous"
	LocatorParseError             Kind = "locator_parse_error"
	LocatorNotFound               Kind = "locator_not_found"
	ChapterNotFound               Kind = "chapter_not_found"
	PositionOutOfBounds           Kind = "position_out_of_bounds"
	StructureChanged              Kind = "structure_changed"
	CrossNodeText                 Kind = "cross_node_text"
	RangeCreationFailed           Kind = "range_creation_failed"
	DomManipulationFailed         Kind = "dom_manipulation_failed"
	FormattingMismatch            Kind = "formatting_mismatch"
	EncodingIssue                 Kind = "encoding_issue"
	WhitespaceNormalizationFailed Kind = "whitespace_normalization_failed"
	InvalidAnnotation             Kind = "invalid_annotation"
	TimeoutExceeded               Kind = "timeout_exceeded"
	ContextInsufficient           Kind = "context_insufficient"
	StrategyExhausted             Kind = "strategy_exhausted"
	Unknown                       Kind = "unknown"
)

// Error is a classified failure. It satisfies the error interface so it
// can flow through ordinary error returns.
type Error struct {
	Kind        Kind
	Message     string
	Context     string
	Recoverable bool
	Strategy    locator.Strategy
	Timestamp   time.Time
}

func (e *Error) Error() string {
	if e.Context != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Kind, e.Message, e.Context)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// New builds a classified error with the kind's default recoverability.
func New(kind Kind, message string) *Error {
	return &Error{
		Kind:        kind,
		Message:     message,
		Recoverable: recoverableByDefault(kind),
		Timestamp:   time.Now(),
	}
}

// WithContext attaches a context string (annotation id, strategy) and
// returns the same error for chaining.
func (e *Error) WithContext(ctx string) *Error {
	e.Context = ctx
	return e
}

// recoverableByDefault encodes the taxonomy's recoverability rules.
func recoverableByDefault(kind Kind) bool {
	switch kind {
	case DomManipulationFailed, TimeoutExceeded, InvalidAnnotation, StrategyExhausted:
		return false
	}
	return true
}

// Classify maps a raw error to the taxonomy. Already-classified errors
// pass through unchanged.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return New(TimeoutExceeded, err.Error())
	case errors.Is(err, context.Canceled):
		return New(TimeoutExceeded, "attempt cancelled")
	case errors.Is(err, doctree.ErrInvalidRange):
		return New(RangeCreationFailed, err.Error())
	}
	return New(Unknown, err.Error())
}

// retryCap returns the kind-specific attempt cap, or 0 for no extra
// cap beyond maxAttempts. The caps come from observed behavior: more
// attempts at these kinds never succeed.
func retryCap(kind Kind) int {
	switch kind {
	case TextTooShort:
		return 2
	case ContextInsufficient, ChapterNotFound:
		return 1
	}
	return 0
}

// ShouldRetry decides whether another attempt is worthwhile after
// attemptCount attempts (1-based) out of maxAttempts.
func ShouldRetry(e *Error, attemptCount, maxAttempts int) bool {
	if e == nil || !e.Recoverable {
		return false
	}
	if attemptCount >= maxAttempts {
		return false
	}
	if limit := retryCap(e.Kind); limit > 0 && attemptCount >= limit {
		return false
	}
	return true
}

// Fallbacks suggests the strategies the next attempt should try, in
// priority order, given what just failed. The applicator intersects
// this with whatever was previously allowed.
func Fallbacks(e *Error) []locator.Strategy {
	if e == nil {
		return nil
	}
	switch e.Kind {
	case TextNotFound:
		return []locator.Strategy{locator.StrategyFuzzy, locator.StrategyPartial, locator.StrategyContext}
	case TextTooShort:
		return []locator.Strategy{locator.StrategyLocationHinted, locator.StrategyContext}
	case TextAmbiguous:
		return []locator.Strategy{locator.StrategyContext, locator.StrategyLocationHinted}
	case LocatorParseError, LocatorNotFound:
		return []locator.Strategy{locator.StrategyExact, locator.StrategyCrossNode, locator.StrategyFuzzy}
	case CrossNodeText:
		return []locator.Strategy{locator.StrategyCrossNode, locator.StrategyFuzzy}
	case StructureChanged:
		return []locator.Strategy{locator.StrategyExact, locator.StrategyLocationHinted, locator.StrategyCrossNode}
	case FormattingMismatch, WhitespaceNormalizationFailed, EncodingIssue:
		return []locator.Strategy{locator.StrategyFuzzy, locator.StrategyPartial}
	case ContextInsufficient:
		return []locator.Strategy{locator.StrategyFuzzy, locator.StrategyPartial}
	}
	return nil
}
