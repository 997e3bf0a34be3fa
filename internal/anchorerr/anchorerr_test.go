package anchorerr

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/dgallion1/anchor/internal/locator"
)

func TestNew_Recoverability(t *testing.T) {
	nonRecoverable := []Kind{DomManipulationFailed, TimeoutExceeded, InvalidAnnotation, StrategyExhausted}
	for _, k := range nonRecoverable {
		if New(k, "x").Recoverable {
			t.Errorf("%s must be non-recoverable", k)
		}
	}
	recoverable := []Kind{TextNotFound, TextTooShort, StructureChanged, ChapterNotFound, Unknown}
	for _, k := range recoverable {
		if !New(k, "x").Recoverable {
			t.Errorf("%s must be recoverable", k)
		}
	}
}

func TestClassify_PassThroughAndWrapping(t *testing.T) {
	orig := New(TextNotFound, "gone")
	wrapped := fmt.Errorf("attempt 3: %w", orig)
	if got := Classify(wrapped); got != orig {
		t.Errorf("classified wrapped error to %v, want pass-through", got)
	}

	if got := Classify(context.DeadlineExceeded); got.Kind != TimeoutExceeded {
		t.Errorf("deadline classified as %s", got.Kind)
	}
	if got := Classify(errors.New("mystery")); got.Kind != Unknown {
		t.Errorf("unknown error classified as %s", got.Kind)
	}
	if Classify(nil) != nil {
		t.Error("nil must classify to nil")
	}
}

func TestShouldRetry_TypeSpecificCaps(t *testing.T) {
	const maxAttempts = 5
	cases := []struct {
		kind    Kind
		attempt int
		want    bool
	}{
		{TextNotFound, 1, true},
		{TextNotFound, 4, true},
		{TextNotFound, 5, false}, // maxAttempts reached
		{TextTooShort, 1, true},
		{TextTooShort, 2, false}, // capped at 2
		{ContextInsufficient, 1, false},
		{ChapterNotFound, 1, false},
		{TimeoutExceeded, 1, false}, // non-recoverable
		{InvalidAnnotation, 1, false},
	}
	for _, tc := range cases {
		got := ShouldRetry(New(tc.kind, "x"), tc.attempt, maxAttempts)
		if got != tc.want {
			t.Errorf("ShouldRetry(%s, attempt %d) = %v, want %v", tc.kind, tc.attempt, got, tc.want)
		}
	}
}

func TestFallbacks_SuggestionsNarrow(t *testing.T) {
	fb := Fallbacks(New(TextNotFound, "x"))
	if len(fb) == 0 {
		t.Fatal("expected fallback suggestions for TextNotFound")
	}
	for _, s := range fb {
		if s == locator.StrategyExact {
			t.Error("TextNotFound fallbacks should not retry exact search")
		}
	}
	if Fallbacks(New(StrategyExhausted, "x")) != nil {
		t.Error("exhausted strategies have no fallbacks")
	}
}
