// Package store holds the annotation data model and the HTTP client
// for the external persistence service. The engine only reads
// annotations and reports outcomes; it never owns their storage.
package store

// Kind is the annotation variant.
type Kind string

const (
	KindHighlight Kind = "highlight"
	KindNote      Kind = "note"
	KindBookmark  Kind = "bookmark"
)

// Annotation is a recorded text annotation as the persistence service
// supplies it. Locator and TextContext are optional but strongly
// improve match quality for short text.
type Annotation struct {
	ID             string  `json:"id"`
	Locator        string  `json:"locator,omitempty"`
	CanonicalText  string  `json:"canonical_text"`
	NormalizedText string  `json:"normalized_text,omitempty"`
	Color          string  `json:"color,omitempty"`
	Kind           Kind    `json:"kind"`
	Note           string  `json:"note,omitempty"`
	TextContext    string  `json:"text_context,omitempty"`
	Confidence     float64 `json:"confidence,omitempty"`
	Strategy       string  `json:"strategy,omitempty"`
	RetryCount     int     `json:"retry_count,omitempty"`
	LastError      string  `json:"last_error,omitempty"`
}
