// Package position captures and restores the reading position across
// re-renders: a rich multi-locator snapshot on the way out, a cascading
// strategy ladder plus eased scroll on the way back in.
package position

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// Viewport is the visible-window geometry at a point in time.
type Viewport struct {
	Width      float64 `json:"width"`
	Height     float64 `json:"height"`
	ScrollY    float64 `json:"scroll_y"`
	DocHeight  float64 `json:"doc_height"`
	PixelRatio float64 `json:"pixel_ratio,omitempty"`
}

// FontSettings is the typography part of the environment fingerprint.
type FontSettings struct {
	Family     string  `json:"family,omitempty"`
	Size       float64 `json:"size,omitempty"`
	LineHeight float64 `json:"line_height,omitempty"`
}

// DisplaySettings covers theme and layout knobs that trigger re-flows.
type DisplaySettings struct {
	Theme   string  `json:"theme,omitempty"`
	Margin  float64 `json:"margin,omitempty"`
	Columns int     `json:"columns,omitempty"`
}

// Snapshot records where the reader was, redundantly enough that at
// least one restoration strategy should survive a re-flow. Optional
// indices use -1 for absent. A snapshot is superseded wholesale on each
// successful restoration.
type Snapshot struct {
	Primary         string          `json:"primary"`
	Backup          string          `json:"backup,omitempty"`
	TextContext     string          `json:"text_context,omitempty"`
	ParagraphIndex  int             `json:"paragraph_index"`
	SentenceIndex   int             `json:"sentence_index"`
	WordIndex       int             `json:"word_index"`
	ChapterFraction float64         `json:"chapter_fraction"`
	Viewport        Viewport        `json:"viewport"`
	FontSettings    FontSettings    `json:"font_settings"`
	DisplaySettings DisplaySettings `json:"display_settings"`
	SettingsHash    string          `json:"settings_hash"`
	Timestamp       time.Time       `json:"timestamp"`
	Strategy        string          `json:"strategy,omitempty"`
	Confidence      float64         `json:"confidence"`
}

// Restoration strategy names, in cascade order.
const (
	StrategyLocatorPrimary   = "locator-primary"
	StrategyLocatorBackup    = "locator-backup"
	StrategyTextExact        = "text-exact"
	StrategyTextFuzzy        = "text-fuzzy"
	StrategyParagraphWord    = "paragraph-word"
	StrategyChapterPercent   = "chapter-percentage"
	StrategyViewportRelative = "viewport-relative"
	StrategyFallbackTop      = "fallback-top"
)

// Attempt is one cascade step's outcome.
type Attempt struct {
	Strategy   string    `json:"strategy"`
	Success    bool      `json:"success"`
	Confidence float64   `json:"confidence"`
	Err        string    `json:"error,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// Result aggregates a whole restoration run.
type Result struct {
	Success    bool      `json:"success"`
	Strategy   string    `json:"strategy,omitempty"`
	Confidence float64   `json:"confidence"`
	ScrollY    float64   `json:"scroll_y"`
	Attempts   []Attempt `json:"attempts"`
}

// Validation is validatePosition's verdict on a stale snapshot.
type Validation struct {
	Confidence    float64
	Valid         bool
	ChapterAbsent bool
}

// Display is the screen the restorer drives: current geometry, scroll
// target, and the transient confirmation pulse after a restore.
type Display interface {
	Viewport() Viewport
	SetScroll(y float64)
	Pulse(y float64)
}

// Config holds the capture/restore thresholds. All cutoffs are
// empirically chosen and deliberately kept overridable.
type Config struct {
	ContextBefore     int           // runes of context captured before the anchor
	ContextAfter      int           // runes after
	ValidityThreshold float64       // snapshot valid iff confidence exceeds this
	AcceptThreshold   float64       // first cascade result above this wins
	InterAttemptDelay time.Duration // pause between cascade steps
	ScrollDuration    time.Duration // eased-scroll animation length
	ScrollSteps       int           // frames per eased scroll
	EnableFallbackTop bool          // land on the document top when all else fails
}

// DefaultConfig returns the service defaults.
func DefaultConfig() Config {
	return Config{
		ContextBefore:     50,
		ContextAfter:      50,
		ValidityThreshold: 0.3,
		AcceptThreshold:   0.5,
		InterAttemptDelay: 100 * time.Millisecond,
		ScrollDuration:    400 * time.Millisecond,
		ScrollSteps:       16,
		EnableFallbackTop: true,
	}
}

// SettingsHash fingerprints the rendering environment for cheap
// change detection.
func SettingsHash(vp Viewport, font FontSettings, disp DisplaySettings) string {
	h := sha256.New()
	fmt.Fprintf(h, "%gx%g@%g|%s/%g/%g|%s/%g/%d",
		vp.Width, vp.Height, vp.PixelRatio,
		font.Family, font.Size, font.LineHeight,
		disp.Theme, disp.Margin, disp.Columns)
	return hex.EncodeToString(h.Sum(nil))[:16]
}

// fractionOf returns how far a chapter offset sits through the chapter.
func fractionOf(off, textLen int) float64 {
	if textLen <= 0 {
		return 0
	}
	f := float64(off) / float64(textLen)
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
