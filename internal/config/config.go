package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/dgallion1/anchor/internal/book"
	"github.com/dgallion1/anchor/internal/highlight"
	"github.com/dgallion1/anchor/internal/position"
)

// Config holds the service configuration. Every empirically chosen
// engine threshold is a named field here so deployments can override
// it without a rebuild.
type Config struct {
	Port string

	// Annotation store connection
	StoreURL    string
	StoreAPIKey string

	// Auth
	AnchorAPIKey string

	// Book sources
	BooksDir string

	// Highlight application
	MaxAttempts        int
	AttemptTimeout     time.Duration
	BaseDelay          time.Duration
	BackoffMultiplier  float64
	MaxDelay           time.Duration
	RevalidateInterval time.Duration

	// Stability detection
	StabilityCheckInterval time.Duration
	StabilityThreshold     int
	StabilityMaxWait       time.Duration

	// Text location
	FuzzyAcceptance float64

	// Position capture/restore
	ContextBefore     int
	ContextAfter      int
	ValidityThreshold float64
	AcceptThreshold   float64
	InterAttemptDelay time.Duration
	ScrollDuration    time.Duration
	ScrollSteps       int

	// Virtual screen
	ViewportWidth  float64
	ViewportHeight float64
	CharsPerLine   int
	LineHeight     float64
	BlockGap       float64

	// PDF
	PDFFallbackPdftotext bool
}

func Load() Config {
	hl := highlight.DefaultConfig()
	pos := position.DefaultConfig()
	sess := book.DefaultSessionConfig()

	cfg := Config{
		Port: envOr("PORT", "8091"),

		StoreURL:    envOr("STORE_URL", "http://localhost:8080"),
		StoreAPIKey: os.Getenv("STORE_API_KEY"),

		AnchorAPIKey: os.Getenv("ANCHOR_API_KEY"),

		BooksDir: envOr("BOOKS_DIR", "./books"),

		MaxAttempts:        envInt("MAX_ATTEMPTS", hl.MaxAttempts),
		AttemptTimeout:     envDuration("ATTEMPT_TIMEOUT", hl.AttemptTimeout),
		BaseDelay:          envDuration("RETRY_BASE_DELAY", hl.BaseDelay),
		BackoffMultiplier:  envFloat("RETRY_BACKOFF_MULTIPLIER", hl.BackoffMultiplier),
		MaxDelay:           envDuration("RETRY_MAX_DELAY", hl.MaxDelay),
		RevalidateInterval: envDuration("REVALIDATE_INTERVAL", hl.RevalidateInterval),

		StabilityCheckInterval: envDuration("STABILITY_CHECK_INTERVAL", hl.Stability.CheckInterval),
		StabilityThreshold:     envInt("STABILITY_THRESHOLD", hl.Stability.StabilityThreshold),
		StabilityMaxWait:       envDuration("STABILITY_MAX_WAIT", hl.Stability.MaxWaitTime),

		FuzzyAcceptance: envFloat("FUZZY_ACCEPTANCE", 0.7),

		ContextBefore:     envInt("CONTEXT_BEFORE", pos.ContextBefore),
		ContextAfter:      envInt("CONTEXT_AFTER", pos.ContextAfter),
		ValidityThreshold: envFloat("VALIDITY_THRESHOLD", pos.ValidityThreshold),
		AcceptThreshold:   envFloat("ACCEPT_THRESHOLD", pos.AcceptThreshold),
		InterAttemptDelay: envDuration("RESTORE_ATTEMPT_DELAY", pos.InterAttemptDelay),
		ScrollDuration:    envDuration("SCROLL_DURATION", pos.ScrollDuration),
		ScrollSteps:       envInt("SCROLL_STEPS", pos.ScrollSteps),

		ViewportWidth:  envFloat("VIEWPORT_WIDTH", sess.ViewportWidth),
		ViewportHeight: envFloat("VIEWPORT_HEIGHT", sess.ViewportHeight),
		CharsPerLine:   envInt("CHARS_PER_LINE", sess.CharsPerLine),
		LineHeight:     envFloat("LINE_HEIGHT", sess.LineHeight),
		BlockGap:       envFloat("BLOCK_GAP", sess.BlockGap),

		PDFFallbackPdftotext: envBool("PDF_FALLBACK_PDFTOTEXT", true),
	}

	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = hl.MaxAttempts
	}
	if cfg.AttemptTimeout <= 0 {
		cfg.AttemptTimeout = hl.AttemptTimeout
	}
	if cfg.BackoffMultiplier < 1 {
		cfg.BackoffMultiplier = hl.BackoffMultiplier
	}
	if cfg.StabilityThreshold <= 0 {
		cfg.StabilityThreshold = hl.Stability.StabilityThreshold
	}
	if cfg.FuzzyAcceptance <= 0 || cfg.FuzzyAcceptance > 1 {
		cfg.FuzzyAcceptance = 0.7
	}
	if cfg.ScrollSteps <= 0 {
		cfg.ScrollSteps = pos.ScrollSteps
	}
	if cfg.CharsPerLine <= 0 {
		cfg.CharsPerLine = sess.CharsPerLine
	}

	return cfg
}

func (c Config) Validate() error {
	if c.StoreAPIKey == "" {
		return fmt.Errorf("STORE_API_KEY is required")
	}
	if c.AnchorAPIKey == "" {
		return fmt.Errorf("ANCHOR_API_KEY is required")
	}
	if c.AcceptThreshold <= 0 || c.AcceptThreshold >= 1 {
		return fmt.Errorf("ACCEPT_THRESHOLD must be in (0,1)")
	}
	if c.ValidityThreshold <= 0 || c.ValidityThreshold >= 1 {
		return fmt.Errorf("VALIDITY_THRESHOLD must be in (0,1)")
	}
	return nil
}

// HighlightConfig assembles the applicator knobs.
func (c Config) HighlightConfig() highlight.Config {
	return highlight.Config{
		MaxAttempts:        c.MaxAttempts,
		AttemptTimeout:     c.AttemptTimeout,
		BaseDelay:          c.BaseDelay,
		BackoffMultiplier:  c.BackoffMultiplier,
		MaxDelay:           c.MaxDelay,
		RevalidateInterval: c.RevalidateInterval,
		Stability: highlight.StabilityConfig{
			CheckInterval:      c.StabilityCheckInterval,
			StabilityThreshold: c.StabilityThreshold,
			MaxWaitTime:        c.StabilityMaxWait,
		},
	}
}

// PositionConfig assembles the capture/restore knobs.
func (c Config) PositionConfig() position.Config {
	return position.Config{
		ContextBefore:     c.ContextBefore,
		ContextAfter:      c.ContextAfter,
		ValidityThreshold: c.ValidityThreshold,
		AcceptThreshold:   c.AcceptThreshold,
		InterAttemptDelay: c.InterAttemptDelay,
		ScrollDuration:    c.ScrollDuration,
		ScrollSteps:       c.ScrollSteps,
		EnableFallbackTop: true,
	}
}

// SessionConfig assembles a reading session's configuration.
func (c Config) SessionConfig() book.SessionConfig {
	return book.SessionConfig{
		Highlight:            c.HighlightConfig(),
		Position:             c.PositionConfig(),
		FuzzyAcceptance:      c.FuzzyAcceptance,
		ViewportWidth:        c.ViewportWidth,
		ViewportHeight:       c.ViewportHeight,
		CharsPerLine:         c.CharsPerLine,
		LineHeight:           c.LineHeight,
		BlockGap:             c.BlockGap,
		PDFFallbackPdftotext: c.PDFFallbackPdftotext,
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
