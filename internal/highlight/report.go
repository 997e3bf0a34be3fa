// Package highlight applies annotations to the document tree: a
// per-annotation state machine over the text locator, with stability
// waits, classified retries and tracked marker nodes.
package highlight

import (
	"sync"
	"time"

	"github.com/dgallion1/anchor/internal/locator"
	"github.com/dgallion1/anchor/internal/sched"
)

// Level is a report log severity.
type Level string

const (
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Entry is one report log record.
type Entry struct {
	Time         time.Time        `json:"time"`
	Level        Level            `json:"level"`
	Message      string           `json:"message"`
	AnnotationID string           `json:"annotation_id,omitempty"`
	Strategy     locator.Strategy `json:"strategy,omitempty"`
}

// Stats aggregates the report log.
type Stats struct {
	Total        int           `json:"total"`
	ByLevel      map[Level]int `json:"by_level"`
	RecentErrors []Entry       `json:"recent_errors"`
	Applied      int           `json:"applied"`
	NotApplied   int           `json:"not_applied"`
	SuccessRate  float64       `json:"success_rate"`
}

// Report is an append-only bounded diagnostic log. When the cap is
// reached the oldest entries are dropped.
type Report struct {
	mu      sync.Mutex
	clock   sched.Clock
	cap     int
	window  time.Duration
	entries []Entry
	counts  map[Level]int

	applied    int
	notApplied int
}

// DefaultReportCap bounds the in-memory log.
const DefaultReportCap = 1000

// DefaultErrorWindow is the trailing window for Stats.RecentErrors.
const DefaultErrorWindow = 5 * time.Minute

// NewReport creates a report log with the given entry cap.
func NewReport(clock sched.Clock, capacity int) *Report {
	if capacity <= 0 {
		capacity = DefaultReportCap
	}
	return &Report{
		clock:  clock,
		cap:    capacity,
		window: DefaultErrorWindow,
		counts: make(map[Level]int),
	}
}

// Log appends an entry tagged with annotation id and strategy.
func (r *Report) Log(level Level, message, annotationID string, strategy locator.Strategy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, Entry{
		Time:         r.clock.Now(),
		Level:        level,
		Message:      message,
		AnnotationID: annotationID,
		Strategy:     strategy,
	})
	r.counts[level]++
	if len(r.entries) > r.cap {
		drop := len(r.entries) - r.cap
		for _, e := range r.entries[:drop] {
			r.counts[e.Level]--
		}
		r.entries = append([]Entry{}, r.entries[drop:]...)
	}
}

// RecordOutcome feeds the success rate.
func (r *Report) RecordOutcome(applied bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if applied {
		r.applied++
	} else {
		r.notApplied++
	}
}

// Stats returns aggregate counts and the errors within the trailing
// window.
func (r *Report) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := Stats{
		Total:      len(r.entries),
		ByLevel:    make(map[Level]int, len(r.counts)),
		Applied:    r.applied,
		NotApplied: r.notApplied,
	}
	for k, v := range r.counts {
		s.ByLevel[k] = v
	}
	cutoff := r.clock.Now().Add(-r.window)
	for _, e := range r.entries {
		if e.Level == LevelError && !e.Time.Before(cutoff) {
			s.RecentErrors = append(s.RecentErrors, e)
		}
	}
	if total := r.applied + r.notApplied; total > 0 {
		s.SuccessRate = float64(r.applied) / float64(total)
	}
	return s
}

// Dump returns a copy of all entries for diagnostics.
func (r *Report) Dump() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}
