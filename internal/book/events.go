package book

import "sync"

// Event types published on a session's stream.
const (
	EventAnnotationApplied = "annotation_applied"
	EventAnnotationSkipped = "annotation_skipped"
	EventAnnotationFailed  = "annotation_failed"
	EventMarkerActivated   = "marker_activated"
	EventPositionRestored  = "position_restored"
	EventScrollPulse       = "scroll_pulse"
)

// Event is one notification from a reading session.
type Event struct {
	Type         string  `json:"type"`
	AnnotationID string  `json:"annotation_id,omitempty"`
	Strategy     string  `json:"strategy,omitempty"`
	Confidence   float64 `json:"confidence,omitempty"`
	ScrollY      float64 `json:"scroll_y,omitempty"`
	Detail       string  `json:"detail,omitempty"`
}

// hub fans session events out to subscribers. Slow subscribers drop
// events rather than block the session.
type hub struct {
	mu   sync.Mutex
	subs map[chan Event]struct{}
}

func newHub() *hub {
	return &hub{subs: make(map[chan Event]struct{})}
}

// Subscribe returns an event channel and its cancel func.
func (h *hub) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 32)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()
	cancel := func() {
		h.mu.Lock()
		if _, ok := h.subs[ch]; ok {
			delete(h.subs, ch)
			close(ch)
		}
		h.mu.Unlock()
	}
	return ch, cancel
}

func (h *hub) publish(e Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

func (h *hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		delete(h.subs, ch)
		close(ch)
	}
}
