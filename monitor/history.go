package monitor

import "sync"

// DefaultHistorySize bounds the in-memory event history.
const DefaultHistorySize = 1000

// HistoryBuffer is a fixed-capacity store of events in arrival order.
// Appending beyond capacity evicts the oldest entries.
type HistoryBuffer struct {
	mu     sync.RWMutex
	events []Event
	max    int
}

// NewHistoryBuffer creates a buffer holding at most max events. A max
// of zero or less falls back to DefaultHistorySize.
func NewHistoryBuffer(max int) *HistoryBuffer {
	if max <= 0 {
		max = DefaultHistorySize
	}
	return &HistoryBuffer{
		events: make([]Event, 0, max),
		max:    max,
	}
}

// Append adds an event, evicting the oldest entry when at capacity.
func (h *HistoryBuffer) Append(ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.events = append(h.events, ev)
	if len(h.events) > h.max {
		h.events = h.events[len(h.events)-h.max:]
	}
}

// Snapshot returns a copy of the current contents, oldest first.
// Payload slices are copied too, so writes to the result never reach
// the buffer.
func (h *HistoryBuffer) Snapshot() []Event {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]Event, len(h.events))
	for i, ev := range h.events {
		payload := make([]string, len(ev.Payload))
		copy(payload, ev.Payload)
		ev.Payload = payload
		out[i] = ev
	}
	return out
}

// Clear empties the buffer.
func (h *HistoryBuffer) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = h.events[:0]
}

// Len returns the number of retained events.
func (h *HistoryBuffer) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.events)
}

// Cap returns the maximum number of retained events.
func (h *HistoryBuffer) Cap() int {
	return h.max
}
