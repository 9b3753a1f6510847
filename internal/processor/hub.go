package processor

import (
	"sync"
	"time"
)

// ProgressEvent is one progress update for a processing job, fanned out
// to live subscribers (websocket clients, CLI pollers).
type ProgressEvent struct {
	JobID   string    `json:"jobId"`
	Kind    string    `json:"kind"`
	Stage   string    `json:"stage"`
	Model   string    `json:"model,omitempty"`
	Attempt int       `json:"attempt,omitempty"`
	Text    string    `json:"text,omitempty"`
	Count   int       `json:"count,omitempty"`
	Time    time.Time `json:"time"`
}

// Hub fans progress events out to per-job subscribers. Slow subscribers
// lose events rather than blocking the processor.
type Hub struct {
	mu   sync.Mutex
	subs map[string]map[chan ProgressEvent]struct{}
}

func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[chan ProgressEvent]struct{})}
}

// Subscribe registers for a job's events. The returned cancel func must
// be called to release the subscription.
func (h *Hub) Subscribe(jobID string) (<-chan ProgressEvent, func()) {
	ch := make(chan ProgressEvent, 64)

	h.mu.Lock()
	if h.subs[jobID] == nil {
		h.subs[jobID] = make(map[chan ProgressEvent]struct{})
	}
	h.subs[jobID][ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if set, ok := h.subs[jobID]; ok {
			delete(set, ch)
			if len(set) == 0 {
				delete(h.subs, jobID)
			}
		}
		h.mu.Unlock()
	}
	return ch, cancel
}

// Publish delivers the event to every subscriber of its job, dropping it
// for subscribers whose buffers are full.
func (h *Hub) Publish(ev ProgressEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for ch := range h.subs[ev.JobID] {
		select {
		case ch <- ev:
		default:
		}
	}
}
