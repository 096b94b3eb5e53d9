package metrics

import (
	"sync"
	"time"
)

type sample struct {
	at      time.Time
	ok      bool
	latency time.Duration
}

// Window keeps request outcomes younger than span, capped at capacity
// samples. Safe for concurrent use.
type Window struct {
	mu       sync.Mutex
	span     time.Duration
	capacity int
	samples  []sample
	now      func() time.Time // injectable for testing
}

// NewWindow creates a rolling window.
func NewWindow(span time.Duration, capacity int) *Window {
	if capacity <= 0 {
		capacity = 1024
	}
	return &Window{span: span, capacity: capacity, now: time.Now}
}

// Record adds one outcome.
func (w *Window) Record(ok bool, latency time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.prune()
	if len(w.samples) == w.capacity {
		w.samples = w.samples[1:]
	}
	w.samples = append(w.samples, sample{at: w.now(), ok: ok, latency: latency})
}

// prune drops expired samples. Caller holds mu.
func (w *Window) prune() {
	cutoff := w.now().Add(-w.span)
	i := 0
	for i < len(w.samples) && w.samples[i].at.Before(cutoff) {
		i++
	}
	if i > 0 {
		w.samples = append(w.samples[:0], w.samples[i:]...)
	}
}

// Stats summarises the live samples.
type Stats struct {
	Count        int
	Errors       int
	ErrorRate    float64 // percent
	AvgLatencyMS float64
}

// Stats returns the current window summary.
func (w *Window) Stats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.prune()

	s := Stats{Count: len(w.samples)}
	if s.Count == 0 {
		return s
	}
	var total time.Duration
	for _, x := range w.samples {
		if !x.ok {
			s.Errors++
		}
		total += x.latency
	}
	s.ErrorRate = float64(s.Errors) * 100 / float64(s.Count)
	s.AvgLatencyMS = float64(total.Milliseconds()) / float64(s.Count)
	return s
}
