package loop

import "sync"

// Sample is one logged tick: elapsed seconds since the reference start
// time, the measurement used, the clamped control output, and the
// error setpoint-measurement.
type Sample struct {
	T           float64
	Measurement float64
	Control     float64
	Err         float64
}

// History is the append-only sample log. Only the owning loop appends;
// observers take snapshots. Sample times are monotonically
// non-decreasing in append order.
type History struct {
	mu      sync.RWMutex
	samples []Sample
}

func NewHistory() *History {
	return &History{}
}

func (h *History) Append(s Sample) {
	h.mu.Lock()
	h.samples = append(h.samples, s)
	h.mu.Unlock()
}

func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.samples)
}

func (h *History) Last() (Sample, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if len(h.samples) == 0 {
		return Sample{}, false
	}
	return h.samples[len(h.samples)-1], true
}

// Snapshot returns a copy safe to hand to the display layer.
func (h *History) Snapshot() []Sample {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]Sample, len(h.samples))
	copy(out, h.samples)
	return out
}

func (h *History) Clear() {
	h.mu.Lock()
	h.samples = h.samples[:0]
	h.mu.Unlock()
}
