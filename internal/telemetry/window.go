package telemetry

import (
	"sort"
	"sync"
	"time"
)

// Sample is one recorded task execution.
type Sample struct {
	Kind     string
	Success  bool
	Duration time.Duration
	At       time.Time
}

// KindStats aggregates the samples of one kind.
type KindStats struct {
	Count       int
	Failures    int
	SuccessRate float64
	AvgDuration time.Duration
}

// Window keeps the most recent samples in a fixed-size ring buffer.
type Window struct {
	mu   sync.Mutex
	buf  []Sample
	next int
	full bool
	now  func() time.Time
}

// NewWindow creates a window holding at most size samples.
func NewWindow(size int) *Window {
	if size <= 0 {
		size = 256
	}
	return &Window{
		buf: make([]Sample, size),
		now: time.Now,
	}
}

// Record implements Sink.
func (w *Window) Record(kind string, success bool, duration time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.buf[w.next] = Sample{Kind: kind, Success: success, Duration: duration, At: w.now()}
	w.next = (w.next + 1) % len(w.buf)
	if w.next == 0 {
		w.full = true
	}
}

// Len returns the number of samples held.
func (w *Window) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.full {
		return len(w.buf)
	}
	return w.next
}

// Snapshot returns the held samples, oldest first.
func (w *Window) Snapshot() []Sample {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.full {
		return append([]Sample(nil), w.buf[:w.next]...)
	}
	out := make([]Sample, 0, len(w.buf))
	out = append(out, w.buf[w.next:]...)
	out = append(out, w.buf[:w.next]...)
	return out
}

// Stats aggregates the held samples per kind.
func (w *Window) Stats() map[string]KindStats {
	samples := w.Snapshot()

	totals := make(map[string]time.Duration)
	stats := make(map[string]KindStats)
	for _, s := range samples {
		ks := stats[s.Kind]
		ks.Count++
		if !s.Success {
			ks.Failures++
		}
		stats[s.Kind] = ks
		totals[s.Kind] += s.Duration
	}
	for kind, ks := range stats {
		ks.SuccessRate = float64(ks.Count-ks.Failures) / float64(ks.Count)
		ks.AvgDuration = totals[kind] / time.Duration(ks.Count)
		stats[kind] = ks
	}
	return stats
}

// Kinds returns the kinds present in the window, sorted.
func (w *Window) Kinds() []string {
	stats := w.Stats()
	kinds := make([]string, 0, len(stats))
	for k := range stats {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}
