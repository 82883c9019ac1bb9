// Package telemetry records task usage metrics. Sinks are best-effort:
// they never return errors and must be safe for concurrent use.
package telemetry

import "time"

// Sink receives one sample per executed task.
type Sink interface {
	Record(kind string, success bool, duration time.Duration)
}

// LoadObserver is implemented by sinks that track in-flight task count.
type LoadObserver interface {
	ObserveInFlight(n int64)
}

// Nop discards every sample.
type Nop struct{}

func (Nop) Record(string, bool, time.Duration) {}

// Multi fans samples out to several sinks.
type Multi []Sink

// Record forwards the sample to every sink. A panicking sink does not stop
// the others.
func (m Multi) Record(kind string, success bool, duration time.Duration) {
	for _, s := range m {
		safeRecord(s, kind, success, duration)
	}
}

// ObserveInFlight forwards to every sink that implements LoadObserver.
func (m Multi) ObserveInFlight(n int64) {
	for _, s := range m {
		if lo, ok := s.(LoadObserver); ok {
			lo.ObserveInFlight(n)
		}
	}
}

func safeRecord(s Sink, kind string, success bool, duration time.Duration) {
	defer func() { _ = recover() }()
	s.Record(kind, success, duration)
}

// SafeRecord records on s, ignoring nil sinks and panics.
func SafeRecord(s Sink, kind string, success bool, duration time.Duration) {
	if s == nil {
		return
	}
	safeRecord(s, kind, success, duration)
}
