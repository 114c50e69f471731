// Package sink receives the samples a run produces. Sinks are append-only
// and see samples in strict sweep order; a sink failure is fatal to the
// run, and rows already appended stay valid.
package sink

import (
	"sync"
)

// Sink is the append-only record consumed by the execution engine.
type Sink interface {
	Append(voltage, current float64) error
}

// Sample is one recorded (setpoint, reading) pair.
type Sample struct {
	Voltage float64
	Current float64
}

// MemorySink keeps samples in memory. Used by tests and by live
// visualization observers; also handy for scripting a failure at a given
// row to exercise abort paths.
type MemorySink struct {
	mu      sync.Mutex
	samples []Sample
	failAt  int
	failErr error
}

// NewMemorySink creates an empty in-memory sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

// FailOn makes the n-th Append call (1-based) return err without
// recording the sample.
func (s *MemorySink) FailOn(n int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failAt = n
	s.failErr = err
}

// Append records one sample.
func (s *MemorySink) Append(voltage, current float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAt > 0 && len(s.samples)+1 == s.failAt {
		return s.failErr
	}
	s.samples = append(s.samples, Sample{Voltage: voltage, Current: current})
	return nil
}

// Samples returns a copy of everything recorded so far, in append order.
func (s *MemorySink) Samples() []Sample {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Sample, len(s.samples))
	copy(out, s.samples)
	return out
}
