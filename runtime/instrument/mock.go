package instrument

import (
	"context"
	"sync"

	"github.com/voltsweep/voltsweep/core/invariant"
)

// MockInstrument is a test instrument that records every operation and
// plays back configurable readings and failures. It is also what the CLI
// uses for dry hardware-free runs.
//
// Example usage:
//
//	mock := NewMockInstrument()
//	mock.QueueReadings(1e-6, 2e-6)
//	mock.FailReadCall(3, io.ErrUnexpectedEOF)
//
//	// ... run ...
//
//	setpoints := mock.Setpoints()
type MockInstrument struct {
	mu sync.Mutex

	readings       []float64
	readPos        int
	defaultReading float64

	setErrAt  map[int]error
	readErrAt map[int]error

	setpoints []float64
	reads     int
	closed    bool
}

// NewMockInstrument creates a mock with a zero default reading.
func NewMockInstrument() *MockInstrument {
	return &MockInstrument{
		setErrAt:  make(map[int]error),
		readErrAt: make(map[int]error),
	}
}

// QueueReadings appends readings returned by successive ReadCurrent calls.
// Once the queue is exhausted the default reading is returned.
func (m *MockInstrument) QueueReadings(values ...float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readings = append(m.readings, values...)
}

// SetDefaultReading sets the reading returned after the queue runs out.
func (m *MockInstrument) SetDefaultReading(value float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.defaultReading = value
}

// FailSetCall makes the n-th SetPotential call (1-based) return err.
func (m *MockInstrument) FailSetCall(n int, err error) {
	invariant.Precondition(n > 0, "call index must be 1-based")
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setErrAt[n] = err
}

// FailReadCall makes the n-th ReadCurrent call (1-based) return err.
func (m *MockInstrument) FailReadCall(n int, err error) {
	invariant.Precondition(n > 0, "call index must be 1-based")
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readErrAt[n] = err
}

// SetPotential records the setpoint and returns any scripted error.
func (m *MockInstrument) SetPotential(ctx context.Context, millivolts float64) error {
	invariant.NotNil(ctx, "ctx")
	m.mu.Lock()
	defer m.mu.Unlock()

	m.setpoints = append(m.setpoints, millivolts)
	if err, ok := m.setErrAt[len(m.setpoints)]; ok {
		return err
	}
	return nil
}

// ReadCurrent returns the next queued reading or the default, honoring any
// scripted failure for this call index.
func (m *MockInstrument) ReadCurrent(ctx context.Context) (float64, error) {
	invariant.NotNil(ctx, "ctx")
	m.mu.Lock()
	defer m.mu.Unlock()

	m.reads++
	if err, ok := m.readErrAt[m.reads]; ok {
		return 0, err
	}
	if m.readPos < len(m.readings) {
		v := m.readings[m.readPos]
		m.readPos++
		return v, nil
	}
	return m.defaultReading, nil
}

// Close marks the mock as closed.
func (m *MockInstrument) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Setpoints returns a copy of every commanded setpoint, in order.
func (m *MockInstrument) Setpoints() []float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]float64, len(m.setpoints))
	copy(out, m.setpoints)
	return out
}

// ReadCount returns how many ReadCurrent calls were made.
func (m *MockInstrument) ReadCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reads
}

// WasClosed reports whether Close was called.
func (m *MockInstrument) WasClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
