// Package instrument abstracts the measurement hardware behind the two
// primitives the engine needs: command a setpoint and read the measured
// quantity. Concrete drivers own connection lifecycle, framing and timeout
// policy; the engine performs no retries of its own.
package instrument

import "context"

// Instrument is the capability set consumed by the execution engine. Both
// calls may block and may fail with an I/O error; any failure is fatal to
// the current run. Implementations are single-session: exactly one run may
// use an instrument handle at a time, and the caller serializes that.
type Instrument interface {
	// SetPotential commands the applied potential, in millivolts.
	SetPotential(ctx context.Context, millivolts float64) error

	// ReadCurrent reads the cell current, in amperes.
	ReadCurrent(ctx context.Context) (float64, error)
}
