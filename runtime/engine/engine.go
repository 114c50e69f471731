// Package engine executes a compiled program against an instrument,
// emitting samples to a sink and progress fractions to an observer.
//
// One run owns its instrument handle and sink exclusively from start to
// finish; callers serialize runs per instrument. The engine performs no
// retries: the first instrument or sink failure aborts the run, keeping
// the samples already emitted.
package engine

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/voltsweep/voltsweep/core/invariant"
	"github.com/voltsweep/voltsweep/core/method"
	"github.com/voltsweep/voltsweep/runtime/instrument"
	"github.com/voltsweep/voltsweep/runtime/sink"
)

// Command-level fallbacks. A loop without a MEAN command averages one
// reading; without a DELAY command it does not wait. A DELAY command whose
// symbol is unbound waits one second.
const (
	defaultRepetitions  = 1
	unboundDelaySeconds = 1.0
)

// Config wires one run together.
type Config struct {
	Program    *method.Program
	Bindings   method.Bindings
	Instrument instrument.Instrument
	Sink       sink.Sink

	// OnProgress receives the monotonically non-decreasing progress
	// fraction, once per sweep value, reaching exactly 1.0 on a complete
	// run. Called synchronously from the run goroutine; observers needing
	// another execution context marshal themselves. Optional.
	OnProgress func(fraction float64)

	// OnSample receives each recorded sample after the sink accepted it,
	// in sweep order. Optional.
	OnSample func(s sink.Sample)

	// Logger receives debug-level run tracing. Optional.
	Logger *slog.Logger
}

// Report summarizes a run. On failure it reflects the work completed
// before the abort.
type Report struct {
	TotalSteps int           // step total computed before the run began
	StepsRun   int           // sweep values actually completed
	Samples    int           // samples accepted by the sink
	Duration   time.Duration // wall time of the run
}

// runner holds per-run state.
type runner struct {
	cfg     Config
	logger  *slog.Logger
	report  *Report
	counter int
	total   int
}

// Execute runs the program synchronously to completion or first failure.
// Cancellation is cooperative: the context is checked at every
// sweep-value boundary, so an external stop halts within one sample
// period. The returned report is valid in both outcomes.
func Execute(ctx context.Context, cfg Config) (*Report, error) {
	invariant.NotNil(ctx, "ctx")
	invariant.NotNil(cfg.Program, "cfg.Program")
	invariant.NotNil(cfg.Instrument, "cfg.Instrument")
	invariant.NotNil(cfg.Sink, "cfg.Sink")

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	r := &runner{
		cfg:    cfg,
		logger: logger,
		total:  TotalSteps(cfg.Program, cfg.Bindings),
	}
	r.report = &Report{TotalSteps: r.total}

	started := time.Now()
	err := r.run(ctx)
	r.report.Duration = time.Since(started)

	invariant.Postcondition(err != nil || r.counter == r.total,
		"completed run must execute exactly the computed step total")
	return r.report, err
}

func (r *runner) run(ctx context.Context) error {
	r.logger.Debug("run starting", "blocks", len(r.cfg.Program.Blocks), "total_steps", r.total)

	for bi, block := range r.cfg.Program.Blocks {
		cycles := cycleCount(r.cfg.Bindings, block)
		r.logger.Debug("repeat block", "block", bi+1, "cycles", cycles)

		for cycle := 1; cycle <= cycles; cycle++ {
			for li, loop := range block.ForLoops {
				if err := r.runLoop(ctx, bi, li, loop); err != nil {
					return err
				}
			}
		}
	}

	r.logger.Debug("run complete", "samples", r.report.Samples)
	return nil
}

func (r *runner) runLoop(ctx context.Context, bi, li int, loop method.ForLoop) error {
	reps, delay := effectiveCommands(loop.Commands, r.cfg.Bindings)
	start, end, step := loopRange(r.cfg.Bindings, loop)
	r.logger.Debug("for loop",
		"block", bi+1, "loop", li+1,
		"start", start, "end", end, "step", step,
		"repetitions", reps, "delay", delay)

	for _, v := range SweepValues(start, end, step) {
		if err := ctx.Err(); err != nil {
			return r.stepError(bi, li, v, "cancelled", err)
		}

		if err := r.cfg.Instrument.SetPotential(ctx, v); err != nil {
			return r.stepError(bi, li, v, "set potential", err)
		}

		// Half the delay budget settles the setpoint; the other half is
		// spread across the readings so the total wait per sweep value
		// stays bounded by the configured delay.
		if err := sleep(ctx, delay/2); err != nil {
			return r.stepError(bi, li, v, "cancelled", err)
		}

		sum := 0.0
		perRead := delay / time.Duration(2*reps)
		for i := 0; i < reps; i++ {
			if err := sleep(ctx, perRead); err != nil {
				return r.stepError(bi, li, v, "cancelled", err)
			}
			reading, err := r.cfg.Instrument.ReadCurrent(ctx)
			if err != nil {
				// A failed read aborts the whole sample; no partial
				// average is recorded.
				return r.stepError(bi, li, v, "read current", err)
			}
			sum += reading
		}
		mean := sum / float64(reps)

		if err := r.cfg.Sink.Append(v, mean); err != nil {
			return r.stepError(bi, li, v, "record sample", err)
		}
		r.report.Samples++
		if r.cfg.OnSample != nil {
			r.cfg.OnSample(sink.Sample{Voltage: v, Current: mean})
		}

		r.counter++
		r.report.StepsRun = r.counter
		if r.cfg.OnProgress != nil && r.total > 0 {
			r.cfg.OnProgress(float64(r.counter) / float64(r.total))
		}
	}
	return nil
}

// effectiveCommands scans a loop's command list for the repetition count
// and delay in effect this pass. When MEAN or DELAY appears more than
// once the last occurrence wins; OUTPUT commands carry no run-time value
// and are skipped.
func effectiveCommands(commands []method.Command, bindings method.Bindings) (reps int, delay time.Duration) {
	reps = defaultRepetitions
	seconds := 0.0

	for _, cmd := range commands {
		switch c := cmd.(type) {
		case method.MeanCommand:
			reps = method.IntValue(bindings, c.Repetitions, defaultRepetitions)
		case method.DelayCommand:
			seconds = method.FloatValue(bindings, c.Duration, unboundDelaySeconds)
		}
	}

	if reps < 1 {
		reps = defaultRepetitions
	}
	if seconds < 0 {
		seconds = 0
	}
	return reps, time.Duration(seconds * float64(time.Second))
}

func (r *runner) stepError(bi, li int, v float64, action string, err error) error {
	return fmt.Errorf("repeat block %d, loop %d, V=%gmV: %s: %w", bi+1, li+1, v, action, err)
}

// sleep waits for d, returning early with the context's error on
// cancellation. Zero and negative durations return immediately.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
