package engine

import (
	"math"

	"github.com/voltsweep/voltsweep/core/method"
)

// Built-in fallbacks for loop-control symbols missing from the bindings.
// The run proceeds with partial configuration instead of failing.
const (
	defaultCycles = 1
	defaultStart  = 0.0
	defaultEnd    = 1.0
	defaultStep   = 0.1
)

// SweepValues generates the setpoint sequence for one for-loop pass:
// an arithmetic progression from start toward end, inclusive of both
// endpoints, ascending by +|step| when start < end and descending by
// -|step| otherwise. Values accumulate additively with exact float
// comparison, so the sequence stops at the first value past end in the
// direction of travel. A zero step degenerates to the single start value.
func SweepValues(start, end, step float64) []float64 {
	if step == 0 || math.IsNaN(step) {
		return []float64{start}
	}

	inc := math.Abs(step)
	if start >= end {
		inc = -inc
	}

	var values []float64
	if inc > 0 {
		for v := start; v <= end; v += inc {
			values = append(values, v)
		}
	} else {
		for v := start; v >= end; v += inc {
			values = append(values, v)
		}
	}
	return values
}

// StepsInLoop is the number of sweep values one loop pass produces:
// floor(|end-start| / |step|) + 1, inclusive of the final point. Counted
// from the generated sequence itself so progress accounting always agrees
// with execution, float rounding included.
func StepsInLoop(start, end, step float64) int {
	return len(SweepValues(start, end, step))
}

// TotalSteps computes the run's step total before any instrument
// interaction: the sum over every repeat block and for-loop of
// cycles x steps-in-loop, resolving every symbol through bindings up
// front. Used purely for progress-fraction reporting.
func TotalSteps(program *method.Program, bindings method.Bindings) int {
	total := 0
	for _, block := range program.Blocks {
		cycles := cycleCount(bindings, block)
		for _, loop := range block.ForLoops {
			start, end, step := loopRange(bindings, loop)
			total += cycles * StepsInLoop(start, end, step)
		}
	}
	return total
}

// cycleCount resolves a block's repeat count. Negative bindings clamp to
// zero passes; binding problems never abort a run. Both the step total
// and the run loop resolve through here so the two always agree.
func cycleCount(bindings method.Bindings, block method.RepeatBlock) int {
	cycles := method.IntValue(bindings, block.Repeats, defaultCycles)
	if cycles < 0 {
		return 0
	}
	return cycles
}

func loopRange(bindings method.Bindings, loop method.ForLoop) (start, end, step float64) {
	start = method.FloatValue(bindings, loop.Start, defaultStart)
	end = method.FloatValue(bindings, loop.End, defaultEnd)
	step = method.FloatValue(bindings, loop.Step, defaultStep)
	return start, end, step
}
