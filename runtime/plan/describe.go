// Package plan renders a compiled program into a human-readable execution
// plan. The rendering is deterministic and side-effect free; the CLI shows
// it for operator confirmation before a run commits to hardware.
package plan

import (
	"fmt"
	"strings"

	"github.com/voltsweep/voltsweep/core/method"
)

const rule = "----------------------------------------"

// Describe renders program against the given bindings. Bound symbols show
// their resolved value; unbound symbols fall back to their raw name, so a
// partially configured method still renders. Calling Describe twice with
// the same inputs yields identical text.
func Describe(program *method.Program, bindings method.Bindings) string {
	var b strings.Builder

	b.WriteString("Process description\n")
	b.WriteString(rule + "\n")

	for _, block := range program.Blocks {
		fmt.Fprintf(&b, "REPEAT (%s) -> %s times\n",
			block.Repeats, method.DisplayValue(bindings, block.Repeats))

		for _, loop := range block.ForLoops {
			fmt.Fprintf(&b, "  FOR_RANGEV %s=%s, %s=%s, %s=%s\n",
				loop.Start, method.DisplayValue(bindings, loop.Start),
				loop.End, method.DisplayValue(bindings, loop.End),
				loop.Step, method.DisplayValue(bindings, loop.Step))
			b.WriteString("  {\n")
			for _, cmd := range loop.Commands {
				fmt.Fprintf(&b, "    %s\n", describeCommand(cmd, bindings))
			}
			b.WriteString("  }\n")
		}
	}

	b.WriteString(rule + "\n")
	return b.String()
}

func describeCommand(cmd method.Command, bindings method.Bindings) string {
	switch c := cmd.(type) {
	case method.MeanCommand:
		return fmt.Sprintf("MEAN(%s) -> average over %s repetitions",
			c.Repetitions, method.DisplayValue(bindings, c.Repetitions))
	case method.DelayCommand:
		return fmt.Sprintf("DELAY(%s) -> wait %s seconds",
			c.Duration, method.DisplayValue(bindings, c.Duration))
	case method.OutputCommand:
		pairs := make([]string, 0, len(c.Outputs))
		for _, out := range c.Outputs {
			pairs = append(pairs, fmt.Sprintf("%s = %s", out.Name, out.Value))
		}
		return fmt.Sprintf("OUTPUT(%s)", strings.Join(pairs, ", "))
	default:
		return fmt.Sprintf("(unknown command: %T)", cmd)
	}
}
