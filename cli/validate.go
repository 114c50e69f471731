package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/voltsweep/voltsweep/core/method"
	"github.com/voltsweep/voltsweep/runtime/parser"
)

func newValidateCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file>",
		Short: "Check a method file against the schema and the process language",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			def, err := method.LoadDefinition(args[0])
			if err != nil {
				return err
			}

			program := parser.Parse(def.Process)
			blocks, loops, commands := 0, 0, 0
			for _, block := range program.Blocks {
				blocks++
				for _, loop := range block.ForLoops {
					loops++
					commands += len(loop.Commands)
				}
			}

			out := cmd.OutOrStdout()
			useColor := a.useColor()
			fmt.Fprintf(out, "%s %s\n", colorize("ok", colorGreen, useColor), def.Name)
			fmt.Fprintf(out, "%d repeat blocks, %d for loops, %d commands\n", blocks, loops, commands)

			// The process language degrades by omission: malformed pieces
			// vanish rather than erroring, so a structurally valid file can
			// still compile to nothing runnable.
			if program.Empty() {
				return fmt.Errorf("process text contains no runnable repeat block")
			}
			return nil
		},
	}
}
