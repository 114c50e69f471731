package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/voltsweep/voltsweep/runtime/engine"
	"github.com/voltsweep/voltsweep/runtime/parser"
	"github.com/voltsweep/voltsweep/runtime/plan"
)

func newPlanCommand(a *app) *cobra.Command {
	var sets []string

	cmd := &cobra.Command{
		Use:   "plan <method>",
		Short: "Describe what a run of the method would do",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openStore()
			if err != nil {
				return err
			}
			e, err := s.Get(args[0])
			if err != nil {
				return err
			}

			bindings, err := resolveBindings(e.Definition, sets)
			if err != nil {
				return err
			}

			program := parser.Parse(e.Definition.Process)
			if program.Empty() {
				return fmt.Errorf("method %q contains no runnable process", e.Definition.Name)
			}

			out := cmd.OutOrStdout()
			fmt.Fprint(out, plan.Describe(program, bindings))
			fmt.Fprintf(out, "\n%d sweep values in total\n", engine.TotalSteps(program, bindings))
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&sets, "set", nil, "Override an input binding (VAR=VALUE, repeatable)")
	return cmd
}
