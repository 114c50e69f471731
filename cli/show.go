package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newShowCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show <method>",
		Short: "Show a method's process text and inputs",
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

			def := e.Definition
			out := cmd.OutOrStdout()
			useColor := a.useColor()

			fmt.Fprintln(out, colorize(def.Name, colorCyan, useColor))
			if def.Description != "" {
				fmt.Fprintln(out, def.Description)
			}
			fmt.Fprintf(out, "file: %s\n\n", e.Path)
			fmt.Fprintln(out, def.Process)

			if len(def.Inputs) > 0 {
				fmt.Fprintln(out)
				fmt.Fprintln(out, "inputs:")
				for _, in := range def.Inputs {
					line := fmt.Sprintf("  %s = %s", in.Variable, in.Label)
					if in.Default != "" {
						line += fmt.Sprintf(" (default %s)", in.Default.String())
					}
					fmt.Fprintln(out, line)
				}
			}
			return nil
		},
	}
}
