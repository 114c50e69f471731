package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/voltsweep/voltsweep/core/method"
)

func newNewCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "new",
		Short: "Save a method file read from stdin into the custom library",
		Long: "Reads a complete method definition (JSON) from stdin, validates it,\n" +
			"and stores it in the custom method directory under a timestamped name.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return fmt.Errorf("reading method definition: %w", err)
			}

			def, err := method.ParseDefinition(data)
			if err != nil {
				return err
			}

			s, err := a.openStore()
			if err != nil {
				return err
			}
			path, err := s.Save(def, time.Now())
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "saved %q to %s\n", def.Name, path)
			return nil
		},
	}
}
