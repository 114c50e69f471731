package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/voltsweep/voltsweep/runtime/store"
)

func newListCommand(a *app) *cobra.Command {
	var watch bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the stored methods",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openStore()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			useColor := a.useColor()
			printMethods(out, s, useColor)

			if !watch {
				return nil
			}

			// Follow the method directories until interrupted, reprinting
			// the library after every change.
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			err = s.Watch(ctx, func() {
				fmt.Fprintln(out)
				printMethods(out, s, useColor)
			})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}

	cmd.Flags().BoolVar(&watch, "watch", false, "Keep running and reprint when method files change")
	return cmd
}

func printMethods(out io.Writer, s *store.Store, useColor bool) {
	entries := s.Entries()
	if len(entries) == 0 {
		fmt.Fprintln(out, "no methods found")
		return
	}

	for _, e := range entries {
		origin := "built-in"
		if e.Custom {
			origin = "custom"
		}
		name := colorize(e.Definition.Name, colorCyan, useColor)
		fmt.Fprintf(out, "%s  %s\n", name, colorize("("+origin+")", colorGray, useColor))
		if e.Definition.Description != "" {
			fmt.Fprintf(out, "    %s\n", e.Definition.Description)
		}
	}
}
