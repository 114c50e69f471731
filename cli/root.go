// Package cli assembles the voltsweep command tree: listing and
// inspecting stored methods, previewing a run plan, and driving a run
// against a real or mock instrument.
package cli

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/voltsweep/voltsweep/runtime/store"
)

// Default method directories, relative to the working directory.
const (
	defaultBuiltinDir = "Methods/BuiltIn"
	defaultCustomDir  = "Methods/Custom"
)

// app carries the flag state shared by every subcommand.
type app struct {
	builtinDir string
	customDir  string
	debug      bool
	noColor    bool
}

// New builds the root command.
func New() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "voltsweep",
		Short:         "Run stored electrochemical measurement methods",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&a.builtinDir, "methods-dir", defaultBuiltinDir, "Directory of built-in method files")
	root.PersistentFlags().StringVar(&a.customDir, "custom-dir", defaultCustomDir, "Directory of operator-saved method files")
	root.PersistentFlags().BoolVar(&a.debug, "debug", false, "Enable debug output")
	root.PersistentFlags().BoolVar(&a.noColor, "no-color", false, "Disable colored output")

	root.AddCommand(
		newListCommand(a),
		newShowCommand(a),
		newPlanCommand(a),
		newRunCommand(a),
		newValidateCommand(a),
		newNewCommand(a),
	)
	return root
}

// logger builds the shared slog logger: text on stderr with time and
// level attrs stripped, debug level behind --debug.
func (a *app) logger() *slog.Logger {
	level := slog.LevelInfo
	if a.debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, attr slog.Attr) slog.Attr {
			if attr.Key == slog.TimeKey || attr.Key == slog.LevelKey {
				return slog.Attr{}
			}
			return attr
		},
	}))
}

// openStore loads the method library once.
func (a *app) openStore() (*store.Store, error) {
	s := store.New(a.builtinDir, a.customDir, a.logger())
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

func (a *app) useColor() bool {
	return shouldUseColor(a.noColor)
}
