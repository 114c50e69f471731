package cli

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/voltsweep/voltsweep/core/method"
	"github.com/voltsweep/voltsweep/core/recfile"
	"github.com/voltsweep/voltsweep/runtime/engine"
	"github.com/voltsweep/voltsweep/runtime/instrument"
	"github.com/voltsweep/voltsweep/runtime/parser"
	"github.com/voltsweep/voltsweep/runtime/plan"
	"github.com/voltsweep/voltsweep/runtime/sink"
)

func newRunCommand(a *app) *cobra.Command {
	var (
		sets       []string
		outDir     string
		experiment string
		recordPath string
		mock       bool
		port       string
		yes        bool
	)

	cmd := &cobra.Command{
		Use:   "run <method>",
		Short: "Execute a method against the instrument",
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

			bindings, err := resolveBindings(def, sets)
			if err != nil {
				return err
			}

			program := parser.Parse(def.Process)
			if program.Empty() {
				return fmt.Errorf("method %q contains no runnable process", def.Name)
			}

			out := cmd.OutOrStdout()
			fmt.Fprint(out, plan.Describe(program, bindings))
			fmt.Fprintf(out, "%d sweep values in total\n\n", engine.TotalSteps(program, bindings))

			// Everything above is side-effect free. Declining here leaves
			// no file and no instrument traffic behind.
			if !yes {
				ok, err := confirm(cmd.InOrStdin(), out, fmt.Sprintf("Run %q?", def.Name))
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintln(out, "run cancelled")
					return nil
				}
			}

			inst, closeInst, err := a.openInstrument(mock, port)
			if err != nil {
				return err
			}
			defer closeInst()

			if experiment == "" {
				experiment = defaultExperimentName(def.Name)
			}
			vLabel, iLabel := csvLabels(program)
			csv, err := sink.NewCSVSink(outDir, experiment, vLabel, iLabel)
			if err != nil {
				return err
			}
			defer csv.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			bar := newProgressBar(cmd.ErrOrStderr(), a.useColor())
			var samples []recfile.Sample

			startedAt := time.Now()
			report, runErr := engine.Execute(ctx, engine.Config{
				Program:    program,
				Bindings:   bindings,
				Instrument: inst,
				Sink:       csv,
				OnProgress: bar.Update,
				OnSample: func(s sink.Sample) {
					samples = append(samples, recfile.Sample{Voltage: s.Voltage, Current: s.Current})
				},
				Logger: a.logger(),
			})
			bar.Finish()

			if recordPath != "" {
				rec := &recfile.Record{
					Method:     def.Name,
					Bindings:   flattenBindings(bindings),
					Samples:    samples,
					StartedAt:  startedAt,
					FinishedAt: time.Now(),
					Completed:  runErr == nil,
				}
				if err := recfile.WriteFile(recordPath, rec); err != nil {
					if runErr == nil {
						return fmt.Errorf("writing run record: %w", err)
					}
					fmt.Fprintf(cmd.ErrOrStderr(), "warning: writing run record: %v\n", err)
				}
			}

			fmt.Fprintf(out, "%d samples in %s -> %s\n",
				report.Samples, report.Duration.Round(time.Millisecond), csv.Path())
			if runErr != nil {
				return fmt.Errorf("run aborted after %d of %d steps: %w",
					report.StepsRun, report.TotalSteps, runErr)
			}
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&sets, "set", nil, "Override an input binding (VAR=VALUE, repeatable)")
	cmd.Flags().StringVar(&outDir, "out", "Data", "Directory for CSV output")
	cmd.Flags().StringVar(&experiment, "experiment", "", "Experiment name prefix for the CSV file (default: method name)")
	cmd.Flags().StringVar(&recordPath, "record", "", "Also write a binary run record to this path")
	cmd.Flags().BoolVar(&mock, "mock", false, "Run against a mock instrument instead of hardware")
	cmd.Flags().StringVar(&port, "port", "", "Serial device of the potentiostat (e.g. /dev/ttyS0)")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the confirmation prompt")
	return cmd
}

// openInstrument picks the mock or the EGG 273A behind the given serial
// device. The returned closer is never nil.
func (a *app) openInstrument(mock bool, port string) (instrument.Instrument, func(), error) {
	if mock {
		return instrument.NewMockInstrument(), func() {}, nil
	}
	if port == "" {
		return nil, nil, fmt.Errorf("either --mock or --port is required")
	}

	f, err := os.OpenFile(port, os.O_RDWR, 0)
	if err != nil {
		return nil, nil, fmt.Errorf("opening %s: %w", port, err)
	}
	dev, err := instrument.NewEGG273(instrument.NewLineConn(f))
	if err != nil {
		f.Close()
		return nil, nil, err
	}

	logger := a.logger()
	if id, err := dev.Identify(); err == nil {
		logger.Debug("instrument identified", "id", id.ID, "version", id.Version, "error_register", id.Error)
	} else {
		logger.Warn("instrument identification failed", "error", err)
	}

	return dev, func() {
		if err := dev.Close(); err != nil {
			logger.Warn("closing instrument", "error", err)
		}
	}, nil
}

// csvLabels derives the CSV column headers from the first OUTPUT command
// in the program, falling back to the standard labels.
func csvLabels(program *method.Program) (voltage, current string) {
	voltage = sink.DefaultVoltageLabel
	current = sink.DefaultCurrentLabel

	for _, block := range program.Blocks {
		for _, loop := range block.ForLoops {
			for _, cmd := range loop.Commands {
				outCmd, ok := cmd.(method.OutputCommand)
				if !ok || len(outCmd.Outputs) == 0 {
					continue
				}
				voltage = outCmd.Outputs[0].Name
				if len(outCmd.Outputs) > 1 {
					current = outCmd.Outputs[1].Name
				}
				return voltage, current
			}
		}
	}
	return voltage, current
}

func defaultExperimentName(methodName string) string {
	name := strings.ToLower(strings.TrimSpace(methodName))
	return strings.ReplaceAll(name, " ", "-")
}

func flattenBindings(b method.MapBindings) map[string]string {
	out := make(map[string]string, len(b))
	for sym, v := range b {
		out[string(sym)] = v
	}
	return out
}
