package sink

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"

	"github.com/voltsweep/voltsweep/core/invariant"
)

// Default column labels, overridable from a method's OUTPUT channel names.
const (
	DefaultVoltageLabel = "Voltage (mV)"
	DefaultCurrentLabel = "Current (A)"
)

var sequenceSuffix = regexp.MustCompile(`_(\d+)\.csv$`)

// CSVSink appends samples to a CSV file, one flushed row per sample so a
// crash mid-run loses at most the row being written.
type CSVSink struct {
	file *os.File
	w    *csv.Writer
	path string
}

// NewCSVSink creates <dir>/<experiment>_NNN.csv, picking NNN one past the
// highest existing sequence number for that experiment, and writes the
// header row. The directory is created if needed.
func NewCSVSink(dir, experiment, voltageLabel, currentLabel string) (*CSVSink, error) {
	invariant.Precondition(experiment != "", "experiment name must not be empty")

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	path := filepath.Join(dir, nextFilename(dir, experiment))

	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating data file: %w", err)
	}

	if voltageLabel == "" {
		voltageLabel = DefaultVoltageLabel
	}
	if currentLabel == "" {
		currentLabel = DefaultCurrentLabel
	}

	s := &CSVSink{file: file, w: csv.NewWriter(file), path: path}
	if err := s.writeRow(voltageLabel, currentLabel); err != nil {
		file.Close()
		return nil, fmt.Errorf("writing header: %w", err)
	}
	return s, nil
}

// Append writes one sample row and flushes it to disk.
func (s *CSVSink) Append(voltage, current float64) error {
	return s.writeRow(
		strconv.FormatFloat(voltage, 'g', -1, 64),
		strconv.FormatFloat(current, 'g', -1, 64),
	)
}

// Path returns the file this sink writes to.
func (s *CSVSink) Path() string {
	return s.path
}

// Close flushes and closes the underlying file.
func (s *CSVSink) Close() error {
	s.w.Flush()
	flushErr := s.w.Error()
	closeErr := s.file.Close()
	if flushErr != nil {
		return flushErr
	}
	return closeErr
}

func (s *CSVSink) writeRow(fields ...string) error {
	if err := s.w.Write(fields); err != nil {
		return err
	}
	s.w.Flush()
	return s.w.Error()
}

// nextFilename scans dir for <experiment>_NNN.csv files and returns the
// name with the next sequence number, starting at 001.
func nextFilename(dir, experiment string) string {
	next := 1
	entries, err := os.ReadDir(dir)
	if err == nil {
		for _, e := range entries {
			name := e.Name()
			if len(name) <= len(experiment) || name[:len(experiment)] != experiment {
				continue
			}
			m := sequenceSuffix.FindStringSubmatch(name)
			if m == nil {
				continue
			}
			if n, err := strconv.Atoi(m[1]); err == nil && n >= next {
				next = n + 1
			}
		}
	}
	return fmt.Sprintf("%s_%03d.csv", experiment, next)
}
