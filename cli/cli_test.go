package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voltsweep/voltsweep/core/recfile"
)

const sweepMethodJSON = `{
  "name": "Linear Sweep",
  "description": "Single sweep between two potentials.",
  "process": "REPEAT(C){FOR_RANGEV(Vi,Vf,Vr){MEAN(R),DELAY(D),OUTPUT(Voltage=V,Current=I)}}",
  "inputs": [
    {"label": "Cycles", "variable": "C", "default": 1},
    {"label": "Initial potential (mV)", "variable": "Vi", "default": 0},
    {"label": "Final potential (mV)", "variable": "Vf", "default": 1},
    {"label": "Resolution (mV)", "variable": "Vr", "default": 0.5},
    {"label": "Readings per point", "variable": "R", "default": 1},
    {"label": "Delay (s)", "variable": "D", "default": 0}
  ]
}`

// execute runs the command tree against a library holding one sweep
// method, returning stdout.
func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()

	builtin := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(builtin, "sweep.json"), []byte(sweepMethodJSON), 0o644))

	return executeInDirs(t, builtin, t.TempDir(), stdin, args...)
}

func executeInDirs(t *testing.T, builtin, custom, stdin string, args ...string) (string, error) {
	t.Helper()

	root := New()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(append([]string{"--methods-dir", builtin, "--custom-dir", custom}, args...))

	err := root.Execute()
	return out.String(), err
}

func TestListShowsMethods(t *testing.T) {
	out, err := execute(t, "", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Linear Sweep")
	assert.Contains(t, out, "built-in")
	assert.Contains(t, out, "Single sweep between two potentials.")
}

// syncBuffer is a bytes.Buffer safe to read while the watch callback
// writes from the command goroutine.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestListWatchReprintsOnChange(t *testing.T) {
	builtin := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(builtin, "sweep.json"), []byte(sweepMethodJSON), 0o644))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	root := New()
	out := &syncBuffer{}
	root.SetOut(out)
	root.SetErr(out)
	root.SetIn(strings.NewReader(""))
	root.SetArgs([]string{"--methods-dir", builtin, "--custom-dir", t.TempDir(), "list", "--watch"})

	done := make(chan error, 1)
	go func() { done <- root.ExecuteContext(ctx) }()

	// Give the watcher a moment to arm before touching the directory.
	time.Sleep(100 * time.Millisecond)
	fresh := strings.Replace(sweepMethodJSON, "Linear Sweep", "Fresh Method", 1)
	require.NoError(t, os.WriteFile(filepath.Join(builtin, "fresh.json"), []byte(fresh), 0o644))

	deadline := time.After(8 * time.Second)
	for !strings.Contains(out.String(), "Fresh Method") {
		select {
		case <-deadline:
			t.Fatal("watch mode never reprinted the new method")
		case <-time.After(20 * time.Millisecond):
		}
	}

	// Cancellation is a clean exit, not an error.
	cancel()
	require.NoError(t, <-done)
	assert.Contains(t, out.String(), "Linear Sweep")
}

func TestShowPrintsProcessAndInputs(t *testing.T) {
	out, err := execute(t, "", "show", "Linear Sweep")
	require.NoError(t, err)
	assert.Contains(t, out, "REPEAT(C){FOR_RANGEV(Vi,Vf,Vr)")
	assert.Contains(t, out, "Vr = Resolution (mV) (default 0.5)")
}

func TestShowUnknownMethodSuggests(t *testing.T) {
	_, err := execute(t, "", "show", "Liner Sweep")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Did you mean 'Linear Sweep'?")
}

func TestPlanDescribesWithDefaults(t *testing.T) {
	out, err := execute(t, "", "plan", "Linear Sweep")
	require.NoError(t, err)
	assert.Contains(t, out, "REPEAT (C) -> 1 times")
	assert.Contains(t, out, "FOR_RANGEV Vi=0, Vf=1, Vr=0.5")
	assert.Contains(t, out, "3 sweep values in total")
}

func TestPlanHonorsSetOverrides(t *testing.T) {
	out, err := execute(t, "", "plan", "Linear Sweep", "--set", "C=2", "--set", "Vr=0.25")
	require.NoError(t, err)
	assert.Contains(t, out, "REPEAT (C) -> 2 times")
	assert.Contains(t, out, "10 sweep values in total")
}

func TestPlanRejectsUnknownInput(t *testing.T) {
	_, err := execute(t, "", "plan", "Linear Sweep", "--set", "Q=1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `has no input "Q"`)
}

func TestRunDeclinedLeavesNoSideEffects(t *testing.T) {
	dataDir := filepath.Join(t.TempDir(), "Data")

	out, err := execute(t, "n\n", "run", "Linear Sweep", "--mock", "--out", dataDir)
	require.NoError(t, err)
	assert.Contains(t, out, "run cancelled")

	// Declining must not even create the output directory.
	_, statErr := os.Stat(dataDir)
	assert.True(t, os.IsNotExist(statErr))
}

func TestRunMockWritesCSV(t *testing.T) {
	dataDir := filepath.Join(t.TempDir(), "Data")

	out, err := execute(t, "", "run", "Linear Sweep", "--yes", "--mock", "--out", dataDir)
	require.NoError(t, err)
	assert.Contains(t, out, "3 samples")

	path := filepath.Join(dataDir, "linear-sweep_001.csv")
	data, readErr := os.ReadFile(path)
	require.NoError(t, readErr)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 4)
	// Headers come from the method's OUTPUT channel names.
	assert.Equal(t, "Voltage,Current", lines[0])
	assert.Equal(t, "0,0", lines[1])
	assert.Equal(t, "1,0", lines[3])
}

func TestRunWritesRecord(t *testing.T) {
	dataDir := filepath.Join(t.TempDir(), "Data")
	recordPath := filepath.Join(t.TempDir(), "run.vrec")

	_, err := execute(t, "", "run", "Linear Sweep", "--yes", "--mock",
		"--out", dataDir, "--record", recordPath)
	require.NoError(t, err)

	rec, err := recfile.ReadFile(recordPath)
	require.NoError(t, err)
	assert.Equal(t, "Linear Sweep", rec.Method)
	assert.True(t, rec.Completed)
	assert.Len(t, rec.Samples, 3)
	assert.Equal(t, "0.5", rec.Bindings["Vr"])
}

func TestRunRequiresInstrumentChoice(t *testing.T) {
	_, err := execute(t, "", "run", "Linear Sweep", "--yes")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "either --mock or --port is required")
}

func TestValidateReportsCounts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sweep.json")
	require.NoError(t, os.WriteFile(path, []byte(sweepMethodJSON), 0o644))

	out, err := execute(t, "", "validate", path)
	require.NoError(t, err)
	assert.Contains(t, out, "ok Linear Sweep")
	assert.Contains(t, out, "1 repeat blocks, 1 for loops, 3 commands")
}

func TestValidateFlagsEmptyProcess(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.json")
	require.NoError(t, os.WriteFile(path,
		[]byte(`{"name": "Empty", "process": "just text", "inputs": []}`), 0o644))

	_, err := execute(t, "", "validate", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no runnable repeat block")
}

func TestNewSavesFromStdin(t *testing.T) {
	builtin := t.TempDir()
	custom := t.TempDir()

	out, err := executeInDirs(t, builtin, custom, sweepMethodJSON, "new")
	require.NoError(t, err)
	assert.Contains(t, out, `saved "Linear Sweep"`)

	// The saved method is now listable.
	out, err = executeInDirs(t, builtin, custom, "", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Linear Sweep")
	assert.Contains(t, out, "custom")
}

func TestConfirm(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"y\n", true},
		{"Y\n", true},
		{"yes\n", true},
		{"n\n", false},
		{"\n", false},
		{"", false},
		{"sure\n", false},
	}

	for _, tt := range tests {
		var out bytes.Buffer
		got, err := confirm(strings.NewReader(tt.input), &out, "Proceed?")
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "input %q", tt.input)
		assert.Contains(t, out.String(), "[y/N]")
	}
}

func TestProgressBar(t *testing.T) {
	var out bytes.Buffer
	bar := newProgressBar(&out, false)
	bar.Update(0.5)
	bar.Update(1.0)
	bar.Finish()
	bar.Finish()

	s := out.String()
	assert.Contains(t, s, " 50%")
	assert.Contains(t, s, "100%")
	assert.Equal(t, 1, strings.Count(s, "\n"))
}

func TestDefaultExperimentName(t *testing.T) {
	assert.Equal(t, "linear-sweep", defaultExperimentName("Linear Sweep"))
}
