package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voltsweep/voltsweep/core/method"
)

func methodJSON(name string) string {
	return fmt.Sprintf(`{
  "name": %q,
  "process": "REPEAT(C){FOR_RANGEV(A,B,S){MEAN(R)}}",
  "inputs": [{"label": "Cycles", "variable": "C", "default": 1}]
}`, name)
}

func writeMethod(t *testing.T, dir, file, name string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, file), []byte(methodJSON(name)), 0o644))
}

func newTestStore(t *testing.T) (*Store, string, string) {
	t.Helper()
	builtin := t.TempDir()
	custom := t.TempDir()
	return New(builtin, custom, nil), builtin, custom
}

func TestReloadAndNames(t *testing.T) {
	s, builtin, custom := newTestStore(t)
	writeMethod(t, builtin, "linear.json", "Linear Sweep")
	writeMethod(t, builtin, "cyclic.json", "Cyclic Voltammetry")
	writeMethod(t, custom, "probe.json", "Probe Check")

	require.NoError(t, s.Reload())
	assert.Equal(t, []string{"Cyclic Voltammetry", "Linear Sweep", "Probe Check"}, s.Names())
}

func TestReloadSkipsBrokenFiles(t *testing.T) {
	s, builtin, _ := newTestStore(t)
	writeMethod(t, builtin, "good.json", "Good")
	require.NoError(t, os.WriteFile(filepath.Join(builtin, "broken.json"), []byte(`{"name": ""}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(builtin, "notes.txt"), []byte("ignored"), 0o644))

	require.NoError(t, s.Reload())
	assert.Equal(t, []string{"Good"}, s.Names())
}

func TestReloadToleratesMissingDirectories(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "absent"), "", nil)
	require.NoError(t, s.Reload())
	assert.Empty(t, s.Names())
}

func TestCustomShadowsBuiltin(t *testing.T) {
	s, builtin, custom := newTestStore(t)
	writeMethod(t, builtin, "sweep.json", "Linear Sweep")
	writeMethod(t, custom, "sweep-tuned.json", "Linear Sweep")

	require.NoError(t, s.Reload())
	require.Equal(t, []string{"Linear Sweep"}, s.Names())

	e, err := s.Get("Linear Sweep")
	require.NoError(t, err)
	assert.True(t, e.Custom)
	assert.Contains(t, e.Path, "sweep-tuned.json")
}

func TestGetIsCaseInsensitive(t *testing.T) {
	s, builtin, _ := newTestStore(t)
	writeMethod(t, builtin, "sweep.json", "Linear Sweep")
	require.NoError(t, s.Reload())

	e, err := s.Get("linear sweep")
	require.NoError(t, err)
	assert.Equal(t, "Linear Sweep", e.Definition.Name)
}

func TestGetSuggestsClosestName(t *testing.T) {
	s, builtin, _ := newTestStore(t)
	writeMethod(t, builtin, "linear.json", "Linear Sweep")
	writeMethod(t, builtin, "cyclic.json", "Cyclic Voltammetry")
	require.NoError(t, s.Reload())

	_, err := s.Get("Liner Sweep")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown method "Liner Sweep"`)
	assert.Contains(t, err.Error(), "Did you mean 'Linear Sweep'?")
}

func TestGetUnknownWithoutSuggestion(t *testing.T) {
	s, builtin, _ := newTestStore(t)
	writeMethod(t, builtin, "linear.json", "Linear Sweep")
	require.NoError(t, s.Reload())

	_, err := s.Get("zzzz")
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "Did you mean")
}

func TestSaveWritesTimestampedFileAndReloads(t *testing.T) {
	s, _, custom := newTestStore(t)
	require.NoError(t, s.Reload())

	def := &method.Definition{
		Name:    "Pulse Probe",
		Process: "REPEAT(C){FOR_RANGEV(A,B,S){MEAN(R)}}",
		Inputs:  []method.Input{{Label: "Cycles", Variable: "C", Default: "2"}},
	}
	now := time.Date(2026, 8, 25, 14, 5, 30, 0, time.UTC)

	path, err := s.Save(def, now)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(custom, "pulse-probe_20260825-140530.json"), path)

	e, err := s.Get("Pulse Probe")
	require.NoError(t, err)
	assert.True(t, e.Custom)
	assert.Equal(t, "2", e.Definition.Inputs[0].Default.String())

	// The written file is itself a valid method file.
	_, err = method.LoadDefinition(path)
	assert.NoError(t, err)
}

func TestWatchReloadsOnChange(t *testing.T) {
	s, builtin, _ := newTestStore(t)
	require.NoError(t, s.Reload())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	reloaded := make(chan struct{}, 1)
	done := make(chan error, 1)
	go func() {
		done <- s.Watch(ctx, func() {
			select {
			case reloaded <- struct{}{}:
			default:
			}
		})
	}()

	// Give the watcher a moment to arm before touching the directory.
	time.Sleep(100 * time.Millisecond)
	writeMethod(t, builtin, "fresh.json", "Fresh Method")

	select {
	case <-reloaded:
	case <-ctx.Done():
		t.Fatal("watcher never observed the new method file")
	}
	assert.Contains(t, s.Names(), "Fresh Method")

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestSlug(t *testing.T) {
	assert.Equal(t, "linear-sweep", slug("Linear Sweep"))
	assert.Equal(t, "probe-2-5mv", slug("Probe (2.5mV)"))
	assert.Equal(t, "method", slug("***"))
}
