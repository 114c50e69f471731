// Package store maintains the method library: JSON method files loaded
// from a built-in directory shipped with the application and a custom
// directory owned by the operator. Custom methods shadow built-in ones of
// the same name.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/voltsweep/voltsweep/core/invariant"
	"github.com/voltsweep/voltsweep/core/method"
)

// Entry is one loaded method plus its provenance.
type Entry struct {
	Definition *method.Definition
	Path       string
	Custom     bool
}

// Store is a reloadable view of the method directories. All methods are
// safe for concurrent readers; Reload swaps the view atomically.
type Store struct {
	builtinDir string
	customDir  string
	logger     *slog.Logger

	mu      sync.RWMutex
	entries map[string]Entry // keyed by lower-cased method name
}

// New creates a store over the two method directories. Either directory
// may be absent; it simply contributes no methods. Call Reload before the
// first lookup.
func New(builtinDir, customDir string, logger *slog.Logger) *Store {
	invariant.Precondition(builtinDir != "" || customDir != "",
		"at least one method directory is required")
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Store{
		builtinDir: builtinDir,
		customDir:  customDir,
		logger:     logger,
		entries:    map[string]Entry{},
	}
}

// Reload re-scans both directories. Files that fail to parse are skipped
// with a warning so one bad method file never hides the rest of the
// library.
func (s *Store) Reload() error {
	entries := map[string]Entry{}

	// Built-in first so custom files of the same name shadow them.
	if err := s.loadDir(entries, s.builtinDir, false); err != nil {
		return err
	}
	if err := s.loadDir(entries, s.customDir, true); err != nil {
		return err
	}

	s.mu.Lock()
	s.entries = entries
	s.mu.Unlock()

	s.logger.Debug("method library loaded", "methods", len(entries))
	return nil
}

func (s *Store) loadDir(entries map[string]Entry, dir string, custom bool) error {
	if dir == "" {
		return nil
	}
	names, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("scanning method directory %s: %w", dir, err)
	}

	for _, de := range names {
		if de.IsDir() || !strings.EqualFold(filepath.Ext(de.Name()), ".json") {
			continue
		}
		path := filepath.Join(dir, de.Name())
		def, err := method.LoadDefinition(path)
		if err != nil {
			s.logger.Warn("skipping unreadable method file", "path", path, "error", err)
			continue
		}
		key := strings.ToLower(def.Name)
		if prev, ok := entries[key]; ok && prev.Custom == custom {
			s.logger.Warn("duplicate method name", "name", def.Name,
				"kept", prev.Path, "ignored", path)
			continue
		}
		entries[key] = Entry{Definition: def, Path: path, Custom: custom}
	}
	return nil
}

// Names returns every loaded method name, sorted case-insensitively.
func (s *Store) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.entries))
	for _, e := range s.entries {
		names = append(names, e.Definition.Name)
	}
	sort.Slice(names, func(i, j int) bool {
		return strings.ToLower(names[i]) < strings.ToLower(names[j])
	})
	return names
}

// Entries returns every loaded entry in Names order.
func (s *Store) Entries() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Entry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		return strings.ToLower(out[i].Definition.Name) < strings.ToLower(out[j].Definition.Name)
	})
	return out
}

// Get looks a method up by name, case-insensitively. An unknown name
// produces an error carrying the closest-matching known name when one
// exists.
func (s *Store) Get(name string) (Entry, error) {
	s.mu.RLock()
	e, ok := s.entries[strings.ToLower(name)]
	s.mu.RUnlock()
	if ok {
		return e, nil
	}

	if closest := s.closestName(name); closest != "" {
		return Entry{}, fmt.Errorf("unknown method %q. Did you mean '%s'?", name, closest)
	}
	return Entry{}, fmt.Errorf("unknown method %q", name)
}

func (s *Store) closestName(name string) string {
	candidates := s.Names()
	if len(candidates) == 0 {
		return ""
	}
	ranks := fuzzy.RankFindFold(name, candidates)
	if len(ranks) > 0 {
		sort.Sort(ranks)
		return ranks[0].Target
	}
	return ""
}

// Save writes def to the custom directory under a slugged, timestamped
// filename and reloads the library. Returns the path written.
func (s *Store) Save(def *method.Definition, now time.Time) (string, error) {
	invariant.NotNil(def, "def")
	invariant.Precondition(s.customDir != "", "saving requires a custom method directory")

	data, err := json.MarshalIndent(def, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding method %q: %w", def.Name, err)
	}

	if err := os.MkdirAll(s.customDir, 0o755); err != nil {
		return "", fmt.Errorf("creating custom method directory: %w", err)
	}

	name := fmt.Sprintf("%s_%s.json", slug(def.Name), now.Format("20060102-150405"))
	path := filepath.Join(s.customDir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("writing method file: %w", err)
	}

	if err := s.Reload(); err != nil {
		return path, err
	}
	return path, nil
}

// slug lowers a method name into a filesystem-safe token. Runs of
// non-alphanumerics collapse to a single dash.
func slug(name string) string {
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	out := strings.TrimRight(b.String(), "-")
	if out == "" {
		return "method"
	}
	return out
}

// Watch reloads the library whenever either directory changes, invoking
// onReload after each successful reload. Blocks until ctx is cancelled.
func (s *Store) Watch(ctx context.Context, onReload func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("starting method watcher: %w", err)
	}
	defer watcher.Close()

	watching := false
	for _, dir := range []string{s.builtinDir, s.customDir} {
		if dir == "" {
			continue
		}
		if err := watcher.Add(dir); err != nil {
			s.logger.Warn("cannot watch method directory", "dir", dir, "error", err)
			continue
		}
		watching = true
	}
	if !watching {
		return fmt.Errorf("no method directory could be watched")
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			s.logger.Debug("method directory changed", "path", ev.Name, "op", ev.Op.String())
			if err := s.Reload(); err != nil {
				s.logger.Warn("reload after change failed", "error", err)
				continue
			}
			if onReload != nil {
				onReload()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn("method watcher error", "error", err)
		}
	}
}
