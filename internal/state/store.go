package state

import (
	"encoding/json"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"sync"
	"time"

	"hopper/internal/fileutil"
	"hopper/internal/logging"
	"hopper/internal/services"
)

// Window is the rolling interval submissions are counted against.
const Window = time.Hour

// Store owns the persisted orchestrator state. Every mutator applies its
// change in memory and saves before returning, so a crash after any mutator
// observes the mutation as durable.
type Store struct {
	path   string
	logger *slog.Logger

	mu    sync.Mutex
	state State
}

// Open loads the state file at path, or starts from a zero-valued record when
// the file is missing or unreadable as JSON. Filesystem errors other than
// absence are fatal.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	store := &Store{path: path, logger: logger}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return store, nil
	case err != nil:
		return nil, services.Wrap(services.ErrState, "", "load", "read state file", err)
	}

	var loaded State
	if err := json.Unmarshal(data, &loaded); err != nil {
		logging.WarnWithContext(logger, "state file unreadable; starting fresh", "state_reset",
			logging.String("path", path),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "previous rate-limit history and completed set are lost"),
		)
		return store, nil
	}
	store.state = loaded
	return store, nil
}

// Path returns the backing file location.
func (s *Store) Path() string {
	return s.path
}

// Snapshot returns a deep copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// RecordSubmission prunes the rolling window, appends a submission at the
// given instant, and persists the result.
func (s *Store) RecordSubmission(now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.PruneWindow(now, Window)
	s.state.SubmissionTimes = append(s.state.SubmissionTimes, now)
	ts := now
	s.state.LastSubmissionTime = &ts
	return s.save()
}

// MarkCurrent records the named item as mid-pipeline and persists.
func (s *Store) MarkCurrent(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.CurrentItem = name
	return s.save()
}

// ClearCurrent removes the mid-pipeline marker and persists.
func (s *Store) ClearCurrent() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.CurrentItem = ""
	return s.save()
}

// MarkCompleted appends the named item to the completed set and persists.
// Membership is append-only; marking an already-completed item is a no-op
// that still rewrites the file.
func (s *Store) MarkCompleted(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.state.IsCompleted(name) {
		s.state.CompletedItems = append(s.state.CompletedItems, name)
	}
	return s.save()
}

func (s *Store) save() error {
	data, err := json.MarshalIndent(&s.state, "", "  ")
	if err != nil {
		return services.Wrap(services.ErrState, "", "save", "encode state", err)
	}
	data = append(data, '\n')
	if err := fileutil.WriteFileAtomic(s.path, data, 0o644); err != nil {
		return services.Wrap(services.ErrState, "", "save", "write state file", err)
	}
	return nil
}
