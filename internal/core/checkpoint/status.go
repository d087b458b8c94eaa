package checkpoint

import (
	"fmt"
	"sync"
	"time"
)

// Status is the externally-polled run status. It is overwritten on every
// phase change and deleted when the run ends, so its presence alone means a
// run is (or crashed while) in flight.
type Status struct {
	Phase          string    `json:"phase"`
	StoryID        string    `json:"story_id"`
	StoryTitle     string    `json:"story_title"`
	Iteration      int       `json:"iteration"`
	ElapsedSeconds int       `json:"elapsed_seconds"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// StatusStore reads and writes the status file.
type StatusStore struct {
	path string
	mu   sync.Mutex
}

// NewStatusStore creates a status store at the given path.
func NewStatusStore(path string) *StatusStore {
	return &StatusStore{path: path}
}

// Path returns the status file path, for diagnostics.
func (s *StatusStore) Path() string { return s.path }

// Load reads the current status. Returns ErrNotFound when no run is active.
func (s *StatusStore) Load() (Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var st Status
	ok, err := loadJSON(s.path, &st)
	if err != nil {
		return Status{}, fmt.Errorf("load status: %w", err)
	}
	if !ok {
		return Status{}, fmt.Errorf("%w at %s", ErrNotFound, s.path)
	}
	return st, nil
}

// Save writes the status atomically.
func (s *StatusStore) Save(st Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := saveJSON(s.path, st); err != nil {
		return fmt.Errorf("save status: %w", err)
	}
	return nil
}

// Clear removes the status file. Missing files are fine.
func (s *StatusStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := removeIfExists(s.path); err != nil {
		return fmt.Errorf("clear status: %w", err)
	}
	return nil
}
