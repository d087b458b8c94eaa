// Package checkpoint persists the orchestrator's durable per-plan state: the
// checkpoint written before each agent dispatch, and the status file external
// dashboards poll. Both are flat JSON files written atomically.
package checkpoint

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrNotFound means no checkpoint file exists for the plan folder.
var ErrNotFound = errors.New("no checkpoint found")

// ErrStale means the checkpoint references a commit that is no longer an
// ancestor of HEAD. History was rewritten or the branch changed underneath;
// resuming would anchor rollbacks to a commit that is not in this history.
var ErrStale = errors.New("checkpoint is stale")

// Checkpoint records the starting state of an iteration. It is written
// before the agent is dispatched, so a crash mid-run can resume, and cleared
// only when every story in the plan is complete.
type Checkpoint struct {
	Iteration  int       `json:"iteration"`
	StoryID    string    `json:"story_id"`
	StoryTitle string    `json:"story_title"`
	Agent      string    `json:"agent"`
	GitSHA     string    `json:"git_sha"`
	Timestamp  time.Time `json:"timestamp"`
}

// Store reads and writes the checkpoint file.
type Store struct {
	path string
	mu   sync.Mutex
}

// NewStore creates a checkpoint store at the given path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the checkpoint file path, for diagnostics.
func (s *Store) Path() string { return s.path }

// Load reads the checkpoint. Returns ErrNotFound when none exists.
func (s *Store) Load() (Checkpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var cp Checkpoint
	ok, err := loadJSON(s.path, &cp)
	if err != nil {
		return Checkpoint{}, fmt.Errorf("load checkpoint: %w", err)
	}
	if !ok {
		return Checkpoint{}, fmt.Errorf("%w at %s", ErrNotFound, s.path)
	}
	return cp, nil
}

// Save writes the checkpoint atomically.
func (s *Store) Save(cp Checkpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := saveJSON(s.path, cp); err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}

// Clear removes the checkpoint file. Missing files are fine.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := removeIfExists(s.path); err != nil {
		return fmt.Errorf("clear checkpoint: %w", err)
	}
	return nil
}
