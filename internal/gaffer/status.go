package gaffer

import (
	"time"

	"github.com/gafferworks/gaffer/internal/core/checkpoint"
	"github.com/rs/zerolog"
)

// statusTracker mirrors the loop's phase transitions into the status
// file other processes poll. Updates are best-effort; a failed write
// never stops a run.
type statusTracker struct {
	store   *checkpoint.StatusStore
	log     zerolog.Logger
	started time.Time

	storyID    string
	storyTitle string
	iteration  int
}

func newStatusTracker(store *checkpoint.StatusStore, log zerolog.Logger) *statusTracker {
	return &statusTracker{
		store:   store,
		log:     log,
		started: time.Now(),
	}
}

func (t *statusTracker) setStory(id, title string) {
	t.storyID = id
	t.storyTitle = title
}

func (t *statusTracker) setIteration(n int) {
	t.iteration = n
}

func (t *statusTracker) phase(p Phase) {
	st := checkpoint.Status{
		Phase:          string(p),
		StoryID:        t.storyID,
		StoryTitle:     t.storyTitle,
		Iteration:      t.iteration,
		ElapsedSeconds: int(time.Since(t.started).Seconds()),
		UpdatedAt:      time.Now().UTC(),
	}
	if err := t.store.Save(st); err != nil {
		t.log.Warn().Err(err).Msg("status update failed")
	}
}

// clear removes the status file so watchers see the run end.
func (t *statusTracker) clear() {
	if err := t.store.Clear(); err != nil {
		t.log.Warn().Err(err).Msg("status cleanup failed")
	}
}
