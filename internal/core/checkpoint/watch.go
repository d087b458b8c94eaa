package checkpoint

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const (
	debounceDelay   = 50 * time.Millisecond
	eventBufferSize = 16
)

// Event is one observed change of the status file.
type Event struct {
	Status Status
	// Removed means the status file is gone: the run ended.
	Removed bool
}

// Watch follows the status file and emits a snapshot after each change,
// debounced so the write-then-rename sequence lands as one event. The channel
// closes when the file is removed, the context is done, or the underlying
// watcher fails. The watch starts before Watch returns, so a Load immediately
// after cannot miss an update.
func (s *StatusStore) Watch(ctx context.Context) (<-chan Event, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	// Watch the directory, not the file: atomic replace-by-rename would
	// otherwise detach the watch on the first update.
	if err := watcher.Add(filepath.Dir(s.path)); err != nil {
		_ = watcher.Close()
		return nil, err
	}

	events := make(chan Event, eventBufferSize)
	base := filepath.Base(s.path)

	go func() {
		defer close(events)
		defer func() { _ = watcher.Close() }()

		debounce := time.NewTimer(debounceDelay)
		if !debounce.Stop() {
			<-debounce.C
		}
		var fire <-chan time.Time

		for {
			select {
			case <-ctx.Done():
				return

			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Base(ev.Name) != base {
					continue
				}
				if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) &&
					!ev.Has(fsnotify.Rename) && !ev.Has(fsnotify.Remove) {
					continue
				}
				if !debounce.Stop() && fire != nil {
					select {
					case <-debounce.C:
					default:
					}
				}
				debounce.Reset(debounceDelay)
				fire = debounce.C

			case <-fire:
				fire = nil
				var st Status
				ok, err := loadJSON(s.path, &st)
				if err != nil {
					// Mid-write reads are transient; wait for the next event.
					continue
				}
				if !ok {
					select {
					case events <- Event{Removed: true}:
					default:
					}
					return
				}
				select {
				case events <- Event{Status: st}:
				default:
				}

			case _, ok := <-watcher.Errors:
				if !ok {
					return
				}
			}
		}
	}()

	return events, nil
}
