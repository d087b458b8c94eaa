// Package runlock provides a cross-process exclusivity lock for a plan
// folder's working tree. The orchestrator writes a pre-dispatch checkpoint
// and may later hard-reset to it; the lock serializes that whole span so a
// second process can never commit work inside someone else's
// checkpoint-to-rollback window.
package runlock

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"syscall"
	"time"

	"github.com/rs/zerolog"
)

// ErrBusy is returned when the lock is held by a live process.
var ErrBusy = errors.New("plan folder is locked by another process")

// Token is the serialized lock content identifying the holder.
type Token struct {
	PID        int       `json:"pid"`
	Hostname   string    `json:"hostname"`
	AcquiredAt time.Time `json:"acquired_at"`
}

// Handle is an acquired lock. Release it on every exit path.
type Handle struct {
	Token
	path string
}

// Acquire takes the lock at path with create-exclusive semantics. If the file
// exists and its recorded PID is dead (or the token is unreadable), the stale
// lock is reclaimed exactly once and acquisition is retried; losing the retry
// race surfaces ErrBusy rather than looping.
func Acquire(path string, log zerolog.Logger) (*Handle, error) {
	handle, err := tryCreate(path)
	if err == nil {
		log.Debug().Str("lock", path).Int("pid", handle.PID).Msg("lock acquired")
		return handle, nil
	}
	if !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create lock file: %w", err)
	}

	token, readErr := readToken(path)
	if readErr == nil && processAlive(token.PID) {
		return nil, fmt.Errorf("%w: held by pid %d on %s since %s",
			ErrBusy, token.PID, token.Hostname, token.AcquiredAt.Format(time.RFC3339))
	}

	// Holder is dead or the token is garbage: reclaim once.
	if rmErr := os.Remove(path); rmErr != nil && !os.IsNotExist(rmErr) {
		return nil, fmt.Errorf("remove stale lock: %w", rmErr)
	}
	if readErr == nil {
		log.Warn().Str("lock", path).Int("stale_pid", token.PID).Msg("reclaimed stale lock")
	} else {
		log.Warn().Str("lock", path).Msg("reclaimed unreadable lock")
	}

	handle, err = tryCreate(path)
	if err == nil {
		return handle, nil
	}
	if errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("%w: lost reclaim race", ErrBusy)
	}
	return nil, fmt.Errorf("create lock file: %w", err)
}

func tryCreate(path string) (*Handle, error) {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}

	handle := &Handle{
		Token: Token{
			PID:        os.Getpid(),
			Hostname:   hostname,
			AcquiredAt: time.Now().UTC(),
		},
		path: path,
	}

	data, err := json.MarshalIndent(handle.Token, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal lock token: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	if _, err := f.Write(data); err != nil {
		_ = os.Remove(path)
		return nil, fmt.Errorf("write lock token: %w", err)
	}
	return handle, nil
}

// Release removes the lock file, but only while it still identifies the
// caller. Safe to call multiple times.
func (h *Handle) Release() error {
	if h == nil || h.path == "" {
		return nil
	}

	token, err := readToken(h.path)
	if err != nil {
		return nil
	}
	if token.PID != h.PID {
		return nil
	}

	if err := os.Remove(h.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove lock file: %w", err)
	}
	return nil
}

// Inspect reports the current holder at path, and whether that holder's
// process is alive. A missing or unreadable lock returns ok=false.
func Inspect(path string) (Token, bool, bool) {
	token, err := readToken(path)
	if err != nil {
		return Token{}, false, false
	}
	return token, true, processAlive(token.PID)
}

func readToken(path string) (Token, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Token{}, err
	}

	var token Token
	if err := json.Unmarshal(data, &token); err != nil {
		return Token{}, fmt.Errorf("parse lock token: %w", err)
	}
	return token, nil
}

// processAlive probes pid with signal 0, which tests existence without
// touching the process.
func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return process.Signal(syscall.Signal(0)) == nil
}
