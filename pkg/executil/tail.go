package executil

import "sync"

// TailWriter is an io.Writer that retains only the last max bytes written.
// It never fails and never grows beyond max, so unbounded subprocess output
// cannot exhaust memory.
type TailWriter struct {
	mu  sync.Mutex
	buf []byte
	max int
}

// NewTailWriter returns a TailWriter retaining the last max bytes.
func NewTailWriter(max int) *TailWriter {
	if max < 0 {
		max = 0
	}
	return &TailWriter{max: max}
}

func (w *TailWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	n := len(p)
	if w.max == 0 {
		return n, nil
	}
	if n >= w.max {
		w.buf = append(w.buf[:0], p[n-w.max:]...)
		return n, nil
	}
	if overflow := len(w.buf) + n - w.max; overflow > 0 {
		w.buf = w.buf[overflow:]
	}
	w.buf = append(w.buf, p...)
	return n, nil
}

// String returns the retained tail.
func (w *TailWriter) String() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return string(w.buf)
}
