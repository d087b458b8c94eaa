package agent

import (
	"bytes"
	"regexp"
	"strconv"
	"sync"
)

// TokenUsage is the agent's own accounting, passed through untouched.
type TokenUsage struct {
	Input  int64 `json:"input_tokens"`
	Output int64 `json:"output_tokens"`
}

// Total returns input plus output tokens.
func (u TokenUsage) Total() int64 { return u.Input + u.Output }

var (
	inputTokensRE  = regexp.MustCompile(`"input_tokens"\s*:\s*(\d+)`)
	outputTokensRE = regexp.MustCompile(`"output_tokens"\s*:\s*(\d+)`)
)

// maxPendingLine bounds the partial-line buffer; agent stream records can be
// long but a line this size without a newline is scanned and dropped.
const maxPendingLine = 1 << 20

// TokenCounter is an io.Writer that tees the agent's stdout and scans it for
// the usage records agent CLIs emit in their stream output. The final record
// of a run carries cumulative totals, so the last value seen per field wins.
type TokenCounter struct {
	mu      sync.Mutex
	pending []byte
	usage   TokenUsage
}

// NewTokenCounter creates an empty counter.
func NewTokenCounter() *TokenCounter {
	return &TokenCounter{}
}

// Write scans completed lines for usage records. It never fails; counting is
// best-effort and must not disturb the agent's output stream.
func (c *TokenCounter) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.pending = append(c.pending, p...)
	for {
		i := bytes.IndexByte(c.pending, '\n')
		if i < 0 {
			break
		}
		c.scan(c.pending[:i])
		c.pending = c.pending[i+1:]
	}
	if len(c.pending) > maxPendingLine {
		c.scan(c.pending)
		c.pending = c.pending[:0]
	}
	return len(p), nil
}

// Usage returns the totals seen so far, including any unterminated last line.
func (c *TokenCounter) Usage() TokenUsage {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.pending) > 0 {
		c.scan(c.pending)
		c.pending = c.pending[:0]
	}
	return c.usage
}

func (c *TokenCounter) scan(line []byte) {
	if m := lastSubmatch(inputTokensRE, line); m != nil {
		if n, err := strconv.ParseInt(string(m), 10, 64); err == nil {
			c.usage.Input = n
		}
	}
	if m := lastSubmatch(outputTokensRE, line); m != nil {
		if n, err := strconv.ParseInt(string(m), 10, 64); err == nil {
			c.usage.Output = n
		}
	}
}

func lastSubmatch(re *regexp.Regexp, line []byte) []byte {
	matches := re.FindAllSubmatch(line, -1)
	if len(matches) == 0 {
		return nil
	}
	return matches[len(matches)-1][1]
}
