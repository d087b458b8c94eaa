package agent

// Chain walks the configured agent fallback order. Advancing is permanent:
// an agent the run has given up on is never retried, even if later agents
// fail too.
type Chain struct {
	agents []string
	idx    int
}

// NewChain builds a chain from the ordered fallback list, starting at
// initial. When initial appears in the list the chain starts there and runs
// to the end; otherwise initial is tried first, then the whole list.
func NewChain(ordered []string, initial string) *Chain {
	for i, name := range ordered {
		if name == initial {
			return &Chain{agents: ordered[i:]}
		}
	}
	agents := make([]string, 0, len(ordered)+1)
	agents = append(agents, initial)
	agents = append(agents, ordered...)
	return &Chain{agents: agents}
}

// Current returns the agent now in use.
func (c *Chain) Current() string {
	return c.agents[c.idx]
}

// Next advances to the next agent. Returns false when the chain is
// exhausted, leaving Current unchanged.
func (c *Chain) Next() (string, bool) {
	if c.idx+1 >= len(c.agents) {
		return "", false
	}
	c.idx++
	return c.agents[c.idx], true
}

// Tried lists the agents used so far, in order.
func (c *Chain) Tried() []string {
	tried := make([]string, c.idx+1)
	copy(tried, c.agents[:c.idx+1])
	return tried
}

// Remaining reports how many fallbacks are still unused.
func (c *Chain) Remaining() int {
	return len(c.agents) - c.idx - 1
}
