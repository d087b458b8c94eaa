package gaffer

import (
	"testing"

	"github.com/gafferworks/gaffer/internal/core/agent"
	"github.com/stretchr/testify/assert"
)

func failure(story string, outcome Outcome, detail string) IterationResult {
	return IterationResult{StoryID: story, Agent: "claude", Outcome: outcome, Detail: detail}
}

func TestBuildState_SuccessResetsFailureWindow(t *testing.T) {
	s := newBuildState("run-1")

	s.recordFailure(failure("US-001", OutcomeVerifyFailure, "go test failed"), "ctx")
	s.recordFailure(failure("US-001", OutcomeTimeout, "timed out"), "ctx")
	assert.Equal(t, 2, s.failures)
	assert.True(t, s.lastTimedOut)
	assert.Equal(t, 2, s.attempts("US-001"))

	s.recordSuccess(IterationResult{StoryID: "US-001", Outcome: OutcomeSuccess})
	assert.Equal(t, 0, s.failures)
	assert.False(t, s.lastTimedOut)
	assert.Empty(t, s.lastFailure)
	assert.Equal(t, []string{"US-001"}, s.completed)

	// Attempt counts survive success; they are per-run story history.
	assert.Equal(t, 2, s.attempts("US-001"))
}

func TestBuildState_LastTimedOutTracksLatestFailure(t *testing.T) {
	s := newBuildState("run-1")

	s.recordFailure(failure("US-001", OutcomeTimeout, "timed out"), "ctx")
	assert.True(t, s.lastTimedOut)

	s.recordFailure(failure("US-001", OutcomeVerifyFailure, "tests failed"), "ctx")
	assert.False(t, s.lastTimedOut)
}

func TestBuildState_AttemptHistory(t *testing.T) {
	s := newBuildState("run-1")

	s.recordFailure(failure("US-001", OutcomeVerifyFailure, "go vet failed"), "ctx")
	s.recordFailure(failure("US-002", OutcomeAgentFailure, "agent exited 3"), "ctx")
	s.recordFailure(failure("US-001", OutcomeTimeout, "timed out after 5s"), "ctx")

	history := s.attemptHistory("US-001")
	assert.Equal(t,
		"- attempt 1 (claude): verify_failure: go vet failed\n"+
			"- attempt 2 (claude): timeout: timed out after 5s",
		history)

	assert.Empty(t, s.attemptHistory("US-999"))
}

func TestBuildState_FailedStoriesDeduplicated(t *testing.T) {
	s := newBuildState("run-1")

	s.recordFailure(failure("US-001", OutcomeVerifyFailure, "x"), "ctx")
	s.recordFailure(failure("US-001", OutcomeVerifyFailure, "y"), "ctx")
	s.recordFailure(failure("US-002", OutcomeNoChanges, "z"), "ctx")

	assert.Equal(t, []string{"US-001", "US-002"}, s.failedStories())
}

func TestBuildState_SummaryAccounting(t *testing.T) {
	s := newBuildState("run-1")

	s.recordFailure(IterationResult{
		StoryID: "US-001",
		Agent:   "claude",
		Outcome: OutcomeTimeout,
		Tokens:  agent.TokenUsage{Input: 100, Output: 40},
	}, "ctx")
	s.recordSuccess(IterationResult{
		StoryID: "US-001",
		Agent:   "crush",
		Outcome: OutcomeSuccess,
		Tokens:  agent.TokenUsage{Input: 50, Output: 10},
	})
	s.iteration = 2
	s.headAtStart = "aaa"

	sum := s.summary(RunCompleted, "all stories complete", []string{"claude", "crush"}, "bbb")
	assert.Equal(t, "run-1", sum.RunID)
	assert.Equal(t, RunCompleted, sum.Outcome)
	assert.Equal(t, []string{"US-001"}, sum.StoriesCompleted)
	assert.Empty(t, sum.StoriesFailed, "a story that recovered is not failed")
	assert.Equal(t, 2, sum.Iterations)
	assert.Equal(t, int64(150), sum.Tokens.Input)
	assert.Equal(t, int64(50), sum.Tokens.Output)
	assert.Equal(t, "aaa", sum.HeadBefore)
	assert.Equal(t, "bbb", sum.HeadAfter)
	assert.Len(t, sum.Results, 2)
}

func TestBuildState_EndedOnTimeout(t *testing.T) {
	cases := []struct {
		name     string
		timedOut bool
		outcome  RunOutcome
		want     bool
	}{
		{"timeout then budget exhausted", true, RunIterationsExhausted, true},
		{"timeout then fatal", true, RunFatal, true},
		{"timeout then completed", true, RunCompleted, false},
		{"timeout then interrupted", true, RunInterrupted, false},
		{"no timeout", false, RunIterationsExhausted, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := newBuildState("run-1")
			if tc.timedOut {
				s.recordFailure(failure("US-001", OutcomeTimeout, "timed out"), "ctx")
			}
			sum := s.summary(tc.outcome, "", nil, "")
			assert.Equal(t, tc.want, sum.EndedOnTimeout)
		})
	}
}
