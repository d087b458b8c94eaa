package gaffer

import (
	"fmt"
	"strings"
	"time"

	"github.com/gafferworks/gaffer/internal/core/agent"
)

// Phase names the orchestrator's position in the iteration state machine.
type Phase string

// Run phases, in the order an iteration normally visits them.
const (
	PhaseIdle           Phase = "idle"
	PhaseSelecting      Phase = "selecting_story"
	PhaseDispatching    Phase = "dispatching"
	PhaseVerifying      Phase = "verifying"
	PhaseCommitting     Phase = "committing"
	PhaseRollingBack    Phase = "rolling_back"
	PhaseSwitchingAgent Phase = "switching_agent"
	PhaseDone           Phase = "done"
	PhaseFatal          Phase = "fatal"
)

// Outcome classifies how an iteration ended.
type Outcome string

// Iteration outcomes.
const (
	OutcomeSuccess       Outcome = "success"
	OutcomeAgentFailure  Outcome = "agent_failure"
	OutcomeTimeout       Outcome = "timeout"
	OutcomeVerifyFailure Outcome = "verify_failure"
	OutcomeNoChanges     Outcome = "no_changes"
)

// IterationResult records one loop pass.
type IterationResult struct {
	Iteration    int              `json:"iteration"`
	StoryID      string           `json:"story_id"`
	StoryTitle   string           `json:"story_title"`
	Agent        string           `json:"agent"`
	Outcome      Outcome          `json:"outcome"`
	Detail       string           `json:"detail,omitempty"`
	CommitSHA    string           `json:"commit_sha,omitempty"`
	FilesChanged int              `json:"files_changed,omitempty"`
	LogPath      string           `json:"log_path,omitempty"`
	Duration     time.Duration    `json:"duration"`
	Tokens       agent.TokenUsage `json:"tokens"`
}

// RunOutcome classifies how the whole run ended.
type RunOutcome string

// Run outcomes.
const (
	// RunCompleted means every story in the plan is done.
	RunCompleted RunOutcome = "completed"
	// RunIterationsExhausted means the iteration budget ran out with work left.
	RunIterationsExhausted RunOutcome = "iterations_exhausted"
	// RunTimeLimit means the wall-clock ceiling was hit.
	RunTimeLimit RunOutcome = "time_limit"
	// RunFatal means the loop stopped on an unrecoverable condition.
	RunFatal RunOutcome = "fatal"
	// RunInterrupted means the surrounding context was cancelled.
	RunInterrupted RunOutcome = "interrupted"
)

// buildState accumulates everything a run learns as it iterates.
type buildState struct {
	runID     string
	startedAt time.Time

	iteration    int
	failures     int // consecutive, reset on success or agent switch
	rollbacks    int
	headAtStart  string
	lastTimedOut bool

	completed []string
	failed    map[string]int // story id → failed attempt count
	results   []IterationResult
	tokens    agent.TokenUsage

	// lastFailure feeds the retry prompt's failure context.
	lastFailure string
}

func newBuildState(runID string) *buildState {
	return &buildState{
		runID:     runID,
		startedAt: time.Now(),
		failed:    make(map[string]int),
	}
}

func (s *buildState) recordSuccess(res IterationResult) {
	s.failures = 0
	s.lastTimedOut = false
	s.lastFailure = ""
	s.completed = append(s.completed, res.StoryID)
	s.addResult(res)
}

func (s *buildState) recordFailure(res IterationResult, failureContext string) {
	s.failures++
	s.lastTimedOut = res.Outcome == OutcomeTimeout
	s.lastFailure = failureContext
	s.failed[res.StoryID]++
	s.addResult(res)
}

func (s *buildState) addResult(res IterationResult) {
	s.tokens.Input += res.Tokens.Input
	s.tokens.Output += res.Tokens.Output
	s.results = append(s.results, res)
}

// attempts reports how many times a story has already failed this run.
func (s *buildState) attempts(storyID string) int {
	return s.failed[storyID]
}

func (s *buildState) lastResult() (IterationResult, bool) {
	if len(s.results) == 0 {
		return IterationResult{}, false
	}
	return s.results[len(s.results)-1], true
}

// attemptHistory summarizes a story's failed attempts for retry prompts.
func (s *buildState) attemptHistory(storyID string) string {
	var lines []string
	n := 0
	for _, res := range s.results {
		if res.StoryID != storyID || res.Outcome == OutcomeSuccess {
			continue
		}
		n++
		lines = append(lines, fmt.Sprintf("- attempt %d (%s): %s: %s", n, res.Agent, res.Outcome, res.Detail))
	}
	return strings.Join(lines, "\n")
}

// failedStories lists stories that never succeeded, in first-failure order.
// A story that failed and was later completed is not failed.
func (s *buildState) failedStories() []string {
	stories := make([]string, 0, len(s.failed))
	for _, res := range s.results {
		if res.Outcome == OutcomeSuccess || contains(s.completed, res.StoryID) {
			continue
		}
		if !contains(stories, res.StoryID) {
			stories = append(stories, res.StoryID)
		}
	}
	return stories
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// RunSummary is the run's final accounting, written to the report and
// returned to the command layer.
type RunSummary struct {
	RunID            string            `json:"run_id"`
	Outcome          RunOutcome        `json:"outcome"`
	Detail           string            `json:"detail,omitempty"`
	StoriesCompleted []string          `json:"stories_completed"`
	StoriesFailed    []string          `json:"stories_failed"`
	Iterations       int               `json:"iterations"`
	Rollbacks        int               `json:"rollbacks"`
	AgentsTried      []string          `json:"agents_tried"`
	Tokens           agent.TokenUsage  `json:"tokens"`
	HeadBefore       string            `json:"head_before,omitempty"`
	HeadAfter        string            `json:"head_after,omitempty"`
	StartedAt        time.Time         `json:"started_at"`
	Duration         time.Duration     `json:"duration"`
	Results          []IterationResult `json:"results"`
	// EndedOnTimeout is set when the run's last failure was an agent
	// deadline; the process exits 124 in that case.
	EndedOnTimeout bool `json:"ended_on_timeout"`
}

func (s *buildState) summary(outcome RunOutcome, detail string, agentsTried []string, headAfter string) *RunSummary {
	return &RunSummary{
		RunID:            s.runID,
		Outcome:          outcome,
		Detail:           detail,
		StoriesCompleted: append([]string(nil), s.completed...),
		StoriesFailed:    s.failedStories(),
		Iterations:       s.iteration,
		Rollbacks:        s.rollbacks,
		AgentsTried:      agentsTried,
		Tokens:           s.tokens,
		HeadBefore:       s.headAtStart,
		HeadAfter:        headAfter,
		StartedAt:        s.startedAt,
		Duration:         time.Since(s.startedAt),
		Results:          append([]IterationResult(nil), s.results...),
		EndedOnTimeout:   s.lastTimedOut && outcome != RunCompleted && outcome != RunInterrupted,
	}
}
