package gaffer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gafferworks/gaffer/internal/core/agent"
	"github.com/gafferworks/gaffer/internal/core/checkpoint"
	"github.com/gafferworks/gaffer/internal/core/config"
	"github.com/gafferworks/gaffer/internal/core/git"
	"github.com/gafferworks/gaffer/internal/core/plan"
	"github.com/gafferworks/gaffer/internal/core/runlock"
	"github.com/gafferworks/gaffer/internal/core/verify"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// failureTailLimit bounds how much verify output is replayed into retry
// prompts.
const failureTailLimit = 4096

// LoopOptions are the per-invocation overrides from the command line.
type LoopOptions struct {
	// Iterations overrides loop.max_iterations when positive.
	Iterations int
	// Agent overrides agent.initial and any checkpointed agent.
	Agent string
	// NoCommit disables git mutations for this run.
	NoCommit bool
}

// LoopService drives the build loop: select the next pending story,
// dispatch an agent, verify its claim, commit or roll back, repeat.
type LoopService struct {
	cfg      *config.Config
	git      git.Git
	runner   *agent.Runner
	verifier *verify.Verifier
	prompts  *PromptRenderer
	reports  *ReportService
	paths    Paths
	log      zerolog.Logger
}

// NewLoopService constructs a LoopService from explicit dependencies.
func NewLoopService(
	cfg *config.Config,
	g git.Git,
	runner *agent.Runner,
	verifier *verify.Verifier,
	prompts *PromptRenderer,
	reports *ReportService,
	paths Paths,
	log zerolog.Logger,
) *LoopService {
	return &LoopService{
		cfg:      cfg,
		git:      g,
		runner:   runner,
		verifier: verifier,
		prompts:  prompts,
		reports:  reports,
		paths:    paths,
		log:      log.With().Str("component", "loop").Logger(),
	}
}

// run carries everything one invocation of the loop accumulates.
type run struct {
	state     *buildState
	chain     *agent.Chain
	status    *statusTracker
	activity  *ActivityLog
	ckpts     *checkpoint.Store
	committer *git.Committer
	planPath  string
	root      string
	deadline  time.Time
	maxIter   int
	commit    bool
}

// Run executes the build loop until the plan is complete or a stop
// condition fires. The summary is returned for every outcome; the error
// is non-nil only for fatal conditions and cancellation. Lock busy
// surfaces as runlock.ErrBusy, a stale resume point as
// checkpoint.ErrStale.
func (s *LoopService) Run(ctx context.Context, opts LoopOptions) (*RunSummary, error) {
	if err := s.paths.Ensure(); err != nil {
		return nil, err
	}

	lock, err := runlock.Acquire(s.paths.LockFile(), s.log)
	if err != nil {
		return nil, err
	}
	defer func() { _ = lock.Release() }()

	r, err := s.prepare(ctx, opts)
	if err != nil {
		return nil, err
	}
	defer r.status.clear()

	s.log.Info().
		Str("run", r.state.runID).
		Str("plan", r.planPath).
		Str("agent", r.chain.Current()).
		Int("max_iterations", r.maxIter).
		Msg("run starting")

	return s.loop(ctx, r)
}

// prepare validates the environment and assembles per-run state,
// including resume from a previous checkpoint.
func (s *LoopService) prepare(ctx context.Context, opts LoopOptions) (*run, error) {
	planPath, err := plan.Discover(s.paths.PlanDir, nil)
	if err != nil {
		return nil, err
	}
	doc, err := plan.Parse(planPath)
	if err != nil {
		return nil, err
	}

	ok, err := s.git.IsRepo(ctx, s.paths.PlanDir)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("plan folder %s is not inside a git repository", s.paths.PlanDir)
	}
	root, err := s.git.Root(ctx, s.paths.PlanDir)
	if err != nil {
		return nil, err
	}
	head, err := s.git.Head(ctx, root)
	if err != nil {
		return nil, fmt.Errorf("repository has no usable HEAD (create an initial commit first): %w", err)
	}

	r := &run{
		state:     newBuildState(uuid.NewString()),
		status:    newStatusTracker(checkpoint.NewStatusStore(s.paths.StatusFile()), s.log),
		activity:  NewActivityLog(s.paths.ActivityFile()),
		ckpts:     checkpoint.NewStore(s.paths.CheckpointFile()),
		committer: git.NewCommitter(s.git, s.log, DataDirName),
		planPath:  planPath,
		root:      root,
		commit:    s.cfg.Commit.Enabled && !opts.NoCommit,
	}
	r.state.headAtStart = head

	resumeAgent, err := s.resume(ctx, r, doc)
	if err != nil {
		return nil, err
	}

	initial := s.cfg.Agent.Initial
	if resumeAgent != "" {
		initial = resumeAgent
	}
	if opts.Agent != "" {
		initial = opts.Agent
	}
	r.chain = agent.NewChain(s.cfg.Agent.Fallback, initial)

	r.maxIter = s.cfg.Loop.MaxIterations
	if opts.Iterations > 0 {
		r.maxIter = opts.Iterations
	}
	if r.maxIter > config.HardMaxIterations {
		s.log.Warn().
			Int("requested", r.maxIter).
			Int("cap", config.HardMaxIterations).
			Msg("iteration budget clamped")
		r.maxIter = config.HardMaxIterations
	}
	r.deadline = r.state.startedAt.Add(s.cfg.Loop.MaxRunTime.Duration())

	if clean, err := s.git.IsClean(ctx, root); err == nil && !clean {
		s.log.Warn().Msg("working tree has uncommitted changes; they will ride along with the next commit or be discarded by rollback")
	}
	if !r.commit {
		s.log.Warn().Msg("commits disabled; failures are not rolled back and completed stories stay uncommitted")
	}

	return r, nil
}

// resume adopts iteration counter and agent from a checkpoint left by an
// earlier run. A checkpoint whose commit is not an ancestor of HEAD is
// refused: rollbacks would anchor to history that no longer exists.
func (s *LoopService) resume(ctx context.Context, r *run, doc *plan.Document) (string, error) {
	cp, err := r.ckpts.Load()
	if errors.Is(err, checkpoint.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}

	ancestor, err := s.git.IsAncestor(ctx, r.root, cp.GitSHA, "HEAD")
	if err != nil {
		return "", fmt.Errorf("checkpoint ancestry check: %w", err)
	}
	if !ancestor {
		return "", fmt.Errorf("%w: %s references commit %s which is not an ancestor of HEAD; delete the file to start fresh",
			checkpoint.ErrStale, r.ckpts.Path(), shortSHA(cp.GitSHA))
	}

	// Rerun the interrupted iteration's number when its story is still
	// pending; otherwise that iteration finished, so continue after it.
	r.state.iteration = cp.Iteration
	if story, found := doc.Get(cp.StoryID); found && !story.Done {
		r.state.iteration = cp.Iteration - 1
	}

	s.log.Info().
		Int("iteration", cp.Iteration).
		Str("story", cp.StoryID).
		Str("agent", cp.Agent).
		Msg("resuming from checkpoint")
	_ = r.activity.Event(cp.StoryID, "resume", "checkpoint at iteration %d (agent %s)", cp.Iteration, cp.Agent)

	return cp.Agent, nil
}

// loop is the iteration driver. Stop conditions are checked at iteration
// boundaries only; a running agent is never cut short by the run-level
// time ceiling.
func (s *LoopService) loop(ctx context.Context, r *run) (*RunSummary, error) {
	for {
		if err := ctx.Err(); err != nil {
			return s.finish(r, RunInterrupted, "interrupted"), err
		}

		doc, err := plan.Parse(r.planPath)
		if err != nil {
			return s.finish(r, RunFatal, err.Error()), err
		}

		story, ok := doc.NextPending()
		if !ok {
			if err := r.ckpts.Clear(); err != nil {
				s.log.Warn().Err(err).Msg("checkpoint cleanup failed")
			}
			return s.finish(r, RunCompleted, "all stories complete"), nil
		}

		pending, _ := doc.Counts()
		if time.Now().After(r.deadline) {
			detail := fmt.Sprintf("max_run_time %s reached with %d stories pending",
				s.cfg.Loop.MaxRunTime.Duration(), pending)
			return s.finish(r, RunTimeLimit, detail), nil
		}
		if r.state.iteration >= r.maxIter {
			detail := fmt.Sprintf("%d iterations used, %d stories pending", r.state.iteration, pending)
			return s.finish(r, RunIterationsExhausted, detail), nil
		}

		r.state.iteration++
		if err := s.iterate(ctx, r, story); err != nil {
			if ctx.Err() != nil {
				return s.finish(r, RunInterrupted, "interrupted"), err
			}
			return s.finish(r, RunFatal, err.Error()), err
		}

		last, ok := r.state.lastResult()
		if !ok || last.Outcome == OutcomeSuccess {
			continue
		}

		if r.state.failures >= s.cfg.Loop.MaxFailures {
			next, switched := r.chain.Next()
			if !switched {
				err := fmt.Errorf("all agents exhausted after %d consecutive failures (last: %s)",
					r.state.failures, last.Detail)
				return s.finish(r, RunFatal, err.Error()), err
			}
			r.status.phase(PhaseSwitchingAgent)
			s.log.Warn().Str("from", last.Agent).Str("to", next).Msg("switching agent")
			_ = r.activity.Event("", "switch", "%s -> %s after %d consecutive failures",
				last.Agent, next, r.state.failures)
			r.state.failures = 0
			continue
		}

		if delay := s.retryDelay(r.state.failures); delay > 0 {
			s.log.Info().Dur("delay", delay).Msg("pausing before retry")
			if err := sleepCtx(ctx, delay); err != nil {
				return s.finish(r, RunInterrupted, "interrupted"), err
			}
		}
	}
}

// iterate runs one loop pass for story. The returned error is fatal or a
// cancellation; ordinary agent and verification failures are recorded in
// the run state instead.
func (s *LoopService) iterate(ctx context.Context, r *run, story plan.Story) error {
	n := r.state.iteration
	agentName := r.chain.Current()

	r.status.setIteration(n)
	r.status.setStory(story.ID, story.Title)
	r.status.phase(PhaseSelecting)

	s.log.Info().Int("iteration", n).Str("story", story.ID).Str("agent", agentName).Msg("story selected")
	_ = r.activity.Event(story.ID, "select", "%q (iteration %d, agent %s)", story.Title, n, agentName)

	headBefore, err := s.git.Head(ctx, r.root)
	if err != nil {
		return fmt.Errorf("read HEAD: %w", err)
	}

	// The checkpoint goes down before the agent does anything, so a crash
	// at any later point can resume from here.
	err = r.ckpts.Save(checkpoint.Checkpoint{
		Iteration:  n,
		StoryID:    story.ID,
		StoryTitle: story.Title,
		Agent:      agentName,
		GitSHA:     headBefore,
		Timestamp:  time.Now().UTC(),
	})
	if err != nil {
		return err
	}

	prompt, err := s.renderPrompt(r, story, n)
	if err != nil {
		return err
	}

	r.status.phase(PhaseDispatching)
	_ = r.activity.Event(story.ID, "dispatch", "%s (timeout %s)", agentName, s.cfg.Agent.Timeout.Duration())

	res, runErr := s.runner.Run(ctx, agent.RunRequest{
		Def:     s.cfg.ResolveAgent(agentName),
		Prompt:  prompt,
		Dir:     r.root,
		Timeout: s.cfg.Agent.Timeout.Duration(),
		LogPath: s.paths.IterationLog(n, agentName),
	})

	iterRes := IterationResult{
		Iteration:  n,
		StoryID:    story.ID,
		StoryTitle: story.Title,
		Agent:      agentName,
		LogPath:    res.LogPath,
		Duration:   res.Duration,
		Tokens:     res.Tokens,
	}

	if runErr != nil {
		if ctx.Err() != nil {
			s.rollbackInterrupted(r, headBefore)
			return runErr
		}
		iterRes.Outcome = OutcomeAgentFailure
		iterRes.Detail = runErr.Error()
		s.recordFailure(r, iterRes, fmt.Sprintf("agent %s failed to start: %v", agentName, runErr))
		return nil
	}

	if res.TimedOut {
		iterRes.Outcome = OutcomeTimeout
		iterRes.Detail = fmt.Sprintf("timed out after %s", s.cfg.Agent.Timeout.Duration())
		if err := s.rollback(ctx, r, story.ID, headBefore); err != nil {
			return err
		}
		s.recordFailure(r, iterRes, fmt.Sprintf(
			"agent %s hit the %s timeout; its partial work was rolled back (log: %s)",
			agentName, s.cfg.Agent.Timeout.Duration(), res.LogPath))
		return nil
	}

	if res.ExitCode != 0 {
		iterRes.Outcome = OutcomeAgentFailure
		iterRes.Detail = fmt.Sprintf("agent exited %d", res.ExitCode)
		if err := s.rollback(ctx, r, story.ID, headBefore); err != nil {
			return err
		}
		s.recordFailure(r, iterRes, fmt.Sprintf(
			"agent %s exited %d (log: %s)", agentName, res.ExitCode, res.LogPath))
		return nil
	}

	r.status.phase(PhaseVerifying)
	if len(s.cfg.Verify.Commands) > 0 {
		steps := s.verifier.Run(ctx, r.root, s.cfg.Verify.Commands)
		if ctx.Err() != nil {
			s.rollbackInterrupted(r, headBefore)
			return ctx.Err()
		}
		if !verify.AllPassed(steps) {
			step, _ := verify.FirstFailure(steps)
			iterRes.Outcome = OutcomeVerifyFailure
			iterRes.Detail = fmt.Sprintf("%s (%s)", step.Command, step.Note)
			if err := s.rollback(ctx, r, story.ID, headBefore); err != nil {
				return err
			}
			s.recordFailure(r, iterRes, failureContext(step))
			return nil
		}
	} else {
		s.log.Warn().Msg("no verification commands configured; trusting agent exit code")
	}

	r.status.phase(PhaseCommitting)
	rec, err := s.commitStory(ctx, r, story, headBefore)
	if err != nil {
		if errors.Is(err, git.ErrNoChanges) {
			iterRes.Outcome = OutcomeNoChanges
			iterRes.Detail = "verification passed but nothing changed"
			s.recordFailure(r, iterRes, fmt.Sprintf(
				"agent %s reported success but made no commits and no working tree changes", agentName))
			return nil
		}
		return err
	}

	iterRes.Outcome = OutcomeSuccess
	iterRes.CommitSHA = rec.CommitSHA
	iterRes.FilesChanged = rec.FilesChanged
	r.state.recordSuccess(iterRes)
	if r.commit {
		s.log.Info().
			Str("story", story.ID).
			Str("commit", shortSHA(rec.CommitSHA)).
			Int("files", rec.FilesChanged).
			Msg("story complete")
		_ = r.activity.Event(story.ID, "complete", "committed %s (%d files)", shortSHA(rec.CommitSHA), rec.FilesChanged)
	} else {
		s.log.Info().Str("story", story.ID).Msg("story complete")
		_ = r.activity.Event(story.ID, "complete", "checked off (commits disabled)")
	}
	return nil
}

// commitStory records the story as done. With commits enabled the agent's
// work is reconciled into git first; MarkComplete always runs so the next
// pass cannot select the story again.
func (s *LoopService) commitStory(ctx context.Context, r *run, story plan.Story, headBefore string) (git.ReconcileResult, error) {
	var rec git.ReconcileResult
	if r.commit {
		var err error
		rec, err = r.committer.Reconcile(ctx, r.root, headBefore, story.ID, story.Title)
		if err != nil {
			return git.ReconcileResult{}, err
		}
	}

	if err := plan.MarkComplete(r.planPath, story.ID); err != nil {
		if !errors.Is(err, plan.ErrAlreadyComplete) {
			return git.ReconcileResult{}, fmt.Errorf("mark %s complete: %w", story.ID, err)
		}
		s.log.Debug().Str("story", story.ID).Msg("story already checked off in plan")
	}

	if r.commit {
		// The checkbox flip rides in its own commit; when the agent
		// already flipped and committed it, there is nothing to add.
		msg := fmt.Sprintf("%s: mark complete", story.ID)
		if _, err := s.git.CommitPaths(ctx, r.root, msg, r.planPath); err != nil {
			s.log.Debug().Err(err).Msg("plan file commit skipped")
		}
	}
	return rec, nil
}

func (s *LoopService) rollback(ctx context.Context, r *run, storyID, headBefore string) error {
	if !r.commit {
		s.log.Warn().Msg("rollback skipped; commits disabled")
		return nil
	}
	r.status.phase(PhaseRollingBack)
	if err := r.committer.Rollback(ctx, r.root, headBefore); err != nil {
		return err
	}
	r.state.rollbacks++
	_ = r.activity.Event(storyID, "rollback", "reset to %s", shortSHA(headBefore))
	return nil
}

// rollbackInterrupted restores the tree after a cancelled dispatch. The
// run context is already dead, so the git calls get a fresh one.
func (s *LoopService) rollbackInterrupted(r *run, headBefore string) {
	if !r.commit {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if err := r.committer.Rollback(ctx, r.root, headBefore); err != nil {
		s.log.Error().Err(err).Msg("rollback after interrupt failed; working tree may hold partial agent changes")
		return
	}
	r.state.rollbacks++
}

func (s *LoopService) recordFailure(r *run, res IterationResult, failureCtx string) {
	r.state.recordFailure(res, failureCtx)
	s.log.Warn().
		Str("story", res.StoryID).
		Str("outcome", string(res.Outcome)).
		Str("detail", res.Detail).
		Int("consecutive", r.state.failures).
		Msg("iteration failed")
	_ = r.activity.Warn(res.StoryID, string(res.Outcome), "%s", res.Detail)
}

func (s *LoopService) renderPrompt(r *run, story plan.Story, n int) (string, error) {
	vars := PromptVars{
		StoryID:    story.ID,
		StoryTitle: story.Title,
		StoryBlock: storyBlock(story),
		PlanPath:   r.planPath,
		Iteration:  n,
	}
	if r.state.attempts(story.ID) == 0 {
		return s.prompts.Build(vars)
	}
	vars.FailureContext = r.state.lastFailure
	vars.PreviousAttempts = r.state.attemptHistory(story.ID)
	vars.RetryAttempt = r.state.failures + 1
	vars.RetryMax = s.cfg.Loop.MaxFailures
	return s.prompts.Retry(vars)
}

func (s *LoopService) retryDelay(failures int) time.Duration {
	base := s.cfg.Retry.Delay.Duration()
	if base <= 0 {
		return 0
	}
	if s.cfg.Retry.Policy != config.RetryPolicyExponential {
		return base
	}
	max := s.cfg.Retry.MaxDelay.Duration()
	d := base
	for i := 1; i < failures && d < max; i++ {
		d *= 2
	}
	if d > max {
		d = max
	}
	return d
}

// finish closes out the run: summary accounting, activity block, report.
func (s *LoopService) finish(r *run, outcome RunOutcome, detail string) *RunSummary {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	headAfter := ""
	if head, err := s.git.Head(ctx, r.root); err == nil {
		headAfter = head
	}

	sum := r.state.summary(outcome, detail, r.chain.Tried(), headAfter)

	if err := r.activity.Summary(sum); err != nil {
		s.log.Warn().Err(err).Msg("activity summary failed")
	}
	if path, err := s.reports.Write(sum); err != nil {
		s.log.Warn().Err(err).Msg("run report failed")
	} else {
		s.log.Info().Str("report", path).Msg("run report written")
	}

	s.log.Info().
		Str("outcome", string(outcome)).
		Str("detail", detail).
		Int("iterations", sum.Iterations).
		Int("completed", len(sum.StoriesCompleted)).
		Int("failed", len(sum.StoriesFailed)).
		Int64("tokens", sum.Tokens.Total()).
		Dur("duration", sum.Duration).
		Msg("run finished")

	return sum
}

// failureContext formats a verification failure for the retry prompt:
// the command, why it failed, and the tail of its output.
func failureContext(step verify.Step) string {
	var b strings.Builder
	fmt.Fprintf(&b, "$ %s\n", step.Command)
	if step.Note != "" {
		fmt.Fprintf(&b, "# %s\n", step.Note)
	}
	if out := strings.TrimSpace(step.Output); out != "" {
		b.WriteString("\n")
		b.WriteString(tail(out, failureTailLimit))
		b.WriteString("\n")
	}
	return b.String()
}

// tail returns the last limit bytes of s, trimmed to a line boundary.
func tail(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := s[len(s)-limit:]
	if i := strings.IndexByte(cut, '\n'); i >= 0 && i < len(cut)-1 {
		cut = cut[i+1:]
	}
	return cut
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func shortSHA(sha string) string {
	if len(sha) > 8 {
		return sha[:8]
	}
	return sha
}
