// Package loop contains the iteration controller: the loop that drives each
// agent through its turn, applies parsed file operations, invokes review
// and testing, and decides when the workflow terminates. Agent turns are
// strictly sequential: the file system is a shared, totally ordered
// resource, and later agents must observe earlier edits.
package loop

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/colony-dev/colony/internal/agent"
	"github.com/colony-dev/colony/internal/ops"
	"github.com/colony-dev/colony/internal/project"
	"github.com/colony-dev/colony/internal/review"
	"github.com/colony-dev/colony/internal/security"
	"github.com/colony-dev/colony/internal/testrun"
)

// ErrMisconfigured is the fatal error for workflows that cannot run at all,
// such as an empty team.
var ErrMisconfigured = errors.New("workflow misconfigured")

// completionThreshold is the fraction of per-iteration completion signals
// required for completion-based early stop.
const completionThreshold = 0.7

// Config controls one workflow run.
type Config struct {
	// Task is the (possibly clarified) task text given to every agent.
	Task string

	// MaxIterations bounds the loop. Values < 1 are clamped to 1.
	MaxIterations int

	// MinIterations is the number of iterations that must complete before
	// completion-based early stop may fire. Default 2.
	MinIterations int

	// StopOnCompletion enables completion-based early termination.
	StopOnCompletion bool

	// TestingEnabled runs the test suite at the end of each iteration and
	// drives the repair sub-iteration on failure.
	TestingEnabled bool

	// TestCommand overrides framework detection when non-empty.
	TestCommand string

	// TestTimeout bounds one test-suite execution. Zero keeps the runner's
	// default.
	TestTimeout time.Duration

	// ReviewEnabled runs the peer-review protocol on files authored by
	// developer agents.
	ReviewEnabled bool

	// ReviewMaxRounds bounds critique rounds per reviewed file.
	ReviewMaxRounds int

	// SecurityScanEnabled runs the vulnerability scan after the loop.
	SecurityScanEnabled bool
}

// Controller runs the iteration loop for one workflow.
type Controller struct {
	cfg     Config
	team    []*agent.Agent
	store   *project.Store
	runner  *testrun.Runner
	scanner *security.Scanner
	coord   *review.Coordinator
	logger  *log.Logger
	events  chan<- Event

	// recent orders project-relative paths by most recent edit; it feeds
	// the context builder's relevance window.
	recent []string

	// pendingReads holds per-agent read results to deliver at the start of
	// that agent's next turn. Keyed by agent name.
	pendingReads map[string]map[string]string
}

// NewController wires a controller. The events channel may be nil.
func NewController(cfg Config, team []*agent.Agent, store *project.Store, logger *log.Logger, events chan<- Event) (*Controller, error) {
	if len(team) == 0 {
		return nil, fmt.Errorf("%w: empty team", ErrMisconfigured)
	}
	if cfg.MaxIterations < 1 {
		cfg.MaxIterations = 1
	}
	if cfg.MinIterations < 0 {
		cfg.MinIterations = 0
	}

	runner := testrun.NewRunner(store, logger.WithPrefix("testrun"))
	if cfg.TestTimeout > 0 {
		runner = runner.WithTimeout(cfg.TestTimeout)
	}

	return &Controller{
		cfg:          cfg,
		team:         team,
		store:        store,
		runner:       runner,
		scanner:      security.NewScanner(nil, logger.WithPrefix("security")),
		coord:        review.NewCoordinator(store, cfg.ReviewMaxRounds, logger.WithPrefix("review")),
		logger:       logger,
		events:       events,
		pendingReads: map[string]map[string]string{},
	}, nil
}

// TestRunner exposes the controller's runner, mainly so callers can inspect
// run history after a workflow.
func (c *Controller) TestRunner() *testrun.Runner { return c.runner }

// Run executes the workflow and returns its record. Only context
// cancellation and project-root I/O failures abort a run; every agent,
// parse, review, and test failure is recorded and recovered.
func (c *Controller) Run(ctx context.Context) (*Result, error) {
	result := &Result{
		RunID:       uuid.NewString(),
		ProjectPath: c.store.Root(),
		Task:        c.cfg.Task,
	}

	c.emit(Event{Type: EventWorkflowStarted, Message: fmt.Sprintf("run %s", result.RunID)})
	c.logger.Info("workflow started",
		"run_id", result.RunID,
		"team_size", len(c.team),
		"max_iterations", c.cfg.MaxIterations,
	)

	for i := 0; i < c.cfg.MaxIterations; i++ {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		record := c.runIteration(ctx, i)
		result.Iterations = append(result.Iterations, *record)
		if record.TestResult != nil {
			result.FinalTestResult = record.TestResult
		}

		if c.shouldStop(i, record) {
			result.StoppedEarly = true
			c.emit(Event{Type: EventEarlyStop, Iteration: i,
				Message: fmt.Sprintf("%.0f%% of agents signalled completion", record.completionFraction()*100)})
			c.logger.Info("early stop", "iteration", i)
			break
		}
	}

	if c.cfg.SecurityScanEnabled {
		report := c.scanner.Scan(c.store)
		result.SecurityReport = &report
	}

	files, err := c.store.List("")
	if err != nil {
		return result, fmt.Errorf("listing final project files: %w", err)
	}
	result.Files = files

	c.emit(Event{Type: EventWorkflowFinished, Message: fmt.Sprintf("%d files", len(files))})
	c.logger.Info("workflow finished",
		"iterations", len(result.Iterations),
		"files", len(files),
	)
	return result, nil
}

// runIteration drives every agent through one turn, then tests and, when
// failures warrant it, the repair sub-iteration.
func (c *Controller) runIteration(ctx context.Context, index int) *IterationRecord {
	record := &IterationRecord{Index: index}

	c.emit(Event{Type: EventIterationStarted, Iteration: index})
	c.logger.Info("iteration started", "iteration", index)

	for _, ag := range c.team {
		if ctx.Err() != nil {
			return record
		}
		turn := c.runTurn(ctx, index, ag, record)
		record.Turns = append(record.Turns, *turn)
	}

	if c.cfg.TestingEnabled {
		res := c.runner.Run(ctx, c.cfg.TestCommand)
		record.TestResult = &res
		c.emit(Event{Type: EventTestsRun, Iteration: index,
			Message: fmt.Sprintf("success=%v passed=%d failed=%d", res.Success, res.Passed, res.Failed)})

		// Repair only once code plausibly exists; iteration 0 failures are
		// usually just an incomplete skeleton.
		if !res.Success && index >= 1 {
			c.repair(ctx, index, record)
		}
	}

	return record
}

// runTurn executes a single agent turn: context build, step, parse, apply,
// review. A step failure yields a zero-op turn and the loop moves on.
func (c *Controller) runTurn(ctx context.Context, iteration int, ag *agent.Agent, record *IterationRecord) *AgentTurn {
	turn := &AgentTurn{Agent: ag.Name(), Role: ag.Role()}

	input := buildContextMessage(c.cfg.Task, c.store, ag, iteration, c.recent, c.pendingReads[ag.Name()])
	delete(c.pendingReads, ag.Name())

	reply, err := ag.Step(ctx, input)
	if err != nil {
		turn.Error = err.Error()
		c.emit(Event{Type: EventTurnError, Iteration: iteration, Agent: ag.Name(), Message: err.Error()})
		c.logger.Warn("agent turn failed", "agent", ag.Name(), "error", err)
		return turn
	}

	parsed := ops.Parse(reply)
	for _, w := range parsed.Warnings {
		c.logger.Warn("parse warning", "agent", ag.Name(), "warning", w)
	}
	turn.CompletionSignal = parsed.Complete

	written := c.applyOps(ag, parsed.Ops, turn)

	if c.cfg.ReviewEnabled && ag.Role().IsDeveloper() {
		for _, path := range written {
			outcome := c.coord.ReviewFile(ctx, path, c.cfg.Task, ag, c.team)
			record.Reviews = append(record.Reviews, outcome)
			c.emit(Event{Type: EventReviewCompleted, Iteration: iteration, Agent: ag.Name(),
				Message: fmt.Sprintf("%s: %s", path, outcome.Verdict)})
		}
	}

	c.emit(Event{Type: EventTurnCompleted, Iteration: iteration, Agent: ag.Name(),
		Message: fmt.Sprintf("%d ops, complete=%v", len(turn.Ops), turn.CompletionSignal)})
	return turn
}

// applyOps applies parsed operations in source order and returns the paths
// written. Rejected operations (filtered targets, invalid paths, duplicate
// creates) are logged and skipped; the sequence of applied operations is
// never reordered.
func (c *Controller) applyOps(ag *agent.Agent, fileOps []ops.FileOp, turn *AgentTurn) []string {
	var written []string
	for _, op := range fileOps {
		switch op.Kind {
		case ops.KindCreate:
			err := c.store.Create(op.Path, []byte(op.Content))
			if errors.Is(err, project.ErrAlreadyExists) {
				// Agents re-emit create for files they have already made;
				// treat it as the update they meant.
				err = c.store.Update(op.Path, []byte(op.Content))
			}
			if err != nil {
				c.logger.Warn("create rejected", "agent", ag.Name(), "path", op.Path, "error", err)
				continue
			}
			turn.Ops = append(turn.Ops, op)
			written = append(written, op.Path)
			c.touch(op.Path)

		case ops.KindUpdate:
			if err := c.store.Update(op.Path, []byte(op.Content)); err != nil {
				c.logger.Warn("update rejected", "agent", ag.Name(), "path", op.Path, "error", err)
				continue
			}
			turn.Ops = append(turn.Ops, op)
			written = append(written, op.Path)
			c.touch(op.Path)

		case ops.KindRead:
			turn.Ops = append(turn.Ops, op)
			reads := c.pendingReads[ag.Name()]
			if reads == nil {
				reads = map[string]string{}
				c.pendingReads[ag.Name()] = reads
			}
			content, err := c.store.Read(op.Path)
			if err != nil {
				reads[op.Path] = fmt.Sprintf("(file not found: %s)", op.Path)
				continue
			}
			reads[op.Path] = string(content)
		}
	}
	return written
}

// repair is the intra-iteration repair sub-iteration: every developer agent
// receives the failure feedback in sequence, their fixes are applied, and
// the tests re-run exactly once. The re-run result replaces the iteration's
// test result.
func (c *Controller) repair(ctx context.Context, iteration int, record *IterationRecord) {
	feedback := testrun.FormatFeedback(*record.TestResult)

	c.emit(Event{Type: EventRepairStarted, Iteration: iteration,
		Message: fmt.Sprintf("%d failing tests", record.TestResult.Failed)})
	c.logger.Info("repair sub-iteration", "iteration", iteration, "failed", record.TestResult.Failed)

	for _, ag := range c.team {
		if ctx.Err() != nil {
			return
		}
		if !ag.Role().IsDeveloper() {
			continue
		}
		reply, err := ag.Step(ctx, feedback)
		if err != nil {
			c.logger.Warn("repair turn failed", "agent", ag.Name(), "error", err)
			continue
		}
		parsed := ops.Parse(reply)
		turn := &AgentTurn{Agent: ag.Name(), Role: ag.Role()}
		c.applyOps(ag, parsed.Ops, turn)
	}

	res := c.runner.Run(ctx, c.cfg.TestCommand)
	record.TestResult = &res
	record.Repaired = true
	c.emit(Event{Type: EventTestsRun, Iteration: iteration,
		Message: fmt.Sprintf("after repair: success=%v passed=%d failed=%d", res.Success, res.Passed, res.Failed)})
}

// shouldStop implements completion-based early termination: allowed only
// past MinIterations, requires at least 70% completion signals, and, when
// testing is enabled, a passing test result.
func (c *Controller) shouldStop(index int, record *IterationRecord) bool {
	if !c.cfg.StopOnCompletion {
		return false
	}
	if index < c.cfg.MinIterations {
		return false
	}
	if record.completionFraction() < completionThreshold {
		return false
	}
	if c.cfg.TestingEnabled {
		return record.TestResult != nil && record.TestResult.Success
	}
	return true
}

// touch moves path to the front of the recency list.
func (c *Controller) touch(path string) {
	for i, p := range c.recent {
		if p == path {
			c.recent = append(c.recent[:i], c.recent[i+1:]...)
			break
		}
	}
	c.recent = append([]string{path}, c.recent...)
}

// emit sends an event without blocking; events are dropped when the channel
// is nil or full.
func (c *Controller) emit(ev Event) {
	if c.events == nil {
		return
	}
	ev.Timestamp = time.Now()
	select {
	case c.events <- ev:
	default:
	}
}
