package loop

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/colony-dev/colony/internal/agent"
	"github.com/colony-dev/colony/internal/ops"
	"github.com/colony-dev/colony/internal/testrun"
)

// maxGreenCycles bounds how many implementation passes the green phase makes
// before giving up with the tests still red.
const maxGreenCycles = 3

// TDDResult records a red/green/refactor run.
type TDDResult struct {
	RunID       string          `json:"run_id"`
	ProjectPath string          `json:"project_path"`
	Task        string          `json:"task"`
	Files       []string        `json:"files"`
	TestFiles   []string        `json:"test_files"`
	GreenCycles int             `json:"green_cycles"`
	Green       bool            `json:"green"`
	Refactored  bool            `json:"refactored"`
	Reverted    []string        `json:"reverted,omitempty"`
	FinalTests  *testrun.Result `json:"final_tests,omitempty"`
}

const redPhasePrompt = `Write the test suite for this task before any implementation
exists. Emit ONLY test files, using create: directives. Cover the behaviour the
task requires, including edge cases. Do not write implementation code.`

const greenPhasePrompt = `Make the failing tests pass. Write the minimal
implementation that satisfies them, using create: and update: directives. Do not
modify the test files.`

const refactorPhasePrompt = `The tests pass. Improve the implementation without
changing its behaviour: clarify names, remove duplication, simplify structure.
Emit update: directives for the files you change. Do not modify the test files.`

// RunTDD executes the test-driven workflow: the QA agent writes the tests
// first (red), developers implement until the suite passes or the cycle cap
// is hit (green), then one refactor pass whose changes are reverted if they
// break the suite. Requires at least one QA agent and one developer.
func (c *Controller) RunTDD(ctx context.Context) (*TDDResult, error) {
	qa := c.findRole(agent.RoleQATester)
	if qa == nil {
		return nil, fmt.Errorf("%w: TDD requires a QA agent", ErrMisconfigured)
	}
	if c.developerCount() == 0 {
		return nil, fmt.Errorf("%w: TDD requires a developer agent", ErrMisconfigured)
	}

	result := &TDDResult{
		RunID:       uuid.NewString(),
		ProjectPath: c.store.Root(),
		Task:        c.cfg.Task,
	}
	c.emit(Event{Type: EventWorkflowStarted, Message: fmt.Sprintf("tdd run %s", result.RunID)})
	c.logger.Info("tdd workflow started", "run_id", result.RunID)

	testFiles, err := c.redPhase(ctx, qa)
	if err != nil {
		return result, err
	}
	result.TestFiles = testFiles

	cycles, green, err := c.greenPhase(ctx, testFiles)
	result.GreenCycles = cycles
	result.Green = green
	if err != nil {
		return result, err
	}

	if green {
		reverted, refactored, err := c.refactorPhase(ctx, testFiles)
		if err != nil {
			return result, err
		}
		result.Refactored = refactored
		result.Reverted = reverted
	}

	final := c.runner.Run(ctx, c.cfg.TestCommand)
	result.FinalTests = &final
	result.Green = final.Success

	files, err := c.store.List("")
	if err != nil {
		return result, fmt.Errorf("listing final project files: %w", err)
	}
	result.Files = files

	c.emit(Event{Type: EventWorkflowFinished,
		Message: fmt.Sprintf("tdd green=%v, %d files", result.Green, len(files))})
	c.logger.Info("tdd workflow finished", "green", result.Green, "cycles", cycles)
	return result, nil
}

// redPhase has the QA agent author the test suite and verifies it is red.
// A suite that passes against an empty project is logged, not fatal; some
// frameworks report success when they collect zero tests.
func (c *Controller) redPhase(ctx context.Context, qa *agent.Agent) ([]string, error) {
	c.emit(Event{Type: EventIterationStarted, Agent: qa.Name(), Message: "red phase"})

	input := buildContextMessage(c.cfg.Task, c.store, qa, 0, nil, nil) + "\n\n" + redPhasePrompt
	reply, err := qa.Step(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("red phase: %w", err)
	}

	parsed := ops.Parse(reply)
	turn := &AgentTurn{Agent: qa.Name(), Role: qa.Role()}
	testFiles := c.applyOps(qa, parsed.Ops, turn)
	if len(testFiles) == 0 {
		return nil, fmt.Errorf("%w: QA agent produced no test files in red phase", ErrMisconfigured)
	}

	res := c.runner.Run(ctx, c.cfg.TestCommand)
	if res.Success {
		c.logger.Warn("red phase tests already pass; suite may be collecting nothing",
			"files", len(testFiles))
	}
	c.emit(Event{Type: EventTestsRun, Message: fmt.Sprintf("red: success=%v", res.Success)})
	return testFiles, nil
}

// greenPhase cycles the developers against the failing suite until it passes
// or maxGreenCycles is exhausted.
func (c *Controller) greenPhase(ctx context.Context, testFiles []string) (int, bool, error) {
	var feedback string
	for cycle := 0; cycle < maxGreenCycles; cycle++ {
		if err := ctx.Err(); err != nil {
			return cycle, false, err
		}
		c.emit(Event{Type: EventIterationStarted, Iteration: cycle, Message: "green phase"})

		for _, ag := range c.team {
			if !c.implements(ag) {
				continue
			}
			input := buildContextMessage(c.cfg.Task, c.store, ag, cycle, c.recent, nil) +
				"\n\n" + greenPhasePrompt
			if feedback != "" {
				input += "\n\n" + feedback
			}
			reply, err := ag.Step(ctx, input)
			if err != nil {
				c.logger.Warn("green phase turn failed", "agent", ag.Name(), "error", err)
				continue
			}
			parsed := ops.Parse(reply)
			turn := &AgentTurn{Agent: ag.Name(), Role: ag.Role()}
			c.applyGuarded(ag, parsed.Ops, turn, testFiles)
		}

		res := c.runner.Run(ctx, c.cfg.TestCommand)
		c.emit(Event{Type: EventTestsRun, Iteration: cycle,
			Message: fmt.Sprintf("green: success=%v failed=%d", res.Success, res.Failed)})
		if res.Success {
			return cycle + 1, true, nil
		}
		feedback = testrun.FormatFeedback(res)
	}
	return maxGreenCycles, false, nil
}

// refactorPhase runs one improvement cycle over a green suite. Each file's
// green-state contents are snapshotted before its first refactor write, so a
// revert restores the state that passed the suite even when the same file is
// rewritten more than once during the phase.
func (c *Controller) refactorPhase(ctx context.Context, testFiles []string) ([]string, bool, error) {
	c.emit(Event{Type: EventIterationStarted, Message: "refactor phase"})

	snapshots := map[string][]byte{}
	var changed []string
	for _, ag := range c.team {
		if !c.implements(ag) {
			continue
		}
		input := buildContextMessage(c.cfg.Task, c.store, ag, 1, c.recent, nil) +
			"\n\n" + refactorPhasePrompt
		reply, err := ag.Step(ctx, input)
		if err != nil {
			c.logger.Warn("refactor turn failed", "agent", ag.Name(), "error", err)
			continue
		}
		parsed := ops.Parse(reply)
		for _, op := range parsed.Ops {
			if op.Kind == ops.KindRead {
				continue
			}
			p := strings.TrimSpace(op.Path)
			if _, ok := snapshots[p]; ok {
				continue
			}
			if data, err := c.store.Read(p); err == nil {
				snapshots[p] = data
			}
		}
		turn := &AgentTurn{Agent: ag.Name(), Role: ag.Role()}
		changed = append(changed, c.applyGuarded(ag, parsed.Ops, turn, testFiles)...)
	}
	if len(changed) == 0 {
		return nil, false, nil
	}

	res := c.runner.Run(ctx, c.cfg.TestCommand)
	c.emit(Event{Type: EventTestsRun, Message: fmt.Sprintf("refactor: success=%v", res.Success)})
	if res.Success {
		return nil, true, nil
	}

	// Behaviour changed: the refactor loses, the green state wins.
	c.logger.Warn("refactor broke the suite, reverting", "files", len(changed))
	var reverted []string
	seen := map[string]bool{}
	for _, p := range changed {
		if seen[p] {
			continue
		}
		seen[p] = true
		snap, ok := snapshots[strings.TrimSpace(p)]
		if !ok {
			// Created during the refactor; there is no green state to restore.
			c.logger.Warn("refactor-created file has no prior state", "path", p)
			continue
		}
		if err := c.store.Update(p, snap); err != nil {
			c.logger.Warn("could not revert refactor", "path", p, "error", err)
			continue
		}
		reverted = append(reverted, p)
	}
	return reverted, true, nil
}

// applyGuarded applies ops while refusing writes to the test files, which
// are frozen once the red phase authors them.
func (c *Controller) applyGuarded(ag *agent.Agent, fileOps []ops.FileOp, turn *AgentTurn, testFiles []string) []string {
	frozen := make(map[string]bool, len(testFiles))
	for _, p := range testFiles {
		frozen[p] = true
	}
	var allowed []ops.FileOp
	for _, op := range fileOps {
		if op.Kind != ops.KindRead && frozen[strings.TrimSpace(op.Path)] {
			c.logger.Warn("write to frozen test file rejected", "agent", ag.Name(), "path", op.Path)
			continue
		}
		allowed = append(allowed, op)
	}
	return c.applyOps(ag, allowed, turn)
}

func (c *Controller) findRole(role agent.Role) *agent.Agent {
	for _, ag := range c.team {
		if ag.Role() == role {
			return ag
		}
	}
	return nil
}

// implements reports whether the agent writes implementation code in the
// green and refactor phases. QA authors the tests and sits those phases out.
func (c *Controller) implements(ag *agent.Agent) bool {
	return ag.Role().IsDeveloper() && ag.Role() != agent.RoleQATester
}

func (c *Controller) developerCount() int {
	var n int
	for _, ag := range c.team {
		if c.implements(ag) {
			n++
		}
	}
	return n
}
