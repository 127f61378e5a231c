package loop

import (
	"time"

	"github.com/colony-dev/colony/internal/agent"
	"github.com/colony-dev/colony/internal/ops"
	"github.com/colony-dev/colony/internal/review"
	"github.com/colony-dev/colony/internal/security"
	"github.com/colony-dev/colony/internal/testrun"
)

// EventType identifies the kind of a controller event.
type EventType string

const (
	EventWorkflowStarted  EventType = "workflow_started"
	EventIterationStarted EventType = "iteration_started"
	EventTurnCompleted    EventType = "turn_completed"
	EventTurnError        EventType = "turn_error"
	EventReviewCompleted  EventType = "review_completed"
	EventTestsRun         EventType = "tests_run"
	EventRepairStarted    EventType = "repair_started"
	EventEarlyStop        EventType = "early_stop"
	EventWorkflowFinished EventType = "workflow_finished"
)

// Event is a structured progress event emitted during a workflow run.
// Events are sent non-blocking; slow consumers drop them.
type Event struct {
	Type      EventType
	Iteration int
	Agent     string
	Message   string
	Timestamp time.Time
}

// AgentTurn records one agent's turn within an iteration: the operations
// applied, the completion signal, and any error that voided the turn.
type AgentTurn struct {
	Agent            string       `json:"agent"`
	Role             agent.Role   `json:"role"`
	Ops              []ops.FileOp `json:"ops"`
	CompletionSignal bool         `json:"completion_signal"`
	Error            string       `json:"error,omitempty"`
}

// IterationRecord accumulates everything that happened in one pass of the
// loop: every agent turn, the reviews conducted, and the test result (after
// any repair sub-iteration).
type IterationRecord struct {
	Index      int               `json:"index"`
	Turns      []AgentTurn       `json:"turns"`
	Reviews    []*review.Outcome `json:"reviews"`
	TestResult *testrun.Result   `json:"test_result,omitempty"`
	Repaired   bool              `json:"repaired,omitempty"`
}

// completionFraction is the share of this iteration's turns that signalled
// completion. Errored turns count against the fraction.
func (r *IterationRecord) completionFraction() float64 {
	if len(r.Turns) == 0 {
		return 0
	}
	var signalled int
	for _, t := range r.Turns {
		if t.CompletionSignal {
			signalled++
		}
	}
	return float64(signalled) / float64(len(r.Turns))
}

// Result is the final record of a workflow run.
type Result struct {
	RunID           string            `json:"run_id"`
	ProjectPath     string            `json:"project_path"`
	Task            string            `json:"task"`
	Files           []string          `json:"files"`
	Iterations      []IterationRecord `json:"iterations"`
	FinalTestResult *testrun.Result   `json:"final_test_result,omitempty"`
	SecurityReport  *security.Report  `json:"security_report,omitempty"`
	StoppedEarly    bool              `json:"stopped_early"`
}
