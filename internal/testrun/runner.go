// Package testrun detects the generated project's test framework, executes
// it under a hard timeout, and parses the output into a uniform result
// record. Every Result it produces is fully populated, including those for
// detection failures, timeouts, and spawn errors.
package testrun

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/colony-dev/colony/internal/project"
)

// Timeout is the hard wall-clock limit for one test run.
const Timeout = 300 * time.Second

// maxCapturedBytes caps stored stdout and stderr; anything beyond is
// discarded.
const maxCapturedBytes = 100_000

// Failure is one failing test with its error excerpt.
type Failure struct {
	Test  string `json:"test"`
	Error string `json:"error"`
}

// Result is the uniform record of one test run. All fields are populated in
// every case; list-valued fields are empty, never nil, when unknown.
type Result struct {
	Success    bool      `json:"success"`
	Framework  string    `json:"framework,omitempty"`
	TotalTests int       `json:"total_tests"`
	Passed     int       `json:"passed"`
	Failed     int       `json:"failed"`
	Errors     []string  `json:"errors"`
	Failures   []Failure `json:"failures"`
	Stdout     string    `json:"stdout"`
	Stderr     string    `json:"stderr"`
	ReturnCode int       `json:"return_code"`
}

// normalize guarantees the list-field invariant.
func (r *Result) normalize() {
	if r.Errors == nil {
		r.Errors = []string{}
	}
	if r.Failures == nil {
		r.Failures = []Failure{}
	}
}

// Runner executes the project's tests and keeps a history of results.
// Runner is used from a single goroutine; the controller serializes runs.
type Runner struct {
	store   *project.Store
	logger  *log.Logger
	timeout time.Duration
	history []Result
}

// NewRunner creates a Runner over the given store.
func NewRunner(store *project.Store, logger *log.Logger) *Runner {
	return &Runner{store: store, logger: logger, timeout: Timeout}
}

// WithTimeout overrides the default 300-second limit. Used by configuration
// and tests.
func (r *Runner) WithTimeout(d time.Duration) *Runner {
	if d > 0 {
		r.timeout = d
	}
	return r
}

// History returns all results recorded by this runner, oldest first.
func (r *Runner) History() []Result {
	out := make([]Result, len(r.history))
	copy(out, r.history)
	return out
}

// Run detects the framework (unless customCommand overrides it), executes
// the tests in the project directory, and parses the output. It never
// returns an error: every failure mode yields a fully populated failing
// Result with an Errors entry describing the condition.
func (r *Runner) Run(ctx context.Context, customCommand string) Result {
	var fw Framework
	if customCommand != "" {
		fw = Framework{Name: "custom", Command: []string{"sh", "-c", customCommand}}
	} else {
		detected, err := Detect(r.store)
		if err != nil {
			res := Result{
				Success: false,
				Errors:  []string{fmt.Sprintf("test framework detection failed: %v", err)},
			}
			res.normalize()
			r.record(res)
			return res
		}
		fw = detected
	}

	r.logger.Info("running tests", "framework", fw.Name, "command", strings.Join(fw.Command, " "))

	res := r.execute(ctx, fw)
	res.normalize()
	r.record(res)
	return res
}

// execute runs the framework command with the timeout and process-group
// kill, then dispatches to the framework parser.
func (r *Runner) execute(ctx context.Context, fw Framework) Result {
	runCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, fw.Command[0], fw.Command[1:]...)
	cmd.Dir = r.store.Root()
	setProcGroup(cmd)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	elapsed := time.Since(start)

	res := Result{
		Framework: fw.Name,
		Stdout:    truncate(stdout.String()),
		Stderr:    truncate(stderr.String()),
	}

	switch {
	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		res.Success = false
		res.ReturnCode = -1
		res.Errors = append(res.Errors, fmt.Sprintf("test run timed out after %s", r.timeout))
		r.logger.Warn("test run timed out", "framework", fw.Name, "timeout", r.timeout)
		return res

	case err != nil:
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			// Spawn failure: the command never ran.
			res.Success = false
			res.ReturnCode = -1
			res.Errors = append(res.Errors, fmt.Sprintf("failed to run tests: %v", err))
			return res
		}
		res.ReturnCode = exitErr.ExitCode()

	default:
		res.ReturnCode = 0
	}

	parseOutput(&res)
	r.logger.Info("test run finished",
		"framework", fw.Name,
		"success", res.Success,
		"passed", res.Passed,
		"failed", res.Failed,
		"duration", elapsed.Round(time.Millisecond),
	)
	return res
}

func (r *Runner) record(res Result) {
	r.history = append(r.history, res)
}

func truncate(s string) string {
	if len(s) > maxCapturedBytes {
		return s[:maxCapturedBytes]
	}
	return s
}
