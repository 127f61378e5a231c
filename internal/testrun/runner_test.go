package testrun

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colony-dev/colony/internal/project"
)

// newOsStore creates a store over a real temp directory so the runner can
// spawn processes in it.
func newOsStore(t *testing.T) *project.Store {
	t.Helper()
	s, err := project.NewStore(t.TempDir(), log.New(io.Discard))
	require.NoError(t, err)
	return s
}

func TestRunner_CustomCommandSuccess(t *testing.T) {
	t.Parallel()
	r := NewRunner(newOsStore(t), log.New(io.Discard))

	res := r.Run(context.Background(), `echo "2 passed"`)

	assert.True(t, res.Success)
	assert.Equal(t, "custom", res.Framework)
	assert.Equal(t, 0, res.ReturnCode)
	assert.Equal(t, 2, res.Passed)
	assert.NotNil(t, res.Errors)
	assert.NotNil(t, res.Failures)
}

func TestRunner_CustomCommandFailure(t *testing.T) {
	t.Parallel()
	r := NewRunner(newOsStore(t), log.New(io.Discard))

	res := r.Run(context.Background(), `echo "1 passed, 1 failed"; exit 1`)

	assert.False(t, res.Success)
	assert.Equal(t, 1, res.ReturnCode)
	assert.Equal(t, 1, res.Passed)
	assert.Equal(t, 1, res.Failed)
}

func TestRunner_DetectionFailure(t *testing.T) {
	t.Parallel()
	r := NewRunner(newOsStore(t), log.New(io.Discard))

	res := r.Run(context.Background(), "")

	assert.False(t, res.Success)
	assert.Zero(t, res.TotalTests)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "detection failed")
	assert.NotNil(t, res.Failures)
}

func TestRunner_SpawnError(t *testing.T) {
	t.Parallel()
	store := newOsStore(t)
	require.NoError(t, store.Create("go.mod", []byte("module demo")))

	r := NewRunner(store, log.New(io.Discard))
	res := r.Run(context.Background(), "/nonexistent-binary-for-test")

	assert.False(t, res.Success)
	assert.Equal(t, 127, res.ReturnCode) // sh: command not found
}

func TestRunner_Timeout(t *testing.T) {
	t.Parallel()
	r := NewRunner(newOsStore(t), log.New(io.Discard)).WithTimeout(200 * time.Millisecond)

	res := r.Run(context.Background(), "sleep 5")

	assert.False(t, res.Success)
	assert.Equal(t, -1, res.ReturnCode)
	require.NotEmpty(t, res.Errors)
	assert.Contains(t, res.Errors[0], "timed out")
}

func TestRunner_History(t *testing.T) {
	t.Parallel()
	r := NewRunner(newOsStore(t), log.New(io.Discard))

	r.Run(context.Background(), "true")
	r.Run(context.Background(), "false")

	history := r.History()
	require.Len(t, history, 2)
	assert.True(t, history[0].Success)
	assert.False(t, history[1].Success)
}

func TestRunner_RunsInProjectDirectory(t *testing.T) {
	t.Parallel()
	store := newOsStore(t)
	require.NoError(t, store.Create("marker.txt", []byte("here")))

	r := NewRunner(store, log.New(io.Discard))
	res := r.Run(context.Background(), "test -f marker.txt")
	assert.True(t, res.Success)
}

func TestFormatFeedback_Failures(t *testing.T) {
	t.Parallel()
	res := Result{
		Failed: 2,
		Passed: 3,
		Failures: []Failure{
			{Test: "tests/test_calc.py::test_div", Error: "ZeroDivisionError: division by zero"},
			{Test: "tests/test_calc.py::test_neg", Error: ""},
		},
	}

	fb := FormatFeedback(res)
	assert.Contains(t, fb, "1. tests/test_calc.py::test_div")
	assert.Contains(t, fb, "ZeroDivisionError")
	assert.Contains(t, fb, "2. tests/test_calc.py::test_neg")
	assert.Contains(t, fb, "update: directive")
}

func TestFormatFeedback_CouldNotRun(t *testing.T) {
	t.Parallel()
	res := Result{Errors: []string{"test framework detection failed: no test framework detected"}}

	fb := FormatFeedback(res)
	assert.Contains(t, fb, "could not be run")
	assert.Contains(t, fb, "no test framework detected")
}

func TestFormatFeedback_TruncatesLongErrors(t *testing.T) {
	t.Parallel()
	long := make([]byte, maxFeedbackExcerpt*2)
	for i := range long {
		long[i] = 'x'
	}
	res := Result{
		Failed:   1,
		Failures: []Failure{{Test: "t", Error: string(long)}},
	}

	fb := FormatFeedback(res)
	assert.Contains(t, fb, "[...truncated]")
	assert.Less(t, len(fb), maxFeedbackExcerpt*2)
}
