package testrun

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pytestMixedOutput = `============================= test session starts ==============================
collected 3 items

tests/test_calc.py::test_add PASSED                                      [ 33%]
tests/test_calc.py::test_sub PASSED                                      [ 66%]
tests/test_calc.py::test_div FAILED                                      [100%]
    def test_div():
>       assert div(10, 0) == 0
E       ZeroDivisionError: division by zero

=========================== short test summary info ============================
FAILED tests/test_calc.py::test_div - ZeroDivisionError: division by zero
========================= 2 passed, 1 failed in 0.05s ==========================
`

func TestParsePytest_MixedResults(t *testing.T) {
	t.Parallel()
	res := Result{Framework: "pytest", Stdout: pytestMixedOutput, ReturnCode: 1}
	parseOutput(&res)

	assert.False(t, res.Success)
	assert.Equal(t, 2, res.Passed)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, 3, res.TotalTests)

	require.Len(t, res.Failures, 1)
	assert.Equal(t, "tests/test_calc.py::test_div", res.Failures[0].Test)
	assert.Contains(t, res.Failures[0].Error, "ZeroDivisionError")
}

func TestParsePytest_NoDuplicateFailures(t *testing.T) {
	t.Parallel()
	// The same test appears in both the progress lines and the short
	// summary; it must be recorded once.
	res := Result{Framework: "pytest", Stdout: pytestMixedOutput, ReturnCode: 1}
	parseOutput(&res)

	seen := map[string]int{}
	for _, f := range res.Failures {
		seen[f.Test]++
	}
	for test, n := range seen {
		assert.Equal(t, 1, n, "test %s recorded %d times", test, n)
	}
}

func TestParsePytest_AllPassing(t *testing.T) {
	t.Parallel()
	out := `tests/test_calc.py::test_add PASSED  [ 50%]
tests/test_calc.py::test_sub PASSED  [100%]
========================= 2 passed in 0.01s =========================
`
	res := Result{Framework: "pytest", Stdout: out, ReturnCode: 0}
	parseOutput(&res)

	assert.True(t, res.Success)
	assert.Equal(t, 2, res.Passed)
	assert.Zero(t, res.Failed)
	assert.Empty(t, res.Failures)
}

func TestParsePytest_SummaryOnly(t *testing.T) {
	t.Parallel()
	// Non-verbose output: only the short summary and final counts.
	out := `FAILED tests/test_api.py::test_auth - AssertionError: expected 401
========================= 4 passed, 1 failed in 0.2s =========================
`
	res := Result{Framework: "pytest", Stdout: out, ReturnCode: 1}
	parseOutput(&res)

	assert.Equal(t, 4, res.Passed)
	assert.Equal(t, 1, res.Failed)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, "tests/test_api.py::test_auth", res.Failures[0].Test)
	assert.Equal(t, "AssertionError: expected 401", res.Failures[0].Error)
}

func TestParseGeneric_CountPhrases(t *testing.T) {
	t.Parallel()
	res := Result{
		Framework:  "cargo",
		Stdout:     "test result: FAILED. 7 passed; 2 failed; 0 ignored",
		ReturnCode: 101,
	}
	parseOutput(&res)

	assert.False(t, res.Success)
	assert.Equal(t, 7, res.Passed)
	assert.Equal(t, 2, res.Failed)
	assert.Equal(t, 9, res.TotalTests)
}

func TestParseGeneric_MavenSummary(t *testing.T) {
	t.Parallel()
	res := Result{
		Framework:  "maven",
		Stdout:     "Tests run: 4, Failures: 1, Errors: 1",
		ReturnCode: 1,
	}
	parseOutput(&res)

	assert.Equal(t, 4, res.TotalTests)
	assert.Equal(t, 2, res.Failed)
	assert.Equal(t, 2, res.Passed)
	assert.False(t, res.Success)
}

func TestParseGeneric_NoSummaryUsesReturnCode(t *testing.T) {
	t.Parallel()
	res := Result{Framework: "npm", Stdout: "everything fine", ReturnCode: 0}
	parseOutput(&res)
	assert.True(t, res.Success)
	assert.Zero(t, res.TotalTests)

	res = Result{Framework: "npm", Stdout: "boom", ReturnCode: 1}
	parseOutput(&res)
	assert.False(t, res.Success)
}

func TestParseOutput_ErrorsForceFailure(t *testing.T) {
	t.Parallel()
	// A clean return code cannot mask recorded execution errors.
	res := Result{Framework: "pytest", ReturnCode: 0, Errors: []string{"timeout"}}
	parseOutput(&res)
	assert.False(t, res.Success)
}

func TestIndentedBlock(t *testing.T) {
	t.Parallel()
	lines := []string{
		"tests/test_x.py::test_a FAILED",
		"    def test_a():",
		">       assert 1 == 2",
		"E       AssertionError",
		"",
		"next top-level line",
	}
	block := indentedBlock(lines, 1)
	assert.Contains(t, block, "def test_a()")
	assert.Contains(t, block, "AssertionError")
	assert.NotContains(t, block, "next top-level")
}
