package testrun

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	// rePytestProgress matches verbose per-test lines:
	// "tests/test_add.py::test_add PASSED  [ 50%]".
	rePytestProgress = regexp.MustCompile(`^(\S+::\S+)\s+(PASSED|FAILED|ERROR)\b`)

	// rePytestSummaryFailed matches short-summary lines:
	// "FAILED tests/test_add.py::test_div - ZeroDivisionError: ...".
	rePytestSummaryFailed = regexp.MustCompile(`^FAILED\s+(\S+)(?:\s+-\s+(.*))?$`)

	// reCountPassed and friends pull counts out of summary phrases shared
	// by pytest, cargo, jest, and most other runners.
	reCountPassed = regexp.MustCompile(`(\d+) passed`)
	reCountFailed = regexp.MustCompile(`(\d+) failed`)
	reCountErrors = regexp.MustCompile(`(\d+) error`)

	// reMavenSummary matches "Tests run: 4, Failures: 1, Errors: 0".
	reMavenSummary = regexp.MustCompile(`Tests run: (\d+), Failures: (\d+), Errors: (\d+)`)
)

// parseOutput fills the count and failure fields of res from its captured
// output, dispatching on the detected framework. Parsing is best-effort:
// when no summary is recognizable, totals stay zero and success is derived
// from the child's return code.
func parseOutput(res *Result) {
	switch res.Framework {
	case "pytest":
		parsePytest(res)
	default:
		parseGeneric(res)
	}

	res.Success = res.ReturnCode == 0 && res.Failed == 0 && len(res.Errors) == 0
}

// parsePytest handles pytest verbose output: per-test PASSED/FAILED lines,
// the indented error block following each failure, the short test summary,
// and the final "X passed, Y failed" line.
func parsePytest(res *Result) {
	lines := strings.Split(res.Stdout, "\n")
	seen := map[string]bool{}

	for i, line := range lines {
		trimmed := strings.TrimSpace(line)

		if m := rePytestProgress.FindStringSubmatch(trimmed); m != nil {
			switch m[2] {
			case "PASSED":
				res.Passed++
			case "FAILED", "ERROR":
				if !seen[m[1]] {
					seen[m[1]] = true
					res.Failures = append(res.Failures, Failure{
						Test:  m[1],
						Error: indentedBlock(lines, i+1),
					})
				}
			}
			continue
		}

		if m := rePytestSummaryFailed.FindStringSubmatch(trimmed); m != nil {
			if !seen[m[1]] {
				seen[m[1]] = true
				res.Failures = append(res.Failures, Failure{Test: m[1], Error: m[2]})
			} else if m[2] != "" {
				// The summary carries the one-line reason; prefer it when
				// the progress line gave us nothing.
				for j := range res.Failures {
					if res.Failures[j].Test == m[1] && res.Failures[j].Error == "" {
						res.Failures[j].Error = m[2]
					}
				}
			}
		}
	}

	res.Failed = len(res.Failures)

	// The final summary line is authoritative when present.
	if m := reCountPassed.FindStringSubmatch(res.Stdout); m != nil {
		res.Passed, _ = strconv.Atoi(m[1])
	}
	if m := reCountFailed.FindStringSubmatch(res.Stdout); m != nil {
		res.Failed, _ = strconv.Atoi(m[1])
	}
	res.TotalTests = res.Passed + res.Failed
}

// parseGeneric recognizes the summary phrases common across runners. When
// nothing matches, totals remain zero and the return code decides success.
func parseGeneric(res *Result) {
	combined := res.Stdout + "\n" + res.Stderr

	if m := reMavenSummary.FindStringSubmatch(combined); m != nil {
		total, _ := strconv.Atoi(m[1])
		failures, _ := strconv.Atoi(m[2])
		errs, _ := strconv.Atoi(m[3])
		res.TotalTests = total
		res.Failed = failures + errs
		res.Passed = total - res.Failed
		return
	}

	var found bool
	if m := reCountPassed.FindStringSubmatch(combined); m != nil {
		res.Passed, _ = strconv.Atoi(m[1])
		found = true
	}
	if m := reCountFailed.FindStringSubmatch(combined); m != nil {
		res.Failed, _ = strconv.Atoi(m[1])
		found = true
	}
	if m := reCountErrors.FindStringSubmatch(combined); m != nil {
		n, _ := strconv.Atoi(m[1])
		res.Failed += n
		found = true
	}
	if found {
		res.TotalTests = res.Passed + res.Failed
	}
}

// indentedBlock collects the contiguous error-block lines starting at index
// start, stopping at the first top-level line. Pytest error blocks mix
// indented source lines with "E " / "> " markers at column zero; both belong
// to the block.
func indentedBlock(lines []string, start int) string {
	var block []string
	for i := start; i < len(lines); i++ {
		line := lines[i]
		if strings.TrimSpace(line) == "" {
			if len(block) > 0 {
				break
			}
			continue
		}
		indented := strings.HasPrefix(line, " ") || strings.HasPrefix(line, "\t")
		marker := strings.HasPrefix(line, "E ") || strings.HasPrefix(line, "> ") || strings.HasPrefix(line, ">\t")
		if !indented && !marker {
			break
		}
		block = append(block, strings.TrimRight(line, " \t"))
	}
	return strings.Join(block, "\n")
}
