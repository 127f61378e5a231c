package testrun

import (
	"fmt"
	"strings"
)

// maxFeedbackExcerpt caps each failure's error excerpt in the feedback
// block; models do not need thousand-line tracebacks to fix an assert.
const maxFeedbackExcerpt = 1200

// FormatFeedback renders a test result as an action-oriented block suitable
// as the input to a repair turn. Each failure is listed with its test
// identifier and error excerpt, followed by an imperative to emit fixing
// update: directives.
func FormatFeedback(res Result) string {
	var b strings.Builder

	b.WriteString("The test suite is failing and must be fixed before the project can proceed.\n\n")

	if len(res.Failures) > 0 {
		fmt.Fprintf(&b, "Failing tests (%d failed, %d passed):\n\n", res.Failed, res.Passed)
		for i, f := range res.Failures {
			fmt.Fprintf(&b, "%d. %s\n", i+1, f.Test)
			if f.Error != "" {
				excerpt := f.Error
				if len(excerpt) > maxFeedbackExcerpt {
					excerpt = excerpt[:maxFeedbackExcerpt] + "\n   [...truncated]"
				}
				fmt.Fprintf(&b, "   Error: %s\n", strings.ReplaceAll(excerpt, "\n", "\n   "))
			}
			b.WriteString("\n")
		}
	} else if len(res.Errors) > 0 {
		// No specific failures to cite: tests could not be run at all.
		b.WriteString("The tests could not be run:\n\n")
		for _, e := range res.Errors {
			fmt.Fprintf(&b, "- %s\n", e)
		}
		b.WriteString("\nReview the project for missing test files, broken imports, or invalid configuration.\n")
	} else {
		fmt.Fprintf(&b, "The test command exited with code %d but no individual failures could be parsed.\n", res.ReturnCode)
		if tail := outputTail(res.Stderr, 1500); tail != "" {
			fmt.Fprintf(&b, "\nstderr tail:\n%s\n", tail)
		}
	}

	b.WriteString("\nFix the code now. For every file you change, emit an update: directive ")
	b.WriteString("with the complete corrected file content. Do not describe the fix in prose only.")
	return b.String()
}

// outputTail returns the last n bytes of s, trimmed to whole lines.
func outputTail(s string, n int) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if len(s) > n {
		s = s[len(s)-n:]
		if idx := strings.IndexByte(s, '\n'); idx >= 0 {
			s = s[idx+1:]
		}
	}
	return s
}
