// Package ops extracts structured file operations from free-form agent
// replies. Model output is treated as adversarial: fence imbalance, stray
// language hints, and hallucinated directive forms are routine. The policy
// throughout is to drop, warn, and continue; parsing never fails.
package ops

import (
	"fmt"
	"strings"

	"github.com/colony-dev/colony/internal/project"
)

// Kind discriminates the file-operation variants.
type Kind string

const (
	KindCreate Kind = "create"
	KindUpdate Kind = "update"
	KindRead   Kind = "read"
)

// FileOp is one structured file operation parsed from an agent reply.
// Content is empty for read operations.
type FileOp struct {
	Kind    Kind
	Path    string
	Content string
}

// Result is the outcome of parsing one agent reply: the ordered operations,
// the completion signal, and any warnings about dropped directives.
type Result struct {
	Ops      []FileOp
	Complete bool
	Warnings []string
}

// completionPhrases is the closed phrase set for completion detection.
// Matching is case-insensitive substring search over the whole reply.
var completionPhrases = []string{
	"project is complete",
	"all requirements met",
	"all requirements have been met",
	"all requirements are met",
	"ready for deployment",
	"ready for production",
	"no further improvements needed",
	"no further improvements necessary",
	"no further changes needed",
	"implementation is complete",
	"project is finished",
}

// fence is one triple-backtick block: the info string on the opening line
// and the body up to the closing line. Fences are matched greedily but
// non-nesting: an opening ``` consumes until the next ``` line.
type fence struct {
	info string
	body string
}

// Parse extracts file operations and the completion signal from one reply.
func Parse(reply string) Result {
	res := Result{Complete: DetectCompletion(reply)}

	fences := splitFences(reply)

	// pending is a create/update directive still waiting for its content
	// fence. A directive followed by anything other than a plain content
	// fence is discarded.
	var pending *FileOp

	flushPending := func(reason string) {
		if pending != nil {
			res.Warnings = append(res.Warnings,
				fmt.Sprintf("%s directive for %q dropped: %s", pending.Kind, pending.Path, reason))
			pending = nil
		}
	}

	for _, f := range fences {
		kind, rawPath, isDirective := parseDirective(f.info)
		inlineBody := f.body
		if !isDirective {
			// Long form: the directive rides as the first line of the
			// fence body (``` \n filename: path \n ... \n ```).
			first, rest, _ := strings.Cut(f.body, "\n")
			if k, p, ok := parseDirective(first); ok {
				kind, rawPath, isDirective = k, p, ok
				inlineBody = rest
			}
		}

		switch {
		case isDirective:
			flushPending("followed by another directive, not content")
			clean, err := project.SanitizePath(rawPath)
			if err != nil {
				res.Warnings = append(res.Warnings,
					fmt.Sprintf("%s directive dropped: %v", kind, err))
				continue
			}
			op := FileOp{Kind: kind, Path: clean}
			if kind == KindRead {
				res.Ops = append(res.Ops, op)
				continue
			}
			// Shorthand: content lives in the same fence as the directive.
			if strings.TrimSpace(inlineBody) != "" {
				op.Content = strings.TrimRight(inlineBody, "\n")
				res.Ops = append(res.Ops, op)
				continue
			}
			pending = &op

		case pending != nil:
			if strings.TrimSpace(f.body) == "" {
				flushPending("content block is empty")
				continue
			}
			pending.Content = f.body
			res.Ops = append(res.Ops, *pending)
			pending = nil

		default:
			// Plain fenced block with no preceding directive: recorded
			// nowhere, contributes no ops.
		}
	}
	flushPending("no content block followed")

	return res
}

// DetectCompletion reports whether the reply contains any phrase from the
// closed completion set, case-insensitively.
func DetectCompletion(reply string) bool {
	lower := strings.ToLower(reply)
	for _, phrase := range completionPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

// directivePrefixes maps the recognized directive keywords to op kinds.
// "create:" is a hallucinated-but-unambiguous synonym models produce for
// "filename:"; accepting it costs nothing.
var directivePrefixes = []struct {
	prefix string
	kind   Kind
}{
	{"filename:", KindCreate},
	{"create:", KindCreate},
	{"update:", KindUpdate},
	{"read:", KindRead},
}

// parseDirective classifies an info string or single line as a directive.
// Recognized: "filename: <path>", "update: <path>", "read: <path>", with or
// without the space after the colon. Language hints ("python", "go") do not
// match and are therefore ignored.
func parseDirective(s string) (Kind, string, bool) {
	s = strings.TrimSpace(s)
	lower := strings.ToLower(s)
	for _, d := range directivePrefixes {
		if strings.HasPrefix(lower, d.prefix) {
			p := strings.TrimSpace(s[len(d.prefix):])
			if p == "" {
				return "", "", false
			}
			return d.kind, p, true
		}
	}
	return "", "", false
}

// splitFences tokenizes the reply into fences. The info string is whatever
// follows the opening backticks on the same line. Single-line fences like
// ```read: path``` are handled. Unterminated fences run to end of input.
func splitFences(reply string) []fence {
	var fences []fence
	lines := strings.Split(reply, "\n")

	for i := 0; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])
		if !strings.HasPrefix(line, "```") {
			continue
		}
		rest := strings.TrimPrefix(line, "```")

		// Single-line fence: ```directive``` with both markers on one line.
		if strings.HasSuffix(rest, "```") && len(rest) >= 3 {
			fences = append(fences, fence{info: strings.TrimSuffix(rest, "```")})
			continue
		}

		var body []string
		j := i + 1
		for ; j < len(lines); j++ {
			if strings.HasPrefix(strings.TrimSpace(lines[j]), "```") {
				break
			}
			body = append(body, lines[j])
		}
		fences = append(fences, fence{
			info: strings.TrimSpace(rest),
			body: strings.Join(body, "\n"),
		})
		i = j
	}
	return fences
}
