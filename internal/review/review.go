// Package review implements the peer-review sub-protocol: reviewer
// selection for an authored file, parallel multi-round critique, and
// author-driven revision. A review is never hard-rejected; the round cap
// bounds it and the file is accepted with notes when critique remains.
package review

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/colony-dev/colony/internal/agent"
	"github.com/colony-dev/colony/internal/ops"
	"github.com/colony-dev/colony/internal/project"
)

// DefaultMaxRounds bounds the critique/revision cycle per file.
const DefaultMaxRounds = 2

// Verdict is the terminal state of a review.
type Verdict string

const (
	// VerdictApproved means every reviewer approved within the round cap.
	VerdictApproved Verdict = "Approved"

	// VerdictAcceptedWithNotes means the round cap was reached with
	// critique outstanding; the file stands as written.
	VerdictAcceptedWithNotes Verdict = "Accepted-with-notes"
)

// Outcome records one completed review.
type Outcome struct {
	File      string   `json:"file"`
	Author    string   `json:"author"`
	Rounds    int      `json:"rounds"`
	Reviewers []string `json:"reviewers"`
	Verdict   Verdict  `json:"verdict"`
	Feedback  []string `json:"feedback"`
}

// securitySensitive are path substrings that pull the Security Expert into
// the reviewer set.
var securitySensitive = []string{
	"auth", "login", "password", "token", "crypto", "payment", "security",
}

// approvalPhrases, when present in a reviewer reply, mark it as an approval
// rather than critique.
var approvalPhrases = []string{"approved", "looks good", "no changes"}

// rubrics are the role-specific critique angles embedded in reviewer
// prompts.
var rubrics = map[agent.Role]string{
	agent.RoleLeadDeveloper: "architecture: module boundaries, naming, error handling, and whether this file fits the overall design",
	agent.RoleBackend:       "API contracts, data handling, and performance: query patterns, validation, resource cleanup",
	agent.RoleFrontend:      "user experience, state management, and accessibility",
	agent.RoleQATester:      "testability and edge cases: what inputs break this, what is untested",
	agent.RoleSecurity:      "OWASP-style vulnerabilities: injection, secrets, authentication and authorization flaws",
}

// Coordinator conducts reviews against a file store.
type Coordinator struct {
	store     *project.Store
	logger    *log.Logger
	maxRounds int
}

// NewCoordinator creates a review coordinator. maxRounds <= 0 selects
// DefaultMaxRounds.
func NewCoordinator(store *project.Store, maxRounds int, logger *log.Logger) *Coordinator {
	if maxRounds <= 0 {
		maxRounds = DefaultMaxRounds
	}
	return &Coordinator{store: store, maxRounds: maxRounds, logger: logger}
}

// SelectReviewers picks up to three reviewers for a file authored by author,
// in priority order: Lead Developer, the complementary developer (Backend
// for a Frontend author and vice versa), QA Tester, and, for
// security-sensitive paths, the Security Expert. The author never reviews
// their own file.
func SelectReviewers(path string, author *agent.Agent, team []*agent.Agent) []*agent.Agent {
	byRole := func(r agent.Role) *agent.Agent {
		for _, a := range team {
			if a.Role() == r && a != author {
				return a
			}
		}
		return nil
	}

	var candidates []*agent.Agent
	add := func(a *agent.Agent) {
		if a == nil {
			return
		}
		for _, c := range candidates {
			if c == a {
				return
			}
		}
		candidates = append(candidates, a)
	}

	add(byRole(agent.RoleLeadDeveloper))
	switch author.Role() {
	case agent.RoleBackend:
		add(byRole(agent.RoleFrontend))
	case agent.RoleFrontend:
		add(byRole(agent.RoleBackend))
	}
	add(byRole(agent.RoleQATester))
	if isSecuritySensitive(path) {
		add(byRole(agent.RoleSecurity))
	}

	if len(candidates) > 3 {
		candidates = candidates[:3]
	}
	return candidates
}

func isSecuritySensitive(path string) bool {
	lower := strings.ToLower(path)
	for _, s := range securitySensitive {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}

// ReviewFile runs the critique/revision protocol for one authored file.
// Reviewer failures are treated as approval with a note; an unparseable
// author revision ends the round with the current content standing. The
// returned Outcome is always non-nil.
func (c *Coordinator) ReviewFile(ctx context.Context, path, taskContext string, author *agent.Agent, team []*agent.Agent) *Outcome {
	outcome := &Outcome{
		File:     path,
		Author:   author.Name(),
		Verdict:  VerdictApproved,
		Feedback: []string{},
	}

	reviewers := SelectReviewers(path, author, team)
	for _, r := range reviewers {
		outcome.Reviewers = append(outcome.Reviewers, r.Name())
	}
	if len(reviewers) == 0 {
		return outcome
	}

	for round := 1; round <= c.maxRounds; round++ {
		outcome.Rounds = round

		content, err := c.store.Read(path)
		if err != nil {
			outcome.Feedback = append(outcome.Feedback, fmt.Sprintf("review aborted: %v", err))
			return outcome
		}

		critiques := c.collectCritiques(ctx, path, string(content), taskContext, reviewers, outcome)
		if len(critiques) == 0 {
			outcome.Verdict = VerdictApproved
			return outcome
		}
		outcome.Feedback = append(outcome.Feedback, critiques...)

		if !c.reviseWithAuthor(ctx, path, critiques, author, outcome) {
			break
		}
	}

	outcome.Verdict = VerdictAcceptedWithNotes
	return outcome
}

// collectCritiques fans reviewer prompts out in parallel (the file is stable
// within a single author's turn) and returns the
// non-approval replies. A reviewer error counts as approval with a note.
func (c *Coordinator) collectCritiques(ctx context.Context, path, content, taskContext string, reviewers []*agent.Agent, outcome *Outcome) []string {
	replies := make([]string, len(reviewers))
	notes := make([]string, len(reviewers))

	g, gctx := errgroup.WithContext(ctx)
	for i, r := range reviewers {
		g.Go(func() error {
			prompt := buildReviewPrompt(path, content, taskContext, r.Role())
			reply, err := r.Step(gctx, prompt)
			if err != nil {
				c.logger.Warn("reviewer failed, treating as approval",
					"reviewer", r.Name(), "file", path, "error", err)
				notes[i] = fmt.Sprintf("%s: review skipped (%v)", r.Name(), err)
				return nil
			}
			replies[i] = reply
			return nil
		})
	}
	// Goroutines only return nil; Wait surfaces context cancellation.
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		c.logger.Warn("review round interrupted", "file", path, "error", err)
	}
	for _, n := range notes {
		if n != "" {
			outcome.Feedback = append(outcome.Feedback, n)
		}
	}

	var critiques []string
	for i, reply := range replies {
		if reply == "" || isApproval(reply) {
			continue
		}
		critiques = append(critiques, fmt.Sprintf("%s: %s", reviewers[i].Name(), reply))
	}
	return critiques
}

// reviseWithAuthor delivers consolidated feedback to the author and applies
// the resulting revision. Only update operations targeting the file under
// review are honored here; any other operation is deferred to the agent's
// next iteration turn. Returns false when no further rounds are useful.
func (c *Coordinator) reviseWithAuthor(ctx context.Context, path string, critiques []string, author *agent.Agent, outcome *Outcome) bool {
	prompt := buildRevisionPrompt(path, critiques)

	reply, err := author.Step(ctx, prompt)
	if err != nil {
		c.logger.Warn("author revision failed", "author", author.Name(), "file", path, "error", err)
		outcome.Feedback = append(outcome.Feedback,
			fmt.Sprintf("revision skipped: %v", err))
		return false
	}

	parsed := ops.Parse(reply)
	applied := false
	for _, op := range parsed.Ops {
		if op.Path != path || op.Kind == ops.KindRead {
			c.logger.Debug("deferring out-of-scope revision op",
				"kind", op.Kind, "path", op.Path, "reviewed_file", path)
			continue
		}
		if err := c.store.Update(op.Path, []byte(op.Content)); err != nil {
			c.logger.Warn("applying revision failed", "path", op.Path, "error", err)
			continue
		}
		applied = true
	}
	return applied
}

func isApproval(reply string) bool {
	lower := strings.ToLower(reply)
	for _, phrase := range approvalPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

func buildReviewPrompt(path, content, taskContext string, role agent.Role) string {
	rubric, ok := rubrics[role]
	if !ok {
		rubric = "overall correctness and clarity"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Review the file %s written by a teammate.\n\n", path)
	if taskContext != "" {
		fmt.Fprintf(&b, "Project task:\n%s\n\n", taskContext)
	}
	fmt.Fprintf(&b, "File content:\n```\n%s\n```\n\n", content)
	fmt.Fprintf(&b, "Focus your critique on %s.\n\n", rubric)
	b.WriteString("If the file is acceptable, reply with the single word: approved. ")
	b.WriteString("Otherwise list the specific problems that must be fixed, most important first.")
	return b.String()
}

func buildRevisionPrompt(path string, critiques []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Your teammates reviewed %s and raised the following points:\n\n", path)
	for _, cr := range critiques {
		fmt.Fprintf(&b, "- %s\n", cr)
	}
	fmt.Fprintf(&b, "\nRevise the file to address the feedback. Reply with an update: directive for %s containing the complete new content.", path)
	return b.String()
}
