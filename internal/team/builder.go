// Package team analyzes a task description and composes an ordered agent
// team sized to the task's complexity and domains. Classification prefers a
// model call returning structured JSON; any failure there falls back to a
// deterministic keyword classifier so team building never blocks a
// workflow.
package team

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/colony-dev/colony/internal/agent"
	"github.com/colony-dev/colony/internal/jsonutil"
	"github.com/colony-dev/colony/internal/llm"
)

// Complexity levels the classifier may assign.
const (
	ComplexitySimple  = "simple"
	ComplexityMedium  = "medium"
	ComplexityComplex = "complex"
)

// Analysis is the structured task classification driving composition.
type Analysis struct {
	ProjectType         string   `json:"project_type"`
	Complexity          string   `json:"complexity"`
	Domains             []string `json:"domains"`
	RequiresSecurity    bool     `json:"requires_security"`
	RequiresUI          bool     `json:"requires_ui"`
	RequiresTesting     bool     `json:"requires_testing"`
	RequiresDataScience bool     `json:"requires_data_science"`
	EstimatedTeamSize   int      `json:"estimated_team_size"`
}

const classifierPrompt = `Analyze this software task and reply with ONLY a JSON object:

{
  "project_type": "<short label, e.g. web_app, cli_tool, library, api>",
  "complexity": "simple" | "medium" | "complex",
  "domains": ["frontend", "backend", "database", "security", "data_science", "mobile", "devops", "testing"],
  "requires_security": bool,
  "requires_ui": bool,
  "requires_testing": bool,
  "requires_data_science": bool,
  "estimated_team_size": <integer 1-8>
}

Include only the domains that actually apply.

Task:
%s`

// Builder composes teams for tasks.
type Builder struct {
	client llm.Client
	logger *log.Logger
}

// NewBuilder creates a team builder backed by the given chat client.
func NewBuilder(client llm.Client, logger *log.Logger) *Builder {
	return &Builder{client: client, logger: logger}
}

// Build analyzes the task and returns the composed team in execution order.
// maxSize <= 0 means uncapped.
func (b *Builder) Build(ctx context.Context, task string, maxSize int) []*agent.Agent {
	analysis := b.classify(ctx, task)

	roles := compose(analysis, task)
	roles = enforceCap(roles, maxSize)
	roles = orderForExecution(roles)

	agents := make([]*agent.Agent, 0, len(roles))
	for _, r := range roles {
		agents = append(agents, agent.New(r, "", b.client))
	}

	names := make([]string, len(agents))
	for i, a := range agents {
		names[i] = a.Name()
	}
	b.logger.Info("team composed",
		"complexity", analysis.Complexity,
		"domains", strings.Join(analysis.Domains, ","),
		"team", strings.Join(names, ", "),
	)
	return agents
}

// DefaultTeam is the fixed three-agent team used when automatic composition
// is disabled: Lead Developer, Backend Developer, QA Tester.
func DefaultTeam(client llm.Client) []*agent.Agent {
	return []*agent.Agent{
		agent.New(agent.RoleLeadDeveloper, "", client),
		agent.New(agent.RoleBackend, "", client),
		agent.New(agent.RoleQATester, "", client),
	}
}

// classify asks the model for a structured analysis and falls back to the
// keyword classifier on any failure: unreachable endpoint, invalid JSON, or
// out-of-range values.
func (b *Builder) classify(ctx context.Context, task string) Analysis {
	resp, err := b.client.Chat(ctx, llm.Request{
		Messages: []llm.Message{
			{Role: "system", Content: "You are a software project classifier. Reply with JSON only."},
			{Role: "user", Content: fmt.Sprintf(classifierPrompt, task)},
		},
		Temperature: 0.1,
	})
	if err != nil {
		b.logger.Warn("classifier call failed, using keyword fallback", "error", err)
		return keywordClassify(task)
	}

	var a Analysis
	if err := jsonutil.ExtractInto(resp.Content, &a); err != nil {
		b.logger.Warn("classifier returned no usable JSON, using keyword fallback", "error", err)
		return keywordClassify(task)
	}
	if err := validateAnalysis(&a); err != nil {
		b.logger.Warn("classifier analysis invalid, using keyword fallback", "error", err)
		return keywordClassify(task)
	}
	return a
}

// validateAnalysis rejects out-of-range classifier output and clamps the
// team size boundary cases.
func validateAnalysis(a *Analysis) error {
	switch a.Complexity {
	case ComplexitySimple, ComplexityMedium, ComplexityComplex:
	default:
		return fmt.Errorf("unknown complexity %q", a.Complexity)
	}
	if a.EstimatedTeamSize < 0 || a.EstimatedTeamSize > 8 {
		return fmt.Errorf("team size %d out of range", a.EstimatedTeamSize)
	}
	if a.EstimatedTeamSize == 0 {
		a.EstimatedTeamSize = 1
	}
	return nil
}

// domainKeywords drives the deterministic fallback classifier.
var domainKeywords = map[string][]string{
	"frontend":     {"frontend", "ui", "react", "vue", "html", "css", "website", "web page", "interface"},
	"backend":      {"backend", "api", "server", "endpoint", "rest", "function", "service", "library", "script"},
	"database":     {"database", "sql", "postgres", "mysql", "sqlite", "mongodb", "storage"},
	"security":     {"auth", "login", "password", "encrypt", "secure", "oauth", "token"},
	"data_science": {"machine learning", "data analysis", "model", "dataset", "statistics", "prediction", "pandas"},
	"mobile":       {"mobile", "ios", "android", "app store"},
	"devops":       {"deploy", "docker", "kubernetes", "ci/cd", "pipeline", "terraform"},
	"testing":      {"test", "tdd", "coverage", "quality"},
}

// complexKeywords push a task from simple toward complex.
var complexKeywords = []string{
	"microservice", "distributed", "real-time", "scalable", "authentication",
	"dashboard", "full-stack", "platform", "multi-user", "integration",
}

// keywordClassify is the deterministic fallback: domain detection by
// substring, complexity by task length and signal words.
func keywordClassify(task string) Analysis {
	lower := strings.ToLower(task)

	a := Analysis{
		ProjectType: "general",
		Complexity:  ComplexitySimple,
		Domains:     []string{},
	}

	for domain, words := range domainKeywords {
		for _, w := range words {
			if strings.Contains(lower, w) {
				a.Domains = append(a.Domains, domain)
				break
			}
		}
	}
	if len(a.Domains) == 0 {
		a.Domains = append(a.Domains, "backend")
	}

	score := 0
	for _, w := range complexKeywords {
		if strings.Contains(lower, w) {
			score++
		}
	}
	switch {
	case score >= 3 || len(a.Domains) >= 4:
		a.Complexity = ComplexityComplex
	case score >= 1 || len(a.Domains) >= 2 || len(task) > 300:
		a.Complexity = ComplexityMedium
	}

	a.RequiresSecurity = hasDomain(a.Domains, "security")
	a.RequiresUI = hasDomain(a.Domains, "frontend") || hasDomain(a.Domains, "mobile")
	a.RequiresTesting = true
	a.RequiresDataScience = hasDomain(a.Domains, "data_science")

	a.EstimatedTeamSize = 2
	switch a.Complexity {
	case ComplexityMedium:
		a.EstimatedTeamSize = 4
	case ComplexityComplex:
		a.EstimatedTeamSize = 6
	}
	return a
}

func hasDomain(domains []string, d string) bool {
	for _, x := range domains {
		if x == d {
			return true
		}
	}
	return false
}

// compose applies the composition rules in order and returns an unordered
// role set (ordering happens last).
func compose(a Analysis, task string) []agent.Role {
	lower := strings.ToLower(task)
	optOutQA := strings.Contains(lower, "prototype") || strings.Contains(lower, "no tests")

	needsBackend := hasDomain(a.Domains, "backend") || hasDomain(a.Domains, "database") || hasDomain(a.Domains, "api")
	needsFrontend := hasDomain(a.Domains, "frontend") || hasDomain(a.Domains, "ui") || hasDomain(a.Domains, "mobile")

	// Rule 1: trivial tasks get a single developer plus QA.
	if a.Complexity == ComplexitySimple && a.EstimatedTeamSize <= 2 {
		roles := []agent.Role{}
		if needsBackend || !needsFrontend {
			roles = append(roles, agent.RoleBackend)
		} else {
			roles = append(roles, agent.RoleFrontend)
		}
		if a.RequiresTesting && !optOutQA {
			roles = append(roles, agent.RoleQATester)
		}
		return roles
	}

	set := map[agent.Role]bool{}

	// Rules 2-3: leadership thresholds.
	if a.EstimatedTeamSize >= 3 {
		set[agent.RoleLeadDeveloper] = true
	}
	if a.EstimatedTeamSize >= 5 {
		set[agent.RoleProductManager] = true
	}

	// Rule 4: domain developers. Mobile work is staffed by the frontend
	// developer.
	if needsBackend {
		set[agent.RoleBackend] = true
	}
	if needsFrontend {
		set[agent.RoleFrontend] = true
	}
	if !needsBackend && !needsFrontend {
		set[agent.RoleBackend] = true
	}

	// Rule 5: specialists.
	if a.RequiresSecurity {
		set[agent.RoleSecurity] = true
	}
	if a.RequiresDataScience {
		set[agent.RoleDataScientist] = true
	}
	if a.RequiresUI && a.Complexity != ComplexitySimple {
		set[agent.RoleDesigner] = true
	}
	for _, w := range domainKeywords["devops"] {
		if strings.Contains(lower, w) {
			set[agent.RoleDevOps] = true
			break
		}
	}

	// Rule 6: QA unless explicitly opted out.
	if !optOutQA {
		set[agent.RoleQATester] = true
	}

	roles := make([]agent.Role, 0, len(set))
	for r := range set {
		roles = append(roles, r)
	}
	return roles
}

// dropPriority lists roles in the order they are sacrificed to a size cap:
// support roles first, then specialists, then the Product Manager. Lead,
// QA, and the primary domain developers are dropped only when nothing
// non-essential remains.
var dropPriority = []agent.Role{
	agent.RoleDevOps,
	agent.RoleDesigner,
	agent.RoleTechWriter,
	agent.RoleDataScientist,
	agent.RoleSecurity,
	agent.RoleProductManager,
}

// enforceCap shrinks the role set to maxSize by dropping in reverse
// priority.
func enforceCap(roles []agent.Role, maxSize int) []agent.Role {
	if maxSize <= 0 || len(roles) <= maxSize {
		return roles
	}
	remaining := append([]agent.Role(nil), roles...)
	for _, drop := range dropPriority {
		if len(remaining) <= maxSize {
			break
		}
		remaining = removeRole(remaining, drop)
	}
	// Still over cap: only Lead, QA, and domain developers are left. Keep
	// the essentials (Lead, QA, first domain developer), then fill any
	// spare seats with the remaining developers.
	if len(remaining) > maxSize {
		ordered := orderForExecution(remaining)
		var essentials, spares []agent.Role
		devSeen := false
		for _, r := range ordered {
			switch {
			case r == agent.RoleLeadDeveloper || r == agent.RoleQATester:
				essentials = append(essentials, r)
			case (r == agent.RoleBackend || r == agent.RoleFrontend) && !devSeen:
				devSeen = true
				essentials = append(essentials, r)
			default:
				spares = append(spares, r)
			}
		}
		for _, r := range spares {
			if len(essentials) >= maxSize {
				break
			}
			essentials = append(essentials, r)
		}
		remaining = essentials
	}
	return remaining
}

func removeRole(roles []agent.Role, target agent.Role) []agent.Role {
	out := roles[:0]
	for _, r := range roles {
		if r != target {
			out = append(out, r)
		}
	}
	return out
}

// executionOrder is the turn order within an iteration: planners first,
// then builders, then quality and documentation.
var executionOrder = []agent.Role{
	agent.RoleCEO,
	agent.RoleProductManager,
	agent.RoleLeadDeveloper,
	agent.RoleBackend,
	agent.RoleFrontend,
	agent.RoleSecurity,
	agent.RoleDataScientist,
	agent.RoleDesigner,
	agent.RoleDevOps,
	agent.RoleQATester,
	agent.RoleTechWriter,
}

// orderForExecution sorts roles into execution order.
func orderForExecution(roles []agent.Role) []agent.Role {
	present := map[agent.Role]bool{}
	for _, r := range roles {
		present[r] = true
	}
	var out []agent.Role
	for _, r := range executionOrder {
		if present[r] {
			out = append(out, r)
		}
	}
	return out
}
