package team

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colony-dev/colony/internal/agent"
	"github.com/colony-dev/colony/internal/llm"
)

func roles(agents []*agent.Agent) []agent.Role {
	out := make([]agent.Role, len(agents))
	for i, a := range agents {
		out[i] = a.Role()
	}
	return out
}

func TestKeywordClassify_SimpleTask(t *testing.T) {
	t.Parallel()
	a := keywordClassify("Write a function that reverses a string")

	assert.Equal(t, ComplexitySimple, a.Complexity)
	assert.Equal(t, []string{"backend"}, a.Domains)
	assert.Equal(t, 2, a.EstimatedTeamSize)
	assert.True(t, a.RequiresTesting)
}

func TestKeywordClassify_Domains(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		task   string
		domain string
	}{
		{"frontend", "Build a React website with a landing page", "frontend"},
		{"database", "Store customer records in PostgreSQL", "database"},
		{"security", "Add OAuth login to the service", "security"},
		{"data science", "Train a model for churn prediction on the dataset", "data_science"},
		{"devops", "Write a Dockerfile and deploy with kubernetes", "devops"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			a := keywordClassify(tt.task)
			assert.True(t, hasDomain(a.Domains, tt.domain),
				"task %q should carry domain %s, got %v", tt.task, tt.domain, a.Domains)
		})
	}
}

func TestKeywordClassify_ComplexitySignals(t *testing.T) {
	t.Parallel()
	a := keywordClassify("Build a scalable multi-user platform with real-time dashboard and authentication")
	assert.Equal(t, ComplexityComplex, a.Complexity)
	assert.Equal(t, 6, a.EstimatedTeamSize)
}

func TestValidateAnalysis(t *testing.T) {
	t.Parallel()

	valid := Analysis{Complexity: ComplexityMedium, EstimatedTeamSize: 4}
	require.NoError(t, validateAnalysis(&valid))

	clamped := Analysis{Complexity: ComplexitySimple, EstimatedTeamSize: 0}
	require.NoError(t, validateAnalysis(&clamped))
	assert.Equal(t, 1, clamped.EstimatedTeamSize)

	bad := Analysis{Complexity: "extreme", EstimatedTeamSize: 3}
	assert.Error(t, validateAnalysis(&bad))

	oversized := Analysis{Complexity: ComplexitySimple, EstimatedTeamSize: 9}
	assert.Error(t, validateAnalysis(&oversized))
}

func TestCompose_SimpleTask(t *testing.T) {
	t.Parallel()
	a := Analysis{
		Complexity:        ComplexitySimple,
		Domains:           []string{"backend"},
		RequiresTesting:   true,
		EstimatedTeamSize: 2,
	}
	got := compose(a, "write an add function")
	assert.ElementsMatch(t, []agent.Role{agent.RoleBackend, agent.RoleQATester}, got)
}

func TestCompose_SimpleFrontendTask(t *testing.T) {
	t.Parallel()
	a := Analysis{
		Complexity:        ComplexitySimple,
		Domains:           []string{"frontend"},
		RequiresTesting:   true,
		EstimatedTeamSize: 2,
	}
	got := compose(a, "make a landing page")
	assert.ElementsMatch(t, []agent.Role{agent.RoleFrontend, agent.RoleQATester}, got)
}

func TestCompose_QAOptOut(t *testing.T) {
	t.Parallel()
	a := Analysis{
		Complexity:        ComplexitySimple,
		Domains:           []string{"backend"},
		RequiresTesting:   true,
		EstimatedTeamSize: 2,
	}
	got := compose(a, "quick prototype of an add function")
	assert.Equal(t, []agent.Role{agent.RoleBackend}, got)
}

func TestCompose_LeadershipThresholds(t *testing.T) {
	t.Parallel()
	a := Analysis{
		Complexity:        ComplexityMedium,
		Domains:           []string{"backend"},
		RequiresTesting:   true,
		EstimatedTeamSize: 3,
	}
	got := compose(a, "build an api service")
	assert.Contains(t, got, agent.RoleLeadDeveloper)
	assert.NotContains(t, got, agent.RoleProductManager)

	a.EstimatedTeamSize = 5
	got = compose(a, "build an api service")
	assert.Contains(t, got, agent.RoleProductManager)
}

func TestCompose_Specialists(t *testing.T) {
	t.Parallel()
	a := Analysis{
		Complexity:          ComplexityComplex,
		Domains:             []string{"backend", "frontend", "security", "data_science"},
		RequiresSecurity:    true,
		RequiresUI:          true,
		RequiresTesting:     true,
		RequiresDataScience: true,
		EstimatedTeamSize:   6,
	}
	got := compose(a, "build a full-stack analytics platform with login")

	assert.Contains(t, got, agent.RoleSecurity)
	assert.Contains(t, got, agent.RoleDataScientist)
	assert.Contains(t, got, agent.RoleDesigner)
	assert.Contains(t, got, agent.RoleBackend)
	assert.Contains(t, got, agent.RoleFrontend)
	assert.Contains(t, got, agent.RoleQATester)
}

func TestEnforceCap_DropsSupportRolesFirst(t *testing.T) {
	t.Parallel()
	full := []agent.Role{
		agent.RoleProductManager, agent.RoleLeadDeveloper, agent.RoleBackend,
		agent.RoleFrontend, agent.RoleQATester, agent.RoleSecurity,
		agent.RoleDevOps, agent.RoleDesigner,
	}
	capped := enforceCap(full, 4)

	require.Len(t, capped, 4)
	assert.Contains(t, capped, agent.RoleLeadDeveloper)
	assert.Contains(t, capped, agent.RoleQATester)
	assert.NotContains(t, capped, agent.RoleDevOps)
	assert.NotContains(t, capped, agent.RoleDesigner)
}

func TestEnforceCap_KeepsEssentialsUnderExtremePressure(t *testing.T) {
	t.Parallel()
	full := []agent.Role{
		agent.RoleLeadDeveloper, agent.RoleBackend, agent.RoleFrontend, agent.RoleQATester,
	}
	capped := enforceCap(full, 3)

	require.Len(t, capped, 3)
	assert.Contains(t, capped, agent.RoleLeadDeveloper)
	assert.Contains(t, capped, agent.RoleQATester)
	// One domain developer survives.
	hasDev := false
	for _, r := range capped {
		if r == agent.RoleBackend || r == agent.RoleFrontend {
			hasDev = true
		}
	}
	assert.True(t, hasDev)
}

func TestEnforceCap_NoCapMeansUntouched(t *testing.T) {
	t.Parallel()
	full := []agent.Role{agent.RoleBackend, agent.RoleQATester}
	assert.Equal(t, full, enforceCap(full, 0))
	assert.Equal(t, full, enforceCap(full, 5))
}

func TestOrderForExecution(t *testing.T) {
	t.Parallel()
	unordered := []agent.Role{
		agent.RoleQATester, agent.RoleBackend, agent.RoleProductManager, agent.RoleLeadDeveloper,
	}
	got := orderForExecution(unordered)
	assert.Equal(t, []agent.Role{
		agent.RoleProductManager, agent.RoleLeadDeveloper, agent.RoleBackend, agent.RoleQATester,
	}, got)
}

func TestDefaultTeam(t *testing.T) {
	t.Parallel()
	team := DefaultTeam(llm.NewMockClient())
	assert.Equal(t, []agent.Role{
		agent.RoleLeadDeveloper, agent.RoleBackend, agent.RoleQATester,
	}, roles(team))
}

func TestBuild_UsesClassifierJSON(t *testing.T) {
	t.Parallel()
	client := llm.NewMockClient().Enqueue(`Here you go:
` + "```json\n" + `{
  "project_type": "web_app",
  "complexity": "complex",
  "domains": ["frontend", "backend", "security"],
  "requires_security": true,
  "requires_ui": true,
  "requires_testing": true,
  "requires_data_science": false,
  "estimated_team_size": 6
}` + "\n```")

	b := NewBuilder(client, log.New(io.Discard))
	team := b.Build(context.Background(), "Build a web shop with login", 0)

	got := roles(team)
	assert.Contains(t, got, agent.RoleLeadDeveloper)
	assert.Contains(t, got, agent.RoleBackend)
	assert.Contains(t, got, agent.RoleFrontend)
	assert.Contains(t, got, agent.RoleSecurity)
	assert.Contains(t, got, agent.RoleQATester)
	// Execution order puts leadership first and QA near the end.
	assert.Equal(t, agent.RoleProductManager, got[0])
}

func TestBuild_ClassifierFailureFallsBack(t *testing.T) {
	t.Parallel()
	client := llm.NewMockClient()
	client.EnqueueError(errors.New("endpoint down"))

	b := NewBuilder(client, log.New(io.Discard))
	team := b.Build(context.Background(), "Write a function that adds two numbers", 0)

	// Keyword fallback classifies this as a simple backend task: one
	// developer plus QA.
	assert.Equal(t, []agent.Role{agent.RoleBackend, agent.RoleQATester}, roles(team))
}

func TestBuild_CapScenario(t *testing.T) {
	t.Parallel()
	client := llm.NewMockClient().Enqueue(`{
  "project_type": "platform",
  "complexity": "complex",
  "domains": ["frontend", "backend", "security", "devops"],
  "requires_security": true,
  "requires_ui": true,
  "requires_testing": true,
  "requires_data_science": false,
  "estimated_team_size": 8
}`)

	b := NewBuilder(client, log.New(io.Discard))
	team := b.Build(context.Background(), "Build a deployable full-stack platform with docker and login", 4)

	got := roles(team)
	require.Len(t, got, 4)
	assert.Contains(t, got, agent.RoleLeadDeveloper)
	assert.Contains(t, got, agent.RoleQATester)
	assert.NotContains(t, got, agent.RoleDevOps)
	assert.NotContains(t, got, agent.RoleDesigner)
}

func TestBuild_InvalidClassifierJSONFallsBack(t *testing.T) {
	t.Parallel()
	client := llm.NewMockClient().Enqueue(`{"complexity": "galactic", "estimated_team_size": 3}`)

	b := NewBuilder(client, log.New(io.Discard))
	team := b.Build(context.Background(), "make a react landing page", 0)

	assert.NotEmpty(t, team)
	// Keyword fallback saw "react" and "landing page".
	assert.Contains(t, roles(team), agent.RoleFrontend)
}
