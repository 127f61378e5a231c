package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/colony-dev/colony/internal/agent"
	"github.com/colony-dev/colony/internal/config"
	"github.com/colony-dev/colony/internal/llm"
	"github.com/colony-dev/colony/internal/logging"
	"github.com/colony-dev/colony/internal/loop"
	"github.com/colony-dev/colony/internal/project"
	"github.com/colony-dev/colony/internal/report"
	"github.com/colony-dev/colony/internal/team"
)

// maxProjectNameLen bounds names derived from the task text.
const maxProjectNameLen = 50

var runFlags struct {
	name          string
	output        string
	iterations    int
	minIterations int
	noAutoStop    bool
	agents        []string
	noAutoTeam    bool
	maxTeamSize   int
	testCommand   string
	noTesting     bool
	noReview      bool
	noSecScan     bool
	tdd           bool
	yes           bool
}

var runCmd = &cobra.Command{
	Use:   "run <task>",
	Short: "Build a project from a natural-language task description",
	Long: `Run assembles an agent team for the given task, then iterates: each agent
takes a turn reading and writing project files, developers' files go through
peer review, and the project's test suite gates completion. The generated
project is written under the output directory.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runWorkflow,
}

func init() {
	f := runCmd.Flags()
	f.StringVar(&runFlags.name, "name", "", "Project directory name (default: derived from the task)")
	f.StringVar(&runFlags.output, "output", "", "Parent directory for generated projects (default: ./generated_projects)")
	f.IntVar(&runFlags.iterations, "iterations", 0, "Maximum workflow iterations")
	f.IntVar(&runFlags.minIterations, "min-iterations", 0, "Iterations required before completion-based early stop")
	f.BoolVar(&runFlags.noAutoStop, "no-auto-stop", false, "Always run the full iteration count")
	f.StringSliceVar(&runFlags.agents, "agents", nil, "Explicit team as ROLE[:NAME] entries (disables automatic team analysis)")
	f.BoolVar(&runFlags.noAutoTeam, "no-auto-team", false, "Skip task analysis and use the default team")
	f.IntVar(&runFlags.maxTeamSize, "max-team-size", 0, "Cap on automatically composed team size (0 means no cap)")
	f.StringVar(&runFlags.testCommand, "test-command", "", "Shell command to run tests (default: framework auto-detection)")
	f.BoolVar(&runFlags.noTesting, "no-testing", false, "Skip test execution entirely")
	f.BoolVar(&runFlags.noReview, "no-collaborative-review", false, "Skip the peer review protocol")
	f.BoolVar(&runFlags.noSecScan, "no-security-scan", false, "Skip the post-run security scan")
	f.BoolVar(&runFlags.tdd, "tdd", false, "Use the test-driven workflow (tests first, then implementation)")
	f.BoolVar(&runFlags.yes, "yes", false, "Reuse a non-empty project directory without prompting")
	rootCmd.AddCommand(runCmd)
}

func runWorkflow(cmd *cobra.Command, args []string) error {
	logger := logging.New("cli")
	task := strings.TrimSpace(strings.Join(args, " "))
	if task == "" {
		return fmt.Errorf("task description must not be empty")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, md, err := config.Load(".")
	if err != nil {
		return err
	}
	applyRunFlags(cmd, cfg)

	vr := config.Validate(cfg, md)
	for _, w := range vr.Warnings() {
		logger.Warn("config", "field", w.Field, "issue", w.Message)
	}
	if vr.HasErrors() {
		for _, e := range vr.Errors() {
			logger.Error("config", "field", e.Field, "issue", e.Message)
		}
		return fmt.Errorf("configuration is invalid")
	}

	client, err := llm.NewHTTPClient(llm.HTTPClientConfig{
		BaseURL: cfg.LLM.BaseURL,
		Model:   cfg.LLM.Model,
		APIKey:  cfg.LLM.APIKey,
		Timeout: time.Duration(cfg.LLM.TimeoutSeconds) * time.Second,
	})
	if err != nil {
		return err
	}
	if !client.IsAvailable(ctx) {
		logger.Warn("LLM endpoint did not respond to a health probe; continuing anyway",
			"base_url", cfg.LLM.BaseURL)
	}

	name := runFlags.name
	if name == "" {
		name = deriveProjectName(task)
	}
	projectDir := filepath.Join(cfg.Output.Dir, name)
	if err := confirmReuse(projectDir); err != nil {
		return err
	}

	store, err := project.NewStore(projectDir, logging.New("store"))
	if err != nil {
		return err
	}

	clarified := team.Clarify(ctx, client, task, logging.New("clarify"))

	members, err := assembleTeam(ctx, client, clarified.Clarified, cfg)
	if err != nil {
		return err
	}
	for _, m := range members {
		if temp, ok := cfg.LLM.Temperatures[string(m.Role())]; ok {
			m.WithTemperature(temp)
		}
		logger.Info("team member", "name", m.Name(), "role", m.Role())
	}

	loopCfg := loop.Config{
		Task:                clarified.Clarified,
		MaxIterations:       cfg.Workflow.MaxIterations,
		MinIterations:       cfg.Workflow.MinIterations,
		StopOnCompletion:    cfg.Workflow.AutoStop,
		TestingEnabled:      cfg.Testing.Enabled,
		TestCommand:         cfg.Testing.Command,
		TestTimeout:         time.Duration(cfg.Testing.TimeoutSeconds) * time.Second,
		ReviewEnabled:       cfg.Review.Enabled,
		ReviewMaxRounds:     cfg.Review.MaxRounds,
		SecurityScanEnabled: cfg.Security.ScanEnabled,
	}

	events := make(chan loop.Event, 64)
	go logEvents(events, logger)

	ctl, err := loop.NewController(loopCfg, members, store, logging.New("loop"), events)
	if err != nil {
		return err
	}

	// Agent-level failures are recorded in the result, not surfaced as a
	// non-zero exit; only cancellation and project I/O abort the run.
	if runFlags.tdd {
		res, err := ctl.RunTDD(ctx)
		if err != nil {
			return err
		}
		fmt.Println(report.RenderTDD(res))
		return nil
	}

	res, err := ctl.Run(ctx)
	if err != nil {
		return err
	}
	fmt.Println(report.Render(res))
	return nil
}

// applyRunFlags overlays command-line flags onto the resolved configuration.
// Flags win over colony.toml and environment variables.
func applyRunFlags(cmd *cobra.Command, cfg *config.Config) {
	if runFlags.output != "" {
		cfg.Output.Dir = runFlags.output
	}
	if cmd.Flags().Changed("iterations") {
		cfg.Workflow.MaxIterations = runFlags.iterations
	}
	if cmd.Flags().Changed("min-iterations") {
		cfg.Workflow.MinIterations = runFlags.minIterations
	}
	if cmd.Flags().Changed("max-team-size") {
		cfg.Workflow.MaxTeamSize = runFlags.maxTeamSize
	}
	if runFlags.noAutoStop {
		cfg.Workflow.AutoStop = false
	}
	if runFlags.testCommand != "" {
		cfg.Testing.Command = runFlags.testCommand
	}
	if runFlags.noTesting {
		cfg.Testing.Enabled = false
	}
	if runFlags.noReview {
		cfg.Review.Enabled = false
	}
	if runFlags.noSecScan {
		cfg.Security.ScanEnabled = false
	}
}

// assembleTeam builds the agent team: explicit --agents entries win, then
// --no-auto-team falls back to the default trio, otherwise the task is
// analyzed and a team composed for it.
func assembleTeam(ctx context.Context, client llm.Client, task string, cfg *config.Config) ([]*agent.Agent, error) {
	if len(runFlags.agents) > 0 {
		return parseAgentSpecs(runFlags.agents, client)
	}
	if runFlags.noAutoTeam {
		return team.DefaultTeam(client), nil
	}
	builder := team.NewBuilder(client, logging.New("team"))
	return builder.Build(ctx, task, cfg.Workflow.MaxTeamSize), nil
}

// parseAgentSpecs turns ROLE[:NAME] entries into agents. Duplicate roles are
// allowed when given distinct names.
func parseAgentSpecs(specs []string, client llm.Client) ([]*agent.Agent, error) {
	var members []*agent.Agent
	seen := map[string]bool{}
	for _, spec := range specs {
		roleName, custom, _ := strings.Cut(spec, ":")
		role, err := agent.ParseRole(strings.TrimSpace(roleName))
		if err != nil {
			return nil, fmt.Errorf("--agents: %w (known roles: %s)", err, knownRoleList())
		}
		name := strings.TrimSpace(custom)
		if name == "" {
			name = role.DisplayName()
		}
		if seen[name] {
			return nil, fmt.Errorf("--agents: duplicate agent name %q", name)
		}
		seen[name] = true
		members = append(members, agent.New(role, name, client))
	}
	return members, nil
}

func knownRoleList() string {
	roles := agent.KnownRoles()
	names := make([]string, len(roles))
	for i, r := range roles {
		names[i] = string(r)
	}
	return strings.Join(names, ", ")
}

// deriveProjectName turns a task description into a filesystem-safe
// directory name: lowercase, alphanumerics kept, everything else collapsed
// to single underscores, truncated to 50 characters.
func deriveProjectName(task string) string {
	var b strings.Builder
	lastUnderscore := true
	for _, r := range strings.ToLower(task) {
		if b.Len() >= maxProjectNameLen {
			break
		}
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			lastUnderscore = false
			continue
		}
		if !lastUnderscore {
			b.WriteByte('_')
			lastUnderscore = true
		}
	}
	name := strings.Trim(b.String(), "_")
	if name == "" {
		name = "project"
	}
	return name
}

// confirmReuse prompts before writing into an existing non-empty project
// directory; existing files would be rotated into backups by agent updates.
func confirmReuse(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil || len(entries) == 0 {
		return nil
	}
	if runFlags.yes {
		return nil
	}

	var proceed bool
	confirm := huh.NewConfirm().
		Title(fmt.Sprintf("Project directory %s already contains %d entries.", dir, len(entries))).
		Description("Continue and let agents modify the existing files?").
		Affirmative("Continue").
		Negative("Abort").
		Value(&proceed)
	if err := confirm.Run(); err != nil {
		return fmt.Errorf("confirmation prompt: %w", err)
	}
	if !proceed {
		return fmt.Errorf("aborted: project directory %s is not empty", dir)
	}
	return nil
}

// logEvents drains the controller's event channel into the logger.
func logEvents(events <-chan loop.Event, logger *log.Logger) {
	for ev := range events {
		kv := []interface{}{"iteration", ev.Iteration}
		if ev.Agent != "" {
			kv = append(kv, "agent", ev.Agent)
		}
		if ev.Message != "" {
			kv = append(kv, "detail", ev.Message)
		}
		logger.Info(string(ev.Type), kv...)
	}
}
