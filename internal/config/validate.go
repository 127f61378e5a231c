package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/colony-dev/colony/internal/agent"
)

// ValidationSeverity indicates whether a validation issue is an error or warning.
type ValidationSeverity string

const (
	// SeverityError indicates a fatal validation issue; the configuration is unusable.
	SeverityError ValidationSeverity = "error"
	// SeverityWarning indicates an informational validation issue; the configuration
	// works but may have problems.
	SeverityWarning ValidationSeverity = "warning"
)

// ValidationIssue represents a single validation finding.
type ValidationIssue struct {
	Severity ValidationSeverity
	Field    string // dotted path, e.g., "llm.base_url"
	Message  string
}

// ValidationResult holds all validation findings.
type ValidationResult struct {
	Issues []ValidationIssue
}

// HasErrors returns true if any issue has error severity.
func (vr *ValidationResult) HasErrors() bool {
	for _, issue := range vr.Issues {
		if issue.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Errors returns only error-severity issues.
func (vr *ValidationResult) Errors() []ValidationIssue {
	var errs []ValidationIssue
	for _, issue := range vr.Issues {
		if issue.Severity == SeverityError {
			errs = append(errs, issue)
		}
	}
	return errs
}

// Warnings returns only warning-severity issues.
func (vr *ValidationResult) Warnings() []ValidationIssue {
	var warns []ValidationIssue
	for _, issue := range vr.Issues {
		if issue.Severity == SeverityWarning {
			warns = append(warns, issue)
		}
	}
	return warns
}

// Validate checks the configuration for correctness. meta may be nil when no
// file was loaded. Check HasErrors() to determine if the config is usable.
func Validate(cfg *Config, meta *toml.MetaData) *ValidationResult {
	vr := &ValidationResult{}

	if cfg == nil {
		addError(vr, "", "configuration is nil")
		return vr
	}

	validateLLM(vr, &cfg.LLM)
	validateWorkflow(vr, &cfg.Workflow)
	validateTesting(vr, &cfg.Testing)
	validateReview(vr, &cfg.Review)
	validateOutput(vr, &cfg.Output)
	validateUnknownKeys(vr, meta)

	return vr
}

func validateLLM(vr *ValidationResult, l *LLMConfig) {
	if l.BaseURL == "" {
		addError(vr, "llm.base_url", "must not be empty")
	} else if u, err := url.Parse(l.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		addError(vr, "llm.base_url",
			fmt.Sprintf("%q is not an absolute http(s) URL", l.BaseURL))
	}

	if l.Model == "" {
		addError(vr, "llm.model", "must not be empty")
	}

	if l.TimeoutSeconds < 0 {
		addError(vr, "llm.timeout_seconds", "must not be negative")
	}

	for role, temp := range l.Temperatures {
		if temp < 0 || temp > 2 {
			addError(vr, "llm.temperatures."+role,
				fmt.Sprintf("%.2f is outside the sampling range [0, 2]", temp))
		}
		if _, err := agent.ParseRole(role); err != nil {
			addWarning(vr, "llm.temperatures."+role, "unknown role")
		}
	}
}

func validateTesting(vr *ValidationResult, t *TestingConfig) {
	if t.TimeoutSeconds < 0 {
		addError(vr, "testing.timeout_seconds", "must not be negative")
	}
}

func validateWorkflow(vr *ValidationResult, w *WorkflowConfig) {
	if w.MaxIterations < 1 {
		addError(vr, "workflow.max_iterations", "must be at least 1")
	}
	if w.MinIterations < 0 {
		addError(vr, "workflow.min_iterations", "must not be negative")
	}
	if w.MinIterations > w.MaxIterations {
		addWarning(vr, "workflow.min_iterations",
			fmt.Sprintf("exceeds max_iterations (%d > %d); auto-stop will never fire",
				w.MinIterations, w.MaxIterations))
	}
	// Zero is the no-cap default; only negative values are malformed.
	if w.MaxTeamSize < 0 {
		addError(vr, "workflow.max_team_size", "must not be negative")
	}
	if w.MaxTeamSize > 8 {
		addWarning(vr, "workflow.max_team_size",
			fmt.Sprintf("%d agents is larger than any composed team", w.MaxTeamSize))
	}
}

func validateReview(vr *ValidationResult, r *ReviewConfig) {
	if r.MaxRounds < 1 {
		addError(vr, "review.max_rounds", "must be at least 1")
	}
}

func validateOutput(vr *ValidationResult, o *OutputConfig) {
	if o.Dir == "" {
		addError(vr, "output.dir", "must not be empty")
	}
}

// validateUnknownKeys checks for TOML keys that did not map to any config
// struct field.
func validateUnknownKeys(vr *ValidationResult, meta *toml.MetaData) {
	if meta == nil {
		return
	}
	for _, key := range meta.Undecoded() {
		addWarning(vr, strings.Join(key, "."), "unknown configuration key")
	}
}

func addError(vr *ValidationResult, field, message string) {
	vr.Issues = append(vr.Issues, ValidationIssue{
		Severity: SeverityError,
		Field:    field,
		Message:  message,
	})
}

func addWarning(vr *ValidationResult, field, message string) {
	vr.Issues = append(vr.Issues, ValidationIssue{
		Severity: SeverityWarning,
		Field:    field,
		Message:  message,
	})
}
