// Package report renders the end-of-run summary printed after a workflow.
package report

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/colony-dev/colony/internal/loop"
	"github.com/colony-dev/colony/internal/security"
)

var (
	colorPrimary = lipgloss.AdaptiveColor{Light: "#5A56E0", Dark: "#7B78FF"}
	colorSuccess = lipgloss.AdaptiveColor{Light: "#16A34A", Dark: "#4ADE80"}
	colorWarning = lipgloss.AdaptiveColor{Light: "#D97706", Dark: "#FBBF24"}
	colorError   = lipgloss.AdaptiveColor{Light: "#DC2626", Dark: "#F87171"}
	colorMuted   = lipgloss.AdaptiveColor{Light: "#6B7280", Dark: "#9CA3AF"}

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorPrimary).
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			BorderForeground(colorMuted)

	sectionStyle = lipgloss.NewStyle().Bold(true).MarginTop(1)
	labelStyle   = lipgloss.NewStyle().Foreground(colorMuted)
	okStyle      = lipgloss.NewStyle().Foreground(colorSuccess).Bold(true)
	warnStyle    = lipgloss.NewStyle().Foreground(colorWarning).Bold(true)
	failStyle    = lipgloss.NewStyle().Foreground(colorError).Bold(true)
)

// Render builds the human-readable summary of a workflow run.
func Render(res *loop.Result) string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Workflow summary"))
	b.WriteString("\n")
	writeField(&b, "Run", res.RunID)
	writeField(&b, "Project", res.ProjectPath)
	writeField(&b, "Iterations", fmt.Sprintf("%d", len(res.Iterations)))
	if res.StoppedEarly {
		writeField(&b, "Stopped", okStyle.Render("early (agents signalled completion)"))
	}

	b.WriteString(sectionStyle.Render("Files"))
	b.WriteString("\n")
	if len(res.Files) == 0 {
		b.WriteString(labelStyle.Render("  (none generated)"))
		b.WriteString("\n")
	}
	for _, f := range res.Files {
		fmt.Fprintf(&b, "  %s\n", f)
	}

	if res.FinalTestResult != nil {
		b.WriteString(sectionStyle.Render("Tests"))
		b.WriteString("\n")
		t := res.FinalTestResult
		verdict := failStyle.Render("FAILING")
		if t.Success {
			verdict = okStyle.Render("PASSING")
		}
		fmt.Fprintf(&b, "  %s  %s (%d passed, %d failed",
			verdict, t.Framework, t.Passed, t.Failed)
		if len(t.Errors) > 0 {
			fmt.Fprintf(&b, ", %d errors", len(t.Errors))
		}
		b.WriteString(")\n")
		for _, f := range t.Failures {
			fmt.Fprintf(&b, "    %s %s\n", failStyle.Render("✗"), f.Test)
		}
	}

	if res.SecurityReport != nil {
		b.WriteString(renderSecurity(res.SecurityReport))
	}

	return b.String()
}

// RenderTDD builds the summary of a red/green/refactor run.
func RenderTDD(res *loop.TDDResult) string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("TDD workflow summary"))
	b.WriteString("\n")
	writeField(&b, "Run", res.RunID)
	writeField(&b, "Project", res.ProjectPath)
	writeField(&b, "Test files", fmt.Sprintf("%d", len(res.TestFiles)))
	writeField(&b, "Green cycles", fmt.Sprintf("%d", res.GreenCycles))

	verdict := failStyle.Render("tests still failing")
	if res.Green {
		verdict = okStyle.Render("tests passing")
	}
	writeField(&b, "Outcome", verdict)
	if len(res.Reverted) > 0 {
		writeField(&b, "Reverted", warnStyle.Render(strings.Join(res.Reverted, ", ")))
	}

	b.WriteString(sectionStyle.Render("Files"))
	b.WriteString("\n")
	for _, f := range res.Files {
		fmt.Fprintf(&b, "  %s\n", f)
	}
	return b.String()
}

func renderSecurity(rep *security.Report) string {
	var b strings.Builder
	b.WriteString(sectionStyle.Render("Security scan"))
	b.WriteString("\n")
	if rep.Total == 0 {
		fmt.Fprintf(&b, "  %s no findings\n", okStyle.Render("✓"))
		return b.String()
	}
	fmt.Fprintf(&b, "  %s %d finding(s)\n", warnStyle.Render("!"), rep.Total)
	for _, f := range rep.Findings {
		style := warnStyle
		if f.Severity == security.SeverityCritical || f.Severity == security.SeverityHigh {
			style = failStyle
		}
		fmt.Fprintf(&b, "    %s %s:%d %s\n",
			style.Render("["+string(f.Severity)+"]"), f.File, f.Line, f.Rule)
	}
	return b.String()
}

func writeField(b *strings.Builder, label, value string) {
	fmt.Fprintf(b, "  %s %s\n", labelStyle.Render(label+":"), value)
}
