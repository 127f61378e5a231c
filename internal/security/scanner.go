// Package security implements the pattern-based vulnerability scan run over
// the generated project after the iteration loop finishes. Rules are a
// declarative table; severity mapping is rule-defined.
package security

import (
	"path"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/colony-dev/colony/internal/project"
)

// sourceExtensions are the file kinds the scanner reads. Everything else
// (binaries, images, lock files) is skipped.
var sourceExtensions = map[string]struct{}{
	".py": {}, ".js": {}, ".ts": {}, ".jsx": {}, ".tsx": {},
	".go": {}, ".rb": {}, ".php": {}, ".java": {}, ".kt": {},
	".rs": {}, ".c": {}, ".h": {}, ".cpp": {}, ".cs": {},
	".sh": {}, ".html": {}, ".vue": {}, ".sql": {}, ".yml": {}, ".yaml": {},
}

// Finding is one rule match in one file.
type Finding struct {
	Rule      string   `json:"rule"`
	Severity  Severity `json:"severity"`
	File      string   `json:"file"`
	Line      int      `json:"line"`
	Snippet   string   `json:"snippet"`
	Rationale string   `json:"rationale"`
}

// Report aggregates all findings of one scan.
type Report struct {
	Total      int              `json:"total"`
	BySeverity map[Severity]int `json:"by_severity"`
	Findings   []Finding        `json:"findings"`
}

// Scanner applies a rule battery to every text source file in a store.
type Scanner struct {
	rules  []Rule
	logger *log.Logger
}

// NewScanner creates a scanner with the given rules; nil means DefaultRules.
func NewScanner(rules []Rule, logger *log.Logger) *Scanner {
	if rules == nil {
		rules = DefaultRules
	}
	return &Scanner{rules: rules, logger: logger}
}

// Scan walks all non-ignored files and returns the severity-classified
// findings. Unreadable files and disabled rules are skipped; the scan
// itself never fails.
func (s *Scanner) Scan(store *project.Store) Report {
	report := Report{
		BySeverity: map[Severity]int{},
		Findings:   []Finding{},
	}

	files, err := store.List("**/*")
	if err != nil {
		s.logger.Warn("security scan could not list project files", "error", err)
		return report
	}

	for _, file := range files {
		if _, ok := sourceExtensions[strings.ToLower(path.Ext(file))]; !ok {
			continue
		}
		data, err := store.Read(file)
		if err != nil {
			s.logger.Warn("security scan skipping unreadable file", "path", file, "error", err)
			continue
		}
		s.scanFile(file, string(data), &report)
	}

	report.Total = len(report.Findings)
	if report.Total > 0 {
		s.logger.Warn("security scan found issues", "total", report.Total)
	}
	return report
}

func (s *Scanner) scanFile(file, content string, report *Report) {
	lines := strings.Split(content, "\n")
	for _, rule := range s.rules {
		if rule.Pattern == nil {
			continue
		}
		for i, line := range lines {
			if !rule.Pattern.MatchString(line) {
				continue
			}
			snippet := strings.TrimSpace(line)
			if len(snippet) > 200 {
				snippet = snippet[:200]
			}
			report.Findings = append(report.Findings, Finding{
				Rule:      rule.Name,
				Severity:  rule.Severity,
				File:      file,
				Line:      i + 1,
				Snippet:   snippet,
				Rationale: rule.Rationale,
			})
			report.BySeverity[rule.Severity]++
		}
	}
}
