package security

import "regexp"

// Severity classifies how urgent a finding is.
type Severity string

const (
	SeverityCritical Severity = "Critical"
	SeverityHigh     Severity = "High"
	SeverityMedium   Severity = "Medium"
	SeverityLow      Severity = "Low"
)

// Rule is one declarative scan rule. The scanner applies every rule to every
// line of every recognized source file; a rule whose pattern failed to
// compile is skipped, never fatal.
type Rule struct {
	Name      string
	Severity  Severity
	Pattern   *regexp.Regexp
	Rationale string
}

// compile returns the compiled pattern or nil, so a bad pattern disables its
// rule instead of panicking at init.
func compile(expr string) *regexp.Regexp {
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil
	}
	return re
}

// DefaultRules is the built-in rule battery. Extend by appending; the
// scanner takes the slice as configuration.
var DefaultRules = []Rule{
	{
		Name:      "hardcoded_password",
		Severity:  SeverityCritical,
		Pattern:   compile(`(?i)password\s*[:=]\s*["'][^"']{3,}["']`),
		Rationale: "hard-coded password literal; move the credential to configuration or a secret store",
	},
	{
		Name:      "hardcoded_api_key",
		Severity:  SeverityCritical,
		Pattern:   compile(`(?i)api[_-]?key\s*[:=]\s*["'][^"']{8,}["']`),
		Rationale: "hard-coded API key literal; load it from the environment",
	},
	{
		Name:      "hardcoded_secret",
		Severity:  SeverityCritical,
		Pattern:   compile(`(?i)\bsecret\s*[:=]\s*["'][^"']{8,}["']`),
		Rationale: "hard-coded secret literal; load it from the environment",
	},
	{
		Name:      "dynamic_code_execution",
		Severity:  SeverityHigh,
		Pattern:   compile(`\b(eval|exec)\s*\(`),
		Rationale: "dynamic code execution on runtime data enables arbitrary code injection",
	},
	{
		Name:      "shell_injection",
		Severity:  SeverityHigh,
		Pattern:   compile(`(os\.system\s*\(.*(\+|%|f["'])|subprocess\.\w+\(.*shell\s*=\s*True|child_process\.exec\s*\(.*(\+|\$\{))`),
		Rationale: "shell execution with interpolated input allows command injection",
	},
	{
		Name:      "weak_random",
		Severity:  SeverityMedium,
		Pattern:   compile(`(Math\.random\s*\(|\brandom\.(random|randint|choice)\s*\(|math/rand)`),
		Rationale: "non-cryptographic RNG; unsafe for tokens, session IDs, or secrets",
	},
	{
		Name:      "path_traversal",
		Severity:  SeverityHigh,
		Pattern:   compile(`open\s*\(\s*.*(request\.|input\(|argv)`),
		Rationale: "file path built from user input without normalization permits directory traversal",
	},
	{
		Name:      "sql_concatenation",
		Severity:  SeverityHigh,
		Pattern:   compile(`(?i)(select|insert|update|delete)[^"']*["']\s*(\+|%|\|\|)|execute\s*\(\s*f["']`),
		Rationale: "SQL built by string concatenation; use parameterized queries",
	},
	{
		Name:      "unsafe_html_sink",
		Severity:  SeverityMedium,
		Pattern:   compile(`(innerHTML\s*=|document\.write\s*\(|dangerouslySetInnerHTML)`),
		Rationale: "raw HTML sink with dynamic content enables cross-site scripting",
	},
}
