package agent

import "fmt"

// Role identifies an agent specialization. Roles form a closed set; new
// roles are added by extending the table below, never by subclassing.
type Role string

const (
	RoleCEO            Role = "CEO"
	RoleProductManager Role = "ProductManager"
	RoleLeadDeveloper  Role = "LeadDeveloper"
	RoleBackend        Role = "BackendDeveloper"
	RoleFrontend       Role = "FrontendDeveloper"
	RoleQATester       Role = "QATester"
	RoleDevOps         Role = "DevOps"
	RoleDesigner       Role = "Designer"
	RoleSecurity       Role = "Security"
	RoleTechWriter     Role = "TechWriter"
	RoleDataScientist  Role = "DataScientist"
)

// fileDirectiveContract is appended to every role prompt whose holder is
// expected to author files. It pins the exact fence grammar the operation
// parser understands.
const fileDirectiveContract = `
When you create or change files you MUST use exactly these forms:

To create a file:
` + "```" + `filename: path/to/file.ext
` + "```" + `
` + "```" + `
<entire file content>
` + "```" + `

To update an existing file (always provide the complete new content):
` + "```" + `update: path/to/file.ext
` + "```" + `
` + "```" + `
<entire new file content>
` + "```" + `

To read a file before deciding:
` + "```" + `read: path/to/file.ext
` + "```" + `

Raw code outside these forms is ignored. Paths are always relative to the
project root.`

// roleSpec is one row of the role behavioral table: display name, system
// prompt, sampling temperature, and whether the role authors files.
type roleSpec struct {
	DisplayName string
	Temperature float64
	EmitsFiles  bool
	SystemBody  string
}

// roleTable is the closed behavioral table for every known role.
var roleTable = map[Role]roleSpec{
	RoleCEO: {
		DisplayName: "CEO",
		Temperature: 0.7,
		SystemBody: `You are the CEO of a software team. You set direction: restate the
business goal, name the highest-risk assumption, and keep the team focused
on shipping something runnable. You do not write code.`,
	},
	RoleProductManager: {
		DisplayName: "Product Manager",
		Temperature: 0.6,
		SystemBody: `You are the Product Manager. Turn the task into concrete, testable
requirements. Call out missing acceptance criteria, prioritize scope, and
flag anything the developers appear to have skipped. You may author
documentation files (README, requirements) but never source code.`,
		EmitsFiles: true,
	},
	RoleLeadDeveloper: {
		DisplayName: "Lead Developer",
		Temperature: 0.3,
		SystemBody: `You are the Lead Developer. You own architecture: module boundaries,
naming, error handling, and the build layout. Create skeletons and core
modules yourself when they are missing, and correct structural problems in
existing files with update: directives.`,
		EmitsFiles: true,
	},
	RoleBackend: {
		DisplayName: "Backend Developer",
		Temperature: 0.2,
		SystemBody: `You are the Backend Developer. Implement server-side logic, data
models, APIs, and persistence. Write complete, runnable files; never leave
placeholders or TODO stubs for core behavior.`,
		EmitsFiles: true,
	},
	RoleFrontend: {
		DisplayName: "Frontend Developer",
		Temperature: 0.2,
		SystemBody: `You are the Frontend Developer. Implement user interfaces, client-side
state, and calls to backend APIs. Write complete, runnable files with
accessible markup.`,
		EmitsFiles: true,
	},
	RoleQATester: {
		DisplayName: "QA Tester",
		Temperature: 0.2,
		SystemBody: `You are the QA Tester. Every turn you MUST produce at least one test
file exercising the current code, covering happy paths and edge cases
(empty input, zero, boundary values). Use the standard test framework for
the project's language (pytest for Python, go test for Go, jest for
JavaScript).`,
		EmitsFiles: true,
	},
	RoleDevOps: {
		DisplayName: "DevOps Engineer",
		Temperature: 0.3,
		SystemBody: `You are the DevOps Engineer. Provide build, packaging, and run
configuration: dependency manifests, container files, CI stubs. Keep it
minimal and runnable.`,
		EmitsFiles: true,
	},
	RoleDesigner: {
		DisplayName: "Designer",
		Temperature: 0.7,
		SystemBody: `You are the Designer. Review user-facing output for clarity and
usability, and specify layout or styling improvements. You may author
style assets but not application logic.`,
		EmitsFiles: true,
	},
	RoleSecurity: {
		DisplayName: "Security Expert",
		Temperature: 0.2,
		SystemBody: `You are the Security Expert. Hunt for injection, hard-coded secrets,
weak randomness, unsafe deserialization, and missing validation. Fix
vulnerable code directly with update: directives and explain each fix in
one line.`,
		EmitsFiles: true,
	},
	RoleTechWriter: {
		DisplayName: "Technical Writer",
		Temperature: 0.5,
		SystemBody: `You are the Technical Writer. Produce and maintain the README:
what the project does, how to install, how to run, how to test. Keep it
accurate against the current files.`,
		EmitsFiles: true,
	},
	RoleDataScientist: {
		DisplayName: "Data Scientist",
		Temperature: 0.3,
		SystemBody: `You are the Data Scientist. Implement data processing, analysis, and
model code. Prefer well-known libraries, document assumptions about input
data, and make results reproducible.`,
		EmitsFiles: true,
	},
}

// KnownRoles returns every role in the behavioral table.
func KnownRoles() []Role {
	return []Role{
		RoleCEO, RoleProductManager, RoleLeadDeveloper, RoleBackend,
		RoleFrontend, RoleQATester, RoleDevOps, RoleDesigner,
		RoleSecurity, RoleTechWriter, RoleDataScientist,
	}
}

// ParseRole maps a user-supplied role name (case-sensitive, as documented in
// the CLI help) to a Role. Returns an error for unknown names.
func ParseRole(name string) (Role, error) {
	r := Role(name)
	if _, ok := roleTable[r]; !ok {
		return "", fmt.Errorf("unknown role %q", name)
	}
	return r, nil
}

// DisplayName returns the human-readable name for the role.
func (r Role) DisplayName() string {
	if spec, ok := roleTable[r]; ok {
		return spec.DisplayName
	}
	return string(r)
}

// Temperature returns the sampling temperature for the role.
func (r Role) Temperature() float64 {
	if spec, ok := roleTable[r]; ok {
		return spec.Temperature
	}
	return 0.5
}

// SystemPrompt returns the full system prompt for the role, including the
// file-directive contract for roles that author files.
func (r Role) SystemPrompt() string {
	spec, ok := roleTable[r]
	if !ok {
		return ""
	}
	if spec.EmitsFiles {
		return spec.SystemBody + "\n" + fileDirectiveContract
	}
	return spec.SystemBody
}

// IsDeveloper reports whether the role takes part in code authoring and the
// review protocol as an author: developer roles, Security, and QA.
func (r Role) IsDeveloper() bool {
	switch r {
	case RoleLeadDeveloper, RoleBackend, RoleFrontend, RoleSecurity, RoleQATester:
		return true
	}
	return false
}
