package testrun

import (
	"encoding/json"
	"errors"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/colony-dev/colony/internal/project"
)

// ErrNoFramework is returned by Detect when neither a framework config file
// nor any recognizable test file is present.
var ErrNoFramework = errors.New("no test framework detected")

// Framework is a detected test framework and the command that runs it.
type Framework struct {
	Name    string
	Command []string
}

// configMarkers maps project-root configuration files to frameworks, in
// priority order. The first present marker wins.
var configMarkers = []struct {
	file      string
	framework Framework
}{
	{"pytest.ini", Framework{Name: "pytest", Command: []string{"python", "-m", "pytest", "-v"}}},
	{"pyproject.toml", Framework{Name: "pytest", Command: []string{"python", "-m", "pytest", "-v"}}},
	{"setup.py", Framework{Name: "pytest", Command: []string{"python", "-m", "pytest", "-v"}}},
	{"Cargo.toml", Framework{Name: "cargo", Command: []string{"cargo", "test"}}},
	{"go.mod", Framework{Name: "gotest", Command: []string{"go", "test", "./..."}}},
	{"pom.xml", Framework{Name: "maven", Command: []string{"mvn", "test", "-q"}}},
	{"build.gradle", Framework{Name: "gradle", Command: []string{"gradle", "test"}}},
	{"build.gradle.kts", Framework{Name: "gradle", Command: []string{"gradle", "test"}}},
}

// testFilePatterns maps test-file globs to frameworks, checked after config
// markers. All scans go through the store and therefore the path filter.
var testFilePatterns = []struct {
	glob      string
	framework Framework
}{
	{"**/test_*.py", Framework{Name: "pytest", Command: []string{"python", "-m", "pytest", "-v"}}},
	{"**/*_test.py", Framework{Name: "pytest", Command: []string{"python", "-m", "pytest", "-v"}}},
	{"**/*_test.go", Framework{Name: "gotest", Command: []string{"go", "test", "./..."}}},
	{"**/*_test.rs", Framework{Name: "cargo", Command: []string{"cargo", "test"}}},
	{"**/*.test.js", Framework{Name: "jest", Command: []string{"npx", "jest", "--ci"}}},
	{"**/*.spec.js", Framework{Name: "jest", Command: []string{"npx", "jest", "--ci"}}},
}

// Detect inspects the project and returns the framework to run, following
// the priority: root config file, then test-file patterns, then failure.
func Detect(store *project.Store) (Framework, error) {
	files, err := store.List("")
	if err != nil {
		return Framework{}, err
	}
	index := make(map[string]bool, len(files))
	for _, f := range files {
		index[f] = true
	}

	for _, m := range configMarkers {
		if !index[m.file] {
			continue
		}
		// pyproject.toml alone does not imply tests exist; require pytest
		// content or test files before committing to pytest.
		if m.file == "pyproject.toml" && !hasPytestHint(store, files) {
			continue
		}
		return m.framework, nil
	}

	// package.json counts only when it names a test script.
	if index["package.json"] {
		if fw, ok := npmTestScript(store); ok {
			return fw, nil
		}
	}

	for _, p := range testFilePatterns {
		for _, f := range files {
			if ok, _ := doublestar.Match(p.glob, f); ok {
				return p.framework, nil
			}
		}
	}

	return Framework{}, ErrNoFramework
}

// hasPytestHint reports whether any Python test file exists, so that a bare
// pyproject.toml for a non-Python tool does not select pytest.
func hasPytestHint(store *project.Store, files []string) bool {
	for _, f := range files {
		if ok, _ := doublestar.Match("**/test_*.py", f); ok {
			return true
		}
		if ok, _ := doublestar.Match("**/*_test.py", f); ok {
			return true
		}
	}
	return false
}

// npmTestScript returns the npm framework when package.json declares a test
// script.
func npmTestScript(store *project.Store) (Framework, bool) {
	data, err := store.Read("package.json")
	if err != nil {
		return Framework{}, false
	}
	var manifest struct {
		Scripts map[string]string `json:"scripts"`
	}
	if err := json.Unmarshal(data, &manifest); err != nil {
		return Framework{}, false
	}
	if manifest.Scripts["test"] == "" {
		return Framework{}, false
	}
	return Framework{Name: "npm", Command: []string{"npm", "test", "--silent"}}, true
}
