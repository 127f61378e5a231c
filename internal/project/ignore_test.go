package project

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShouldIgnore(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path string
		want bool
	}{
		{".DS_Store", true},
		{"src/.DS_Store", true},
		{"Thumbs.db", true},
		{"desktop.ini", true},
		{"._resource_fork", true},
		{"src/._hidden", true},
		{".git/config", true},
		{"src/.git/config", true},
		{"node_modules/left-pad/index.js", true},
		{"__pycache__/mod.pyc", true},
		{"venv/bin/python", true},
		{".venv/lib/site.py", true},
		{"main.py.backup", true},
		{"src/app.js.backup", true},

		{"main.py", false},
		{"src/main.py", false},
		{"docs/README.md", false},
		{"gitlog.txt", false},
		{"environment.py", false},
		{"backup_tool.py", false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, ShouldIgnore(tt.path), "path %q", tt.path)
		})
	}
}
