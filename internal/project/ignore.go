package project

import (
	"path"
	"strings"
)

// ignoredNames are exact file names that agents must never observe. They are
// operating-system and editor noise, not project content.
var ignoredNames = map[string]struct{}{
	".DS_Store":       {},
	".DS_Store?":      {},
	"Thumbs.db":       {},
	"ehthumbs.db":     {},
	".Spotlight-V100": {},
	".Trashes":        {},
	"desktop.ini":     {},
}

// ignoredDirs are directory names filtered from every listing, at any depth.
var ignoredDirs = map[string]struct{}{
	".git":          {},
	"__pycache__":   {},
	"node_modules":  {},
	".pytest_cache": {},
	".mypy_cache":   {},
	".tox":          {},
	"venv":          {},
	".venv":         {},
	"env":           {},
}

// ignoredPrefix matches AppleDouble resource forks.
const ignoredPrefix = "._"

// backupSuffix marks the rotating backups the store writes next to updated
// files. Backups are store-internal and invisible to agents.
const backupSuffix = ".backup"

// ShouldIgnore reports whether a project-relative path is system noise that
// agents must never observe. It is applied at every enumeration exit point:
// listings, the structure tree, test discovery, and the security scan.
func ShouldIgnore(p string) bool {
	p = strings.TrimSpace(p)
	if p == "" {
		return true
	}

	clean := path.Clean(strings.ReplaceAll(p, "\\", "/"))
	segments := strings.Split(clean, "/")

	for i, seg := range segments {
		if seg == "" || seg == "." {
			continue
		}
		if _, ok := ignoredDirs[seg]; ok {
			return true
		}
		last := i == len(segments)-1
		if last {
			if _, ok := ignoredNames[seg]; ok {
				return true
			}
			if strings.HasPrefix(seg, ignoredPrefix) {
				return true
			}
			if strings.HasSuffix(seg, backupSuffix) {
				return true
			}
		}
	}
	return false
}
