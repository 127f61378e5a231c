// Package project owns the generated project directory: path filtering,
// sanitization, and the file store with rotating backups. The store is the
// sole writer to its directory; all other components reach the filesystem
// through it.
package project

import (
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/cespare/xxhash/v2"
	"github.com/charmbracelet/log"
	"github.com/spf13/afero"
)

// ErrAlreadyExists is returned by Create when the target file exists.
var ErrAlreadyExists = errors.New("file already exists")

// ErrNotFound is returned by Read for missing or agent-invisible files.
var ErrNotFound = errors.New("file not found")

// Store is a file store rooted at a project directory. Every write of an
// existing file rotates its prior contents into a sibling <name>.backup
// (single rotation; older backups are overwritten). Backups and ignored
// paths are invisible to every listing.
//
// Store methods are not internally locked: the iteration controller
// serializes all file operations, which is the load-bearing ordering
// guarantee for the whole workflow.
type Store struct {
	fs     afero.Fs
	root   string
	logger *log.Logger
}

// NewStore creates a store over the OS filesystem rooted at dir, creating
// the directory when missing. Only creation failures on the root itself are
// fatal to a workflow.
func NewStore(dir string, logger *log.Logger) (*Store, error) {
	base := afero.NewOsFs()
	if err := base.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating project directory %s: %w", dir, err)
	}
	return &Store{
		fs:     afero.NewBasePathFs(base, dir),
		root:   dir,
		logger: logger,
	}, nil
}

// NewStoreWithFs creates a store over an arbitrary afero filesystem, rooted
// at its top. Tests use this with afero.NewMemMapFs.
func NewStoreWithFs(fsys afero.Fs, logger *log.Logger) *Store {
	return &Store{fs: fsys, root: ".", logger: logger}
}

// Root returns the project directory path given at construction.
func (s *Store) Root() string { return s.root }

// checkPath sanitizes p and rejects agent-invisible targets.
func (s *Store) checkPath(p string) (string, error) {
	clean, err := SanitizePath(p)
	if err != nil {
		return "", err
	}
	if ShouldIgnore(clean) {
		return "", fmt.Errorf("%w: %q is filtered", ErrPathInvalid, clean)
	}
	return clean, nil
}

// Create writes a new file. It fails with ErrPathInvalid when sanitization
// rejects the path or the path is filtered, and with ErrAlreadyExists when
// the file is present.
func (s *Store) Create(p string, content []byte) error {
	clean, err := s.checkPath(p)
	if err != nil {
		return err
	}
	exists, err := afero.Exists(s.fs, clean)
	if err != nil {
		return fmt.Errorf("checking %s: %w", clean, err)
	}
	if exists {
		return fmt.Errorf("%w: %s", ErrAlreadyExists, clean)
	}
	if err := s.write(clean, content); err != nil {
		return err
	}
	s.logger.Debug("created file", "path", clean, "bytes", len(content))
	return nil
}

// Update overwrites a file, rotating its prior contents into <path>.backup
// first. A missing file behaves as Create. The backup rotation happens on
// every update of an existing file; when the content digest matches the
// current file only the main-file rewrite is skipped.
func (s *Store) Update(p string, content []byte) error {
	clean, err := s.checkPath(p)
	if err != nil {
		return err
	}
	old, err := afero.ReadFile(s.fs, clean)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("reading %s for backup: %w", clean, err)
		}
		// Not there yet: plain create.
		if err := s.write(clean, content); err != nil {
			return err
		}
		s.logger.Debug("created file via update", "path", clean, "bytes", len(content))
		return nil
	}

	if err := s.write(clean+backupSuffix, old); err != nil {
		return fmt.Errorf("rotating backup for %s: %w", clean, err)
	}
	if xxhash.Sum64(old) == xxhash.Sum64(content) {
		s.logger.Debug("update is identical, rotated backup only", "path", clean)
		return nil
	}
	if err := s.write(clean, content); err != nil {
		return err
	}
	s.logger.Debug("updated file", "path", clean, "bytes", len(content))
	return nil
}

// write creates parent directories as needed and writes content.
func (s *Store) write(p string, content []byte) error {
	if dir := path.Dir(p); dir != "." && dir != "" {
		if err := s.fs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating directory %s: %w", dir, err)
		}
	}
	if err := afero.WriteFile(s.fs, p, content, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", p, err)
	}
	return nil
}

// Read returns a file's contents. Missing files and filtered paths both
// yield ErrNotFound: an agent referencing an ignored path is told the file
// does not exist, never that it is hidden.
func (s *Store) Read(p string) ([]byte, error) {
	clean, err := SanitizePath(p)
	if err != nil {
		return nil, err
	}
	if ShouldIgnore(clean) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, clean)
	}
	data, err := afero.ReadFile(s.fs, clean)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, clean)
		}
		return nil, fmt.Errorf("reading %s: %w", clean, err)
	}
	return data, nil
}

// RestoreBackup replaces p with its rotated backup, when one exists. The
// backup itself is left in place.
func (s *Store) RestoreBackup(p string) error {
	clean, err := s.checkPath(p)
	if err != nil {
		return err
	}
	old, err := afero.ReadFile(s.fs, clean+backupSuffix)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: no backup for %s", ErrNotFound, clean)
		}
		return fmt.Errorf("reading backup of %s: %w", clean, err)
	}
	if err := s.write(clean, old); err != nil {
		return err
	}
	s.logger.Info("restored file from backup", "path", clean)
	return nil
}

// Exists reports whether a non-ignored regular file exists at p.
func (s *Store) Exists(p string) bool {
	clean, err := SanitizePath(p)
	if err != nil || ShouldIgnore(clean) {
		return false
	}
	ok, err := afero.Exists(s.fs, clean)
	return err == nil && ok
}

// List returns all non-ignored regular files, project-relative and sorted
// lexicographically. A non-empty glob (doublestar syntax, e.g. "**/*.py")
// restricts the result.
func (s *Store) List(glob string) ([]string, error) {
	var out []string
	err := afero.Walk(s.fs, ".", func(p string, info fs.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel := strings.TrimPrefix(path.Clean(strings.ReplaceAll(p, "\\", "/")), "./")
		if rel == "." || rel == "" {
			return nil
		}
		if info.IsDir() {
			if ShouldIgnore(rel) {
				return fs.SkipDir
			}
			return nil
		}
		if ShouldIgnore(rel) {
			return nil
		}
		if glob != "" {
			ok, merr := doublestar.Match(glob, rel)
			if merr != nil {
				return fmt.Errorf("bad glob %q: %w", glob, merr)
			}
			if !ok {
				return nil
			}
		}
		out = append(out, rel)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing project files: %w", err)
	}
	sort.Strings(out)
	return out, nil
}

// Structure renders a human-readable tree of the project for embedding in
// agent prompts. Output is always filtered through the ignore predicate.
func (s *Store) Structure() string {
	files, err := s.List("")
	if err != nil || len(files) == 0 {
		return "(empty project)"
	}

	var b strings.Builder
	b.WriteString(".\n")
	seen := map[string]bool{}
	for _, f := range files {
		parts := strings.Split(f, "/")
		for depth := 0; depth < len(parts); depth++ {
			prefix := strings.Join(parts[:depth+1], "/")
			if seen[prefix] {
				continue
			}
			seen[prefix] = true
			b.WriteString(strings.Repeat("  ", depth+1))
			b.WriteString(parts[depth])
			if depth < len(parts)-1 {
				b.WriteString("/")
			}
			b.WriteString("\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
