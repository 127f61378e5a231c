package project

import (
	"errors"
	"fmt"
	"strings"
)

// ErrPathInvalid is returned for paths that fail sanitization, escape the
// project root, or match the ignore predicate.
var ErrPathInvalid = errors.New("invalid path")

// SanitizePath normalizes a model-supplied path. Model output is treated as
// adversarial: paths arrive wrapped in backticks or quotes, padded with
// whitespace, or salted with characters no sane file name contains.
//
// The transformation: trim surrounding whitespace; strip backticks, single
// quotes, and double quotes; drop every character outside [A-Za-z0-9_\-./ ];
// then reject empty results, ".." segments, and absolute paths.
func SanitizePath(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	s = strings.Map(func(r rune) rune {
		switch r {
		case '`', '\'', '"':
			return -1
		}
		return r
	}, s)

	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '_' || r == '-' || r == '.' || r == '/' || r == ' ':
			b.WriteRune(r)
		}
	}

	clean := strings.TrimSpace(b.String())
	if clean == "" {
		return "", fmt.Errorf("%w: empty after sanitization", ErrPathInvalid)
	}
	if strings.HasPrefix(clean, "/") {
		return "", fmt.Errorf("%w: absolute path %q", ErrPathInvalid, clean)
	}
	for _, seg := range strings.Split(clean, "/") {
		if seg == ".." {
			return "", fmt.Errorf("%w: traversal in %q", ErrPathInvalid, clean)
		}
	}
	return clean, nil
}
