// Package capability enforces the allow_paths and allow_exec restrictions
// declared under [capability] in a manifest.
package capability

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DeniedError is the capability error kind. The shell executor maps it to
// exit code 126; builtins report it on stderr and exit 1.
type DeniedError struct {
	msg string
}

func (e *DeniedError) Error() string { return e.msg }

func denied(format string, args ...interface{}) error {
	return &DeniedError{msg: fmt.Sprintf(format, args...)}
}

// Checker enforces a set of allow_paths prefixes and an allow_exec list.
// A nil *Checker, or one built from empty lists, allows everything: a
// project that never declares [capability] is unrestricted.
type Checker struct {
	allowPaths []string // canonicalized, absolute, no trailing separator
	allowExec  map[string]bool
}

// New builds a Checker from the manifest's raw allow_paths/allow_exec
// entries, resolved against dir (the project root).
func New(dir string, allowPaths, allowExec []string) *Checker {
	c := &Checker{allowExec: map[string]bool{}}
	for _, p := range allowPaths {
		abs := p
		if !filepath.IsAbs(abs) {
			abs = filepath.Join(dir, abs)
		}
		abs = filepath.Clean(abs)
		if resolved, err := resolveExisting(abs); err == nil {
			abs = resolved
		}
		c.allowPaths = append(c.allowPaths, abs)
	}
	for _, name := range allowExec {
		c.allowExec[name] = true
	}
	return c
}

// CheckPath verifies that path falls under one of the allowed prefixes.
// A path whose leaf does not exist yet (e.g. a file about to be created)
// is checked against its nearest existing ancestor, so "allow creating a
// new file under an allowed directory" works without requiring the file
// to pre-exist.
func (c *Checker) CheckPath(path string) error {
	if c == nil || len(c.allowPaths) == 0 {
		return nil
	}
	resolved, err := resolveExisting(path)
	if err != nil {
		return fmt.Errorf("failed to resolve path %s: %w", path, err)
	}
	for _, prefix := range c.allowPaths {
		if resolved == prefix || strings.HasPrefix(resolved, prefix+string(filepath.Separator)) {
			return nil
		}
	}
	return denied("path %q is outside the allowed paths", path)
}

// CheckExec verifies that program is permitted to run. An empty allow_exec
// list (no [capability] exec restriction declared) allows everything.
func (c *Checker) CheckExec(program string) error {
	if c == nil || len(c.allowExec) == 0 {
		return nil
	}
	name := filepath.Base(program)
	if c.allowExec[program] || c.allowExec[name] {
		return nil
	}
	return denied("command %q is not in allow_exec", program)
}

// resolveExisting canonicalizes path, walking up to the nearest existing
// ancestor when the leaf (and possibly more) does not exist yet.
func resolveExisting(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	current := filepath.Clean(abs)
	for {
		resolved, err := filepath.EvalSymlinks(current)
		if err == nil {
			rest, relErr := filepath.Rel(current, abs)
			if relErr != nil || rest == "." {
				return resolved, nil
			}
			return filepath.Join(resolved, rest), nil
		}
		if !os.IsNotExist(err) {
			return "", err
		}
		parent := filepath.Dir(current)
		if parent == current {
			return abs, nil
		}
		current = parent
	}
}
