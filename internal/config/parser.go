package config

import (
	"fmt"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// rawManifest mirrors the on-disk TOML schema of a manifest file.
// project/module are decoded separately so their mutual exclusion can be
// checked against which table was actually present, not against zero values.
type rawManifest struct {
	Project    *rawIdentity            `toml:"project"`
	Module     *rawIdentity            `toml:"module"`
	Capability rawCapability           `toml:"capability"`
	Env        map[string]string       `toml:"env"`
	Tasks      map[string]toml.Primitive `toml:"tasks"`
	Clean      []string                `toml:"clean"`
}

type rawIdentity struct {
	Name           string   `toml:"name"`
	Version        string   `toml:"version"`
	Authors        []string `toml:"authors"`
	Description    string   `toml:"description"`
	Shell          string   `toml:"shell"`
	LogStrategy    string   `toml:"log_strategy"`
	LogPlain       bool     `toml:"log_plain"`
	SecretPatterns []string `toml:"secret_patterns"`
}

type rawCapability struct {
	AllowPaths []string `toml:"allow_paths"`
	AllowExec  []string `toml:"allow_exec"`
}

// rawTask is the "Full" shape of a task; Single and List shapes are
// detected before falling back to this struct (see normalizeTask).
type rawTask struct {
	Cmds          []string `toml:"cmds"`
	Deps          []string `toml:"deps"`
	Parallel      bool     `toml:"parallel"`
	Description   string   `toml:"description"`
	RunIf         string   `toml:"run_if"`
	SkipIf        string   `toml:"skip_if"`
	Sources       []string `toml:"sources"`
	Outputs       []string `toml:"outputs"`
	Windows       []string `toml:"windows"`
	Linux         []string `toml:"linux"`
	Macos         []string `toml:"macos"`
	IgnoreFailure bool     `toml:"ignore_failure"`
	Timeout       *int     `toml:"timeout"`
	Retry         int      `toml:"retry"`
	RetryDelay    int      `toml:"retry_delay"`
}

// ParseManifest parses a single p.toml (or overlay) file into a Manifest.
// It does not merge, validate exclusivity across files, or touch .env —
// those are Loader concerns.
func ParseManifest(path string) (*Manifest, error) {
	var raw rawManifest
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return nil, fmt.Errorf("failed to parse manifest %s: %w", path, err)
	}
	_ = meta

	if raw.Project != nil && raw.Module != nil {
		return nil, fmt.Errorf("manifest %s: 'project' and 'module' are mutually exclusive", path)
	}

	m := &Manifest{
		Env:   raw.Env,
		Tasks: make(map[string]Task, len(raw.Tasks)),
		Clean: raw.Clean,
		path:  path,
	}
	if m.Env == nil {
		m.Env = map[string]string{}
	}

	switch {
	case raw.Project != nil:
		m.Identity = identityFromRaw(*raw.Project, false)
	case raw.Module != nil:
		m.Identity = identityFromRaw(*raw.Module, true)
	}

	m.Capability = Capability{
		AllowPaths: resolveCapabilityPaths(raw.Capability.AllowPaths, filepath.Dir(path)),
		AllowExec:  raw.Capability.AllowExec,
	}

	for name, prim := range raw.Tasks {
		task, err := normalizeTask(prim)
		if err != nil {
			return nil, fmt.Errorf("manifest %s: task '%s': %w", path, name, err)
		}
		m.Tasks[name] = task
	}

	return m, nil
}

func identityFromRaw(r rawIdentity, isModule bool) Identity {
	return Identity{
		IsModule:       isModule,
		Name:           r.Name,
		Version:        r.Version,
		Authors:        r.Authors,
		Description:    r.Description,
		Shell:          r.Shell,
		LogStrategy:    r.LogStrategy,
		LogPlain:       r.LogPlain,
		SecretPatterns: r.SecretPatterns,
	}
}

// resolveCapabilityPaths joins relative allow_paths entries against dir;
// absolute entries are kept as-is.
func resolveCapabilityPaths(paths []string, dir string) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if filepath.IsAbs(p) {
			out = append(out, p)
		} else {
			out = append(out, filepath.Join(dir, p))
		}
	}
	return out
}

// normalizeTask decodes a task's TOML primitive into the tagged-union Task
// shape: a bare string is Single, an array of strings is List, a table is
// Full. All three collapse into Task.Cmds plus whatever Full-only fields
// were present.
func normalizeTask(prim toml.Primitive) (Task, error) {
	var asString string
	if err := toml.PrimitiveDecode(prim, &asString); err == nil && asString != "" {
		return Task{Cmds: []string{asString}}, nil
	}

	var asList []string
	if err := toml.PrimitiveDecode(prim, &asList); err == nil && asList != nil {
		return Task{Cmds: asList}, nil
	}

	var raw rawTask
	if err := toml.PrimitiveDecode(prim, &raw); err != nil {
		return Task{}, fmt.Errorf("unrecognized task shape: %w", err)
	}
	return Task{
		Cmds:          raw.Cmds,
		Deps:          raw.Deps,
		Parallel:      raw.Parallel,
		Description:   raw.Description,
		RunIf:         raw.RunIf,
		SkipIf:        raw.SkipIf,
		Sources:       raw.Sources,
		Outputs:       raw.Outputs,
		Windows:       raw.Windows,
		Linux:         raw.Linux,
		Macos:         raw.Macos,
		IgnoreFailure: raw.IgnoreFailure,
		Timeout:       raw.Timeout,
		Retry:         raw.Retry,
		RetryDelay:    raw.RetryDelay,
	}, nil
}
