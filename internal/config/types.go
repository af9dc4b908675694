// Package config loads and assembles the layered p.toml manifest: the base
// manifest, overlays, .env, and dynamic ($(...)) variable resolution.
package config

// Identity holds the mutually-exclusive project/module metadata plus the
// settings that travel with it (preferred shell, logging strategy).
type Identity struct {
	IsModule     bool
	Name         string
	Version      string
	Authors      []string
	Description  string
	Shell        string
	LogStrategy  string
	LogPlain     bool
	SecretPatterns []string
}

// Capability constrains filesystem and executable access when declared.
type Capability struct {
	AllowPaths []string
	AllowExec  []string
}

// Param describes a named positional-or-flag parameter. Kept minimal; no
// Task field or command (including `p list --verbose`) refers to it.
type Param struct {
	Description string
	Default     string
}

// Task is the tagged union of a manifest's task shapes: Single, List, or
// Full. The TOML decoder always produces a Full value; Single/List manifest
// shapes are normalized into Full.Cmds by the parser before validation.
type Task struct {
	Cmds          []string
	Deps          []string
	Parallel      bool
	Description   string
	RunIf         string
	SkipIf        string
	Sources       []string
	Outputs       []string
	Windows       []string
	Linux         []string
	Macos         []string
	IgnoreFailure bool
	Timeout       *int
	Retry         int
	RetryDelay    int
}

// Manifest is the parsed, pre-merge representation of a single p.toml or
// p.*.toml file.
type Manifest struct {
	Identity   Identity
	Capability Capability
	Env        map[string]string
	Tasks      map[string]Task
	Clean      []string

	// path is the file this manifest was parsed from; used for provenance
	// and for resolving relative capability paths.
	path string
}

// ProvenanceEntry records one (source, value) pair for an environment key.
type ProvenanceEntry struct {
	Source string
	Value  string
}

// ExtensionRecord traces an applied overlay file for diff display.
type ExtensionRecord struct {
	Filename string
	Identity Identity
}

// Config is the assembled, immutable configuration produced by Load. Nothing
// in this struct is mutated after Load returns.
type Config struct {
	Dir        string
	Identity   Identity
	Capability Capability
	Env        map[string]string
	Tasks      map[string]Task
	Clean      []string

	Provenance       map[string][]ProvenanceEntry
	Extensions       []ExtensionRecord
	OriginalIdentity Identity
}
