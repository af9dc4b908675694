package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

const baseManifestName = "p.toml"

// Load assembles a Config from dir following a fixed order: base manifest,
// overlays (sorted), .env, then dynamic variables.
func Load(dir string) (*Config, error) {
	basePath := filepath.Join(dir, baseManifestName)
	if _, err := os.Stat(basePath); err != nil {
		if os.IsNotExist(err) {
			return nil, newError("no %s found in %s", baseManifestName, dir)
		}
		return nil, fmt.Errorf("failed to stat %s: %w", basePath, err)
	}

	base, err := ParseManifest(basePath)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Dir:        dir,
		Identity:   base.Identity,
		Capability: base.Capability,
		Env:        map[string]string{},
		Tasks:      map[string]Task{},
		Clean:      base.Clean,
		Provenance: map[string][]ProvenanceEntry{},
	}
	cfg.OriginalIdentity = base.Identity

	for key, value := range base.Env {
		cfg.Env[key] = value
		cfg.Provenance[key] = append(cfg.Provenance[key], ProvenanceEntry{Source: baseManifestName, Value: value})
	}
	for name, task := range base.Tasks {
		cfg.Tasks[name] = task
	}

	overlays, err := discoverOverlays(dir)
	if err != nil {
		return nil, err
	}
	for _, path := range overlays {
		overlay, err := ParseManifest(path)
		if err != nil {
			return nil, err
		}
		mergeOverlay(cfg, overlay, filepath.Base(path))
	}

	if err := applyDotEnv(cfg, dir); err != nil {
		return nil, err
	}

	if err := resolveDynamicVariables(cfg); err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// discoverOverlays finds p.*.toml files in dir, sorted lexicographically.
func discoverOverlays(dir string) ([]string, error) {
	pattern := filepath.Join(dir, "p.*.toml")
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to glob %s: %w", pattern, err)
	}
	sort.Strings(matches)
	return matches, nil
}
