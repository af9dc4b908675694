package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// envFileName picks ".env.<P_ENV>" when P_ENV is set in the process
// environment, else ".env".
func envFileName() string {
	if variant := os.Getenv("P_ENV"); variant != "" {
		return ".env." + variant
	}
	return ".env"
}

// applyDotEnv streams the chosen .env file's entries into cfg, overriding
// any earlier value and recording provenance. A missing file is silent
// (not an error); a malformed one is fatal.
func applyDotEnv(cfg *Config, dir string) error {
	name := envFileName()
	path := filepath.Join(dir, name)

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to stat %s: %w", path, err)
	}

	entries, err := godotenv.Read(path)
	if err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}

	for key, value := range entries {
		cfg.Env[key] = value
		cfg.Provenance[key] = append(cfg.Provenance[key], ProvenanceEntry{Source: name, Value: value})
	}
	return nil
}
