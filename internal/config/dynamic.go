package config

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strings"

	"pavidi.dev/internal/process"
)

var dynamicPattern = regexp.MustCompile(`^\$\((.*)\)$`)

// resolveDynamicVariables runs every environment value that matches
// ^\$\((.*)\)$ under the detected shell, trims trailing whitespace from
// stdout, and records "dynamic" provenance.
func resolveDynamicVariables(cfg *Config) error {
	shell := process.DetectShell(cfg.Identity.Shell)

	for key, value := range cfg.Env {
		match := dynamicPattern.FindStringSubmatch(value)
		if match == nil {
			continue
		}
		command := match[1]

		env := envSlice(cfg.Env)
		result, err := process.Run(context.Background(), shell, command, env, cfg.Dir, process.Buffer, "dynamic", 0, nil, nil)
		if err != nil {
			return fmt.Errorf("dynamic variable %s: %w", key, err)
		}
		if result.ExitCode != 0 {
			return newError("dynamic variable %s: command %q exited with code %d", key, command, result.ExitCode)
		}

		output := strings.TrimRight(result.Stdout, "\n\r\t ")
		cfg.Env[key] = output
		cfg.Provenance[key] = append(cfg.Provenance[key], ProvenanceEntry{Source: "dynamic", Value: output})
	}
	return nil
}

func envSlice(m map[string]string) []string {
	out := make([]string, 0, len(m)+1)
	out = append(out, os.Environ()...)
	for k, v := range m {
		out = append(out, k+"="+v)
	}
	return out
}
