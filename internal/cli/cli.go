// Package cli builds the `p` command-line surface: a Cobra root command
// with run/list/shell/init/deps/clean/env subcommands, wired against the
// config loader and task runner.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"pavidi.dev/internal/config"
	"pavidi.dev/internal/task"
)

// Package-level vars back Cobra's persistent flags. Execute resets nothing
// between calls because each process invocation is one command.
var (
	globalDir     string
	globalDryRun  bool
	globalNoCache bool
)

// exitError carries a specific process exit code out of a RunE function so
// Execute can os.Exit in one place instead of scattering os.Exit calls.
type exitError struct{ code int }

func (e *exitError) Error() string { return fmt.Sprintf("exit status %d", e.code) }

// Execute builds the root command tree and runs it, exiting the process
// with the resolved status code.
func Execute(version string) {
	root := newRootCmd(version)
	if err := root.Execute(); err != nil {
		var ee *exitError
		if asExitError(err, &ee) {
			os.Exit(ee.code)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func asExitError(err error, target **exitError) bool {
	if ee, ok := err.(*exitError); ok {
		*target = ee
		return true
	}
	return false
}

func newRootCmd(version string) *cobra.Command {
	root := &cobra.Command{
		Use:           "p",
		Short:         "Project-local task runner and embedded command shell",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&globalDir, "dir", ".", "directory containing p.toml")
	root.PersistentFlags().BoolVar(&globalDryRun, "dry-run", false, "print expanded commands instead of running them")
	root.PersistentFlags().BoolVar(&globalNoCache, "no-cache", false, "ignore freshness caching, always run")

	root.AddCommand(newRunCmd())
	root.AddCommand(newListCmd())
	root.AddCommand(newShellCmd())
	root.AddCommand(newInitCmd())
	root.AddCommand(newDepsCmd())
	root.AddCommand(newCleanCmd())
	root.AddCommand(newEnvCmd())

	return root
}

// bootstrap loads the assembled configuration and builds a Runner for it,
// the common prelude every subcommand but `init` needs.
func bootstrap() (*config.Config, *task.Runner, error) {
	cfg, err := config.Load(globalDir)
	if err != nil {
		return nil, nil, err
	}
	runner := task.New(cfg, globalDryRun, globalNoCache, os.Stdout, os.Stderr)
	return cfg, runner, nil
}
