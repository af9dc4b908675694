package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"pavidi.dev/internal/builtins"
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:                "run <task> [args...]",
		Short:              "Resolve and run a task's dependency DAG",
		Args:               cobra.MinimumNArgs(1),
		DisableFlagParsing: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, a := range args {
				if a == "--help" || a == "-h" {
					return cmd.Help()
				}
			}
			dir, dryRun, noCache, remaining := extractGlobalFlags(args)
			globalDir, globalDryRun, globalNoCache = dir, dryRun, noCache
			if len(remaining) == 0 {
				return fmt.Errorf("usage: p run <task> [args...]")
			}

			_, runner, err := bootstrap()
			if err != nil {
				return err
			}

			taskName, taskArgs := remaining[0], remaining[1:]
			code, err := runner.RunTask(taskName, taskArgs)
			if err != nil {
				if exitReq, ok := err.(*builtins.ExitRequested); ok {
					return &exitError{code: exitReq.Code}
				}
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			}
			if code != 0 {
				return &exitError{code: code}
			}
			return nil
		},
	}
}

// extractGlobalFlags pulls --dir/--dry-run/--no-cache out of a flag-parsing-
// disabled argument list so they can appear either before or interleaved
// with the task name.
func extractGlobalFlags(args []string) (dir string, dryRun, noCache bool, remaining []string) {
	dir = globalDir
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--dir":
			if i+1 < len(args) {
				dir = args[i+1]
				i++
			}
		case "--dry-run":
			dryRun = true
		case "--no-cache":
			noCache = true
		default:
			remaining = append(remaining, args[i])
		}
	}
	return
}
