package cli

import (
	"bufio"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"pavidi.dev/internal/builtins"
	"pavidi.dev/internal/config"
	"pavidi.dev/internal/shell"
	"pavidi.dev/internal/task"
)

func newShellCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Start an interactive REPL over the embedded command shell",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, runner, err := bootstrap()
			if err != nil {
				return err
			}
			return runREPL(cfg, runner)
		},
	}
}

// runREPL reads command lines from stdin, parses and executes each with
// the embedded shell against a single shared Context so assignments and
// `cd` persist across lines, exactly as a login shell behaves. A parse or
// execution error is reported to stderr and the prompt resumes; `exit`
// terminates the process with its code. SIGINT is absorbed rather than
// killing the process: interactive interrupt handling is limited to
// resetting the current read, never tearing down the REPL itself.
func runREPL(cfg *config.Config, runner *task.Runner) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT)
	defer signal.Stop(sigCh)
	go func() {
		for range sigCh {
			fmt.Fprintln(os.Stderr)
		}
	}()

	ctx := shell.NewContext(cfg.Dir, cfg.Env, runner.Capability, runner.Commands())
	ctx.Stdin, ctx.Stdout, ctx.Stderr = os.Stdin, os.Stdout, os.Stderr

	scanner := bufio.NewScanner(os.Stdin)
	fmt.Fprint(os.Stderr, "p> ")
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			fmt.Fprint(os.Stderr, "p> ")
			continue
		}

		node, err := shell.Parse(line)
		if err != nil {
			fmt.Fprintf(os.Stderr, "parse error: %v\n", err)
			fmt.Fprint(os.Stderr, "p> ")
			continue
		}

		_, execErr := shell.Exec(ctx, node)
		if execErr != nil {
			if exitReq, ok := execErr.(*builtins.ExitRequested); ok {
				return &exitError{code: exitReq.Code}
			}
			fmt.Fprintf(os.Stderr, "error: %v\n", execErr)
		}
		fmt.Fprint(os.Stderr, "p> ")
	}
	fmt.Fprintln(os.Stderr)
	return scanner.Err()
}
