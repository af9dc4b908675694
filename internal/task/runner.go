// Package task implements the dependency-DAG runner from spec.md §4.2: a
// Runner resolves a task's dependencies (serially or in parallel), applies
// its conditional gates, checks freshness against the cache, runs its
// command bodies with retry/timeout, writes an execution log per command,
// and updates the freshness cache on success.
package task

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"pavidi.dev/internal/builtins"
	"pavidi.dev/internal/cache"
	"pavidi.dev/internal/capability"
	"pavidi.dev/internal/config"
	"pavidi.dev/internal/expand"
	"pavidi.dev/internal/logs"
	"pavidi.dev/internal/process"
	"pavidi.dev/internal/shell"
)

// defaultTimeout is the 1,800-second budget applied when a task declares
// no explicit timeout (spec.md §4.2 step 8).
const defaultTimeout = 1800 * time.Second

// Runner resolves and executes cfg's task DAG. One Runner is built per
// invocation and reused for the entry task, every dependency, every
// REPL/task-adapter re-entry, and the shell builtins it hands out.
type Runner struct {
	Cfg        *config.Config
	Capability *capability.Checker
	Shell      string
	DryRun     bool
	NoCache    bool
	Stdout     io.Writer
	Stderr     io.Writer

	commands map[string]shell.Builtin
	printMu  sync.Mutex
}

// New builds a Runner for an assembled configuration. stdout/stderr
// default to os.Stdout/os.Stderr when nil.
func New(cfg *config.Config, dryRun, noCache bool, stdout, stderr io.Writer) *Runner {
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}
	r := &Runner{
		Cfg:        cfg,
		Capability: capability.New(cfg.Dir, cfg.Capability.AllowPaths, cfg.Capability.AllowExec),
		Shell:      process.DetectShell(cfg.Identity.Shell),
		DryRun:     dryRun,
		NoCache:    noCache,
		Stdout:     stdout,
		Stderr:     stderr,
	}
	r.commands = r.buildRegistry()
	return r
}

// Commands returns the shared builtin registry (portable builtins plus one
// task-adapter entry per declared task, spec.md §4.7). The embedded shell
// uses this both for the REPL and for any `source`d script.
func (r *Runner) Commands() map[string]shell.Builtin {
	return r.commands
}

// buildRegistry wires package builtins' portable commands together with a
// task-adapter handler per declared task: invoking a task by name from the
// shell re-enters Run with a fresh call stack and capture requested
// (spec.md §4.7).
func (r *Runner) buildRegistry() map[string]shell.Builtin {
	reg := builtins.Registry()
	for name := range r.Cfg.Tasks {
		taskName := name
		reg[taskName] = func(ctx *shell.Context, args []string) (int, error) {
			code, err := r.Run(taskName, args, newCallStack(), true)
			if err != nil {
				fmt.Fprintf(ctx.Stderr, "%s: %v\n", taskName, err)
			}
			return code, nil
		}
	}
	return reg
}

// RunTask is the entry point for a top-level invocation: fresh call stack,
// capture disabled (output flows to r.Stdout/r.Stderr per the configured
// capture mode).
func (r *Runner) RunTask(name string, args []string) (int, error) {
	return r.Run(name, args, newCallStack(), false)
}

// Run executes name against stack (spec.md §4.2). capture is the caller's
// requested capture flag: true for a parallel/task-adapter re-entry,
// false for the top-level invocation.
func (r *Runner) Run(name string, args []string, stack callStack, capture bool) (int, error) {
	t, ok := r.Cfg.Tasks[name]
	if !ok {
		return 1, &NotFoundError{Task: name}
	}
	stack, err := stack.push(name)
	if err != nil {
		return 1, err
	}

	if code, err := r.runDependencies(t, stack, capture); err != nil {
		return code, err
	}

	skip, err := r.evalGate(t.SkipIf)
	if err != nil {
		return 1, err
	}
	if skip {
		fmt.Fprintf(r.Stderr, "%s: skipped (skip_if)\n", name)
		return 0, nil
	}
	if t.RunIf != "" {
		run, err := r.evalGate(t.RunIf)
		if err != nil {
			return 1, err
		}
		if !run {
			fmt.Fprintf(r.Stderr, "%s: skipped (run_if)\n", name)
			return 0, nil
		}
	}

	hasFreshness := len(t.Sources) > 0 && len(t.Outputs) > 0
	if hasFreshness && !r.DryRun {
		fresh, err := cache.Fresh(r.Cfg.Dir, name, t.Sources, t.Outputs, r.NoCache)
		if err != nil {
			return 1, fmt.Errorf("task '%s': freshness check: %w", name, err)
		}
		if fresh {
			fmt.Fprintf(r.Stderr, "%s: up-to-date\n", name)
			return 0, nil
		}
	}

	cmds, err := selectCommands(t)
	if err != nil {
		return 1, fmt.Errorf("task '%s': %w", name, err)
	}

	mode := r.captureMode(capture)
	timeout := effectiveTimeout(t.Timeout)

	for _, template := range cmds {
		expanded := expand.Command(template, args, r.Cfg.Env)
		if r.DryRun {
			fmt.Fprintf(r.Stdout, "[dry-run %s] %s: %s\n", uuid.NewString()[:8], name, expanded)
			continue
		}

		code, err := r.executeCommand(name, expanded, mode, timeout, t.Retry, t.RetryDelay)
		if err != nil {
			if _, isExit := err.(*builtins.ExitRequested); isExit {
				return code, err
			}
		}
		if code != 0 || err != nil {
			if t.IgnoreFailure {
				fmt.Fprintf(r.Stderr, "warning: task '%s': command %q failed (exit %d), ignored\n", name, expanded, code)
				continue
			}
			if err != nil {
				return code, fmt.Errorf("task '%s': command %q: %w", name, expanded, err)
			}
			return code, &FailedError{Task: name, Command: expanded, ExitCode: code}
		}
	}

	if hasFreshness && !r.DryRun {
		if err := cache.Save(r.Cfg.Dir, name, t.Sources); err != nil {
			return 1, fmt.Errorf("task '%s': failed to persist cache: %w", name, err)
		}
	}

	return 0, nil
}

// runDependencies runs t's dependencies either sequentially (inheriting
// the caller's capture flag) or, when t.Parallel is set, concurrently on a
// bounded worker pool with buffered capture (spec.md §4.2 step 2, §5).
func (r *Runner) runDependencies(t config.Task, stack callStack, capture bool) (int, error) {
	if !t.Parallel {
		for _, dep := range t.Deps {
			if code, err := r.Run(dep, nil, stack, capture); err != nil {
				return code, err
			}
		}
		return 0, nil
	}
	return r.runParallel(t.Deps, stack)
}

// runParallel runs deps concurrently on a worker pool bounded by hardware
// concurrency. Each worker gets its own snapshot of stack; failures are
// aggregated and reported together after every dependency has completed
// (spec.md §5, §9 open question on cancellation).
func (r *Runner) runParallel(deps []string, stack callStack) (int, error) {
	if len(deps) == 0 {
		return 0, nil
	}

	limit := runtime.NumCPU()
	if limit < 1 {
		limit = 1
	}
	sem := make(chan struct{}, limit)

	batchID := uuid.NewString()
	fmt.Fprintf(r.Stderr, "parallel batch %s: %s\n", batchID, strings.Join(deps, ", "))

	var wg sync.WaitGroup
	errs := make([]error, len(deps))
	for i, dep := range deps {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, dep string) {
			defer wg.Done()
			defer func() { <-sem }()
			if _, err := r.Run(dep, nil, stack.clone(), true); err != nil {
				errs[i] = fmt.Errorf("[%s] dependency %q: %w", batchID, dep, err)
			}
		}(i, dep)
	}
	wg.Wait()

	var messages []string
	for _, err := range errs {
		if err != nil {
			messages = append(messages, err.Error())
		}
	}
	if len(messages) > 0 {
		return 1, fmt.Errorf("parallel dependencies failed:\n  - %s", strings.Join(messages, "\n  - "))
	}
	return 0, nil
}

// evalGate runs command silently (buffered, discarded) under the detected
// shell and reports whether it exited 0 (spec.md §4.2 step 3).
func (r *Runner) evalGate(command string) (bool, error) {
	if command == "" {
		return false, nil
	}
	result, err := r.runAttempt("gate", command, process.Buffer, defaultTimeout)
	if err != nil {
		return false, nil // a gate command that errors is treated as non-zero, not fatal
	}
	return result.ExitCode == 0, nil
}

// selectCommands applies spec.md §4.2 step 5: when any per-OS list is
// declared, the list matching the current OS replaces Cmds; if none
// matches and per-OS keys exist, that is a fatal configuration error.
func selectCommands(t config.Task) ([]string, error) {
	if len(t.Windows) == 0 && len(t.Linux) == 0 && len(t.Macos) == 0 {
		return t.Cmds, nil
	}
	switch runtime.GOOS {
	case "windows":
		if len(t.Windows) > 0 {
			return t.Windows, nil
		}
	case "darwin":
		if len(t.Macos) > 0 {
			return t.Macos, nil
		}
	default:
		if len(t.Linux) > 0 {
			return t.Linux, nil
		}
	}
	return nil, fmt.Errorf("no command defined for OS %q", runtime.GOOS)
}

// effectiveTimeout applies spec.md §4.2 step 8: explicit seconds, 0 means
// unbounded, unset means the 1,800-second default.
func effectiveTimeout(seconds *int) time.Duration {
	if seconds == nil {
		return defaultTimeout
	}
	if *seconds == 0 {
		return 0
	}
	return time.Duration(*seconds) * time.Second
}

// captureMode derives the effective capture mode (spec.md §4.2 step 6):
// buffered when the caller requested capture, tee when logging is
// enabled and output would otherwise be inherited, inherit otherwise.
func (r *Runner) captureMode(capture bool) process.CaptureMode {
	if capture {
		return process.Buffer
	}
	if r.loggingEnabled() {
		return process.Tee
	}
	return process.Inherit
}

func (r *Runner) loggingEnabled() bool {
	switch r.Cfg.Identity.LogStrategy {
	case "off", "none", "disabled":
		return false
	default:
		return true
	}
}

// executeCommand runs one command string through retry/timeout policy,
// prints and logs its result, and returns its final exit code.
func (r *Runner) executeCommand(taskName, command string, mode process.CaptureMode, timeout time.Duration, retry, retryDelay int) (int, error) {
	start := time.Now()
	attempts := retry + 1
	if attempts < 1 {
		attempts = 1
	}

	var result process.Result
	var runErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			time.Sleep(time.Duration(retryDelay) * time.Second)
		}
		result, runErr = r.runAttempt(taskName, command, mode, timeout)
		if _, isTimeout := runErr.(*process.TimedOutError); isTimeout {
			result.ExitCode = 1
		}
		if _, isExit := runErr.(*builtins.ExitRequested); isExit {
			break
		}
		if runErr == nil && result.ExitCode == 0 {
			break
		}
	}
	duration := time.Since(start)

	if mode == process.Buffer {
		merged := result.Merged(taskName)
		if merged != "" {
			r.printMu.Lock()
			fmt.Fprint(r.Stdout, merged)
			r.printMu.Unlock()
		}
	}

	r.writeLog(taskName, command, result, start, duration)

	if _, isTimeout := runErr.(*process.TimedOutError); isTimeout {
		return result.ExitCode, &TimeoutError{Task: taskName, Command: command}
	}
	return result.ExitCode, runErr
}

// runAttempt executes one attempt of command. A trimmed command beginning
// with "p:" dispatches directly to the builtin table via the embedded
// shell (spec.md §4.2 step 9); otherwise it is handed whole to the
// process runner, which spawns the detected system shell.
func (r *Runner) runAttempt(taskName, command string, mode process.CaptureMode, timeout time.Duration) (process.Result, error) {
	trimmed := strings.TrimSpace(command)
	if strings.HasPrefix(trimmed, "p:") {
		return r.runBuiltin(strings.TrimSpace(strings.TrimPrefix(trimmed, "p:")), mode)
	}
	return process.Run(context.Background(), r.Shell, command, envSlice(r.Cfg.Env), r.Cfg.Dir, mode, taskName, timeout, r.teeStdout(mode), r.teeStderr(mode))
}

func (r *Runner) teeStdout(mode process.CaptureMode) io.Writer {
	if mode == process.Tee {
		return r.Stdout
	}
	return nil
}

func (r *Runner) teeStderr(mode process.CaptureMode) io.Writer {
	if mode == process.Tee {
		return r.Stderr
	}
	return nil
}

// runBuiltin parses command with the embedded shell's tokenizer/parser and
// executes it against a Context wired to this Runner's builtin/task-adapter
// registry and capability checker, bypassing the external system shell
// entirely for portability (spec.md §4.2 step 9, §4.7).
func (r *Runner) runBuiltin(command string, mode process.CaptureMode) (process.Result, error) {
	node, err := shell.Parse(command)
	if err != nil {
		return process.Result{ExitCode: 1}, err
	}

	var stdoutBuf, stderrBuf bytes.Buffer
	ctx := shell.NewContext(r.Cfg.Dir, r.Cfg.Env, r.Capability, r.commands)
	switch mode {
	case process.Inherit:
		ctx.Stdout, ctx.Stderr = r.Stdout, r.Stderr
	case process.Tee:
		ctx.Stdout = io.MultiWriter(r.Stdout, &stdoutBuf)
		ctx.Stderr = io.MultiWriter(r.Stderr, &stderrBuf)
	default:
		ctx.Stdout, ctx.Stderr = &stdoutBuf, &stderrBuf
	}
	ctx.Stdin = os.Stdin

	code, err := shell.Exec(ctx, node)
	return process.Result{ExitCode: code, Stdout: stdoutBuf.String(), Stderr: stderrBuf.String()}, err
}

// writeLog persists a log record for one executed command (spec.md §3,
// §6). Logging failures are reported but never fail the task themselves.
func (r *Runner) writeLog(taskName, command string, result process.Result, start time.Time, duration time.Duration) {
	rec := logs.Record{
		TaskName:  taskName,
		Command:   command,
		Env:       r.Cfg.Env,
		Secrets:   r.Cfg.Identity.SecretPatterns,
		Body:      result.Merged(taskName),
		ExitCode:  result.ExitCode,
		StartTime: start,
		Duration:  duration,
		StripANSI: r.Cfg.Identity.LogPlain,
	}
	if _, err := logs.Write(r.Cfg.Dir, rec); err != nil {
		fmt.Fprintf(r.Stderr, "warning: failed to write log for %s: %v\n", taskName, err)
	}
}

func envSlice(env map[string]string) []string {
	out := make([]string, 0, len(env)+len(os.Environ()))
	out = append(out, os.Environ()...)
	for k, v := range env {
		out = append(out, k+"="+v)
	}
	return out
}
