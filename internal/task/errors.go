package task

import "fmt"

// CycleError is the Cycle error kind from spec.md §7: name reappeared on
// the call stack during dependency resolution.
type CycleError struct{ Task string }

func (e *CycleError) Error() string {
	return fmt.Sprintf("Circular dependency detected: %s", e.Task)
}

// NotFoundError is the Not-found error kind from spec.md §7.
type NotFoundError struct{ Task string }

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("task '%s' not found", e.Task)
}

// TimeoutError is the Timeout error kind surfaced to the task chain:
// the underlying process.TimedOutError, annotated with which task and
// command hit the wall-clock budget.
type TimeoutError struct {
	Task    string
	Command string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("task '%s': command %q timed out", e.Task, e.Command)
}

// FailedError wraps a non-zero exit from a task's command or dependency,
// the Execution error kind from spec.md §7.
type FailedError struct {
	Task     string
	Command  string
	ExitCode int
}

func (e *FailedError) Error() string {
	if e.Command != "" {
		return fmt.Sprintf("task '%s': command %q failed with exit code %d", e.Task, e.Command, e.ExitCode)
	}
	return fmt.Sprintf("task '%s' failed with exit code %d", e.Task, e.ExitCode)
}
