package shell

import (
	"io"

	"pavidi.dev/internal/capability"
)

// Builtin is the signature every builtin command and task-adapter command
// shares: it receives the already-expanded argv (argv[0] excluded) and the
// execution context, and returns an exit code.
type Builtin func(ctx *Context, args []string) (int, error)

// Context is everything a running expression tree needs: the working
// directory, the environment it sees, the exit status of the last command
// ($?), the capability checker guarding filesystem and exec access, the
// builtin registry, and the default I/O streams. Pipes, redirects, and
// subshells all work by handing execNode a Context plus a set of streams
// that may differ from the Context's own defaults.
type Context struct {
	Dir        string
	Env        map[string]string
	LastExit   int
	Capability *capability.Checker
	Commands   map[string]Builtin

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	// Done, when non-nil, is checked between loop iterations and pipeline
	// stages so an interactive session can interrupt a runaway `while`.
	Done <-chan struct{}
}

// NewContext builds a root Context. env is copied so later mutation (cd,
// export, assignment) never reaches the caller's map.
func NewContext(dir string, env map[string]string, checker *capability.Checker, commands map[string]Builtin) *Context {
	cloned := make(map[string]string, len(env))
	for k, v := range env {
		cloned[k] = v
	}
	return &Context{
		Dir:        dir,
		Env:        cloned,
		Capability: checker,
		Commands:   commands,
		Stdin:      nil,
		Stdout:     nil,
		Stderr:     nil,
	}
}

// Clone returns a Context that shares the Capability checker and builtin
// registry (read-only after setup) but owns its own Env map, so a subshell
// or a parallel pipeline stage can never mutate its sibling's variables or
// working directory.
func (c *Context) Clone() *Context {
	cloned := make(map[string]string, len(c.Env))
	for k, v := range c.Env {
		cloned[k] = v
	}
	return &Context{
		Dir:        c.Dir,
		Env:        cloned,
		LastExit:   c.LastExit,
		Capability: c.Capability,
		Commands:   c.Commands,
		Stdin:      c.Stdin,
		Stdout:     c.Stdout,
		Stderr:     c.Stderr,
		Done:       c.Done,
	}
}

// withStreams returns a shallow copy of ctx with its I/O streams replaced,
// for a single command invocation inside a pipe or redirect. The Env map
// is NOT copied: it is the same context, just aimed at different streams.
func (c *Context) withStreams(stdin io.Reader, stdout, stderr io.Writer) *Context {
	cp := *c
	cp.Stdin = stdin
	cp.Stdout = stdout
	cp.Stderr = stderr
	return &cp
}

// interrupted reports whether the Context's Done channel has fired.
func (c *Context) interrupted() bool {
	if c.Done == nil {
		return false
	}
	select {
	case <-c.Done:
		return true
	default:
		return false
	}
}
