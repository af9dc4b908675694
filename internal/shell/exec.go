package shell

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
)

// Exec runs node against ctx using ctx's own default streams.
func Exec(ctx *Context, node Node) (int, error) {
	return execNode(ctx, node, ctx.Stdin, ctx.Stdout, ctx.Stderr)
}

func execNode(ctx *Context, node Node, stdin io.Reader, stdout, stderr io.Writer) (int, error) {
	if ctx.interrupted() {
		return 130, nil
	}

	switch n := node.(type) {
	case *Simple:
		return execSimple(ctx, n, stdin, stdout, stderr)
	case *Pipe:
		return execPipe(ctx, n, stdin, stdout, stderr)
	case *Redirect:
		return execRedirect(ctx, n, stdin, stdout, stderr)
	case *And:
		code, err := execNode(ctx, n.Left, stdin, stdout, stderr)
		if err != nil || code != 0 {
			return code, err
		}
		return execNode(ctx, n.Right, stdin, stdout, stderr)
	case *Or:
		code, err := execNode(ctx, n.Left, stdin, stdout, stderr)
		if err != nil || code == 0 {
			return code, err
		}
		return execNode(ctx, n.Right, stdin, stdout, stderr)
	case *Sequence:
		if _, err := execNode(ctx, n.Left, stdin, stdout, stderr); err != nil {
			return ctx.LastExit, err
		}
		return execNode(ctx, n.Right, stdin, stdout, stderr)
	case *Assignment:
		value := expandArgument(ctx, n.Value)
		ctx.Env[n.Key] = value
		ctx.LastExit = 0
		return 0, nil
	case *Subshell:
		child := ctx.Clone()
		code, err := execNode(child, n.Child, stdin, stdout, stderr)
		ctx.LastExit = code
		return code, err
	case *If:
		condCode, err := execNode(ctx, n.Cond, stdin, stdout, stderr)
		if err != nil {
			return condCode, err
		}
		if condCode == 0 {
			return execNode(ctx, n.Then, stdin, stdout, stderr)
		}
		if n.Else != nil {
			return execNode(ctx, n.Else, stdin, stdout, stderr)
		}
		ctx.LastExit = 0
		return 0, nil
	case *While:
		for {
			if ctx.interrupted() {
				return 130, nil
			}
			condCode, err := execNode(ctx, n.Cond, stdin, stdout, stderr)
			if err != nil {
				return condCode, err
			}
			if condCode != 0 {
				ctx.LastExit = 0
				return 0, nil
			}
			bodyCode, err := execNode(ctx, n.Body, stdin, stdout, stderr)
			if err != nil {
				return bodyCode, err
			}
		}
	default:
		return 0, fmt.Errorf("unknown node type %T", node)
	}
}

func execSimple(ctx *Context, n *Simple, stdin io.Reader, stdout, stderr io.Writer) (int, error) {
	program := expandArgument(ctx, n.Program)
	args := expandArgs(ctx, n.Args)

	if builtin, ok := ctx.Commands[program]; ok {
		callCtx := ctx.withStreams(stdin, stdout, stderr)
		code, err := builtin(callCtx, args)
		ctx.LastExit = code
		return code, err
	}

	if err := ctx.Capability.CheckExec(program); err != nil {
		fmt.Fprintln(stderr, err)
		ctx.LastExit = 126
		return 126, nil
	}

	cmd := exec.Command(program, args...)
	cmd.Dir = ctx.Dir
	cmd.Env = envSlice(ctx.Env)
	cmd.Stdin = stdin
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	err := cmd.Run()
	code := exitCodeOf(cmd, err)
	ctx.LastExit = code
	if err != nil {
		if _, isExit := err.(*exec.ExitError); isExit {
			return code, nil
		}
		return code, fmt.Errorf("%s: %w", program, err)
	}
	return code, nil
}

func exitCodeOf(cmd *exec.Cmd, err error) int {
	if cmd.ProcessState != nil {
		return cmd.ProcessState.ExitCode()
	}
	if err != nil {
		return 1
	}
	return 0
}

// execPipe runs Left and Right concurrently, connected by an in-process
// pipe; the pipeline's exit code is Right's.
func execPipe(ctx *Context, n *Pipe, stdin io.Reader, stdout, stderr io.Writer) (int, error) {
	pr, pw := io.Pipe()

	var wg sync.WaitGroup
	wg.Add(1)
	var leftErr error
	go func() {
		defer wg.Done()
		_, leftErr = execNode(ctx.Clone(), n.Left, stdin, pw, stderr)
		pw.Close()
	}()

	rightCode, rightErr := execNode(ctx.Clone(), n.Right, pr, stdout, stderr)
	pr.Close()
	wg.Wait()

	ctx.LastExit = rightCode
	if rightErr != nil {
		return rightCode, rightErr
	}
	if leftErr != nil {
		return rightCode, leftErr
	}
	return rightCode, nil
}

// execRedirect opens Target according to Mode, substitutes it for the
// relevant stream, and executes Child against the new streams.
func execRedirect(ctx *Context, n *Redirect, stdin io.Reader, stdout, stderr io.Writer) (int, error) {
	if n.Mode == RedirectMergeStderr {
		return execNode(ctx, n.Child, stdin, stdout, stdout)
	}

	path := expandArgument(ctx, n.Target)
	if !filepath.IsAbs(path) {
		path = filepath.Join(ctx.Dir, path)
	}
	if err := ctx.Capability.CheckPath(path); err != nil {
		fmt.Fprintln(stderr, err)
		ctx.LastExit = 126
		return 126, nil
	}

	switch n.Mode {
	case RedirectInput:
		f, err := os.Open(path)
		if err != nil {
			fmt.Fprintln(stderr, err)
			ctx.LastExit = 1
			return 1, nil
		}
		defer f.Close()
		return execNode(ctx, n.Child, f, stdout, stderr)

	case RedirectAppend:
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintln(stderr, err)
			ctx.LastExit = 1
			return 1, nil
		}
		defer f.Close()
		if n.Source == 2 {
			return execNode(ctx, n.Child, stdin, stdout, f)
		}
		return execNode(ctx, n.Child, stdin, f, stderr)

	default: // RedirectOverwrite
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
		if err != nil {
			fmt.Fprintln(stderr, err)
			ctx.LastExit = 1
			return 1, nil
		}
		defer f.Close()
		if n.Source == 2 {
			return execNode(ctx, n.Child, stdin, stdout, f)
		}
		return execNode(ctx, n.Child, stdin, f, stderr)
	}
}

// expandArgument renders an Argument's parts against ctx's environment and
// last exit status. Unset variables expand to the empty string.
func expandArgument(ctx *Context, arg Argument) string {
	var b strings.Builder
	for _, p := range arg.Parts {
		switch {
		case p.IsExit:
			b.WriteString(strconv.Itoa(ctx.LastExit))
		case p.VarName != "":
			if v, ok := ctx.Env[p.VarName]; ok {
				b.WriteString(v)
			} else {
				b.WriteString(os.Getenv(p.VarName))
			}
		default:
			b.WriteString(p.Literal)
		}
	}
	return b.String()
}

// expandArgs expands every argument and applies pathname expansion to any
// argument that is a bare, unquoted literal containing glob metacharacters.
// An argument built from quotes or a variable never globs, and a pattern
// with no matches passes through unchanged.
func expandArgs(ctx *Context, args []Argument) []string {
	out := make([]string, 0, len(args))
	for _, a := range args {
		expanded := expandArgument(ctx, a)
		if raw, ok := a.RawLiteral(); ok && strings.ContainsAny(raw, "*?[") {
			pattern := expanded
			if !filepath.IsAbs(pattern) {
				pattern = filepath.Join(ctx.Dir, pattern)
			}
			matches, err := filepath.Glob(pattern)
			if err == nil && len(matches) > 0 {
				for _, m := range matches {
					if rel, relErr := filepath.Rel(ctx.Dir, m); relErr == nil {
						out = append(out, rel)
					} else {
						out = append(out, m)
					}
				}
				continue
			}
		}
		out = append(out, expanded)
	}
	return out
}

// envSlice renders an env map as the NAME=VALUE slice exec.Cmd wants.
func envSlice(env map[string]string) []string {
	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, k+"="+v)
	}
	return out
}
