package builtins

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"pavidi.dev/internal/capability"
	"pavidi.dev/internal/shell"
)

func newTestContext(t *testing.T, dir string) (*shell.Context, *bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	ctx := shell.NewContext(dir, map[string]string{"HOME": dir}, capability.New(dir, nil, nil), Registry())
	ctx.Stdout, ctx.Stderr = &stdout, &stderr
	return ctx, &stdout, &stderr
}

func TestEchoJoinsArgsWithSpaces(t *testing.T) {
	ctx, stdout, _ := newTestContext(t, t.TempDir())
	code, err := Echo(ctx, []string{"hello", "world"})
	if err != nil || code != 0 {
		t.Fatalf("Echo() code=%d err=%v", code, err)
	}
	if stdout.String() != "hello world\n" {
		t.Errorf("stdout = %q, want %q", stdout.String(), "hello world\n")
	}
}

func TestCdChangesContextDirOnly(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "sub")
	os.MkdirAll(sub, 0755)
	ctx, _, _ := newTestContext(t, dir)

	code, err := Cd(ctx, []string{"sub"})
	if err != nil || code != 0 {
		t.Fatalf("Cd() code=%d err=%v", code, err)
	}
	canon, _ := filepath.EvalSymlinks(sub)
	if ctx.Dir != canon {
		t.Errorf("ctx.Dir = %q, want %q", ctx.Dir, canon)
	}
}

func TestCdFailsOnMissingDirectory(t *testing.T) {
	ctx, _, stderr := newTestContext(t, t.TempDir())
	code, err := Cd(ctx, []string{"does-not-exist"})
	if err != nil {
		t.Fatalf("Cd() unexpected error: %v", err)
	}
	if code == 0 {
		t.Error("expected a non-zero exit for a missing directory")
	}
	if stderr.Len() == 0 {
		t.Error("expected an error message on stderr")
	}
}

func TestMkdirWithParentsCreatesTree(t *testing.T) {
	dir := t.TempDir()
	ctx, _, _ := newTestContext(t, dir)

	code, err := Mkdir(ctx, []string{"-p", "a/b/c"})
	if err != nil || code != 0 {
		t.Fatalf("Mkdir() code=%d err=%v", code, err)
	}
	if info, statErr := os.Stat(filepath.Join(dir, "a", "b", "c")); statErr != nil || !info.IsDir() {
		t.Error("expected nested directories to be created")
	}
}

func TestRmRequiresRecursiveForDirectories(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "sub")
	os.MkdirAll(target, 0755)
	ctx, _, _ := newTestContext(t, dir)

	code, err := Rm(ctx, []string{"sub"})
	if err != nil {
		t.Fatalf("Rm() unexpected error: %v", err)
	}
	if code == 0 {
		t.Error("expected rm without -r to refuse a directory")
	}

	code, err = Rm(ctx, []string{"-r", "sub"})
	if err != nil || code != 0 {
		t.Fatalf("Rm() -r code=%d err=%v", code, err)
	}
	if _, statErr := os.Stat(target); statErr == nil {
		t.Error("expected directory to be removed with -r")
	}
}

func TestCpCopiesFileContent(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.txt")
	os.WriteFile(src, []byte("content"), 0644)
	ctx, _, _ := newTestContext(t, dir)

	code, err := Cp(ctx, []string{"src.txt", "dst.txt"})
	if err != nil || code != 0 {
		t.Fatalf("Cp() code=%d err=%v", code, err)
	}
	data, readErr := os.ReadFile(filepath.Join(dir, "dst.txt"))
	if readErr != nil || string(data) != "content" {
		t.Errorf("expected copied content, got data=%q err=%v", data, readErr)
	}
}

func TestMvRenamesFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.txt")
	os.WriteFile(src, []byte("content"), 0644)
	ctx, _, _ := newTestContext(t, dir)

	code, err := Mv(ctx, []string{"src.txt", "dst.txt"})
	if err != nil || code != 0 {
		t.Fatalf("Mv() code=%d err=%v", code, err)
	}
	if _, statErr := os.Stat(src); statErr == nil {
		t.Error("expected source to no longer exist after mv")
	}
	if _, statErr := os.Stat(filepath.Join(dir, "dst.txt")); statErr != nil {
		t.Error("expected destination to exist after mv")
	}
}

func TestLsListsEntriesSorted(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "b.txt"), nil, 0644)
	os.WriteFile(filepath.Join(dir, "a.txt"), nil, 0644)
	ctx, stdout, _ := newTestContext(t, dir)

	code, err := Ls(ctx, nil)
	if err != nil || code != 0 {
		t.Fatalf("Ls() code=%d err=%v", code, err)
	}
	want := "a.txt\nb.txt\n"
	if stdout.String() != want {
		t.Errorf("stdout = %q, want %q", stdout.String(), want)
	}
}

func TestCatStreamsFileContent(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "f.txt"), []byte("hi there"), 0644)
	ctx, stdout, _ := newTestContext(t, dir)

	code, err := Cat(ctx, []string{"f.txt"})
	if err != nil || code != 0 {
		t.Fatalf("Cat() code=%d err=%v", code, err)
	}
	if stdout.String() != "hi there" {
		t.Errorf("stdout = %q, want %q", stdout.String(), "hi there")
	}
}

func TestExportSetsEnvInContext(t *testing.T) {
	ctx, _, _ := newTestContext(t, t.TempDir())
	code, err := Export(ctx, []string{"FOO=bar", "ignored-without-equals"})
	if err != nil || code != 0 {
		t.Fatalf("Export() code=%d err=%v", code, err)
	}
	if ctx.Env["FOO"] != "bar" {
		t.Errorf("expected FOO=bar, got %q", ctx.Env["FOO"])
	}
}

func TestExitReturnsExitRequestedError(t *testing.T) {
	ctx, _, _ := newTestContext(t, t.TempDir())
	code, err := Exit(ctx, []string{"42"})
	if code != 42 {
		t.Errorf("expected code 42, got %d", code)
	}
	var exitErr *ExitRequested
	if e, ok := err.(*ExitRequested); ok {
		exitErr = e
	}
	if exitErr == nil || exitErr.Code != 42 {
		t.Fatalf("expected *ExitRequested{Code:42}, got %T: %v", err, err)
	}
}

func TestCapabilityDeniesPathOutsideAllowList(t *testing.T) {
	dir := t.TempDir()
	allowed := filepath.Join(dir, "workspace")
	os.MkdirAll(allowed, 0755)
	checker := capability.New(dir, []string{"workspace"}, nil)

	var stdout, stderr bytes.Buffer
	ctx := shell.NewContext(dir, map[string]string{}, checker, Registry())
	ctx.Stdout, ctx.Stderr = &stdout, &stderr

	code, err := Mkdir(ctx, []string{"outside"})
	if err != nil {
		t.Fatalf("Mkdir() unexpected error: %v", err)
	}
	if code == 0 {
		t.Error("expected mkdir outside the allowed path to be denied")
	}
}

func TestSourceExecutesFileAgainstCallingContext(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "script.sh")
	os.WriteFile(script, []byte("NAME=sourced\n"), 0644)
	ctx, _, _ := newTestContext(t, dir)

	code, err := Source(ctx, []string{"script.sh"})
	if err != nil || code != 0 {
		t.Fatalf("Source() code=%d err=%v", code, err)
	}
	if ctx.Env["NAME"] != "sourced" {
		t.Errorf("expected sourced assignment to persist, got %q", ctx.Env["NAME"])
	}
}
