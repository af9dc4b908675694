package logs

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestPathLayout(t *testing.T) {
	ts := time.Date(2026, 3, 5, 14, 30, 1, 0, time.UTC)
	rec := Record{TaskName: "build:release", ExitCode: 2, StartTime: ts}
	path := Path("/proj", rec)

	want := filepath.Join("/proj", ".p", "logs", "2026-03-05", "2")
	if !strings.HasPrefix(path, want) {
		t.Fatalf("Path() = %s, want prefix %s", path, want)
	}
	base := filepath.Base(path)
	if !strings.HasPrefix(base, "143001_build_release_") {
		t.Fatalf("filename = %s, want 143001_build_release_<hash6>.log", base)
	}
	if !strings.HasSuffix(base, ".log") {
		t.Fatalf("filename = %s, want .log suffix", base)
	}
	hashPart := strings.TrimSuffix(strings.TrimPrefix(base, "143001_build_release_"), ".log")
	if len(hashPart) != 6 {
		t.Fatalf("hash suffix = %q, want 6 hex chars", hashPart)
	}
}

func TestRenderRedactsSecrets(t *testing.T) {
	rec := Record{
		TaskName:  "deploy",
		Command:   "echo hi",
		Env:       map[string]string{"API_TOKEN": "sekrit", "NAME": "pavidi"},
		Secrets:   []string{"^CUSTOM_.*"},
		Body:      "hi\n",
		ExitCode:  0,
		StartTime: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Duration:  250 * time.Millisecond,
	}
	out := Render(rec)

	if !strings.Contains(out, "API_TOKEN = [REDACTED]") {
		t.Errorf("expected API_TOKEN to be redacted, got:\n%s", out)
	}
	if !strings.Contains(out, "NAME = pavidi") {
		t.Errorf("expected NAME to be plain, got:\n%s", out)
	}
	if !strings.Contains(out, "Exit Code: 0") {
		t.Errorf("expected footer exit code, got:\n%s", out)
	}
	if !strings.Contains(out, "Duration: 250ms") {
		t.Errorf("expected footer duration, got:\n%s", out)
	}
	if !strings.HasPrefix(out, "=== PAVIDI EXECUTION LOG ===") {
		t.Errorf("expected header marker, got:\n%s", out)
	}
}

func TestRenderStripsANSIWhenPlain(t *testing.T) {
	rec := Record{
		TaskName:  "t",
		Body:      "\x1b[32mok\x1b[0m\n",
		StartTime: time.Now(),
		StripANSI: true,
	}
	out := Render(rec)
	if strings.Contains(out, "\x1b[") {
		t.Errorf("expected ANSI codes stripped, got:\n%q", out)
	}
	if !strings.Contains(out, "ok\n") {
		t.Errorf("expected plain body retained, got:\n%q", out)
	}
}

func TestIsSecretMatchesCustomPatternCaseOfKeyword(t *testing.T) {
	if !isSecret("DB_PASSWORD", nil) {
		t.Error("expected DB_PASSWORD to match default keyword PASS")
	}
	if isSecret("REGION", nil) {
		t.Error("expected REGION to not be a secret")
	}
	if !isSecret("CUSTOM_FIELD", []string{"^CUSTOM_"}) {
		t.Error("expected CUSTOM_FIELD to match custom pattern")
	}
}

func TestWriteCreatesFile(t *testing.T) {
	dir := t.TempDir()
	rec := Record{
		TaskName:  "build",
		Command:   "make",
		Env:       map[string]string{},
		Body:      "built\n",
		ExitCode:  0,
		StartTime: time.Now(),
	}
	path, err := Write(dir, rec)
	if err != nil {
		t.Fatalf("Write() error: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected log file at %s: %v", path, err)
	}
}
