package process

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestRunBufferedCapturesStdout(t *testing.T) {
	result, err := Run(context.Background(), "sh", "echo hello", nil, t.TempDir(), Buffer, "test", 0, nil, nil)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if result.ExitCode != 0 {
		t.Fatalf("expected exit code 0, got %d", result.ExitCode)
	}
	if strings.TrimSpace(result.Stdout) != "hello" {
		t.Errorf("expected stdout 'hello', got %q", result.Stdout)
	}
}

func TestRunReportsNonZeroExitCode(t *testing.T) {
	result, err := Run(context.Background(), "sh", "exit 7", nil, t.TempDir(), Buffer, "test", 0, nil, nil)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if result.ExitCode != 7 {
		t.Errorf("expected exit code 7, got %d", result.ExitCode)
	}
}

func TestRunTimesOut(t *testing.T) {
	_, err := Run(context.Background(), "sh", "sleep 2", nil, t.TempDir(), Buffer, "test", 50*time.Millisecond, nil, nil)
	if err == nil {
		t.Fatal("expected a timeout error")
	}
	var timedOut *TimedOutError
	if !isTimedOut(err, &timedOut) {
		t.Fatalf("expected *TimedOutError, got %T: %v", err, err)
	}
}

func isTimedOut(err error, target **TimedOutError) bool {
	if te, ok := err.(*TimedOutError); ok {
		*target = te
		return true
	}
	return false
}

func TestRunTeeForwardsLinesAndRetainsThem(t *testing.T) {
	var out strings.Builder
	result, err := Run(context.Background(), "sh", "echo teed", nil, t.TempDir(), Tee, "test", 0, &out, nil)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if strings.TrimSpace(out.String()) != "teed" {
		t.Errorf("expected tee writer to receive the line, got %q", out.String())
	}
	if strings.TrimSpace(result.Stdout) != "teed" {
		t.Errorf("expected buffered stdout to retain the line too, got %q", result.Stdout)
	}
}

func TestDetectShellPrefersPreferred(t *testing.T) {
	if got := DetectShell("/bin/zsh"); got != "/bin/zsh" {
		t.Errorf("DetectShell() = %q, want /bin/zsh", got)
	}
}

func TestResultMergedLabelsStreams(t *testing.T) {
	r := Result{Stdout: "out\n", Stderr: "err\n"}
	merged := r.Merged("task")
	if !strings.Contains(merged, "[task stdout]") || !strings.Contains(merged, "[task stderr]") {
		t.Errorf("expected labelled sections, got %q", merged)
	}
}
