package executor_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/opendatateam/hydra-release/internal/executor"
)

func TestBasicExecution(t *testing.T) {
	cmd := executor.New("echo", "hello", "world")
	result, err := cmd.Execute(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.Contains(result.Stdout, "hello world") {
		t.Errorf("expected stdout to contain 'hello world', got: %s", result.Stdout)
	}

	if result.ExitCode != 0 {
		t.Errorf("expected exit code 0, got: %d", result.ExitCode)
	}
}

func TestShellRun(t *testing.T) {
	sh := executor.NewShell("")
	result, err := sh.Run(context.Background(), "echo step output && echo warning >&2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.Contains(result.Stdout, "step output") {
		t.Errorf("expected captured stdout, got: %s", result.Stdout)
	}
	if !strings.Contains(result.Stderr, "warning") {
		t.Errorf("expected captured stderr, got: %s", result.Stderr)
	}
}

func TestShellRun_ExitCode(t *testing.T) {
	sh := executor.NewShell("")
	result, err := sh.Run(context.Background(), "exit 3")
	if err == nil {
		t.Fatal("expected error for failing script, got nil")
	}

	if result.ExitCode != 3 {
		t.Errorf("expected exit code 3, got: %d", result.ExitCode)
	}
}

func TestCombinedOutput(t *testing.T) {
	sh := executor.NewShell("")
	result, err := sh.Run(
		context.Background(),
		"echo to-stdout && echo to-stderr >&2",
		executor.WithCapture(false, false, true),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.Contains(result.Combined, "to-stdout") || !strings.Contains(result.Combined, "to-stderr") {
		t.Errorf("expected combined output, got: %s", result.Combined)
	}
}

func TestWorkingDirAndEnv(t *testing.T) {
	dir := t.TempDir()

	sh := executor.NewShell("")
	result, err := sh.Run(
		context.Background(),
		"pwd && printf '%s' \"$STEP_TOKEN\"",
		executor.WithWorkingDir(dir),
		executor.WithEnvVar("STEP_TOKEN", "sekret"),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.Contains(result.Stdout, dir) {
		t.Errorf("expected pwd output to contain %q, got: %s", dir, result.Stdout)
	}
	if !strings.Contains(result.Stdout, "sekret") {
		t.Errorf("expected env var to be visible, got: %s", result.Stdout)
	}
}

func TestExecuteWithInput(t *testing.T) {
	cmd := executor.New("cat")
	result, err := cmd.ExecuteWithInput(context.Background(), "piped content")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Stdout != "piped content" {
		t.Errorf("expected stdin to be echoed back, got: %s", result.Stdout)
	}
}

func TestStdoutWriterStreams(t *testing.T) {
	var streamed bytes.Buffer

	sh := executor.NewShell("")
	_, err := sh.Run(
		context.Background(),
		"echo streamed line",
		executor.WithStdoutWriter(&streamed),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.Contains(streamed.String(), "streamed line") {
		t.Errorf("expected writer to receive output, got: %s", streamed.String())
	}
}

func TestRetrySucceedsEventually(t *testing.T) {
	dir := t.TempDir()

	// The script fails until the marker file exists, which it creates on the
	// first attempt. The second attempt then succeeds.
	script := fmt.Sprintf("test -f %s/marker || { touch %s/marker; exit 1; }", dir, dir)

	sh := executor.NewShell("")
	result, err := sh.Run(
		context.Background(),
		script,
		executor.WithRetry(2, 10*time.Millisecond),
	)
	if err != nil {
		t.Fatalf("expected success after retry, got: %v", err)
	}
	if result.ExitCode != 0 {
		t.Errorf("expected exit code 0, got: %d", result.ExitCode)
	}
}

func TestRetryConditionStopsRetries(t *testing.T) {
	attempts := 0

	sh := executor.NewShell("")
	_, err := sh.Run(
		context.Background(),
		"exit 1",
		executor.WithRetry(5, time.Millisecond),
		executor.WithRetryCondition(func(err error) bool {
			attempts++
			return false
		}),
	)
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if attempts != 1 {
		t.Errorf("expected the retry condition to be consulted once, got %d", attempts)
	}
}

func TestContextCancellation(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	sh := executor.NewShell("")
	_, err := sh.Run(ctx, "sleep 10")
	if err == nil {
		t.Fatal("expected error for cancelled context, got nil")
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return // acceptable: surfaced directly
	}
	// Otherwise the shell was killed and reports a non-zero exit.
}
