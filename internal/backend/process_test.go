package backend

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"testing"
	"time"
)

// writeScript writes an executable shell script into a temp dir.
func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fake-cli.sh")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatalf("failed to write script: %v", err)
	}
	return path
}

func TestExecuteCommand_BasicExecution(t *testing.T) {
	ctx := context.Background()
	cmd := newCommand(ctx, "echo", "hello")

	stdout, stderr, err := executeCommand(ctx, cmd, nil)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if !strings.Contains(string(stdout), "hello") {
		t.Errorf("Expected stdout to contain 'hello', got: %s", stdout)
	}
	if len(stderr) > 0 {
		t.Errorf("Expected empty stderr, got: %s", stderr)
	}
}

// Output larger than a pipe buffer must not deadlock.
func TestExecuteCommand_LargeOutput(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	script := writeScript(t, `head -c 262144 /dev/zero | tr '\0' 'x'; echo "done" >&2`)
	cmd := newCommand(ctx, "sh", script)

	stdout, stderr, err := executeCommand(ctx, cmd, nil)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(stdout) != 262144 {
		t.Errorf("Expected 262144 bytes of stdout, got %d", len(stdout))
	}
	if !strings.Contains(string(stderr), "done") {
		t.Errorf("Expected stderr to be captured, got: %s", stderr)
	}
}

func TestExecuteCommand_NonZeroExitCode(t *testing.T) {
	ctx := context.Background()
	script := writeScript(t, `echo partial; echo "boom" >&2; exit 3`)
	cmd := newCommand(ctx, "sh", script)

	stdout, _, err := executeCommand(ctx, cmd, nil)
	if err == nil {
		t.Fatal("Expected error due to non-zero exit code, got nil")
	}
	if !strings.Contains(err.Error(), "boom") {
		t.Errorf("Expected stderr in error, got: %v", err)
	}
	if !strings.Contains(string(stdout), "partial") {
		t.Errorf("Expected stdout to be returned on failure, got: %s", stdout)
	}
}

func TestExecuteCommand_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	cmd := newCommand(ctx, "sleep", "30")

	start := time.Now()
	_, _, err := executeCommand(ctx, cmd, nil)
	if err == nil {
		t.Fatal("Expected error due to context cancellation, got nil")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected deadline error, got: %v", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Errorf("Subprocess was not terminated promptly")
	}
}

func TestExecuteCommand_TracksWhileRunning(t *testing.T) {
	pm := NewProcessManager()
	ctx := context.Background()

	marker := filepath.Join(t.TempDir(), "started")
	script := writeScript(t, fmt.Sprintf(`touch %q; sleep 1`, marker))
	cmd := newCommand(ctx, "sh", script)

	done := make(chan error, 1)
	go func() {
		_, _, err := executeCommand(ctx, cmd, pm)
		done <- err
	}()

	deadline := time.Now().Add(5 * time.Second)
	for {
		if _, err := os.Stat(marker); err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("script never started")
		}
		time.Sleep(10 * time.Millisecond)
	}
	if pm.Count() != 1 {
		t.Errorf("Expected 1 tracked process while running, got %d", pm.Count())
	}

	if err := <-done; err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if pm.Count() != 0 {
		t.Errorf("Expected 0 tracked processes after exit, got %d", pm.Count())
	}
}

func TestProcessManager_TrackAndKillAll(t *testing.T) {
	pm := NewProcessManager()

	cmd := newCommand(context.Background(), "sleep", "300")
	if err := cmd.Start(); err != nil {
		t.Fatalf("Failed to start process: %v", err)
	}
	pm.Track(cmd)

	if pm.Count() != 1 {
		t.Errorf("Expected 1 tracked process, got %d", pm.Count())
	}

	if err := pm.KillAll(); err != nil {
		t.Fatalf("KillAll failed: %v", err)
	}

	err := cmd.Wait()
	if err == nil {
		t.Fatal("Expected process to be killed, got nil error")
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && !status.Signaled() {
			t.Errorf("Expected process to be signaled, got exit status: %v", status)
		}
	}

	pm.Untrack(cmd)
	if pm.Count() != 0 {
		t.Errorf("Expected 0 tracked processes after Untrack, got %d", pm.Count())
	}
}

func TestProcessManager_KillsProcessTree(t *testing.T) {
	pm := NewProcessManager()

	script := writeScript(t, `sleep 30 & wait`)
	cmd := newCommand(context.Background(), "sh", script)
	if err := cmd.Start(); err != nil {
		t.Fatalf("Failed to start process: %v", err)
	}
	parentPID := cmd.Process.Pid
	pm.Track(cmd)

	time.Sleep(200 * time.Millisecond)
	_ = pm.KillAll()
	_ = cmd.Wait()
	pm.Untrack(cmd)

	out, err := exec.Command("pgrep", "-P", fmt.Sprintf("%d", parentPID)).CombinedOutput()
	// pgrep exits 1 when nothing matches.
	if err == nil && len(bytes.TrimSpace(out)) > 0 {
		t.Errorf("Child processes still running after KillAll: %s", out)
	}
}

func TestProcessManager_IgnoresUnstartedCommands(t *testing.T) {
	pm := NewProcessManager()
	cmd := exec.Command("true")

	pm.Track(cmd)
	pm.Untrack(cmd)

	if pm.Count() != 0 {
		t.Errorf("Expected unstarted command to be ignored, got %d tracked", pm.Count())
	}
	if err := killProcessGroup(cmd); err == nil {
		t.Error("Expected error killing an unstarted command")
	}
}
