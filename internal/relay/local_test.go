package relay

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"termscribe/internal/session"
)

// TestLocalRelayEndToEnd drives a real shell through the relay using pipes
// in place of a terminal. Raw mode is skipped automatically because the
// pipe is not a TTY.
func TestLocalRelayEndToEnd(t *testing.T) {
	s, err := session.Start("local-relay-test", session.Config{Shell: "/bin/sh"})
	if err != nil {
		t.Fatalf("start session: %v", err)
	}
	defer s.Close()

	stdinR, stdinW, err := os.Pipe()
	if err != nil {
		t.Fatalf("stdin pipe: %v", err)
	}
	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		t.Fatalf("stdout pipe: %v", err)
	}

	logPath := filepath.Join(t.TempDir(), "commands.log")
	clog, err := OpenCommandLog(logPath)
	if err != nil {
		t.Fatalf("open command log: %v", err)
	}

	r := &Local{Session: s, Stdin: stdinR, Stdout: stdoutW, Log: clog}
	runErr := make(chan error, 1)
	go func() { runErr <- r.Run() }()

	script := "printf '\\033]6973;START;demo\\007'; echo marker-out; printf '\\033]6973;END;3\\007'\n"
	if _, err := stdinW.Write([]byte(script)); err != nil {
		t.Fatalf("write script: %v", err)
	}
	if _, err := stdinW.Write([]byte("exit\n")); err != nil {
		t.Fatalf("write exit: %v", err)
	}

	select {
	case err := <-runErr:
		if err != nil {
			t.Fatalf("relay: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("relay did not finish")
	}
	stdinW.Close()
	stdoutW.Close()
	clog.Close()

	out, err := io.ReadAll(stdoutR)
	if err != nil {
		t.Fatalf("read stdout: %v", err)
	}
	if !strings.Contains(string(out), "marker-out") {
		t.Errorf("stdout missing command output:\n%s", out)
	}

	logData, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read command log: %v", err)
	}
	logText := string(logData)
	for _, want := range []string{
		"=== Command Started ===",
		"Command: demo",
		"marker-out",
		"Exit Code: 3",
		"=== Command Ended ===",
	} {
		if !strings.Contains(logText, want) {
			t.Errorf("command log missing %q:\n%s", want, logText)
		}
	}
}
