// Package relay connects a running session to its consumers: the local
// terminal (stdin/stdout of the host process) and the human-readable
// command log file.
package relay

import (
	"bufio"
	"fmt"
	"os"
	"sync"
	"time"

	"termscribe/internal/tracker"
)

// CommandLog appends command lifecycle events to a plain text log file in a
// format meant for humans, not parsers.
type CommandLog struct {
	mu sync.Mutex
	f  *os.File
	w  *bufio.Writer
}

// OpenCommandLog opens (or creates) the log file for appending.
func OpenCommandLog(path string) (*CommandLog, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open command log: %w", err)
	}
	return &CommandLog{f: f, w: bufio.NewWriter(f)}, nil
}

// LogEvent writes one tracker event. Start opens a block, Output appends
// verbatim captured text, End closes the block with the exit status.
func (l *CommandLog) LogEvent(ev tracker.Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch e := ev.(type) {
	case tracker.Start:
		fmt.Fprintf(l.w, "\n=== Command Started ===\n")
		if e.Command != "" {
			fmt.Fprintf(l.w, "Command: %s\n", e.Command)
		}
		fmt.Fprintf(l.w, "User: %s@%s\n", e.User, e.Host)
		fmt.Fprintf(l.w, "Dir: %s\n", e.Cwd)
		fmt.Fprintf(l.w, "Time: %s\n", time.Now().Format(time.RFC3339))
		fmt.Fprintf(l.w, "--- Output ---\n")
	case tracker.Output:
		l.w.WriteString(e.Data)
	case tracker.End:
		fmt.Fprintf(l.w, "\n--- End Output ---\n")
		fmt.Fprintf(l.w, "Exit Code: %d\n", e.ExitCode)
		fmt.Fprintf(l.w, "Duration: %s\n", e.Duration.Round(time.Millisecond))
		fmt.Fprintf(l.w, "=== Command Ended ===\n\n")
	case tracker.Pwd:
		fmt.Fprintf(l.w, "[PWD] %s\n", e.Path)
	}
	return l.w.Flush()
}

// Close flushes and closes the underlying file.
func (l *CommandLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.w.Flush(); err != nil {
		l.f.Close()
		return err
	}
	return l.f.Close()
}
