// Package ptyhost owns the pseudo-terminal master and the shell child
// process attached to its slave side.
package ptyhost

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"github.com/creack/pty"
)

// Size is the terminal geometry in character cells.
type Size struct {
	Cols uint16
	Rows uint16
}

// DefaultSize is used when the caller does not specify a geometry.
var DefaultSize = Size{Cols: 80, Rows: 24}

// Host wraps the PTY master file and the shell process. Read is only ever
// called from the session's single read loop; Write and Resize may be
// called from multiple producers (local keyboard relay, remote client) and
// are serialized by a mutex so writes are never interleaved mid-sequence.
type Host struct {
	ptmx *os.File
	cmd  *exec.Cmd

	mu sync.Mutex // serializes Write and Resize
}

// Spawn allocates a PTY of the given size and starts shell attached to it.
// If shell is empty it falls back to $SHELL, then /bin/bash. When rcfile is
// non-empty and the shell is bash, it is passed as --rcfile so the shell
// integration hook (the marker protocol emitter) is sourced at startup.
func Spawn(shell, rcfile string, size Size, extraEnv []string) (*Host, error) {
	if shell == "" {
		shell = os.Getenv("SHELL")
	}
	if shell == "" {
		shell = "/bin/bash"
	}

	var args []string
	if rcfile != "" && strings.Contains(filepath.Base(shell), "bash") {
		args = append(args, "--rcfile", rcfile)
	}

	cmd := exec.Command(shell, args...)
	for _, kv := range os.Environ() {
		if !strings.HasPrefix(kv, "TERM=") {
			cmd.Env = append(cmd.Env, kv)
		}
	}
	cmd.Env = append(cmd.Env, "TERM=xterm-256color")
	cmd.Env = append(cmd.Env, extraEnv...)

	if size.Cols == 0 {
		size.Cols = DefaultSize.Cols
	}
	if size.Rows == 0 {
		size.Rows = DefaultSize.Rows
	}

	ptmx, err := pty.StartWithSize(cmd, &pty.Winsize{Rows: size.Rows, Cols: size.Cols})
	if err != nil {
		return nil, fmt.Errorf("start shell %q on pty: %w", shell, err)
	}

	return &Host{ptmx: ptmx, cmd: cmd}, nil
}

// Read blocks until PTY output is available. Any error (including the EIO
// Linux returns once the child exits) means the session is over; callers
// treat every error as EOF.
func (h *Host) Read(p []byte) (int, error) {
	return h.ptmx.Read(p)
}

// Write sends input bytes to the shell.
func (h *Host) Write(p []byte) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.ptmx.Write(p)
}

// Resize changes the PTY geometry and signals the shell with SIGWINCH.
func (h *Host) Resize(cols, rows uint16) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return pty.Setsize(h.ptmx, &pty.Winsize{Rows: rows, Cols: cols})
}

// Close closes the PTY master. This unblocks a pending Read and delivers
// SIGHUP to the shell's process group.
func (h *Host) Close() error {
	return h.ptmx.Close()
}

// Wait reaps the shell process after it exits.
func (h *Host) Wait() error {
	return h.cmd.Wait()
}

// Pid returns the shell's process ID.
func (h *Host) Pid() int {
	if h.cmd.Process == nil {
		return 0
	}
	return h.cmd.Process.Pid
}
