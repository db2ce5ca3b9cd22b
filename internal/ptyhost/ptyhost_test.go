package ptyhost

import (
	"strings"
	"testing"
	"time"
)

// readUntil reads from the host until the accumulated output contains want
// or the deadline passes.
func readUntil(t *testing.T, h *Host, want string, timeout time.Duration) string {
	t.Helper()

	type chunk struct {
		data []byte
		err  error
	}
	ch := make(chan chunk, 16)
	go func() {
		buf := make([]byte, 4096)
		for {
			n, err := h.Read(buf)
			data := make([]byte, n)
			copy(data, buf[:n])
			ch <- chunk{data: data, err: err}
			if err != nil {
				return
			}
		}
	}()

	var out strings.Builder
	deadline := time.After(timeout)
	for {
		select {
		case c := <-ch:
			out.Write(c.data)
			if strings.Contains(out.String(), want) {
				return out.String()
			}
			if c.err != nil {
				t.Fatalf("pty read ended before %q appeared: %v\noutput: %q", want, c.err, out.String())
			}
		case <-deadline:
			t.Fatalf("timeout waiting for %q in pty output\noutput: %q", want, out.String())
		}
	}
}

func TestSpawnEchoAndExit(t *testing.T) {
	h, err := Spawn("/bin/sh", "", Size{Cols: 80, Rows: 24}, nil)
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	defer h.Close()

	if h.Pid() == 0 {
		t.Error("pid = 0, want running process")
	}

	if _, err := h.Write([]byte("echo pty-roundtrip\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	readUntil(t, h, "pty-roundtrip", 5*time.Second)

	if _, err := h.Write([]byte("exit\n")); err != nil {
		t.Fatalf("write exit: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- h.Wait() }()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("shell did not exit")
	}
}

func TestSpawnDefaultsSize(t *testing.T) {
	h, err := Spawn("/bin/sh", "", Size{}, nil)
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	defer func() {
		h.Write([]byte("exit\n"))
		h.Wait()
		h.Close()
	}()

	// stty reports the geometry the PTY was created with (rows cols).
	if _, err := h.Write([]byte("stty size\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	readUntil(t, h, "24 80", 5*time.Second)
}

func TestResize(t *testing.T) {
	h, err := Spawn("/bin/sh", "", Size{Cols: 80, Rows: 24}, nil)
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	defer func() {
		h.Write([]byte("exit\n"))
		h.Wait()
		h.Close()
	}()

	if err := h.Resize(100, 40); err != nil {
		t.Fatalf("resize: %v", err)
	}
	if _, err := h.Write([]byte("stty size\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	readUntil(t, h, "40 100", 5*time.Second)
}

func TestCloseUnblocksRead(t *testing.T) {
	h, err := Spawn("/bin/sh", "", Size{Cols: 80, Rows: 24}, nil)
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}

	errCh := make(chan error, 1)
	go func() {
		buf := make([]byte, 4096)
		for {
			if _, err := h.Read(buf); err != nil {
				errCh <- err
				return
			}
		}
	}()

	// Give the reader a moment to block, then close the master.
	time.Sleep(100 * time.Millisecond)
	h.Close()

	select {
	case <-errCh:
	case <-time.After(5 * time.Second):
		t.Fatal("read did not unblock after close")
	}
	h.Wait()
}
