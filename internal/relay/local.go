package relay

import (
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/term"

	"termscribe/internal/session"
)

// Local relays a session to the calling terminal: stdin bytes go to the
// shell, raw PTY output goes to stdout, and command events go to the
// command log.
type Local struct {
	Session *session.Session
	Stdin   *os.File
	Stdout  *os.File
	// Log, when non-nil, receives every command lifecycle event.
	Log *CommandLog
}

// Run attaches to the session and relays until the shell exits. While
// running, the calling terminal is switched to raw mode so keystrokes
// reach the inner shell unmangled.
func (r *Local) Run() error {
	att, replay, err := r.Session.Attach()
	if err != nil {
		return err
	}

	fd := int(r.Stdin.Fd())
	if term.IsTerminal(fd) {
		oldState, err := term.MakeRaw(fd)
		if err != nil {
			return err
		}
		defer term.Restore(fd, oldState)

		stopResize := r.watchResize(fd)
		defer stopResize()
	}

	if len(replay) > 0 {
		r.Stdout.Write(replay)
	}

	go r.relayStdin()

	rawCh := att.Raw()
	evCh := att.Events()
	for rawCh != nil || evCh != nil {
		select {
		case chunk, ok := <-rawCh:
			if !ok {
				rawCh = nil
				continue
			}
			if _, err := r.Stdout.Write(chunk); err != nil {
				return err
			}
		case ev, ok := <-evCh:
			if !ok {
				evCh = nil
				continue
			}
			if r.Log != nil {
				if err := r.Log.LogEvent(ev); err != nil {
					log.Printf("command log write failed: %v", err)
				}
			}
		}
	}

	<-r.Session.Done()
	return nil
}

// relayStdin copies keystrokes to the shell. It ends when stdin closes or
// the session's PTY is gone; either way the main loop notices via the
// output channels.
func (r *Local) relayStdin() {
	buf := make([]byte, 4096)
	for {
		n, err := r.Stdin.Read(buf)
		if n > 0 {
			if _, werr := r.Session.WriteInput(buf[:n]); werr != nil {
				return
			}
		}
		if err != nil {
			if err != io.EOF {
				log.Printf("stdin read failed: %v", err)
			}
			return
		}
	}
}

// watchResize propagates the controlling terminal's size to the PTY, once
// at startup and again on every SIGWINCH.
func (r *Local) watchResize(fd int) (stop func()) {
	r.syncSize(fd)

	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGWINCH)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-ch:
				r.syncSize(fd)
			case <-done:
				return
			}
		}
	}()
	return func() {
		signal.Stop(ch)
		close(done)
	}
}

func (r *Local) syncSize(fd int) {
	cols, rows, err := term.GetSize(fd)
	if err != nil {
		return
	}
	if err := r.Session.Resize(uint16(cols), uint16(rows)); err != nil {
		log.Printf("resize failed: %v", err)
	}
}
