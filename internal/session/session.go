// Package session glues the PTY host, the escape-sequence parser, and the
// command boundary tracker into a running shell session, and manages the
// set of live sessions.
//
// Concurrency model: one goroutine per session runs the blocking PTY read
// loop; parsing and event emission for a chunk happen synchronously inside
// that loop, strictly before the next read. Consumers receive the raw byte
// stream and the log event stream through a pair of small bounded queues,
// so a slow consumer throttles the read loop instead of growing memory.
// Read EOF (shell exited, PTY closed) and Close are the only termination
// paths.
package session

import (
	"fmt"
	"log"
	"sync"
	"time"

	"termscribe/internal/history"
	"termscribe/internal/ptyhost"
	"termscribe/internal/tracker"
	"termscribe/internal/vtparse"
)

// queueDepth is the capacity of the per-attachment raw and event queues.
// Deliberately small: tens of messages of backpressure, never unbounded
// buffering.
const queueDepth = 32

// readBufSize is the PTY read chunk size.
const readBufSize = 32 * 1024

// State is the lifecycle state of a session.
type State string

const (
	// StateActive means the shell is running and a consumer is attached.
	StateActive State = "active"
	// StateDetached means the shell is running with no consumer attached.
	StateDetached State = "detached"
	// StateClosed means the shell has exited or the session was closed.
	StateClosed State = "closed"
)

// Pty is the session's view of the pseudo-terminal. *ptyhost.Host satisfies
// it; tests substitute an in-memory fake.
type Pty interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Resize(cols, rows uint16) error
	Close() error
	Wait() error
}

// Attachment is one consumer's view of a session: two bounded delivery
// queues, one for the verbatim raw byte stream and one for command
// lifecycle events. Order is preserved within each queue; no ordering is
// guaranteed between the two. Both channels are closed when the session
// ends. After a voluntary Detach the consumer must stop reading them;
// they are only guaranteed to close if the read loop was mid-delivery.
type Attachment struct {
	raw    chan []byte
	events chan tracker.Event
	quit   chan struct{}
	once   sync.Once
}

// Raw returns the verbatim PTY output stream.
func (a *Attachment) Raw() <-chan []byte { return a.raw }

// Events returns the command lifecycle event stream.
func (a *Attachment) Events() <-chan tracker.Event { return a.events }

func (a *Attachment) signalQuit() {
	a.once.Do(func() { close(a.quit) })
}

// Config describes a session to start.
type Config struct {
	Shell             string
	IntegrationScript string
	Size              ptyhost.Size
	Env               []string
	ScrollbackBytes   int
	// History, when non-nil, receives a record for every completed command.
	History *history.Store
}

// pendingRecord assembles one in-flight command for the history store.
type pendingRecord struct {
	command   string
	cwd       string
	startedAt time.Time
	output    []byte
}

// maxPendingOutput bounds output assembled for a single history record.
const maxPendingOutput = 64 * 1024

// Session is one shell attached to a PTY. At most one Attachment consumes
// it at a time; while detached, output accumulates in the scrollback only.
type Session struct {
	ID        string
	Shell     string
	CreatedAt time.Time

	pty     Pty
	parser  *vtparse.Parser
	tracker *tracker.Tracker
	hist    *history.Store
	scroll  *scrollback

	mu           sync.Mutex
	att          *Attachment
	state        State
	lastActivity time.Time

	pending *pendingRecord // read-loop goroutine only

	quit      chan struct{} // closed by Close
	done      chan struct{} // closed when the read loop has exited
	closeOnce sync.Once
}

// Start spawns the shell on a new PTY and begins the read loop.
func Start(id string, cfg Config) (*Session, error) {
	host, err := ptyhost.Spawn(cfg.Shell, cfg.IntegrationScript, cfg.Size, cfg.Env)
	if err != nil {
		return nil, err
	}
	return newSession(id, host, cfg), nil
}

// newSession wires an already-running PTY into a session. Split from Start
// so tests can inject a fake Pty.
func newSession(id string, pty Pty, cfg Config) *Session {
	s := &Session{
		ID:           id,
		Shell:        cfg.Shell,
		CreatedAt:    time.Now(),
		pty:          pty,
		parser:       vtparse.New(),
		hist:         cfg.History,
		scroll:       newScrollback(cfg.ScrollbackBytes),
		state:        StateDetached,
		lastActivity: time.Now(),
		quit:         make(chan struct{}),
		done:         make(chan struct{}),
	}
	s.tracker = tracker.New(sinkFunc(s.emitEvent))
	go s.readLoop()
	return s
}

// sinkFunc adapts a function to the tracker.Sink interface.
type sinkFunc func(tracker.Event) bool

func (f sinkFunc) Emit(ev tracker.Event) bool { return f(ev) }

// readLoop is the single blocking reader. For each chunk it records
// scrollback, forwards the verbatim bytes, then parses and flushes command
// events — all before the next read.
func (s *Session) readLoop() {
	buf := make([]byte, readBufSize)
	for {
		n, err := s.pty.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])

			s.scroll.Write(chunk)
			if !s.deliverRaw(chunk) {
				break // session closed
			}
			s.parser.Advance(s.tracker, chunk)
			s.tracker.Flush()
		}
		if err != nil {
			// EOF or EIO: the shell exited or the PTY was closed. Either
			// way this is the sole termination signal.
			break
		}
	}
	s.finish()
}

// deliverRaw hands a chunk to the current attachment, blocking while the
// queue is full. It returns false only when the session itself is closed.
func (s *Session) deliverRaw(chunk []byte) bool {
	att := s.attachment()
	if att == nil {
		return true // detached: scrollback already has the bytes
	}
	select {
	case att.raw <- chunk:
		return true
	case <-att.quit:
		s.dropAttachment(att)
		return true
	case <-s.quit:
		return false
	}
}

// emitEvent is the tracker sink. It feeds the history assembler and then
// the attached consumer's event queue. Returns false only when the session
// is closed, which silently ends tracker emission.
func (s *Session) emitEvent(ev tracker.Event) bool {
	s.recordEvent(ev)

	att := s.attachment()
	if att == nil {
		return true
	}
	select {
	case att.events <- ev:
		return true
	case <-att.quit:
		s.dropAttachment(att)
		return true
	case <-s.quit:
		return false
	}
}

// recordEvent assembles completed commands for the history store. Runs on
// the read-loop goroutine only.
func (s *Session) recordEvent(ev tracker.Event) {
	switch e := ev.(type) {
	case tracker.Start:
		s.pending = &pendingRecord{
			command:   e.Command,
			cwd:       e.Cwd,
			startedAt: time.Now(),
		}
	case tracker.Output:
		if s.pending != nil && len(s.pending.output) < maxPendingOutput {
			s.pending.output = append(s.pending.output, e.Data...)
		}
	case tracker.End:
		if s.pending != nil && s.hist != nil {
			rec := history.Command{
				SessionID:  s.ID,
				Command:    s.pending.command,
				Cwd:        s.pending.cwd,
				StartedAt:  s.pending.startedAt,
				DurationMS: e.Duration.Milliseconds(),
				ExitCode:   e.ExitCode,
				Output:     string(s.pending.output),
			}
			if err := s.hist.Record(rec); err != nil {
				log.Printf("session %s: history record failed: %v", s.ID, err)
			}
		}
		s.pending = nil
	}
}

// Attach connects a consumer and returns its attachment plus a scrollback
// snapshot to replay. A session supports one consumer at a time.
func (s *Session) Attach() (*Attachment, []byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateClosed {
		return nil, nil, fmt.Errorf("session %s is closed", s.ID)
	}
	if s.att != nil {
		return nil, nil, fmt.Errorf("session %s is already attached", s.ID)
	}

	att := &Attachment{
		raw:    make(chan []byte, queueDepth),
		events: make(chan tracker.Event, queueDepth),
		quit:   make(chan struct{}),
	}
	s.att = att
	s.state = StateActive
	s.lastActivity = time.Now()
	return att, s.scroll.Snapshot(), nil
}

// Detach disconnects a consumer, leaving the shell running. The read loop
// closes the attachment's channels when it next touches them.
func (s *Session) Detach(att *Attachment) {
	s.mu.Lock()
	if s.att == att {
		s.att = nil
		if s.state == StateActive {
			s.state = StateDetached
		}
		s.lastActivity = time.Now()
	}
	s.mu.Unlock()
	att.signalQuit()
}

// attachment returns the current attachment, if any.
func (s *Session) attachment() *Attachment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.att
}

// dropAttachment finalizes a detached attachment from the read loop: the
// loop is the only sender on the channels, so closing them here is safe.
func (s *Session) dropAttachment(att *Attachment) {
	s.mu.Lock()
	if s.att == att {
		s.att = nil
		if s.state == StateActive {
			s.state = StateDetached
		}
	}
	s.mu.Unlock()
	close(att.raw)
	close(att.events)
}

// finish runs exactly once when the read loop exits.
func (s *Session) finish() {
	s.mu.Lock()
	s.state = StateClosed
	att := s.att
	s.att = nil
	s.mu.Unlock()

	if att != nil {
		close(att.raw)
		close(att.events)
	}

	s.pty.Close()
	s.pty.Wait()
	close(s.done)
}

// WriteInput writes client input to the shell.
func (s *Session) WriteInput(data []byte) (int, error) {
	s.mu.Lock()
	s.lastActivity = time.Now()
	s.mu.Unlock()
	return s.pty.Write(data)
}

// Run writes a command line to the shell, appending the newline that
// triggers execution. Marker emission around the command is entirely the
// shell integration hook's concern.
func (s *Session) Run(command string) error {
	_, err := s.WriteInput([]byte(command + "\n"))
	return err
}

// Resize changes the PTY geometry.
func (s *Session) Resize(cols, rows uint16) error {
	return s.pty.Resize(cols, rows)
}

// Close terminates the session: it unblocks the read loop and closes the
// PTY, which hangs up the shell.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.quit)
		s.pty.Close()
	})
}

// Done is closed once the read loop has exited and the shell is reaped.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// IsAttached reports whether a consumer is currently attached.
func (s *Session) IsAttached() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.att != nil
}

// LastActivity returns the time of the last attach, detach, or input.
func (s *Session) LastActivity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}
