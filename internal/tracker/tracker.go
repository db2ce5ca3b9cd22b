// Package tracker turns the private OSC marker channel emitted by the
// shell integration hook into structured command lifecycle events.
//
// The shell-side hook brackets every executed command with OSC sequences on
// channel 6973: START (optionally carrying the command text), END with the
// exit code, and PWD for working-directory changes. The tracker consumes
// the parser's callbacks, accumulates command output while a command is in
// flight, and emits Start/Output/End/Pwd events to a sink. All protocol
// irregularities (stray END, missing exit code, repeated START) are
// recovered locally and never abort the session.
package tracker

import (
	"os"
	"os/user"
	"strconv"
	"strings"
	"time"
)

// MarkerChannel is the private OSC identifier agreed between the shell
// integration script and this tracker. OSC sequences whose first parameter
// differs are ignored.
const MarkerChannel = "6973"

// Marker sub-event names (second OSC parameter).
const (
	markerStart = "START"
	markerEnd   = "END"
	markerPwd   = "PWD"
)

// Event is a command lifecycle event. The concrete types are Start, Output,
// End, and Pwd.
type Event interface {
	event()
}

// Start marks the beginning of a captured command.
type Start struct {
	Command string // literal command text; empty if the hook omitted it
	User    string
	Host    string
	Cwd     string
}

// Output carries a flushed slice of captured command output. One command
// may produce any number of Output events; the final one is always emitted
// before the matching End.
type Output struct {
	Data string
}

// End marks command completion.
type End struct {
	ExitCode int
	Duration time.Duration
}

// Pwd reports a working-directory change. Informational; it does not affect
// capture state.
type Pwd struct {
	Path string
}

func (Start) event()  {}
func (Output) event() {}
func (End) event()    {}
func (Pwd) event()    {}

// Sink consumes tracker events. Emit reports whether the consumer is still
// present; once it returns false the tracker silently stops emitting, which
// leaves the raw byte relay unaffected.
type Sink interface {
	Emit(Event) bool
}

// Tracker is the command boundary state machine. It implements
// vtparse.Performer; wire it as the performer for the session's parser.
// Not safe for concurrent use: all methods must be called from the single
// goroutine that drives the parser.
type Tracker struct {
	sink Sink
	user string
	host string
	cwd  string

	capturing bool
	command   string
	startedAt time.Time
	buf       []byte

	gone bool
	now  func() time.Time
}

// New creates a tracker emitting to sink. User, host, and the initial
// working directory are taken from the environment; the cwd is updated by
// PWD markers thereafter.
func New(sink Sink) *Tracker {
	t := &Tracker{sink: sink, now: time.Now}
	if u, err := user.Current(); err == nil {
		t.user = u.Username
	}
	if h, err := os.Hostname(); err == nil {
		t.host = h
	}
	if wd, err := os.Getwd(); err == nil {
		t.cwd = wd
	}
	return t
}

// Print appends a printable byte to the capture buffer while a command is
// in flight.
func (t *Tracker) Print(b byte) {
	if t.capturing {
		t.buf = append(t.buf, b)
	}
}

// Execute handles control bytes: newline and tab are kept so captured text
// stays readable, carriage return and the rest are display artifacts and
// are dropped.
func (t *Tracker) Execute(b byte) {
	if !t.capturing {
		return
	}
	switch b {
	case '\n', '\t':
		t.buf = append(t.buf, b)
	}
}

// OscDispatch routes completed OSC sequences. Sequences not on the marker
// channel, or with an unknown sub-event, are ignored.
func (t *Tracker) OscDispatch(params [][]byte, _ bool) {
	if len(params) < 2 || string(params[0]) != MarkerChannel {
		return
	}

	switch string(params[1]) {
	case markerStart:
		// A START while already capturing silently replaces the current
		// command record.
		t.buf = t.buf[:0]
		t.capturing = true
		t.startedAt = t.now()
		t.command = ""
		if len(params) >= 3 {
			t.command = string(params[2])
		}
		t.emit(Start{Command: t.command, User: t.user, Host: t.host, Cwd: t.cwd})

	case markerEnd:
		if !t.capturing {
			return // stray END with no prior START: safe no-op
		}
		t.Flush()
		code := 0
		if len(params) >= 3 {
			if n, err := strconv.Atoi(string(params[2])); err == nil {
				code = n
			}
		}
		t.emit(End{ExitCode: code, Duration: t.now().Sub(t.startedAt)})
		t.capturing = false
		t.buf = t.buf[:0]

	case markerPwd:
		if len(params) >= 3 && len(params[2]) > 0 {
			t.cwd = string(params[2])
			t.emit(Pwd{Path: t.cwd})
		}
	}
}

// Flush emits the buffered captured output as an Output event. Called by
// the session loop after each processed chunk so consumers see near-real-
// time partial output. Flushing an empty buffer is a no-op.
func (t *Tracker) Flush() {
	if len(t.buf) == 0 {
		return
	}
	// Captured bytes may split multi-byte runes at chunk boundaries or
	// contain binary garbage; substitute rather than fail.
	data := strings.ToValidUTF8(string(t.buf), "�")
	t.buf = t.buf[:0]
	t.emit(Output{Data: data})
}

// Capturing reports whether a command is currently in flight.
func (t *Tracker) Capturing() bool {
	return t.capturing
}

func (t *Tracker) emit(ev Event) {
	if t.gone {
		return
	}
	if !t.sink.Emit(ev) {
		t.gone = true
	}
}
