// Package vtparse implements a streaming recognizer for the structural layer
// of VT/ANSI escape sequences: printable bytes, C0 control bytes, CSI
// sequences, and OSC sequences with their semicolon-separated parameters.
//
// The parser does not interpret sequences; it only locates their boundaries
// so that a consumer can pick out application-defined OSC payloads while the
// surrounding stream is passed through verbatim. Sequences left unterminated
// at the end of a chunk are not errors: the automaton keeps its state and
// resumes on the next call, so a sequence split across reads is recognized
// the same as an unsplit one.
package vtparse

// Performer receives parser callbacks. Print is called for each byte of
// ordinary text, Execute for each C0 control byte outside a sequence, and
// OscDispatch when an OSC sequence completes.
//
// The params slices passed to OscDispatch are owned by the parser and are
// only valid for the duration of the call.
type Performer interface {
	Print(b byte)
	Execute(b byte)
	OscDispatch(params [][]byte, bellTerminated bool)
}

// maxOscLen bounds the bytes accumulated for a single OSC sequence. Bytes
// beyond the limit are discarded but the sequence is still consumed up to
// its terminator, keeping the parser's extra memory O(1) in stream length.
const maxOscLen = 4096

const (
	esc = 0x1b
	bel = 0x07
	del = 0x7f
)

type state uint8

const (
	stateGround state = iota
	stateEscape
	stateCsi
	stateOsc
	stateOscEscape    // saw ESC inside an OSC, expecting '\' (ST)
	stateString       // DCS/SOS/PM/APC body, skipped until its terminator
	stateStringEscape // saw ESC inside a string sequence
)

// Parser is the escape-sequence automaton. The zero value is not ready for
// use; create one with New. A Parser is not safe for concurrent use.
type Parser struct {
	state       state
	params      [][]byte
	oscLen      int
	oscOverflow bool
}

// New returns a parser in the ground state.
func New() *Parser {
	return &Parser{}
}

// Advance feeds a chunk of input through the automaton, invoking perf for
// every classified byte. It may be called any number of times with chunks
// of any size, including mid-sequence splits.
func (p *Parser) Advance(perf Performer, data []byte) {
	for _, b := range data {
		p.step(perf, b)
	}
}

func (p *Parser) step(perf Performer, b byte) {
	switch p.state {
	case stateGround:
		switch {
		case b == esc:
			p.state = stateEscape
		case b < 0x20:
			perf.Execute(b)
		case b == del:
			// DEL is neither printable nor an executable control.
		default:
			perf.Print(b)
		}

	case stateEscape:
		switch b {
		case '[':
			p.state = stateCsi
		case ']':
			p.startOsc()
		case 'P', 'X', '^', '_': // DCS, SOS, PM, APC
			p.state = stateString
		case esc:
			// Repeated ESC restarts the escape.
		default:
			// Two-byte escape (ESC c, ESC 7, ...): structurally complete.
			p.state = stateGround
		}

	case stateCsi:
		switch {
		case b == esc:
			p.state = stateEscape
		case b >= 0x40 && b <= 0x7e:
			// Final byte ends the sequence. Not semantically interpreted.
			p.state = stateGround
		case b < 0x20:
			// C0 controls execute even inside a CSI sequence.
			perf.Execute(b)
		default:
			// Parameter or intermediate byte, or DEL: consumed.
		}

	case stateOsc:
		switch {
		case b == bel:
			p.dispatchOsc(perf, true)
		case b == esc:
			p.state = stateOscEscape
		case b == ';':
			if !p.oscOverflow {
				p.params = append(p.params, nil)
			}
		case b < 0x20:
			// Stray control byte inside an OSC payload: ignored.
		default:
			p.pushOscByte(b)
		}

	case stateOscEscape:
		if b == '\\' {
			p.dispatchOsc(perf, false)
		} else {
			// ESC not followed by ST abandons the OSC; the ESC itself
			// starts a new sequence.
			p.state = stateEscape
			p.step(perf, b)
		}

	case stateString:
		switch b {
		case esc:
			p.state = stateStringEscape
		case bel:
			p.state = stateGround
		}

	case stateStringEscape:
		if b == '\\' {
			p.state = stateGround
		} else {
			p.state = stateEscape
			p.step(perf, b)
		}
	}
}

func (p *Parser) startOsc() {
	p.state = stateOsc
	p.params = p.params[:0]
	p.params = append(p.params, nil)
	p.oscLen = 0
	p.oscOverflow = false
}

func (p *Parser) pushOscByte(b byte) {
	if p.oscOverflow {
		return
	}
	if p.oscLen >= maxOscLen {
		p.oscOverflow = true
		return
	}
	last := len(p.params) - 1
	p.params[last] = append(p.params[last], b)
	p.oscLen++
}

func (p *Parser) dispatchOsc(perf Performer, bellTerminated bool) {
	p.state = stateGround
	perf.OscDispatch(p.params, bellTerminated)
}
