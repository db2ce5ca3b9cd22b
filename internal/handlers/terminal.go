package handlers

import (
	"context"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/coder/websocket"

	"termscribe/internal/history"
	"termscribe/internal/protocol"
	"termscribe/internal/ptyhost"
	"termscribe/internal/session"
)

// terminalRateLimit defines the maximum number of messages allowed per second
// per WebSocket connection. Messages beyond this rate are dropped.
const terminalRateLimit = 200

// terminalRateBurst is the token bucket burst size, allowing short bursts
// of rapid input (e.g., paste operations) before rate limiting kicks in.
const terminalRateBurst = 200

// maxInputBytes is the per-message input size limit.
const maxInputBytes = 64 * 1024

// Resize dimensions beyond these are clamped.
const (
	maxResizeCols = 500
	maxResizeRows = 500
)

// SessionMgr and History are set from main.go during init.
var (
	SessionMgr *session.Manager
	History    *history.Store
)

// TerminalWS handles WebSocket connections for interactive shell sessions.
//
// Query parameters:
//   - session_id: (optional) reconnect to an existing detached session. If
//     omitted or the referenced session doesn't exist, a new session is
//     created.
//   - cols, rows: (optional) initial terminal geometry for new sessions.
//
// Outbound binary frames carry raw PTY bytes; outbound text frames carry
// JSON command events (logStart/logOutput/logEnd) plus one session_info
// frame after accept. Inbound text frames carry input/run/resize messages.
func TerminalWS(w http.ResponseWriter, r *http.Request) {
	clientConn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		log.Printf("Failed to accept terminal websocket: %v", err)
		return
	}
	defer clientConn.CloseNow()

	ctx := r.Context()

	s, err := resolveSession(r)
	if err != nil {
		clientConn.Close(4500, "Failed to start shell")
		return
	}
	if s == nil {
		clientConn.Close(4409, "Session already attached")
		return
	}

	clientConn.SetReadLimit(1024 * 1024)

	// Send session ID to client so it can reconnect later
	if err := clientConn.Write(ctx, websocket.MessageText, protocol.EncodeSessionInfo(s.ID)); err != nil {
		return
	}

	att, replay, err := s.Attach()
	if err != nil {
		log.Printf("Terminal attach failed: session=%s: %v", s.ID, err)
		clientConn.Close(4409, "Session already attached")
		return
	}
	defer func() {
		if SessionMgr.Linger() > 0 {
			s.Detach(att)
			log.Printf("Terminal session detached: session=%s", s.ID)
		} else {
			s.Close()
			log.Printf("Terminal session closed: session=%s", s.ID)
		}
	}()

	if len(replay) > 0 {
		if err := clientConn.Write(ctx, websocket.MessageBinary, replay); err != nil {
			return
		}
	}

	relayCtx, relayCancel := context.WithCancel(ctx)
	defer relayCancel()

	// Shell -> Browser: raw bytes as binary frames, command events as text.
	go func() {
		defer relayCancel()
		rawCh := att.Raw()
		evCh := att.Events()
		for rawCh != nil || evCh != nil {
			select {
			case chunk, ok := <-rawCh:
				if !ok {
					rawCh = nil
					continue
				}
				if err := clientConn.Write(relayCtx, websocket.MessageBinary, chunk); err != nil {
					return
				}
			case ev, ok := <-evCh:
				if !ok {
					evCh = nil
					continue
				}
				frame, ok := protocol.EncodeEvent(ev)
				if !ok {
					continue
				}
				if err := clientConn.Write(relayCtx, websocket.MessageText, frame); err != nil {
					return
				}
			case <-relayCtx.Done():
				return
			}
		}
	}()

	// Rate limiter for this connection
	limiter := newTokenBucket(terminalRateBurst, terminalRateLimit)

	// Browser -> Shell stdin
	func() {
		defer relayCancel()
		for {
			msgType, data, err := clientConn.Read(relayCtx)
			if err != nil {
				return
			}
			if msgType != websocket.MessageText {
				continue
			}

			// Rate limit: drop messages that exceed the allowed rate
			if !limiter.allow() {
				continue
			}

			msg, err := protocol.DecodeClient(data)
			if err != nil {
				continue
			}
			switch msg.Type {
			case protocol.TypeInput:
				if len(msg.Data) > maxInputBytes {
					log.Printf("Terminal input message too large: session=%s size=%d limit=%d", s.ID, len(msg.Data), maxInputBytes)
					continue
				}
				if _, err := s.WriteInput([]byte(msg.Data)); err != nil {
					return
				}
			case protocol.TypeRun:
				if len(msg.Data) > maxInputBytes {
					continue
				}
				if err := s.Run(msg.Data); err != nil {
					return
				}
			case protocol.TypeResize:
				if msg.Cols > 0 && msg.Rows > 0 {
					cols := msg.Cols
					rows := msg.Rows
					if cols > maxResizeCols {
						cols = maxResizeCols
					}
					if rows > maxResizeRows {
						rows = maxResizeRows
					}
					s.Resize(cols, rows)
				}
			}
		}
	}()

	clientConn.Close(websocket.StatusNormalClosure, "")
}

// resolveSession finds the reconnect target or creates a fresh session.
// A nil session with nil error means the target exists but is busy.
func resolveSession(r *http.Request) (*session.Session, error) {
	if sessionID := r.URL.Query().Get("session_id"); sessionID != "" {
		if s := SessionMgr.Get(sessionID); s != nil && s.State() != session.StateClosed {
			if s.IsAttached() {
				return nil, nil
			}
			log.Printf("Terminal session reconnected: session=%s", s.ID)
			return s, nil
		}
	}

	size := ptyhost.DefaultSize
	if cols, err := strconv.Atoi(r.URL.Query().Get("cols")); err == nil && cols > 0 && cols <= maxResizeCols {
		size.Cols = uint16(cols)
	}
	if rows, err := strconv.Atoi(r.URL.Query().Get("rows")); err == nil && rows > 0 && rows <= maxResizeRows {
		size.Rows = uint16(rows)
	}
	s, err := SessionMgr.CreateSession(size)
	if err != nil {
		log.Printf("Terminal session creation failed: %v", err)
		return nil, err
	}
	return s, nil
}

// tokenBucket implements a simple token bucket rate limiter for terminal messages.
type tokenBucket struct {
	tokens     int
	maxTokens  int
	refillRate int // tokens added per second
	lastRefill time.Time
}

func newTokenBucket(maxTokens, refillRate int) *tokenBucket {
	return &tokenBucket{
		tokens:     maxTokens,
		maxTokens:  maxTokens,
		refillRate: refillRate,
		lastRefill: time.Now(),
	}
}

// allow checks if a message is allowed and consumes a token.
func (tb *tokenBucket) allow() bool {
	now := time.Now()
	elapsed := now.Sub(tb.lastRefill)
	tb.lastRefill = now

	// Refill tokens based on elapsed time
	tb.tokens += int(elapsed.Seconds() * float64(tb.refillRate))
	if tb.tokens > tb.maxTokens {
		tb.tokens = tb.maxTokens
	}

	if tb.tokens <= 0 {
		return false
	}
	tb.tokens--
	return true
}
