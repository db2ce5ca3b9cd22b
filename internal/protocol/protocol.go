// Package protocol defines the JSON wire messages exchanged with remote
// clients over the websocket's text frames. Binary frames carry raw PTY
// bytes and have no structure beyond their payload.
package protocol

import (
	"encoding/json"
	"fmt"

	"termscribe/internal/tracker"
)

// Inbound client message types.
const (
	TypeInput  = "input"
	TypeRun    = "run"
	TypeResize = "resize"
)

// ClientMessage is an inbound control message. The Type tag selects the
// variant; unused fields are zero.
type ClientMessage struct {
	Type string `json:"type"`
	// Data is the payload for input and run messages.
	Data string `json:"data,omitempty"`
	// ID is an opaque client-side token accompanying run messages. It is
	// relayed as-is and not currently echoed back.
	ID   string `json:"id,omitempty"`
	Cols uint16 `json:"cols,omitempty"`
	Rows uint16 `json:"rows,omitempty"`
}

// DecodeClient parses an inbound text frame. Unknown message types are an
// error so the caller can drop them without acting.
func DecodeClient(data []byte) (ClientMessage, error) {
	var msg ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return ClientMessage{}, fmt.Errorf("decode client message: %w", err)
	}
	switch msg.Type {
	case TypeInput, TypeRun, TypeResize:
		return msg, nil
	default:
		return ClientMessage{}, fmt.Errorf("unknown client message type %q", msg.Type)
	}
}

// Outbound log event wire shapes.
type logStartMsg struct {
	Type string `json:"type"`
	User string `json:"user"`
	Host string `json:"host"`
	Cwd  string `json:"cwd"`
}

type logOutputMsg struct {
	Type string `json:"type"`
	Data string `json:"data"`
}

type logEndMsg struct {
	Type     string `json:"type"`
	ExitCode int    `json:"exitCode"`
}

// SessionInfo is sent once after the websocket is accepted so the client
// can reconnect to the same session later.
type SessionInfo struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
}

// EncodeSessionInfo builds the session_info frame for a session ID.
func EncodeSessionInfo(sessionID string) []byte {
	data, _ := json.Marshal(SessionInfo{Type: "session_info", SessionID: sessionID})
	return data
}

// EncodeEvent serializes a tracker event as a text frame payload. Pwd
// events have no wire representation; ok is false for them.
func EncodeEvent(ev tracker.Event) (data []byte, ok bool) {
	var msg any
	switch e := ev.(type) {
	case tracker.Start:
		msg = logStartMsg{Type: "logStart", User: e.User, Host: e.Host, Cwd: e.Cwd}
	case tracker.Output:
		msg = logOutputMsg{Type: "logOutput", Data: e.Data}
	case tracker.End:
		msg = logEndMsg{Type: "logEnd", ExitCode: e.ExitCode}
	default:
		return nil, false
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, false
	}
	return data, true
}
