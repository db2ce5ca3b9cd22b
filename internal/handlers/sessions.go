package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

type sessionResponse struct {
	ID           string `json:"id"`
	State        string `json:"state"`
	Attached     bool   `json:"attached"`
	CreatedAt    string `json:"created_at"`
	LastActivity string `json:"last_activity"`
}

const timeLayout = "2006-01-02T15:04:05Z"

// ListSessions returns all live sessions.
func ListSessions(w http.ResponseWriter, r *http.Request) {
	sessions := SessionMgr.List()

	resp := make([]sessionResponse, len(sessions))
	for i, s := range sessions {
		resp[i] = sessionResponse{
			ID:           s.ID,
			State:        string(s.State()),
			Attached:     s.IsAttached(),
			CreatedAt:    s.CreatedAt.UTC().Format(timeLayout),
			LastActivity: s.LastActivity().UTC().Format(timeLayout),
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"sessions": resp,
	})
}

// CloseSession terminates a specific session.
func CloseSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionId")
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, "Session ID required")
		return
	}

	if err := SessionMgr.Close(sessionID); err != nil {
		writeError(w, http.StatusNotFound, "Session not found")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "closed"})
}

// SessionHistory returns the recorded commands of one session, newest first.
func SessionHistory(w http.ResponseWriter, r *http.Request) {
	if History == nil {
		writeError(w, http.StatusServiceUnavailable, "History store not initialized")
		return
	}

	sessionID := chi.URLParam(r, "sessionId")
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, "Session ID required")
		return
	}

	cmds, err := History.BySession(sessionID, queryLimit(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to query history")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"commands": cmds,
	})
}

// RecentHistory returns recently recorded commands across all sessions,
// newest first.
func RecentHistory(w http.ResponseWriter, r *http.Request) {
	if History == nil {
		writeError(w, http.StatusServiceUnavailable, "History store not initialized")
		return
	}

	cmds, err := History.Recent(queryLimit(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to query history")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"commands": cmds,
	})
}

// queryLimit parses the optional ?limit= parameter, capped at 1000.
func queryLimit(r *http.Request) int {
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		return 0 // store default
	}
	if limit > 1000 {
		return 1000
	}
	return limit
}
