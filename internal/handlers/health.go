package handlers

import "net/http"

// Health reports process liveness and database reachability.
func Health(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	code := http.StatusOK
	if History != nil {
		if err := History.Ping(); err != nil {
			status = "degraded"
			code = http.StatusServiceUnavailable
		}
	}
	writeJSON(w, code, map[string]interface{}{
		"status":   status,
		"sessions": SessionMgr.Count(),
	})
}
