package handlers

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"termscribe/internal/history"
	"termscribe/internal/ptyhost"
)

func TestHealthEndpoint(t *testing.T) {
	srv := setupTestServer(t, 0)

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("get health: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}

	var body struct {
		Status   string `json:"status"`
		Sessions int    `json:"sessions"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != "ok" {
		t.Errorf("status = %q", body.Status)
	}
}

func TestListAndCloseSessions(t *testing.T) {
	srv := setupTestServer(t, 0)

	s, err := SessionMgr.CreateSession(ptyhost.DefaultSize)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	resp, err := http.Get(srv.URL + "/api/sessions")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	defer resp.Body.Close()

	var list struct {
		Sessions []sessionResponse `json:"sessions"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(list.Sessions) != 1 || list.Sessions[0].ID != s.ID {
		t.Fatalf("sessions = %+v", list.Sessions)
	}
	if list.Sessions[0].Attached {
		t.Error("fresh session reported attached")
	}

	req, _ := http.NewRequest(http.MethodDelete, srv.URL+"/api/sessions/"+s.ID, nil)
	delResp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("close: %v", err)
	}
	delResp.Body.Close()
	if delResp.StatusCode != http.StatusOK {
		t.Errorf("close status = %d", delResp.StatusCode)
	}

	select {
	case <-s.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("session did not terminate")
	}

	req, _ = http.NewRequest(http.MethodDelete, srv.URL+"/api/sessions/"+s.ID, nil)
	delResp, _ = http.DefaultClient.Do(req)
	delResp.Body.Close()
	if delResp.StatusCode != http.StatusNotFound {
		t.Errorf("second close status = %d, want 404", delResp.StatusCode)
	}
}

func TestHistoryEndpoints(t *testing.T) {
	srv := setupTestServer(t, 0)

	records := []history.Command{
		{SessionID: "sess-a", Command: "ls", ExitCode: 0, StartedAt: time.Now()},
		{SessionID: "sess-a", Command: "make", ExitCode: 2, StartedAt: time.Now()},
		{SessionID: "sess-b", Command: "pwd", ExitCode: 0, StartedAt: time.Now()},
	}
	for _, rec := range records {
		if err := History.Record(rec); err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	resp, err := http.Get(srv.URL + "/api/sessions/sess-a/history")
	if err != nil {
		t.Fatalf("session history: %v", err)
	}
	defer resp.Body.Close()

	var bySession struct {
		Commands []history.Command `json:"commands"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&bySession); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(bySession.Commands) != 2 {
		t.Fatalf("got %d commands, want 2", len(bySession.Commands))
	}
	// Newest first.
	if bySession.Commands[0].Command != "make" || bySession.Commands[1].Command != "ls" {
		t.Errorf("commands = %+v", bySession.Commands)
	}

	resp2, err := http.Get(srv.URL + "/api/history?limit=2")
	if err != nil {
		t.Fatalf("recent history: %v", err)
	}
	defer resp2.Body.Close()

	var recent struct {
		Commands []history.Command `json:"commands"`
	}
	if err := json.NewDecoder(resp2.Body).Decode(&recent); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(recent.Commands) != 2 {
		t.Fatalf("got %d commands, want 2", len(recent.Commands))
	}
	if recent.Commands[0].Command != "pwd" {
		t.Errorf("recent[0] = %+v", recent.Commands[0])
	}
}
