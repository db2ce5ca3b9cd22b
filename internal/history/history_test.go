package history

import (
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRecordAndQuery(t *testing.T) {
	s := openTestStore(t)

	cmds := []Command{
		{SessionID: "s1", Command: "ls", Cwd: "/tmp", ExitCode: 0, Output: "file1\n", StartedAt: time.Now(), DurationMS: 12},
		{SessionID: "s1", Command: "make test", Cwd: "/tmp", ExitCode: 2, Output: "FAIL\n", StartedAt: time.Now(), DurationMS: 900},
		{SessionID: "s2", Command: "pwd", Cwd: "/home", ExitCode: 0, Output: "/home\n", StartedAt: time.Now(), DurationMS: 3},
	}
	for _, c := range cmds {
		if err := s.Record(c); err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	got, err := s.BySession("s1", 10)
	if err != nil {
		t.Fatalf("by session: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("session s1 records = %d, want 2", len(got))
	}
	// Newest first.
	if got[0].Command != "make test" || got[1].Command != "ls" {
		t.Errorf("order = [%s, %s], want [make test, ls]", got[0].Command, got[1].Command)
	}
	if got[0].ExitCode != 2 {
		t.Errorf("exit code = %d, want 2", got[0].ExitCode)
	}

	all, err := s.Recent(10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("recent records = %d, want 3", len(all))
	}
}

func TestRecordTruncatesOutput(t *testing.T) {
	s := openTestStore(t)

	huge := strings.Repeat("x", maxStoredOutput+1000)
	if err := s.Record(Command{SessionID: "s1", Command: "cat big", Output: huge}); err != nil {
		t.Fatalf("record: %v", err)
	}

	got, err := s.BySession("s1", 1)
	if err != nil {
		t.Fatalf("by session: %v", err)
	}
	if len(got[0].Output) != maxStoredOutput {
		t.Errorf("stored output = %d bytes, want %d", len(got[0].Output), maxStoredOutput)
	}
}

func TestPrune(t *testing.T) {
	s := openTestStore(t)

	old := Command{SessionID: "s1", Command: "old"}
	if err := s.db.Create(&old).Error; err != nil {
		t.Fatalf("create: %v", err)
	}
	// Backdate the record past the retention window.
	cutoff := time.Now().Add(-48 * time.Hour)
	if err := s.db.Model(&Command{}).Where("id = ?", old.ID).Update("created_at", cutoff).Error; err != nil {
		t.Fatalf("backdate: %v", err)
	}
	if err := s.Record(Command{SessionID: "s1", Command: "new"}); err != nil {
		t.Fatalf("record: %v", err)
	}

	n, err := s.Prune(24 * time.Hour)
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if n != 1 {
		t.Errorf("pruned = %d, want 1", n)
	}

	left, err := s.Recent(10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(left) != 1 || left[0].Command != "new" {
		t.Errorf("remaining = %v, want only the new record", left)
	}
}

func TestPing(t *testing.T) {
	s := openTestStore(t)
	if err := s.Ping(); err != nil {
		t.Errorf("ping: %v", err)
	}
}
