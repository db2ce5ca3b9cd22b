// Package history persists completed command records to SQLite so past
// sessions can be inspected after the shells that produced them are gone.
package history

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// maxStoredOutput bounds the captured output persisted per command. Longer
// output is truncated; the live stream to clients is unaffected.
const maxStoredOutput = 64 * 1024

// Command is one completed command lifecycle record.
type Command struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	SessionID string    `gorm:"index" json:"session_id"`
	Command   string    `json:"command"`
	Cwd       string    `json:"cwd"`
	StartedAt time.Time `json:"started_at"`
	// DurationMS is the wall-clock duration in milliseconds.
	DurationMS int64     `json:"duration_ms"`
	ExitCode   int       `json:"exit_code"`
	Output     string    `json:"output"`
	CreatedAt  time.Time `json:"created_at"`
}

// Store is a command history database. Safe for concurrent use.
type Store struct {
	db *gorm.DB
}

// Open creates or opens the history database at path and migrates the
// schema.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create history directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB: %w", err)
	}
	if _, err := sqlDB.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if err := db.AutoMigrate(&Command{}); err != nil {
		return nil, fmt.Errorf("auto-migrate: %w", err)
	}

	return &Store{db: db}, nil
}

// Record inserts a completed command. Output beyond maxStoredOutput bytes
// is truncated.
func (s *Store) Record(cmd Command) error {
	if len(cmd.Output) > maxStoredOutput {
		cmd.Output = cmd.Output[:maxStoredOutput]
	}
	if err := s.db.Create(&cmd).Error; err != nil {
		return fmt.Errorf("record command: %w", err)
	}
	return nil
}

// BySession returns the most recent commands for one session, newest first.
func (s *Store) BySession(sessionID string, limit int) ([]Command, error) {
	if limit <= 0 {
		limit = 100
	}
	var cmds []Command
	err := s.db.Where("session_id = ?", sessionID).
		Order("id DESC").Limit(limit).Find(&cmds).Error
	if err != nil {
		return nil, fmt.Errorf("query session history: %w", err)
	}
	return cmds, nil
}

// Recent returns the most recent commands across all sessions, newest first.
func (s *Store) Recent(limit int) ([]Command, error) {
	if limit <= 0 {
		limit = 100
	}
	var cmds []Command
	if err := s.db.Order("id DESC").Limit(limit).Find(&cmds).Error; err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	return cmds, nil
}

// Prune deletes records older than the retention window and returns how
// many were removed.
func (s *Store) Prune(retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention)
	res := s.db.Where("created_at < ?", cutoff).Delete(&Command{})
	if res.Error != nil {
		return 0, fmt.Errorf("prune history: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// Ping reports whether the underlying database is reachable.
func (s *Store) Ping() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

// Close closes the underlying database.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
