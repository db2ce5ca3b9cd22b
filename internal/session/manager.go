package session

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"termscribe/internal/history"
	"termscribe/internal/ptyhost"
)

// ManagerConfig carries the per-session defaults the manager applies.
type ManagerConfig struct {
	Shell             string
	IntegrationScript string
	ScrollbackBytes   int
	// Linger is how long a detached session stays alive before cleanup.
	// Zero means sessions are closed as soon as their consumer detaches.
	Linger time.Duration
	// History, when non-nil, receives completed command records from
	// every session.
	History *history.Store
}

// Manager tracks all live sessions. Sessions are independently
// instantiable; nothing here is process-global.
type Manager struct {
	cfg ManagerConfig

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager creates an empty session manager.
func NewManager(cfg ManagerConfig) *Manager {
	return &Manager{
		cfg:      cfg,
		sessions: make(map[string]*Session),
	}
}

// Linger reports the detached-session grace period.
func (m *Manager) Linger() time.Duration {
	return m.cfg.Linger
}

// CreateSession spawns a new shell session with the manager's defaults and
// the given geometry.
func (m *Manager) CreateSession(size ptyhost.Size) (*Session, error) {
	id := uuid.New().String()
	s, err := Start(id, Config{
		Shell:             m.cfg.Shell,
		IntegrationScript: m.cfg.IntegrationScript,
		Size:              size,
		ScrollbackBytes:   m.cfg.ScrollbackBytes,
		History:           m.cfg.History,
	})
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	m.mu.Lock()
	m.sessions[id] = s
	m.mu.Unlock()

	log.Printf("session %s created", id)
	return s, nil
}

// Get returns a session by ID, or nil.
func (m *Manager) Get(id string) *Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sessions[id]
}

// List returns all tracked sessions.
func (m *Manager) List() []*Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	return out
}

// Close terminates one session and removes it.
func (m *Manager) Close(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("session %q not found", id)
	}
	s.Close()
	log.Printf("session %s closed", id)
	return nil
}

// CloseAll terminates every session. Used at server shutdown.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
}

// CleanupIdle closes detached sessions idle longer than the linger window
// and drops closed sessions from the registry. Returns how many sessions
// were reaped. Scheduled periodically by the server.
func (m *Manager) CleanupIdle() int {
	m.mu.Lock()
	var stale []*Session
	cutoff := time.Now().Add(-m.cfg.Linger)
	for id, s := range m.sessions {
		switch s.State() {
		case StateClosed:
			delete(m.sessions, id)
		case StateDetached:
			if m.cfg.Linger > 0 && s.LastActivity().Before(cutoff) {
				stale = append(stale, s)
				delete(m.sessions, id)
			}
		}
	}
	m.mu.Unlock()

	for _, s := range stale {
		log.Printf("session %s reaped (detached since %s)",
			s.ID, s.LastActivity().Format(time.RFC3339))
		s.Close()
	}
	return len(stale)
}

// Count returns the number of tracked sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
