package session

import "sync"

// defaultScrollbackBytes is the default scrollback capacity (1 MB).
const defaultScrollbackBytes = 1024 * 1024

// scrollback is a thread-safe byte buffer holding recent raw PTY output for
// replay when a client attaches to an already-running session. When the
// buffer exceeds its capacity, older data is trimmed from the front.
type scrollback struct {
	mu     sync.Mutex
	data   []byte
	maxLen int
}

func newScrollback(maxLen int) *scrollback {
	if maxLen <= 0 {
		maxLen = defaultScrollbackBytes
	}
	return &scrollback{maxLen: maxLen}
}

func (s *scrollback) Write(p []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = append(s.data, p...)
	if len(s.data) > s.maxLen {
		s.data = s.data[len(s.data)-s.maxLen:]
	}
}

// Snapshot returns a copy of the current contents.
func (s *scrollback) Snapshot() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]byte, len(s.data))
	copy(out, s.data)
	return out
}

func (s *scrollback) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data)
}
