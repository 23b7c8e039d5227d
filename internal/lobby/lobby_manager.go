// internal/lobby/lobby_manager.go
package lobby

import (
	"sync"
	"time"
)

// session serializes every mutation of one lobby and owns its timers.
// countdown and timeout are guarded by mu.
type session struct {
	mu   sync.Mutex
	refs int // guarded by sessionManager.mu

	countdown *time.Timer
	timeout   *time.Timer
}

// stopTimers cancels any pending countdown tick or timeout check. Assumes mu is held.
func (s *session) stopTimers() {
	if s.countdown != nil {
		s.countdown.Stop()
		s.countdown = nil
	}
	if s.timeout != nil {
		s.timeout.Stop()
		s.timeout = nil
	}
}

func (s *session) idle() bool {
	return s.refs == 0 && s.countdown == nil && s.timeout == nil
}

// sessionManager hands out one session per lobby code. Sessions are reference
// counted and dropped once nobody holds them and no timer is armed.
type sessionManager struct {
	mu       sync.Mutex
	sessions map[string]*session
}

func newSessionManager() *sessionManager {
	return &sessionManager{sessions: make(map[string]*session)}
}

// acquire returns the session for code with its lock held.
func (m *sessionManager) acquire(code string) *session {
	m.mu.Lock()
	s, ok := m.sessions[code]
	if !ok {
		s = &session{}
		m.sessions[code] = s
	}
	s.refs++
	m.mu.Unlock()

	s.mu.Lock()
	return s
}

// release unlocks a session obtained from acquire.
func (m *sessionManager) release(code string, s *session) {
	s.mu.Unlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	s.refs--
	if s.idle() && m.sessions[code] == s {
		delete(m.sessions, code)
	}
}

// stopAll cancels every armed timer. Used on shutdown.
func (m *sessionManager) stopAll() {
	m.mu.Lock()
	codes := make([]string, 0, len(m.sessions))
	for code := range m.sessions {
		codes = append(codes, code)
	}
	m.mu.Unlock()

	for _, code := range codes {
		s := m.acquire(code)
		s.stopTimers()
		m.release(code, s)
	}
}

func (m *sessionManager) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
