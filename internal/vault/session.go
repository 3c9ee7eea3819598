package vault

import (
	"sync"
	"time"
)

// SessionStore caches, per authenticated session (access-token ID), whether
// a recent OTP challenge succeeded. Keying by session rather than user keeps
// one device's verification from opening the window on the user's other
// logins. The cache is ephemeral by design: JWT auth is stateless, the audit
// log is the durable record, and this map only answers "has this caller
// recently passed the challenge". Entries expire after the session window
// regardless of whether the underlying code is still valid.
type SessionStore struct {
	mu         sync.Mutex
	verifiedAt map[string]time.Time
	ttl        time.Duration
	now        func() time.Time
}

// NewSessionStore creates a session store with the configured verification window.
func NewSessionStore(ttl time.Duration) *SessionStore {
	return &SessionStore{
		verifiedAt: make(map[string]time.Time),
		ttl:        ttl,
		now:        time.Now,
	}
}

// MarkVerified records a successful OTP check for the session with a fresh
// verification timestamp.
func (s *SessionStore) MarkVerified(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.verifiedAt[sessionID] = s.now()
}

// Verified reports whether the session currently holds a valid verification.
// A lapsed entry is dropped on the spot, so the flag can only become true
// again through another successful OTP check.
func (s *SessionStore) Verified(sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	at, ok := s.verifiedAt[sessionID]
	if !ok {
		return false
	}
	if s.now().Sub(at) >= s.ttl {
		delete(s.verifiedAt, sessionID)
		return false
	}
	return true
}

// Clear drops the session's verification, if any. Called on logout.
func (s *SessionStore) Clear(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.verifiedAt, sessionID)
}
