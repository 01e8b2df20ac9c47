package chat

import (
	"sync"
)

// SessionTable is the registry of active sessions keyed by user id.
type SessionTable struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewSessionTable creates an empty session table.
func NewSessionTable() *SessionTable {
	return &SessionTable{
		sessions: make(map[string]*Session),
	}
}

// Add registers a session. When the user id is already connected the newer
// session supersedes the older one, which is returned so the caller can
// notify and close it.
func (t *SessionTable) Add(s *Session) (superseded *Session) {
	t.mu.Lock()
	defer t.mu.Unlock()

	superseded = t.sessions[s.UserID]
	t.sessions[s.UserID] = s
	return superseded
}

// Remove drops the session from the table. Only the exact instance is
// removed, so a superseded session cannot evict its replacement.
func (t *SessionTable) Remove(s *Session) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if current, ok := t.sessions[s.UserID]; ok && current == s {
		delete(t.sessions, s.UserID)
		return true
	}
	return false
}

// Get returns the active session for a user id.
func (t *SessionTable) Get(userID string) (*Session, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, ok := t.sessions[userID]
	return s, ok
}

// PushToUser enqueues a message on the user's outbound queue. Pushing to an
// absent user is a no-op; the return value reports delivery.
func (t *SessionTable) PushToUser(userID string, msg Message) bool {
	t.mu.RLock()
	s, ok := t.sessions[userID]
	t.mu.RUnlock()

	if !ok {
		return false
	}
	return s.Push(msg)
}

// Snapshot returns the current set of sessions.
func (t *SessionTable) Snapshot() []*Session {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]*Session, 0, len(t.sessions))
	for _, s := range t.sessions {
		out = append(out, s)
	}
	return out
}

// Len reports the number of active sessions.
func (t *SessionTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.sessions)
}
