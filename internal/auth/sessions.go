package auth

import (
	"sync"
	"time"

	"carillon/internal/idgen"
)

// DefaultSessionTTL matches a school day with margin.
const DefaultSessionTTL = 12 * time.Hour

// Session is an authenticated browser session.
type Session struct {
	Username  string
	CreatedAt time.Time
}

// SessionManager keeps sessions in memory. Sessions do not survive a restart,
// which forces a fresh login after deployments.
type SessionManager struct {
	mu       sync.RWMutex
	sessions map[string]Session
	ttl      time.Duration
	now      func() time.Time
}

// NewSessionManager creates a session manager; ttl <= 0 uses the default.
func NewSessionManager(ttl time.Duration) *SessionManager {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &SessionManager{
		sessions: make(map[string]Session),
		ttl:      ttl,
		now:      time.Now,
	}
}

// Create issues a new session token for the user.
func (m *SessionManager) Create(username string) string {
	token := idgen.NewSession()
	m.mu.Lock()
	m.sessions[token] = Session{Username: username, CreatedAt: m.now()}
	m.mu.Unlock()
	return token
}

// Lookup resolves a token to a username. Expired sessions are dropped.
func (m *SessionManager) Lookup(token string) (string, bool) {
	m.mu.RLock()
	sess, ok := m.sessions[token]
	m.mu.RUnlock()
	if !ok {
		return "", false
	}
	if m.now().Sub(sess.CreatedAt) > m.ttl {
		m.Destroy(token)
		return "", false
	}
	return sess.Username, true
}

// Destroy removes a session token.
func (m *SessionManager) Destroy(token string) {
	m.mu.Lock()
	delete(m.sessions, token)
	m.mu.Unlock()
}

// DestroyUser removes every session belonging to a user, for when the user
// is deleted or their password changes.
func (m *SessionManager) DestroyUser(username string) {
	m.mu.Lock()
	for token, sess := range m.sessions {
		if sess.Username == username {
			delete(m.sessions, token)
		}
	}
	m.mu.Unlock()
}
