// Package session issues and validates opaque login tokens.
package session

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"sync"
	"time"

	"github.com/jmendes/chatwire/internal/user"
)

// ErrNotAuthenticated is returned when a token is unknown or expired.
var ErrNotAuthenticated = errors.New("user not authenticated")

// Verifier checks a username/credential pair against the account directory.
type Verifier interface {
	Verify(username, credential string) (user.Account, error)
}

// Session maps one active token to the username it was issued to.
type Session struct {
	Token    string
	Username string
	IssuedAt time.Time
}

// Store holds active sessions keyed by token. A TTL of zero keeps tokens
// valid until process restart; a positive TTL starts a reap loop.
type Store struct {
	mu       sync.Mutex
	sessions map[string]Session
	users    Verifier
	ttl      time.Duration
}

// NewStore creates a session store backed by the given verifier.
func NewStore(users Verifier, ttl time.Duration) *Store {
	s := &Store{
		sessions: make(map[string]Session),
		users:    users,
		ttl:      ttl,
	}
	if ttl > 0 {
		go s.reapLoop()
	}
	return s
}

// Login verifies the credentials and, on success, issues a new token.
// The token carries 128 bits of entropy and is distinct from every
// currently active token.
func (s *Store) Login(username, credential string) (string, error) {
	if _, err := s.users.Verify(username, credential); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	token := generateToken()
	for {
		if _, exists := s.sessions[token]; !exists {
			break
		}
		token = generateToken()
	}
	s.sessions[token] = Session{
		Token:    token,
		Username: username,
		IssuedAt: time.Now(),
	}
	return token, nil
}

// Validate returns the username the token was issued to, or
// ErrNotAuthenticated.
func (s *Store) Validate(token string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[token]
	if !ok {
		return "", ErrNotAuthenticated
	}
	if s.ttl > 0 && time.Since(sess.IssuedAt) > s.ttl {
		delete(s.sessions, token)
		return "", ErrNotAuthenticated
	}
	return sess.Username, nil
}

// Logout removes a session. Unknown tokens are a no-op.
func (s *Store) Logout(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, token)
}

// Count returns the number of active sessions.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// reapLoop periodically removes expired sessions.
func (s *Store) reapLoop() {
	ticker := time.NewTicker(s.ttl / 2)
	defer ticker.Stop()
	for range ticker.C {
		s.reap()
	}
}

func (s *Store) reap() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for token, sess := range s.sessions {
		if now.Sub(sess.IssuedAt) > s.ttl {
			delete(s.sessions, token)
		}
	}
}

func generateToken() string {
	b := make([]byte, 16)
	rand.Read(b)
	return hex.EncodeToString(b)
}
