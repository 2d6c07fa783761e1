package auth

import (
	"context"
	"sync"
	"time"
)

// InMemorySessionStore keeps refresh sessions in process memory, indexed by user so an
// account can be signed out everywhere. Sessions are lost on restart.
type InMemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]Session
	byUser   map[string]map[string]struct{}
}

// NewInMemorySessionStore returns an empty store.
func NewInMemorySessionStore() *InMemorySessionStore {
	return &InMemorySessionStore{
		sessions: make(map[string]Session),
		byUser:   make(map[string]map[string]struct{}),
	}
}

func (s *InMemorySessionStore) Save(_ context.Context, session Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.sessions[session.RefreshToken]; ok {
		s.unindex(old)
	}
	s.sessions[session.RefreshToken] = session
	tokens := s.byUser[session.UserID]
	if tokens == nil {
		tokens = make(map[string]struct{})
		s.byUser[session.UserID] = tokens
	}
	tokens[session.RefreshToken] = struct{}{}
	return nil
}

func (s *InMemorySessionStore) Find(_ context.Context, refreshToken string) (Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[refreshToken]
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	return session, nil
}

func (s *InMemorySessionStore) Delete(_ context.Context, refreshToken string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[refreshToken]
	if !ok {
		return ErrSessionNotFound
	}
	s.remove(session)
	return nil
}

// DeleteForUser drops every session of userID.
func (s *InMemorySessionStore) DeleteForUser(_ context.Context, userID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for token := range s.byUser[userID] {
		delete(s.sessions, token)
		n++
	}
	delete(s.byUser, userID)
	return n, nil
}

// DeleteExpired drops sessions that expired before now.
func (s *InMemorySessionStore) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, session := range s.sessions {
		if session.ExpiresAt.Before(now) {
			s.remove(session)
			n++
		}
	}
	return n, nil
}

// Has reports whether a refresh token exists.
func (s *InMemorySessionStore) Has(refreshToken string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.sessions[refreshToken]
	return ok
}

// remove and unindex expect s.mu to be held.
func (s *InMemorySessionStore) remove(session Session) {
	delete(s.sessions, session.RefreshToken)
	s.unindex(session)
}

func (s *InMemorySessionStore) unindex(session Session) {
	tokens := s.byUser[session.UserID]
	delete(tokens, session.RefreshToken)
	if len(tokens) == 0 {
		delete(s.byUser, session.UserID)
	}
}
