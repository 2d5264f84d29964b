package memory

import (
	"context"
	"sync"

	"quizmaster/internal/domain"
)

// SessionStore is the in-memory implementation of store.SessionStore,
// mapping reconnect tokens to room membership.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]domain.SessionData
}

func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[string]domain.SessionData)}
}

func (s *SessionStore) Put(_ context.Context, token string, data domain.SessionData) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[token] = data
	return nil
}

func (s *SessionStore) Get(_ context.Context, token string) (domain.SessionData, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.sessions[token]
	if !ok {
		return domain.SessionData{}, domain.ErrSessionNotFound
	}
	return data, nil
}

func (s *SessionStore) Delete(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, token)
	return nil
}
