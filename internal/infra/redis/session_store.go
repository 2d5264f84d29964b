package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"quizmaster/internal/domain"
)

// SessionStore keeps reconnect tokens in Redis with a TTL, so a participant
// can reattach their engine after a navigation until the token expires.
type SessionStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{client: client, ttl: ttl}
}

func (s *SessionStore) Put(ctx context.Context, token string, data domain.SessionData) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if err := s.client.Set(ctx, s.key(token), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	return nil
}

func (s *SessionStore) Get(ctx context.Context, token string) (domain.SessionData, error) {
	raw, err := s.client.Get(ctx, s.key(token)).Bytes()
	if err == redis.Nil {
		return domain.SessionData{}, domain.ErrSessionNotFound
	}
	if err != nil {
		return domain.SessionData{}, fmt.Errorf("read session: %w", err)
	}
	var data domain.SessionData
	if err := json.Unmarshal(raw, &data); err != nil {
		return domain.SessionData{}, fmt.Errorf("unmarshal session: %w", err)
	}
	return data, nil
}

func (s *SessionStore) Delete(ctx context.Context, token string) error {
	if err := s.client.Del(ctx, s.key(token)).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (s *SessionStore) key(token string) string {
	return "session:" + token
}
