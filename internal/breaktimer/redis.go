package breaktimer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/shoreagents/lifecycle-engine/internal/domain"
)

// sessionTTL guards against sessions orphaned by a client that never ended
// its break. Well beyond any break duration plus a full paused shift.
const sessionTTL = 24 * time.Hour

// RedisSessionStore persists BreakSession projections as JSON values keyed
// per user.
type RedisSessionStore struct {
	client *redis.Client
}

// NewRedisSessionStore creates a RedisSessionStore.
func NewRedisSessionStore(client *redis.Client) *RedisSessionStore {
	return &RedisSessionStore{client: client}
}

func sessionKey(userID uuid.UUID) string {
	return fmt.Sprintf("break-session:%s", userID)
}

// Get returns the session for the user, or ErrSessionNotFound.
func (s *RedisSessionStore) Get(ctx context.Context, userID uuid.UUID) (domain.BreakSession, error) {
	data, err := s.client.Get(ctx, sessionKey(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.BreakSession{}, ErrSessionNotFound
		}
		return domain.BreakSession{}, fmt.Errorf("get session: %w", err)
	}

	var session domain.BreakSession
	if err := json.Unmarshal(data, &session); err != nil {
		return domain.BreakSession{}, fmt.Errorf("decode session: %w", err)
	}
	return session, nil
}

// Save writes the session projection.
func (s *RedisSessionStore) Save(ctx context.Context, session domain.BreakSession) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := s.client.Set(ctx, sessionKey(session.UserID), data, sessionTTL).Err(); err != nil {
		return fmt.Errorf("set session: %w", err)
	}
	return nil
}

// Delete removes the session projection.
func (s *RedisSessionStore) Delete(ctx context.Context, userID uuid.UUID) error {
	if err := s.client.Del(ctx, sessionKey(userID)).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// Compile-time interface assertion
var _ SessionStore = (*RedisSessionStore)(nil)
