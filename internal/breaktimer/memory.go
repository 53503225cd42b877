package breaktimer

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/shoreagents/lifecycle-engine/internal/domain"
)

// MemorySessionStore holds BreakSession projections in process memory.
// Used when no cache is configured; sessions do not survive a restart.
type MemorySessionStore struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]domain.BreakSession
}

// NewMemorySessionStore creates an empty MemorySessionStore.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{sessions: make(map[uuid.UUID]domain.BreakSession)}
}

// Get returns the session for the user, or ErrSessionNotFound.
func (s *MemorySessionStore) Get(ctx context.Context, userID uuid.UUID) (domain.BreakSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[userID]
	if !ok {
		return domain.BreakSession{}, ErrSessionNotFound
	}
	return session, nil
}

// Save writes the session projection.
func (s *MemorySessionStore) Save(ctx context.Context, session domain.BreakSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.UserID] = session
	return nil
}

// Delete removes the session projection.
func (s *MemorySessionStore) Delete(ctx context.Context, userID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, userID)
	return nil
}

// Compile-time interface assertion
var _ SessionStore = (*MemorySessionStore)(nil)
