package adapter

import (
	"context"
	"sync"
	"time"

	"github.com/challengehub/web/internal/domain"
	"github.com/challengehub/web/internal/web/app"
)

var _ app.SessionStore = (*MemorySessionStore)(nil)

// MemorySessionStore keeps sessions in process memory. Sessions are lost on
// restart and are not shared between replicas; use it for local development
// and single-instance deployments.
type MemorySessionStore struct {
	clock domain.Clock

	mu       sync.Mutex
	sessions map[domain.SessionID]memorySession
}

type memorySession struct {
	session   app.Session
	expiresAt time.Time
}

// NewMemorySessionStore creates an empty store that expires records by clock.
func NewMemorySessionStore(clock domain.Clock) *MemorySessionStore {
	return &MemorySessionStore{
		clock:    clock,
		sessions: make(map[domain.SessionID]memorySession),
	}
}

func (s *MemorySessionStore) Save(_ context.Context, id domain.SessionID, sess *app.Session, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[id] = memorySession{session: *sess, expiresAt: s.clock.Now().Add(ttl)}
	return nil
}

func (s *MemorySessionStore) Get(_ context.Context, id domain.SessionID) (*app.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.sessions[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if !s.clock.Now().Before(entry.expiresAt) {
		delete(s.sessions, id)
		return nil, domain.ErrNotFound
	}

	sess := entry.session
	return &sess, nil
}

func (s *MemorySessionStore) Delete(_ context.Context, id domain.SessionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, id)
	return nil
}

// Sweep drops expired records and returns how many were removed.
func (s *MemorySessionStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	removed := 0
	for id, entry := range s.sessions {
		if !now.Before(entry.expiresAt) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of records held, expired or not.
func (s *MemorySessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
