package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps pending logins in process memory.
// Suitable for single-instance deployments only: a restart drops every
// pending login.
type MemoryStore struct {
	sessions map[string]*Pending
	now      func() time.Time
	ttl      time.Duration
	mu       sync.Mutex
}

// NewMemoryStore creates an in-memory store with the given session TTL.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{
		sessions: make(map[string]*Pending),
		ttl:      ttl,
		now:      time.Now,
	}
}

// Create stores a new pending login.
func (s *MemoryStore) Create(_ context.Context, userID int64, email, otp string) (string, time.Time, error) {
	id := uuid.NewString()
	expiresAt := s.now().Add(s.ttl)

	s.mu.Lock()
	s.sessions[id] = &Pending{
		UserID:    userID,
		Email:     email,
		OTP:       otp,
		ExpiresAt: expiresAt,
	}
	s.mu.Unlock()

	return id, expiresAt, nil
}

// Consume verifies otp against the session and removes it on success or expiry.
func (s *MemoryStore) Consume(_ context.Context, sessionID, otp string) (*Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}

	id, deleteIt, err := check(p, otp, s.now())
	if deleteIt {
		delete(s.sessions, sessionID)
	}
	return id, err
}

// Delete removes a session.
func (s *MemoryStore) Delete(_ context.Context, sessionID string) error {
	s.mu.Lock()
	delete(s.sessions, sessionID)
	s.mu.Unlock()
	return nil
}

// Sweep удаляет все истекшие сессии и возвращает их количество
func (s *MemoryStore) Sweep(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for id, p := range s.sessions {
		if p.Expired(now) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed, nil
}

// Len returns the number of stored sessions, expired ones included.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
