package store

import (
	"context"
	"sync"
	"time"

	"github.com/layer-3/axiom/core"
	"github.com/layer-3/axiom/ports"
)

// MemoryStore is an in-memory implementation of the Store interface
type MemoryStore struct {
	sessions map[string]core.Session
	nonces   map[string]time.Time
	mu       sync.RWMutex
	now      func() time.Time
}

// NewMemoryStore creates a new in-memory store
func NewMemoryStore() ports.Store {
	return &MemoryStore{
		sessions: make(map[string]core.Session),
		nonces:   make(map[string]time.Time),
		now:      time.Now,
	}
}

// CreateSession stores a new session, refusing to replace an existing token.
// Expired sessions are swept on the way in.
func (s *MemoryStore) CreateSession(ctx context.Context, session *core.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sweepSessions(s.now())

	if _, exists := s.sessions[session.Token]; exists {
		return core.ErrSessionExists
	}
	s.sessions[session.Token] = *session
	return nil
}

// GetSession returns a copy of the stored session
func (s *MemoryStore) GetSession(ctx context.Context, token string) (*core.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[token]
	if !ok {
		return nil, core.ErrSessionNotFound
	}
	return &session, nil
}

// DeleteSession removes a session; unknown tokens are ignored
func (s *MemoryStore) DeleteSession(ctx context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, token)
	return nil
}

// ConsumeNonce marks a nonce as used until ttl elapses
func (s *MemoryStore) ConsumeNonce(ctx context.Context, nonce string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for n, expiry := range s.nonces {
		if !now.Before(expiry) {
			delete(s.nonces, n)
		}
	}

	if _, used := s.nonces[nonce]; used {
		return core.ErrNonceUsed
	}
	s.nonces[nonce] = now.Add(ttl)
	return nil
}

// Purge drops expired sessions and nonces
func (s *MemoryStore) Purge(ctx context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := s.sweepSessions(now)
	for nonce, expiry := range s.nonces {
		if !now.Before(expiry) {
			delete(s.nonces, nonce)
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) sweepSessions(now time.Time) int64 {
	var n int64
	for token, session := range s.sessions {
		if !session.Valid(now) {
			delete(s.sessions, token)
			n++
		}
	}
	return n
}
