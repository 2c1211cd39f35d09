package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/layer-3/axiom/core"
	"github.com/layer-3/axiom/ports"
	"github.com/redis/go-redis/v9"
)

// RedisStore is a Redis implementation of the Store interface. Session keys
// carry a TTL matching the session expiry so Redis does the purging.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore creates a new Redis store
func NewRedisStore(client *redis.Client) ports.Store {
	return &RedisStore{
		client: client,
		prefix: "axiom:siwe:",
	}
}

type redisSession struct {
	Address         string    `json:"address"`
	ChainID         int64     `json:"chain_id"`
	Domain          string    `json:"domain"`
	AuthenticatedAt time.Time `json:"authenticated_at"`
	ExpiresAt       time.Time `json:"expires_at"`
}

func (s *RedisStore) sessionKey(token string) string {
	return s.prefix + "session:" + token
}

func (s *RedisStore) nonceKey(nonce string) string {
	return s.prefix + "nonce:" + nonce
}

// CreateSession stores a session with SETNX so an existing token is never replaced
func (s *RedisStore) CreateSession(ctx context.Context, session *core.Session) error {
	ttl := time.Until(session.ExpiresAt)
	if ttl <= 0 {
		return core.ErrTokenExpired
	}

	payload, err := json.Marshal(redisSession{
		Address:         session.Address,
		ChainID:         session.ChainID,
		Domain:          session.Domain,
		AuthenticatedAt: session.AuthenticatedAt,
		ExpiresAt:       session.ExpiresAt,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	created, err := s.client.SetNX(ctx, s.sessionKey(session.Token), payload, ttl).Result()
	if err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}
	if !created {
		return core.ErrSessionExists
	}
	return nil
}

// GetSession loads a session by token
func (s *RedisStore) GetSession(ctx context.Context, token string) (*core.Session, error) {
	raw, err := s.client.Get(ctx, s.sessionKey(token)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, core.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	var stored redisSession
	if err := json.Unmarshal(raw, &stored); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}

	return &core.Session{
		Token:           token,
		Address:         stored.Address,
		ChainID:         stored.ChainID,
		Domain:          stored.Domain,
		AuthenticatedAt: stored.AuthenticatedAt,
		ExpiresAt:       stored.ExpiresAt,
	}, nil
}

// DeleteSession removes a session
func (s *RedisStore) DeleteSession(ctx context.Context, token string) error {
	if err := s.client.Del(ctx, s.sessionKey(token)).Err(); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// ConsumeNonce marks a nonce as used with SETNX
func (s *RedisStore) ConsumeNonce(ctx context.Context, nonce string, ttl time.Duration) error {
	created, err := s.client.SetNX(ctx, s.nonceKey(nonce), "1", ttl).Result()
	if err != nil {
		return fmt.Errorf("failed to consume nonce: %w", err)
	}
	if !created {
		return core.ErrNonceUsed
	}
	return nil
}
