package ports

import (
	"context"
	"time"

	"github.com/layer-3/axiom/core"
)

// SessionStore persists SIWE sessions. Sessions are insert-only: a session's
// address is never rewritten after creation.
type SessionStore interface {
	CreateSession(ctx context.Context, session *core.Session) error
	// GetSession returns core.ErrSessionNotFound for unknown tokens. Expiry is
	// checked by the caller.
	GetSession(ctx context.Context, token string) (*core.Session, error)
	DeleteSession(ctx context.Context, token string) error
}

// NonceStore records consumed challenge nonces
type NonceStore interface {
	// ConsumeNonce marks nonce as used for ttl, returning core.ErrNonceUsed
	// if it was already consumed.
	ConsumeNonce(ctx context.Context, nonce string, ttl time.Duration) error
}

// Store is the combined persistence port used by the auth service
type Store interface {
	SessionStore
	NonceStore
}
