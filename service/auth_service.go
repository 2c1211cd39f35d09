package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/layer-3/axiom/core"
	"github.com/layer-3/axiom/ports"
	"go.uber.org/zap"
)

// Config holds the auth policy
type Config struct {
	ChallengeTTL  time.Duration
	SessionTTL    time.Duration
	MaxMessageAge time.Duration
	ClockSkew     time.Duration
	AllowedChains []int64
}

// DefaultConfig returns the production policy: Arbitrum One only, 5 minute
// challenges and 24 hour sessions
func DefaultConfig() Config {
	return Config{
		ChallengeTTL:  5 * time.Minute,
		SessionTTL:    24 * time.Hour,
		MaxMessageAge: 5 * time.Minute,
		ClockSkew:     time.Minute,
		AllowedChains: []int64{core.ArbitrumOne.ChainID},
	}
}

// SignInRequest is everything the verify endpoint collects from a request
type SignInRequest struct {
	Message        string
	Signature      string
	ChallengeToken string
	Host           string
	PriorToken     string
}

// IssuedChallenge is returned by the nonce endpoint
type IssuedChallenge struct {
	Nonce     string
	Token     string
	ExpiresAt time.Time
}

// AuthService handles SIWE authentication business logic
type AuthService struct {
	tokenizer ports.Tokenizer
	verifier  ports.MessageVerifier
	store     ports.Store
	eventPub  ports.EventPublisher
	log       *zap.Logger

	cfg Config
	now func() time.Time
}

// NewAuthService creates a new authentication service
func NewAuthService(
	tokenizer ports.Tokenizer,
	verifier ports.MessageVerifier,
	store ports.Store,
	eventPub ports.EventPublisher,
	log *zap.Logger,
	cfg Config,
) *AuthService {
	if log == nil {
		log = zap.NewNop()
	}
	return &AuthService{
		tokenizer: tokenizer,
		verifier:  verifier,
		store:     store,
		eventPub:  eventPub,
		log:       log,
		cfg:       cfg,
		now:       time.Now,
	}
}

// Config returns the active policy
func (s *AuthService) Config() Config {
	return s.cfg
}

// IssueChallenge generates a nonce and the signed token binding it to the caller
func (s *AuthService) IssueChallenge() (*IssuedChallenge, error) {
	nonce, err := randomHex(16)
	if err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	now := s.now()
	challenge := &core.Challenge{
		ID:        uuid.New().String(),
		Nonce:     nonce,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.cfg.ChallengeTTL),
	}

	token, err := s.tokenizer.ChallengeToToken(challenge)
	if err != nil {
		return nil, fmt.Errorf("failed to create token: %w", err)
	}

	return &IssuedChallenge{Nonce: nonce, Token: token, ExpiresAt: challenge.ExpiresAt}, nil
}

// SignIn verifies a signed SIWE message against the caller's challenge and
// creates a new session for the recovered address
func (s *AuthService) SignIn(ctx context.Context, req SignInRequest) (*core.Session, error) {
	if req.Message == "" || req.Signature == "" {
		return nil, fmt.Errorf("%w: message and signature required", core.ErrInvalidMessage)
	}
	if req.ChallengeToken == "" {
		return nil, fmt.Errorf("no challenge presented: %w", core.ErrInvalidChallenge)
	}

	challenge, err := s.tokenizer.TokenToChallenge(req.ChallengeToken)
	if err != nil {
		return nil, fmt.Errorf("invalid challenge token: %w", err)
	}

	now := s.now()
	signed, err := s.verifier.Verify(req.Message, req.Signature, ports.VerifyOptions{
		Domain:        req.Host,
		Nonce:         challenge.Nonce,
		AllowedChains: s.cfg.AllowedChains,
		MaxAge:        s.cfg.MaxMessageAge,
		ClockSkew:     s.cfg.ClockSkew,
		Now:           now,
	})
	if err != nil {
		return nil, fmt.Errorf("signature verification failed: %w", err)
	}

	// The nonce only needs remembering until the challenge itself expires
	ttl := challenge.ExpiresAt.Sub(now)
	if ttl < time.Second {
		ttl = time.Second
	}
	if err := s.store.ConsumeNonce(ctx, signed.Nonce, ttl); err != nil {
		return nil, fmt.Errorf("failed to consume nonce: %w", err)
	}

	token, err := randomHex(32)
	if err != nil {
		return nil, fmt.Errorf("failed to generate session token: %w", err)
	}

	session := &core.Session{
		Token:           token,
		Address:         signed.Address,
		ChainID:         signed.ChainID,
		Domain:          signed.Domain,
		AuthenticatedAt: now,
		ExpiresAt:       now.Add(s.cfg.SessionTTL),
	}

	if req.PriorToken != "" {
		if err := s.store.DeleteSession(ctx, req.PriorToken); err != nil {
			s.log.Warn("failed to revoke prior session", zap.Error(err))
		} else {
			s.log.Info("revoked prior session on sign-in", zap.String("address", session.Address))
		}
	}

	if err := s.store.CreateSession(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	if err := s.eventPub.PublishSignIn(ctx, session); err != nil {
		// The session exists already; other instances just miss the notification
		s.log.Warn("failed to publish sign-in event", zap.Error(err))
	}

	return session, nil
}

// ResolveSession returns the live session for token. Missing and expired
// sessions both yield core.ErrSessionNotFound.
func (s *AuthService) ResolveSession(ctx context.Context, token string) (*core.Session, error) {
	if token == "" {
		return nil, core.ErrSessionNotFound
	}

	session, err := s.store.GetSession(ctx, token)
	if err != nil {
		return nil, err
	}

	if !session.Valid(s.now()) {
		return nil, core.ErrSessionNotFound
	}

	return session, nil
}

// SignOut revokes the session for token. Unknown tokens are not an error.
func (s *AuthService) SignOut(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}

	session, err := s.store.GetSession(ctx, token)
	if errors.Is(err, core.ErrSessionNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load session: %w", err)
	}

	if err := s.store.DeleteSession(ctx, token); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	if err := s.eventPub.PublishSignOut(ctx, session.Address, token); err != nil {
		s.log.Warn("failed to publish sign-out event", zap.Error(err))
	}

	return nil
}

// IsVerificationError reports whether err is a rejected sign-in attempt rather
// than an infrastructure failure
func IsVerificationError(err error) bool {
	for _, target := range []error{
		core.ErrInvalidMessage,
		core.ErrInvalidSignature,
		core.ErrInvalidChallenge,
		core.ErrInvalidToken,
		core.ErrTokenExpired,
		core.ErrDomainMismatch,
		core.ErrChainNotAllowed,
		core.ErrStaleMessage,
		core.ErrNonceMismatch,
		core.ErrNonceUsed,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func randomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
