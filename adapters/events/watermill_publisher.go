package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
	"github.com/layer-3/axiom/core"
	"github.com/layer-3/axiom/ports"
)

const (
	// TopicSignIn carries SignInEvent payloads
	TopicSignIn = "axiom.siwe.signin"
	// TopicSignOut carries SignOutEvent payloads
	TopicSignOut = "axiom.siwe.signout"
)

// SignInEvent is published after a session is created
type SignInEvent struct {
	Address         string    `json:"address"`
	ChainID         int64     `json:"chain_id"`
	Domain          string    `json:"domain"`
	AuthenticatedAt time.Time `json:"authenticated_at"`
	ExpiresAt       time.Time `json:"expires_at"`
}

// SignOutEvent is published after a session is revoked. The session token is
// never published; SessionID is a one-way digest of it.
type SignOutEvent struct {
	Address   string `json:"address"`
	SessionID string `json:"session_id"`
}

// WatermillPublisher implements the EventPublisher interface using Watermill
type WatermillPublisher struct {
	publisher message.Publisher
}

// NewWatermillPublisher creates a new Watermill publisher
func NewWatermillPublisher(publisher message.Publisher) ports.EventPublisher {
	return &WatermillPublisher{publisher: publisher}
}

// PublishSignIn publishes a sign-in event
func (p *WatermillPublisher) PublishSignIn(ctx context.Context, session *core.Session) error {
	return p.publish(ctx, TopicSignIn, SignInEvent{
		Address:         session.Address,
		ChainID:         session.ChainID,
		Domain:          session.Domain,
		AuthenticatedAt: session.AuthenticatedAt,
		ExpiresAt:       session.ExpiresAt,
	})
}

// PublishSignOut publishes a sign-out event
func (p *WatermillPublisher) PublishSignOut(ctx context.Context, address string, token string) error {
	return p.publish(ctx, TopicSignOut, SignOutEvent{
		Address:   address,
		SessionID: SessionID(token),
	})
}

func (p *WatermillPublisher) publish(ctx context.Context, topic string, event interface{}) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := message.NewMessage(uuid.New().String(), payload)
	msg.SetContext(ctx)

	if err := p.publisher.Publish(topic, msg); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	return nil
}

// SessionID derives a stable, non-reversible identifier for a session token
func SessionID(token string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(token)).String()
}
