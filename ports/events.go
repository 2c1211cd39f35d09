package ports

import (
	"context"

	"github.com/layer-3/axiom/core"
)

// EventPublisher publishes session lifecycle events to other instances
type EventPublisher interface {
	PublishSignIn(ctx context.Context, session *core.Session) error
	PublishSignOut(ctx context.Context, address string, token string) error
}
