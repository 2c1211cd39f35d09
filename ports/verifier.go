package ports

import (
	"time"

	"github.com/layer-3/axiom/core"
)

// VerifyOptions are the server-side expectations a SIWE message must meet
type VerifyOptions struct {
	Domain        string
	Nonce         string
	AllowedChains []int64
	MaxAge        time.Duration
	ClockSkew     time.Duration
	Now           time.Time
}

// MessageVerifier parses a SIWE message and checks its signature
type MessageVerifier interface {
	Verify(message, signature string, opts VerifyOptions) (*core.SignedMessage, error)
	// Nonce extracts the nonce without verifying anything.
	Nonce(message string) (string, error)
}
