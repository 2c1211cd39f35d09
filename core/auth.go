package core

import "time"

// Challenge represents a sign-in challenge handed to a browser before it signs
type Challenge struct {
	ID        string    // Unique identifier for the challenge
	Nonce     string    // Random nonce the SIWE message must embed
	IssuedAt  time.Time // When the challenge was created
	ExpiresAt time.Time // When the challenge expires
}

// Expired reports whether the challenge is no longer usable at now
func (c *Challenge) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// Session represents a wallet session created from a verified SIWE signature
type Session struct {
	Token           string    // Opaque lookup key carried in the siwe_session cookie
	Address         string    // Checksummed address of the verified signer
	ChainID         int64     // Chain declared in the signed message
	Domain          string    // Domain the signed message was bound to
	AuthenticatedAt time.Time // When the signature was verified
	ExpiresAt       time.Time // Session is valid only while now < ExpiresAt
}

// Valid reports whether the session may still be used at now
func (s *Session) Valid(now time.Time) bool {
	return now.Before(s.ExpiresAt)
}

// Context returns the per-request view of the session
func (s *Session) Context() *AuthContext {
	return &AuthContext{
		Address:         s.Address,
		ChainID:         s.ChainID,
		AuthenticatedAt: s.AuthenticatedAt,
	}
}

// AuthContext is the authenticated identity attached to a single request
type AuthContext struct {
	Address         string    `json:"address"`
	ChainID         int64     `json:"chainId"`
	AuthenticatedAt time.Time `json:"authenticatedAt"`
}

// SignedMessage holds the fields of a SIWE message whose signature checked out
type SignedMessage struct {
	Address  string
	ChainID  int64
	Domain   string
	Nonce    string
	IssuedAt time.Time
}
