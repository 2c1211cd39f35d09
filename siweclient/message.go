package siweclient

import (
	"fmt"
	"time"

	"github.com/spruceid/siwe-go"
)

// DefaultStatement is shown to the user in the wallet's signing prompt
const DefaultStatement = "Sign in to Axiom Smart City to verify your wallet ownership. This request will not trigger a blockchain transaction or cost any gas fees."

// MessageParams are the fields of an EIP-4361 sign-in message
type MessageParams struct {
	Domain    string
	URI       string
	Address   string
	ChainID   int64
	Nonce     string
	Statement string
	IssuedAt  time.Time
	TTL       time.Duration
}

// BuildMessage renders a SIWE message ready for personal_sign
func BuildMessage(p MessageParams) (string, error) {
	options := map[string]interface{}{
		"chainId":  int(p.ChainID),
		"issuedAt": p.IssuedAt.UTC().Format(time.RFC3339),
	}
	if p.Statement != "" {
		options["statement"] = p.Statement
	}
	if p.TTL > 0 {
		options["expirationTime"] = p.IssuedAt.Add(p.TTL).UTC().Format(time.RFC3339)
	}

	msg, err := siwe.InitMessage(p.Domain, p.Address, p.URI, p.Nonce, options)
	if err != nil {
		return "", fmt.Errorf("failed to build siwe message: %w", err)
	}
	return msg.String(), nil
}
