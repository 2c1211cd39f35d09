package verifier

import (
	"fmt"
	"slices"
	"time"

	"github.com/layer-3/axiom/core"
	"github.com/layer-3/axiom/ports"
	"github.com/spruceid/siwe-go"
)

// SIWEVerifier implements MessageVerifier for EIP-4361 messages signed with
// personal_sign (EIP-191)
type SIWEVerifier struct{}

// NewSIWEVerifier creates a new SIWE verifier
func NewSIWEVerifier() ports.MessageVerifier {
	return &SIWEVerifier{}
}

// Nonce extracts the nonce from a SIWE message
func (v *SIWEVerifier) Nonce(message string) (string, error) {
	msg, err := siwe.ParseMessage(message)
	if err != nil {
		return "", fmt.Errorf("%w: %v", core.ErrInvalidMessage, err)
	}
	return msg.GetNonce(), nil
}

// Verify checks domain binding, chain, freshness and nonce before recovering
// the signer and comparing it with the address the message claims
func (v *SIWEVerifier) Verify(message, signature string, opts ports.VerifyOptions) (*core.SignedMessage, error) {
	msg, err := siwe.ParseMessage(message)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrInvalidMessage, err)
	}

	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}

	if opts.Domain != "" && msg.GetDomain() != opts.Domain {
		return nil, fmt.Errorf("%w: got %q", core.ErrDomainMismatch, msg.GetDomain())
	}

	chainID := int64(msg.GetChainID())
	if len(opts.AllowedChains) > 0 && !slices.Contains(opts.AllowedChains, chainID) {
		return nil, fmt.Errorf("%w: %d", core.ErrChainNotAllowed, chainID)
	}

	if opts.Nonce != "" && msg.GetNonce() != opts.Nonce {
		return nil, core.ErrNonceMismatch
	}

	issuedAt, err := time.Parse(time.RFC3339, msg.GetIssuedAt())
	if err != nil {
		return nil, fmt.Errorf("%w: bad issuedAt", core.ErrInvalidMessage)
	}
	if opts.MaxAge > 0 && now.Sub(issuedAt) > opts.MaxAge {
		return nil, fmt.Errorf("%w: issued %s", core.ErrStaleMessage, issuedAt)
	}
	if issuedAt.Sub(now) > opts.ClockSkew {
		return nil, fmt.Errorf("%w: issued in the future", core.ErrStaleMessage)
	}

	// expirationTime and notBefore
	if ok, err := msg.ValidAt(now); !ok {
		return nil, fmt.Errorf("%w: %v", core.ErrStaleMessage, err)
	}

	if _, err := msg.VerifyEIP191(signature); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrInvalidSignature, err)
	}

	return &core.SignedMessage{
		Address:  msg.GetAddress().Hex(),
		ChainID:  chainID,
		Domain:   msg.GetDomain(),
		Nonce:    msg.GetNonce(),
		IssuedAt: issuedAt,
	}, nil
}
