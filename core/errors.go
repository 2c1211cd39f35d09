package core

import "errors"

var (
	ErrTokenExpired     = errors.New("token has expired")
	ErrInvalidSignature = errors.New("invalid signature")
	ErrInvalidToken     = errors.New("invalid token")
	ErrInvalidChallenge = errors.New("invalid challenge")
	ErrInvalidMessage   = errors.New("invalid siwe message")
	ErrInvalidAddress   = errors.New("invalid ethereum address")
	ErrDomainMismatch   = errors.New("message domain does not match request host")
	ErrChainNotAllowed  = errors.New("chain id is not allowed")
	ErrStaleMessage     = errors.New("message is outside the freshness window")
	ErrNonceMismatch    = errors.New("nonce does not match challenge")
	ErrNonceUsed        = errors.New("nonce has already been used")
	ErrSessionNotFound  = errors.New("session not found")
	ErrSessionExists    = errors.New("session token already exists")
	ErrRecordNotFound   = errors.New("record not found")
	ErrDuplicateRecord  = errors.New("record already exists")
)
