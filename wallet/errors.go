package wallet

import (
	"errors"
	"fmt"
)

var (
	ErrNoEnvironment            = errors.New("wallet environment not available")
	ErrNoProvider               = errors.New("wallet provider not available")
	ErrNoAccounts               = errors.New("no accounts found")
	ErrUserRejected             = errors.New("user rejected the request")
	ErrUnknownNetwork           = errors.New("network is not known to the wallet")
	ErrNotConnected             = errors.New("wallet not connected")
	ErrWalletConnectUnsupported = errors.New("walletconnect is not supported")
)

// EIP-1193 and EIP-3085 error codes
const (
	CodeUserRejected      = 4001
	CodeUnauthorized      = 4100
	CodeUnsupportedMethod = 4200
	CodeDisconnected      = 4900
	CodeUnrecognizedChain = 4902
	CodeInvalidParams     = -32602
	CodeInternalError     = -32603
)

// ProviderError is an error returned by a wallet provider
type ProviderError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider error %d: %s", e.Code, e.Message)
}

// Is maps provider codes onto the package sentinels
func (e *ProviderError) Is(target error) bool {
	switch target {
	case ErrUserRejected:
		return e.Code == CodeUserRejected
	case ErrUnknownNetwork:
		return isUnknownChain(e.Code)
	}
	return false
}

// MetaMask mobile reports an unknown chain as an internal error
func isUnknownChain(code int) bool {
	return code == CodeUnrecognizedChain || code == CodeInternalError
}

func providerCode(err error) (int, bool) {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Code, true
	}
	return 0, false
}
