package wallet

import (
	"context"
	"encoding/json"

	"github.com/layer-3/axiom/core"
)

// ProviderKind names a wallet provider a session can connect through
type ProviderKind string

const (
	KindNone          ProviderKind = ""
	KindMetaMask      ProviderKind = "metamask"
	KindInjected      ProviderKind = "injected"
	KindWalletConnect ProviderKind = "walletconnect"
)

// Provider events
const (
	EventAccountsChanged = "accountsChanged"
	EventChainChanged    = "chainChanged"
	EventDisconnect      = "disconnect"
)

// Provider is an EIP-1193 wallet provider. Request returns the JSON result of
// the RPC call or a *ProviderError. On registers an event handler and returns
// the function that removes it.
type Provider interface {
	Request(ctx context.Context, method string, params ...any) (json.RawMessage, error)
	On(event string, handler func(payload json.RawMessage)) (release func())
}

// Environment exposes the providers available to the process. It returns
// nil for a kind that is not (yet) available.
type Environment interface {
	Provider(kind ProviderKind) Provider
}

// Providers is a fixed Environment
type Providers map[ProviderKind]Provider

// Provider implements Environment
func (p Providers) Provider(kind ProviderKind) Provider {
	return p[kind]
}

// SwitchChainParams is the wallet_switchEthereumChain parameter
type SwitchChainParams struct {
	ChainID string `json:"chainId"`
}

// NativeCurrency is part of AddChainParams
type NativeCurrency struct {
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals int    `json:"decimals"`
}

// AddChainParams is the wallet_addEthereumChain parameter (EIP-3085)
type AddChainParams struct {
	ChainID           string         `json:"chainId"`
	ChainName         string         `json:"chainName"`
	NativeCurrency    NativeCurrency `json:"nativeCurrency"`
	RPCURLs           []string       `json:"rpcUrls"`
	BlockExplorerURLs []string       `json:"blockExplorerUrls,omitempty"`
}

// NewAddChainParams describes n for wallet_addEthereumChain
func NewAddChainParams(n core.Network) AddChainParams {
	params := AddChainParams{
		ChainID:   n.HexChainID(),
		ChainName: n.Name,
		NativeCurrency: NativeCurrency{
			Name:     n.CurrencyName,
			Symbol:   n.CurrencySymbol,
			Decimals: n.Decimals,
		},
		RPCURLs: []string{n.RPCURL},
	}
	if n.ExplorerURL != "" {
		params.BlockExplorerURLs = []string{n.ExplorerURL}
	}
	return params
}

// TxParams is the eth_sendTransaction parameter. Quantities are hex encoded.
type TxParams struct {
	From  string `json:"from"`
	To    string `json:"to,omitempty"`
	Value string `json:"value,omitempty"`
	Data  string `json:"data,omitempty"`
	Gas   string `json:"gas,omitempty"`
}
