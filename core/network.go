package core

import "fmt"

// Network describes an EVM chain the way wallet_addEthereumChain expects it
type Network struct {
	ChainID        int64
	Name           string
	CurrencyName   string
	CurrencySymbol string
	Decimals       int
	RPCURL         string
	ExplorerURL    string
}

// ArbitrumOne is the network Axiom contracts are deployed on
var ArbitrumOne = Network{
	ChainID:        42161,
	Name:           "Arbitrum One",
	CurrencyName:   "Ethereum",
	CurrencySymbol: "ETH",
	Decimals:       18,
	RPCURL:         "https://arb1.arbitrum.io/rpc",
	ExplorerURL:    "https://arbiscan.io",
}

// HexChainID returns the chain id in the 0x-prefixed form wallets use
func (n Network) HexChainID() string {
	return HexChainID(n.ChainID)
}

// HexChainID formats a chain id as a 0x-prefixed hex quantity
func HexChainID(id int64) string {
	return fmt.Sprintf("0x%x", id)
}
