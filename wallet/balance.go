package wallet

import (
	"context"
	"math/big"

	"github.com/shopspring/decimal"
)

// BalanceReader reads on-chain balances for an address
type BalanceReader interface {
	NativeBalance(ctx context.Context, address string) (*big.Int, error)
	TokenBalance(ctx context.Context, token, address string) (*big.Int, error)
}

// FormatUnits renders an integer amount in base units as a decimal string
// with the given number of decimals
func FormatUnits(amount *big.Int, decimals int32) string {
	if amount == nil {
		return "0"
	}
	return decimal.NewFromBigInt(amount, -decimals).String()
}
