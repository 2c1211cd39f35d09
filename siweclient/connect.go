package siweclient

import (
	"context"

	"github.com/layer-3/axiom/wallet"
	"go.uber.org/zap"
)

// ConnectResult reports the wallet connection and the sign-in separately
type ConnectResult struct {
	Address string
	Auth    Result
}

// ConnectAndSignIn connects ws through kind and then signs in with it. A
// failed sign-in leaves the wallet connected; only a failed connection is an
// error.
func (c *Client) ConnectAndSignIn(ctx context.Context, ws *wallet.Session, kind wallet.ProviderKind) (ConnectResult, error) {
	address, err := ws.Connect(ctx, kind)
	if err != nil {
		return ConnectResult{}, err
	}

	auth := c.SignIn(ctx, ws, address, ws.State().ChainID)
	if !auth.Success {
		c.log.Warn("wallet connected but sign-in failed",
			zap.String("address", address),
			zap.String("error", auth.Error))
	}

	return ConnectResult{Address: address, Auth: auth}, nil
}
