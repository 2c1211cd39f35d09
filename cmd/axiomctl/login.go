package main

import (
	"fmt"

	"github.com/layer-3/axiom/core"
	"github.com/layer-3/axiom/internal/eth"
	"github.com/layer-3/axiom/wallet"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in with Ethereum and store the session",
	Long: `Connect the key-backed wallet, sign a fresh SIWE message and exchange it
for a session cookie.

Examples:
  axiomctl login --key 0x... --server https://app.axiom.city
  AXIOM_KEY=0x... axiomctl login`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		log := newLogger()
		ws, closeWallet, err := openWallet(log)
		if err != nil {
			return err
		}
		defer closeWallet()

		client, err := newClient(log)
		if err != nil {
			return err
		}

		res, err := client.ConnectAndSignIn(cmd.Context(), ws, wallet.KindInjected)
		if err != nil {
			return fmt.Errorf("failed to connect wallet: %w", err)
		}
		if !res.Auth.Success {
			return fmt.Errorf("wallet %s connected but sign-in failed: %s", res.Address, res.Auth.Error)
		}
		if err := saveSession(client); err != nil {
			return err
		}

		fmt.Printf("Signed in as %s on chain %d\n", res.Auth.Address, res.Auth.ChainID)
		return nil
	},
}

// openWallet wraps the configured key in a wallet session. Balances and
// transactions go through the RPC endpoint when one is configured.
func openWallet(log *zap.Logger) (*wallet.Session, func(), error) {
	key, err := loadKey()
	if err != nil {
		return nil, nil, err
	}

	chainID := viper.GetInt64("chain")
	opts := []wallet.Option{wallet.WithLogger(log)}
	var providerOpts []wallet.KeyProviderOption
	closer := func() {}

	if rpcURL := viper.GetString("rpc-url"); rpcURL != "" {
		client, err := eth.NewClient(rpcURL)
		if err != nil {
			return nil, nil, err
		}
		closer = client.Close
		opts = append(opts, wallet.WithBalances(client, viper.GetString("token-contract")))
		providerOpts = append(providerOpts, wallet.WithSender(client))
	}
	if chainID != core.ArbitrumOne.ChainID {
		log.Warn("wallet is not on Arbitrum One", zap.Int64("chainId", chainID))
	}

	provider := wallet.NewKeyProvider(key, chainID, providerOpts...)
	ws, err := wallet.NewSession(wallet.Providers{wallet.KindInjected: provider}, opts...)
	if err != nil {
		closer()
		return nil, nil, err
	}
	return ws, closer, nil
}
