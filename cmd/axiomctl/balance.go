package main

import (
	"errors"
	"fmt"

	"github.com/layer-3/axiom/wallet"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var balanceCmd = &cobra.Command{
	Use:   "balance",
	Short: "Show the wallet's native and token balances",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if viper.GetString("rpc-url") == "" {
			return errors.New("--rpc-url is required for balances")
		}

		ws, closeWallet, err := openWallet(newLogger())
		if err != nil {
			return err
		}
		defer closeWallet()

		if _, err := ws.Connect(cmd.Context(), wallet.KindInjected); err != nil {
			return err
		}

		ws.RefreshBalances(cmd.Context())
		state := ws.State()

		fmt.Printf("Address: %s\n", state.Address)
		fmt.Printf("Balance: %s ETH\n", state.Balance)
		if viper.GetString("token-contract") != "" {
			fmt.Printf("Token:   %s AXM\n", state.TokenBalance)
		}
		return nil
	},
}
