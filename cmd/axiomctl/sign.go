package main

import (
	"fmt"

	"github.com/layer-3/axiom/wallet"
	"github.com/spf13/cobra"
)

var signCmd = &cobra.Command{
	Use:   "sign <message>",
	Short: "Sign a message with EIP-191 (personal_sign)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ws, closeWallet, err := openWallet(newLogger())
		if err != nil {
			return err
		}
		defer closeWallet()

		address, err := ws.Connect(cmd.Context(), wallet.KindInjected)
		if err != nil {
			return err
		}
		sig, err := ws.Sign(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		fmt.Printf("Signer:    %s\n", address)
		fmt.Printf("Signature: %s\n", sig)
		return nil
	},
}
