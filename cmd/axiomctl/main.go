package main

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/layer-3/axiom/internal/config"
	"github.com/layer-3/axiom/internal/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var rootCmd = &cobra.Command{
	Use:   "axiomctl",
	Short: "Axiom wallet sign-in client",
	Long: `Sign in to an Axiom server with a wallet key and inspect the session.

The private key is read from --key or AXIOM_KEY. The session cookie is kept
in --session-file between invocations.`,
	SilenceUsage: true,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("server", "http://localhost:9000", "Axiom server base URL")
	flags.String("key", "", "hex private key of the signing wallet")
	flags.Int64("chain", 42161, "chain id the wallet reports")
	flags.String("session-file", defaultSessionFile(), "where the session cookie is stored")
	flags.String("rpc-url", "", "EVM RPC endpoint for balances and transactions")
	flags.String("token-contract", "", "ERC-20 token contract for the token balance")
	flags.String("log-level", "warn", "log level")

	for _, name := range []string{"server", "key", "chain", "session-file", "rpc-url", "token-contract", "log-level"} {
		_ = viper.BindPFlag(name, flags.Lookup(name))
	}
	viper.SetEnvPrefix(config.EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	rootCmd.AddCommand(loginCmd, sessionCmd, logoutCmd, balanceCmd, signCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func defaultSessionFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".axiom-session"
	}
	return filepath.Join(dir, "axiom", "session")
}

func newLogger() *zap.Logger {
	log, err := logger.New(viper.GetString("log-level"), "console")
	if err != nil {
		return zap.NewNop()
	}
	return log
}

func loadKey() (*ecdsa.PrivateKey, error) {
	raw := strings.TrimPrefix(strings.TrimSpace(viper.GetString("key")), "0x")
	if raw == "" {
		return nil, errors.New("a private key is required, pass --key or set AXIOM_KEY")
	}
	key, err := crypto.HexToECDSA(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	return key, nil
}
