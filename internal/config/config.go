package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable, e.g. AXIOM_HTTP_ADDR
const EnvPrefix = "AXIOM"

// Config holds the server configuration
type Config struct {
	HTTPAddr string

	// Database
	DatabaseDriver string // postgres, sqlite or memory
	DatabaseDSN    string
	RedisURL       string

	// SIWE
	SessionTTL    time.Duration
	ChallengeTTL  time.Duration
	MaxMessageAge time.Duration
	ClockSkew     time.Duration
	AllowedChains []int64
	SecureCookies bool
	ChallengeKey  string // hex P-256 scalar, generated when empty

	// Auth route rate limit per client IP
	RateLimit float64
	RateBurst int

	PurgeInterval time.Duration

	// Chain access for the CLI
	RPCURL        string
	TokenContract string

	LogLevel  string
	LogFormat string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http_addr", ":9000")
	v.SetDefault("database_driver", "memory")
	v.SetDefault("database_dsn", "")
	v.SetDefault("redis_url", "")
	v.SetDefault("session_ttl", "24h")
	v.SetDefault("challenge_ttl", "5m")
	v.SetDefault("max_message_age", "5m")
	v.SetDefault("clock_skew", "1m")
	v.SetDefault("allowed_chains", "42161")
	v.SetDefault("secure_cookies", true)
	v.SetDefault("challenge_key", "")
	v.SetDefault("rate_limit", 5.0)
	v.SetDefault("rate_burst", 20)
	v.SetDefault("purge_interval", "10m")
	v.SetDefault("rpc_url", "")
	v.SetDefault("token_contract", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")
}

// Load reads configuration from the environment and, when path is not
// empty, from a config file. Environment variables win over the file.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	chains, err := parseChains(v.GetString("allowed_chains"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		HTTPAddr:       v.GetString("http_addr"),
		DatabaseDriver: strings.ToLower(v.GetString("database_driver")),
		DatabaseDSN:    v.GetString("database_dsn"),
		RedisURL:       v.GetString("redis_url"),
		SessionTTL:     v.GetDuration("session_ttl"),
		ChallengeTTL:   v.GetDuration("challenge_ttl"),
		MaxMessageAge:  v.GetDuration("max_message_age"),
		ClockSkew:      v.GetDuration("clock_skew"),
		AllowedChains:  chains,
		SecureCookies:  v.GetBool("secure_cookies"),
		ChallengeKey:   v.GetString("challenge_key"),
		RateLimit:      v.GetFloat64("rate_limit"),
		RateBurst:      v.GetInt("rate_burst"),
		PurgeInterval:  v.GetDuration("purge_interval"),
		RPCURL:         v.GetString("rpc_url"),
		TokenContract:  v.GetString("token_contract"),
		LogLevel:       v.GetString("log_level"),
		LogFormat:      v.GetString("log_format"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	switch c.DatabaseDriver {
	case "memory":
	case "postgres", "sqlite":
		if c.DatabaseDSN == "" {
			return fmt.Errorf("DATABASE_DSN is required when DATABASE_DRIVER is '%s'", c.DatabaseDriver)
		}
	default:
		return fmt.Errorf("DATABASE_DRIVER must be 'postgres', 'sqlite' or 'memory', got: %s", c.DatabaseDriver)
	}

	if c.SessionTTL <= 0 {
		return errors.New("SESSION_TTL must be positive")
	}
	if c.ChallengeTTL <= 0 {
		return errors.New("CHALLENGE_TTL must be positive")
	}
	if c.MaxMessageAge <= 0 {
		return errors.New("MAX_MESSAGE_AGE must be positive")
	}
	if c.ClockSkew < 0 {
		return errors.New("CLOCK_SKEW must not be negative")
	}
	if len(c.AllowedChains) == 0 {
		return errors.New("ALLOWED_CHAINS must name at least one chain")
	}
	if c.RateLimit < 0 || c.RateBurst < 0 {
		return errors.New("RATE_LIMIT and RATE_BURST must not be negative")
	}
	if c.RateLimit > 0 && c.RateBurst == 0 {
		return errors.New("RATE_BURST is required when RATE_LIMIT is set")
	}
	if c.TokenContract != "" && !common.IsHexAddress(c.TokenContract) {
		return fmt.Errorf("TOKEN_CONTRACT is not an address: %s", c.TokenContract)
	}
	if c.ChallengeKey != "" {
		raw, err := hex.DecodeString(strings.TrimPrefix(c.ChallengeKey, "0x"))
		if err != nil || len(raw) == 0 || len(raw) > 32 {
			return errors.New("CHALLENGE_KEY must be a hex P-256 private scalar")
		}
	}
	if c.LogFormat != "json" && c.LogFormat != "console" {
		return fmt.Errorf("LOG_FORMAT must be 'json' or 'console', got: %s", c.LogFormat)
	}
	return nil
}

func parseChains(s string) ([]int64, error) {
	var chains []int64
	for _, part := range strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' }) {
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid chain id in ALLOWED_CHAINS: %q", part)
		}
		chains = append(chains, id)
	}
	return chains, nil
}
