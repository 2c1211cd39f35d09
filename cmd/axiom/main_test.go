package main

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/layer-3/axiom/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestServeReportsBadConfig(t *testing.T) {
	assert.Equal(t, 1, serve(filepath.Join(t.TempDir(), "missing.yaml")))
}

func TestRunStopsOnCancel(t *testing.T) {
	cfg := &config.Config{
		HTTPAddr:       "127.0.0.1:0",
		DatabaseDriver: "memory",
		SessionTTL:     time.Hour,
		ChallengeTTL:   time.Minute,
		MaxMessageAge:  time.Minute,
		AllowedChains:  []int64{42161},
		PurgeInterval:  time.Minute,
		LogFormat:      "json",
	}
	require.NoError(t, cfg.Validate())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan error, 1)
	go func() { done <- run(ctx, cfg, zap.NewNop()) }()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("run did not return after cancel")
	}
}
