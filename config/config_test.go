package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sniperBot/internal/adapters/logger"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.True(t, cfg.PaperTrading)
	assert.Equal(t, "https://api.mexc.com", cfg.BaseURL)
	assert.Equal(t, 5, cfg.Dispatcher.MaxConcurrentRequests)
	assert.Equal(t, 10*time.Second, cfg.Dispatcher.RequestTimeout)
	assert.Equal(t, 10, cfg.Retry.MaxRetries)
	assert.Equal(t, time.Second, cfg.Retry.InitialDelay)
	assert.Equal(t, 5*time.Second, cfg.Retry.MaxDelay)
	assert.Equal(t, 1.5, cfg.Retry.BackoffMultiplier)
	assert.False(t, cfg.Racing.Enabled)
	assert.Equal(t, 3, cfg.Racing.MaxConcurrentOrders)
	assert.Equal(t, 50*time.Millisecond, cfg.Racing.BurstInterval)
	assert.True(t, cfg.Racing.AutoCancel)
	assert.Equal(t, -500*time.Millisecond, cfg.Window.PreLaunchOffset)
	assert.Equal(t, 700*time.Millisecond, cfg.Window.PostLaunchWindow)
	assert.Equal(t, 100*time.Millisecond, cfg.Window.PollInterval)
	assert.Equal(t, 50.0, cfg.MinConfidenceScore)
	assert.Equal(t, 10, cfg.MaxActiveTrades)
	assert.Equal(t, "balanced", cfg.ActiveStrategy)
	assert.Equal(t, logger.LevelInfo, cfg.LogLevel)
	assert.Nil(t, cfg.Snipe)
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("PAPER_TRADING", "false")
	t.Setenv("MEXC_API_KEY", "key")
	t.Setenv("MEXC_SECRET_KEY", "secret")
	t.Setenv("ORDER_RACING_ENABLED", "true")
	t.Setenv("ORDER_MAX_RETRIES", "3")
	t.Setenv("ACTIVE_STRATEGY", "Aggressive")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("SNIPE_SYMBOL", "newusdt")
	t.Setenv("SNIPE_LAUNCH_TIME", "2026-01-02T15:04:05Z")
	t.Setenv("SNIPE_POSITION_USDT", "250")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.False(t, cfg.PaperTrading)
	assert.True(t, cfg.Racing.Enabled)
	assert.Equal(t, 3, cfg.Retry.MaxRetries)
	assert.Equal(t, "aggressive", cfg.ActiveStrategy)
	assert.Equal(t, logger.LevelDebug, cfg.LogLevel)
	require.NotNil(t, cfg.Snipe)
	assert.Equal(t, "NEWUSDT", cfg.Snipe.Symbol)
	assert.Equal(t, 250.0, cfg.Snipe.PositionSizeUSD)
	assert.Equal(t, time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC), cfg.Snipe.LaunchTime.UTC())
}

func TestLoadConfig_CollectsErrors(t *testing.T) {
	t.Setenv("PAPER_TRADING", "false")
	t.Setenv("MAX_CONCURRENT_REQUESTS", "zero")
	t.Setenv("ORDER_RETRY_BACKOFF_MULTIPLIER", "0.5")
	t.Setenv("MIN_CONFIDENCE_SCORE", "150")
	t.Setenv("SNIPE_SYMBOL", "NEWUSDT")
	t.Setenv("SNIPE_LAUNCH_TIME", "tomorrow")

	_, err := LoadConfig()
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "MEXC_API_KEY")
	assert.Contains(t, msg, "MAX_CONCURRENT_REQUESTS")
	assert.Contains(t, msg, "ORDER_RETRY_BACKOFF_MULTIPLIER")
	assert.Contains(t, msg, "MIN_CONFIDENCE_SCORE")
	assert.Contains(t, msg, "SNIPE_LAUNCH_TIME")
}
