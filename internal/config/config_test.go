package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
}

func TestLoadDefaults(t *testing.T) {
	dir := t.TempDir()

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "paper", cfg.Trading.Mode)
	assert.Equal(t, "1h", cfg.Trading.Timeframe)
	assert.Equal(t, "standard", cfg.Trading.CandleType)
	assert.Equal(t, 30, cfg.Trading.HistoryDays)
	assert.Equal(t, 150, cfg.Limiter.MaxRequests)
	assert.Equal(t, 5*time.Minute, cfg.Limiter.Window)
	assert.Equal(t, 4, cfg.Retry.MaxRetries)
	assert.Equal(t, 2*time.Second, cfg.Retry.BackoffBase)
	assert.Equal(t, 60*time.Second, cfg.Retry.BackoffCap)
	assert.Equal(t, "https://api.india.delta.exchange", cfg.Credentials.BaseURL)
	assert.True(t, cfg.IsPaperMode())
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "config.toml", `
[trading]
mode = "live"
symbol = "BTCUSD"
strategy = "donchian_channel"
timeframe = "3h"
candle_type = "heikin-ashi"

[assets.BTCUSD]
enabled = true
target_margin = 250.0
leverage = 10
contract_value = 0.001
enable_partial_tp = true
partial_exit_pct = 0.5
`)
	writeConfig(t, dir, "credentials.toml", `
api_key = "k"
api_secret = "s"
`)

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "live", cfg.Trading.Mode)
	assert.Equal(t, "BTCUSD", cfg.Trading.Symbol)
	assert.Equal(t, "donchian_channel", cfg.Trading.Strategy)
	assert.Equal(t, "heikin-ashi", cfg.Trading.CandleType)
	assert.Equal(t, "k", cfg.Credentials.APIKey)

	asset, ok := cfg.Asset("BTCUSD")
	assert.True(t, ok)
	assert.True(t, asset.Enabled)
	assert.Equal(t, 250.0, asset.TargetMargin)
	assert.Equal(t, 10, asset.Leverage)
	assert.True(t, asset.EnablePartialTP)
}

func TestAssetFallbackIsDisabled(t *testing.T) {
	cfg := &Config{}
	asset, ok := cfg.Asset("ETHUSD")
	assert.False(t, ok)
	assert.False(t, asset.Enabled)
}

func TestEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("DELTA_API_KEY", "env-key")
	t.Setenv("TRADING_MODE", "live")

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "env-key", cfg.Credentials.APIKey)
	assert.Equal(t, "live", cfg.Trading.Mode)
	assert.False(t, cfg.IsPaperMode())
}

func TestValidateRejectsBadValues(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "config.toml", `
[trading]
mode = "yolo"
`)

	_, err := Load(dir)
	assert.Error(t, err)
}

func TestValidateRejectsBadAsset(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "config.toml", `
[assets.BTCUSD]
enabled = true
target_margin = -1.0
leverage = 5
`)

	_, err := Load(dir)
	assert.Error(t, err)
}
