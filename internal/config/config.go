// Package config provides configuration management for the trading engine.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Trading       TradingConfig          `mapstructure:"trading"`
	Limiter       LimiterConfig          `mapstructure:"limiter"`
	Retry         RetryConfig            `mapstructure:"retry"`
	Journal       JournalConfig          `mapstructure:"journal"`
	Notifications NotificationConfig     `mapstructure:"notifications"`
	Assets        map[string]AssetConfig `mapstructure:"assets"`
	Credentials   Credentials            `mapstructure:"-" json:"-"` // Loaded separately, never serialized
}

// TradingConfig holds the run parameters for one strategy instance.
type TradingConfig struct {
	Mode         string        `mapstructure:"mode"`          // "live", "paper"
	Symbol       string        `mapstructure:"symbol"`        // e.g. BTCUSD
	Strategy     string        `mapstructure:"strategy"`      // registry name
	Timeframe    string        `mapstructure:"timeframe"`     // base candle timeframe
	CandleType   string        `mapstructure:"candle_type"`   // "standard", "heikin-ashi"
	PollInterval time.Duration `mapstructure:"poll_interval"` // tick spacing
	HistoryDays  int           `mapstructure:"history_days"`  // candle lookback for warm-up
	Cooldown     time.Duration `mapstructure:"cooldown"`      // pause after exhausted API retries
}

// AssetConfig holds per-asset sizing overrides, resolved once at startup by
// asset identifier rather than re-derived from exchange symbol strings.
type AssetConfig struct {
	Enabled         bool    `mapstructure:"enabled"`
	TargetMargin    float64 `mapstructure:"target_margin"`
	Leverage        int     `mapstructure:"leverage"`
	ContractValue   float64 `mapstructure:"contract_value"`
	EnablePartialTP bool    `mapstructure:"enable_partial_tp"`
	PartialExitPct  float64 `mapstructure:"partial_exit_pct"`
}

// LimiterConfig holds rate limiter settings. The exchange allows 150
// requests per 5 minutes per IP.
type LimiterConfig struct {
	MaxRequests int           `mapstructure:"max_requests"`
	Window      time.Duration `mapstructure:"window"`
}

// RetryConfig holds the gateway retry policy.
type RetryConfig struct {
	MaxRetries  int           `mapstructure:"max_retries"`
	BackoffBase time.Duration `mapstructure:"backoff_base"`
	BackoffCap  time.Duration `mapstructure:"backoff_cap"`
}

// JournalConfig holds the trade journal sink settings.
type JournalConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// NotificationConfig holds notification configuration.
type NotificationConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Webhook WebhookConfig `mapstructure:"webhook"`
}

// WebhookConfig holds webhook notification configuration.
type WebhookConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url"`
}

// Credentials holds exchange API credentials.
type Credentials struct {
	APIKey    string `mapstructure:"api_key"`
	APISecret string `mapstructure:"api_secret"`
	BaseURL   string `mapstructure:"base_url"`
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/delta-trader"
	}
	return filepath.Join(home, ".config", "delta-trader")
}

// Load loads configuration from the specified directory.
// If configDir is empty, uses the default config directory.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	cfg := &Config{}

	if err := loadConfigFile(configDir, cfg); err != nil {
		return nil, fmt.Errorf("loading config.toml: %w", err)
	}

	if err := loadCredentials(configDir, &cfg.Credentials); err != nil {
		return nil, fmt.Errorf("loading credentials.toml: %w", err)
	}

	applyEnvOverrides(cfg)
	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func loadConfigFile(configDir string, target *Config) error {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)

	v.SetDefault("trading.mode", "paper")
	v.SetDefault("trading.timeframe", "1h")
	v.SetDefault("trading.candle_type", "standard")
	v.SetDefault("trading.poll_interval", "10m")
	v.SetDefault("trading.history_days", 30)
	v.SetDefault("trading.cooldown", "5m")
	v.SetDefault("limiter.max_requests", 150)
	v.SetDefault("limiter.window", "5m")
	v.SetDefault("retry.max_retries", 4)
	v.SetDefault("retry.backoff_base", "2s")
	v.SetDefault("retry.backoff_cap", "60s")
	v.SetDefault("journal.enabled", true)
	v.SetDefault("journal.path", filepath.Join(configDir, "journal.db"))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return err
		}
		// Missing config file is acceptable; defaults apply.
	}

	return v.Unmarshal(target)
}

func loadCredentials(configDir string, creds *Credentials) error {
	v := viper.New()
	v.SetConfigName("credentials")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil // credentials may come from the environment
		}
		return err
	}

	return v.Unmarshal(creds)
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DELTA_API_KEY"); v != "" {
		cfg.Credentials.APIKey = v
	}
	if v := os.Getenv("DELTA_API_SECRET"); v != "" {
		cfg.Credentials.APISecret = v
	}
	if v := os.Getenv("DELTA_BASE_URL"); v != "" {
		cfg.Credentials.BaseURL = v
	}
	if v := os.Getenv("TRADING_MODE"); v != "" {
		cfg.Trading.Mode = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Credentials.BaseURL == "" {
		cfg.Credentials.BaseURL = "https://api.india.delta.exchange"
	}
}

// Asset resolves the sizing overrides for an asset identifier. The second
// return value reports whether an explicit entry exists; absent entries get
// conservative defaults with trading disabled.
func (c *Config) Asset(id string) (AssetConfig, bool) {
	if a, ok := c.Assets[id]; ok {
		return a, true
	}
	return AssetConfig{
		Enabled:        false,
		TargetMargin:   100,
		Leverage:       5,
		ContractValue:  1,
		PartialExitPct: 0.5,
	}, false
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Trading.Mode != "" && c.Trading.Mode != "live" && c.Trading.Mode != "paper" {
		return fmt.Errorf("invalid trading mode: %s (must be 'live' or 'paper')", c.Trading.Mode)
	}
	if c.Limiter.MaxRequests <= 0 {
		return fmt.Errorf("limiter.max_requests must be positive")
	}
	if c.Limiter.Window <= 0 {
		return fmt.Errorf("limiter.window must be positive")
	}
	if c.Retry.MaxRetries < 0 {
		return fmt.Errorf("retry.max_retries must be non-negative")
	}
	if c.Retry.BackoffBase <= 0 || c.Retry.BackoffCap < c.Retry.BackoffBase {
		return fmt.Errorf("retry backoff must satisfy 0 < base <= cap")
	}
	for id, asset := range c.Assets {
		if asset.TargetMargin <= 0 {
			return fmt.Errorf("assets.%s.target_margin must be positive", id)
		}
		if asset.Leverage <= 0 {
			return fmt.Errorf("assets.%s.leverage must be positive", id)
		}
		if asset.PartialExitPct < 0 || asset.PartialExitPct > 1 {
			return fmt.Errorf("assets.%s.partial_exit_pct must be between 0 and 1", id)
		}
	}
	return nil
}

// IsPaperMode returns true if paper trading mode is enabled.
func (c *Config) IsPaperMode() bool {
	return c.Trading.Mode == "paper"
}
