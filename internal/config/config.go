package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

const (
	DefaultModel               = "gpt-4o-mini"
	DefaultMaxTokens           = 2048
	DefaultReviewIntervalMs    = 5 * 60 * 1000
	DefaultRetryIntervalMs     = 60 * 1000
	DefaultMaxAlertsPerReview  = 5
	DefaultReviewBackoffMs     = 10 * 60 * 1000
	DefaultDispatchDelayMs     = 1000
	DefaultMaxFailedDispatches = 50
	DefaultRetryBatchLimit     = 10
	DefaultStoreQuotaBytes     = 5 << 20
)

type Config struct {
	Agent    AgentConfig    `json:"agent"`
	Provider ProviderConfig `json:"provider"`
	Channels ChannelsConfig `json:"channels"`
	Store    StoreConfig    `json:"store"`
}

type AgentConfig struct {
	ReviewIntervalMs    int64 `json:"alertReviewIntervalMs"`
	RetryIntervalMs     int64 `json:"failedAlertRetryIntervalMs"`
	MaxAlertsPerReview  int   `json:"maxAlertsPerReview"`
	ReviewBackoffMs     int64 `json:"reviewBackoffMs"`
	DispatchDelayMs     int64 `json:"dispatchDelayMs"`
	MaxFailedDispatches int   `json:"maxFailedDispatches"`
	RetryBatchLimit     int   `json:"retryBatchLimit"`
}

type ProviderConfig struct {
	Type      string `json:"type,omitempty"` // "openai" (default) or "anthropic"
	APIKey    string `json:"apiKey"`
	BaseURL   string `json:"baseUrl,omitempty"`
	Model     string `json:"model,omitempty"`
	MaxTokens int    `json:"maxTokens,omitempty"`
}

type ChannelsConfig struct {
	Telegram TelegramConfig `json:"telegram"`
}

type TelegramConfig struct {
	Enabled bool   `json:"enabled"`
	Token   string `json:"token"`
	ChatID  int64  `json:"chatId"`
}

type StoreConfig struct {
	Path       string `json:"path"`
	QuotaBytes int64  `json:"quotaBytes"`
}

func DefaultConfig() *Config {
	return &Config{
		Agent: AgentConfig{
			ReviewIntervalMs:    DefaultReviewIntervalMs,
			RetryIntervalMs:     DefaultRetryIntervalMs,
			MaxAlertsPerReview:  DefaultMaxAlertsPerReview,
			ReviewBackoffMs:     DefaultReviewBackoffMs,
			DispatchDelayMs:     DefaultDispatchDelayMs,
			MaxFailedDispatches: DefaultMaxFailedDispatches,
			RetryBatchLimit:     DefaultRetryBatchLimit,
		},
		Provider: ProviderConfig{
			Model:     DefaultModel,
			MaxTokens: DefaultMaxTokens,
		},
		Channels: ChannelsConfig{},
		Store: StoreConfig{
			Path:       filepath.Join(ConfigDir(), "sentinel.db"),
			QuotaBytes: DefaultStoreQuotaBytes,
		},
	}
}

func ConfigDir() string {
	home := os.Getenv("HOME")
	if home == "" {
		home, _ = os.UserHomeDir()
	}
	return filepath.Join(home, ".sentinel")
}

func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.json")
}

func LoadConfig() (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(ConfigPath())
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if key := os.Getenv("SENTINEL_API_KEY"); key != "" {
		cfg.Provider.APIKey = key
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" && cfg.Provider.APIKey == "" {
		cfg.Provider.APIKey = key
		if cfg.Provider.Type == "" {
			cfg.Provider.Type = "openai"
		}
	}
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" && cfg.Provider.APIKey == "" {
		cfg.Provider.APIKey = key
		if cfg.Provider.Type == "" {
			cfg.Provider.Type = "anthropic"
		}
	}
	if url := os.Getenv("SENTINEL_BASE_URL"); url != "" {
		cfg.Provider.BaseURL = url
	}
	if model := os.Getenv("SENTINEL_MODEL"); model != "" {
		cfg.Provider.Model = model
	}
	if token := os.Getenv("SENTINEL_TELEGRAM_TOKEN"); token != "" {
		cfg.Channels.Telegram.Token = token
		cfg.Channels.Telegram.Enabled = true
	}
	if chat := os.Getenv("SENTINEL_TELEGRAM_CHAT_ID"); chat != "" {
		if parsed, err := strconv.ParseInt(chat, 10, 64); err == nil {
			cfg.Channels.Telegram.ChatID = parsed
		}
	}
	if path := os.Getenv("SENTINEL_STORE_PATH"); path != "" {
		cfg.Store.Path = path
	}
	if quota := os.Getenv("SENTINEL_STORE_QUOTA_BYTES"); quota != "" {
		if parsed, err := strconv.ParseInt(quota, 10, 64); err == nil {
			cfg.Store.QuotaBytes = parsed
		}
	}
	if interval := os.Getenv("SENTINEL_REVIEW_INTERVAL_MS"); interval != "" {
		if parsed, err := strconv.ParseInt(interval, 10, 64); err == nil {
			cfg.Agent.ReviewIntervalMs = parsed
		}
	}
	if interval := os.Getenv("SENTINEL_RETRY_INTERVAL_MS"); interval != "" {
		if parsed, err := strconv.ParseInt(interval, 10, 64); err == nil {
			cfg.Agent.RetryIntervalMs = parsed
		}
	}

	cfg.ApplyDefaults()

	return cfg, nil
}

// ApplyDefaults backfills zero values so a partially written config file
// never produces a stalled scheduler or an unbounded collection.
func (c *Config) ApplyDefaults() {
	if c.Agent.ReviewIntervalMs <= 0 {
		c.Agent.ReviewIntervalMs = DefaultReviewIntervalMs
	}
	if c.Agent.RetryIntervalMs <= 0 {
		c.Agent.RetryIntervalMs = DefaultRetryIntervalMs
	}
	if c.Agent.MaxAlertsPerReview <= 0 {
		c.Agent.MaxAlertsPerReview = DefaultMaxAlertsPerReview
	}
	if c.Agent.ReviewBackoffMs <= 0 {
		c.Agent.ReviewBackoffMs = DefaultReviewBackoffMs
	}
	if c.Agent.DispatchDelayMs <= 0 {
		c.Agent.DispatchDelayMs = DefaultDispatchDelayMs
	}
	if c.Agent.MaxFailedDispatches <= 0 {
		c.Agent.MaxFailedDispatches = DefaultMaxFailedDispatches
	}
	if c.Agent.RetryBatchLimit <= 0 {
		c.Agent.RetryBatchLimit = DefaultRetryBatchLimit
	}
	if c.Provider.Model == "" {
		c.Provider.Model = DefaultModel
	}
	if c.Provider.MaxTokens <= 0 {
		c.Provider.MaxTokens = DefaultMaxTokens
	}
	if c.Store.Path == "" {
		c.Store.Path = DefaultConfig().Store.Path
	}
	if c.Store.QuotaBytes <= 0 {
		c.Store.QuotaBytes = DefaultStoreQuotaBytes
	}
}

func (a AgentConfig) ReviewInterval() time.Duration {
	return time.Duration(a.ReviewIntervalMs) * time.Millisecond
}

func (a AgentConfig) RetryInterval() time.Duration {
	return time.Duration(a.RetryIntervalMs) * time.Millisecond
}

func (a AgentConfig) ReviewBackoff() time.Duration {
	return time.Duration(a.ReviewBackoffMs) * time.Millisecond
}

func (a AgentConfig) DispatchDelay() time.Duration {
	return time.Duration(a.DispatchDelayMs) * time.Millisecond
}

func SaveConfig(cfg *Config) error {
	dir := ConfigDir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	return os.WriteFile(ConfigPath(), data, 0644)
}
