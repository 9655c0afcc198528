// Package config loads and validates the clawrelay configuration file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultTTL is the pending-approval time-to-live when the config omits it.
const DefaultTTL = 3 * time.Minute

// Config is the root configuration.
type Config struct {
	Gateway   GatewayConfig   `yaml:"gateway"`
	Approvals ApprovalsConfig `yaml:"approvals"`
	Channels  ChannelsConfig  `yaml:"channels"`
}

// GatewayConfig points at the host gateway WebSocket endpoint.
type GatewayConfig struct {
	URL   string `yaml:"url"`
	Token string `yaml:"token"`
}

// ApprovalsConfig tunes the approval lifecycle.
type ApprovalsConfig struct {
	// TTL is a Go duration string ("90s", "3m"). Empty means DefaultTTL.
	TTL string `yaml:"ttl"`
}

// TTLDuration parses the configured TTL, falling back to DefaultTTL on an
// empty or malformed value.
func (a ApprovalsConfig) TTLDuration() time.Duration {
	if a.TTL == "" {
		return DefaultTTL
	}
	d, err := time.ParseDuration(a.TTL)
	if err != nil || d <= 0 {
		return DefaultTTL
	}
	return d
}

// ChannelsConfig holds per-platform settings.
type ChannelsConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
	Slack    SlackConfig    `yaml:"slack"`
}

type TelegramConfig struct {
	Enabled bool   `yaml:"enabled"`
	Token   string `yaml:"token"`
	ChatID  int64  `yaml:"chat_id"`
}

type SlackConfig struct {
	Enabled  bool   `yaml:"enabled"`
	BotToken string `yaml:"bot_token"`
	Channel  string `yaml:"channel"`
}

// DefaultPath returns the standard config location.
func DefaultPath() string {
	return ExpandHome("~/.clawrelay/config.yaml")
}

// Load reads, parses, and normalizes the config file. Environment variable
// overrides are applied after parsing so secrets can stay out of the file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyEnv overlays secret-bearing fields from the environment.
func (c *Config) applyEnv() {
	if v := os.Getenv("CLAWRELAY_GATEWAY_URL"); v != "" {
		c.Gateway.URL = v
	}
	if v := os.Getenv("CLAWRELAY_GATEWAY_TOKEN"); v != "" {
		c.Gateway.Token = v
	}
	if v := os.Getenv("CLAWRELAY_TELEGRAM_TOKEN"); v != "" {
		c.Channels.Telegram.Token = v
	}
	if v := os.Getenv("CLAWRELAY_SLACK_TOKEN"); v != "" {
		c.Channels.Slack.BotToken = v
	}
}

// Validate rejects configs the bridge cannot start with.
func (c *Config) Validate() error {
	if c.Gateway.URL == "" {
		return fmt.Errorf("gateway.url is required")
	}
	if !strings.HasPrefix(c.Gateway.URL, "ws://") && !strings.HasPrefix(c.Gateway.URL, "wss://") {
		return fmt.Errorf("gateway.url must be a ws:// or wss:// endpoint, got %q", c.Gateway.URL)
	}
	if c.Channels.Telegram.Enabled && c.Channels.Telegram.Token == "" {
		return fmt.Errorf("channels.telegram.token is required when telegram is enabled")
	}
	if c.Channels.Telegram.Enabled && c.Channels.Telegram.ChatID == 0 {
		return fmt.Errorf("channels.telegram.chat_id is required when telegram is enabled")
	}
	if c.Channels.Slack.Enabled && c.Channels.Slack.BotToken == "" {
		return fmt.Errorf("channels.slack.bot_token is required when slack is enabled")
	}
	if c.Channels.Slack.Enabled && c.Channels.Slack.Channel == "" {
		return fmt.Errorf("channels.slack.channel is required when slack is enabled")
	}
	return nil
}

// ExpandHome expands a leading ~ to the user's home directory.
func ExpandHome(path string) string {
	if path == "~" {
		home, _ := os.UserHomeDir()
		return home
	}
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[2:])
	}
	return path
}
