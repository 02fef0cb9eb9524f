package config

import (
	"fmt"
	"time"
)

// Default endpoint and listener values. The listen port matches what the
// desktop client expects to find on the local machine.
const (
	DefaultListenAddr  = "127.0.0.1:9977"
	DefaultAuthURL     = "https://auth.gog.com"
	DefaultEmbedURL    = "https://embed.gog.com"
	DefaultGameplayURL = "https://gameplay.gog.com"
	DefaultPusherURL   = "wss://notifications-pusher.gog.com"
)

// DefaultTopics are the pusher topics subscribed for every session.
var DefaultTopics = []string{"chat", "friends", "presence"}

// Config represents a gantry.yaml configuration file. All values are
// optional defaults for gantry serve flags; CLI flags always override
// config values.
type Config struct {
	Listen   string        `yaml:"listen"`
	LogLevel string        `yaml:"log_level"`
	Auth     AuthConfig    `yaml:"auth"`
	Backend  BackendConfig `yaml:"backend"`
	Pusher   PusherConfig  `yaml:"pusher"`
	Session  SessionConfig `yaml:"session"`
}

// AuthConfig carries the gateway user's credentials and identity.
type AuthConfig struct {
	AccessToken  string `yaml:"access_token"`
	RefreshToken string `yaml:"refresh_token"`
	UserID       uint64 `yaml:"user_id"`
	Username     string `yaml:"username"`
}

// BackendConfig holds the remote service endpoints.
type BackendConfig struct {
	AuthURL     string   `yaml:"auth_url"`
	EmbedURL    string   `yaml:"embed_url"`
	GameplayURL string   `yaml:"gameplay_url"`
	Timeout     Duration `yaml:"timeout"`
}

// PusherConfig holds the notification pusher settings. Disabled turns
// the bridge off entirely.
type PusherConfig struct {
	URL      string   `yaml:"url"`
	Topics   []string `yaml:"topics"`
	Validate bool     `yaml:"validate"`
	Disabled bool     `yaml:"disabled"`
}

// SessionConfig tunes the per-connection read loop.
type SessionConfig struct {
	ReadTick    Duration `yaml:"read_tick"`
	BodyTimeout Duration `yaml:"body_timeout"`
}

// Duration wraps time.Duration for YAML string parsing (e.g. "10s", "5m").
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string like "10s" or "5m30s".
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

// ApplyDefaults fills in every unset endpoint and listener value.
func (c *Config) ApplyDefaults() {
	if c.Listen == "" {
		c.Listen = DefaultListenAddr
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Backend.AuthURL == "" {
		c.Backend.AuthURL = DefaultAuthURL
	}
	if c.Backend.EmbedURL == "" {
		c.Backend.EmbedURL = DefaultEmbedURL
	}
	if c.Backend.GameplayURL == "" {
		c.Backend.GameplayURL = DefaultGameplayURL
	}
	if c.Pusher.URL == "" {
		c.Pusher.URL = DefaultPusherURL
	}
	if len(c.Pusher.Topics) == 0 {
		c.Pusher.Topics = append([]string(nil), DefaultTopics...)
	}
}

// Validate rejects configurations the gateway cannot start with.
func (c *Config) Validate() error {
	if c.Auth.AccessToken == "" {
		return fmt.Errorf("auth.access_token is required")
	}
	if c.Auth.RefreshToken == "" {
		return fmt.Errorf("auth.refresh_token is required")
	}
	if c.Auth.UserID == 0 {
		return fmt.Errorf("auth.user_id is required")
	}
	if c.Auth.Username == "" {
		return fmt.Errorf("auth.username is required")
	}
	return nil
}
