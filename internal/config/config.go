// Package config loads service configuration from a TOML file with
// environment overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// Config holds all configuration for identityd.
type Config struct {
	Environment string        `toml:"environment"`
	Server      ServerConfig  `toml:"server"`
	Redis       RedisConfig   `toml:"redis"`
	Tokens      TokensConfig  `toml:"tokens"`
	Otp         OtpConfig     `toml:"otp"`
	RateLimits  RateConfig    `toml:"rate_limits"`
	Logging     LoggingConfig `toml:"logging"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Addr string `toml:"addr"`
}

// RedisConfig holds the shared Redis connection settings.
type RedisConfig struct {
	URL string `toml:"url"`
}

// TokensConfig holds signing and lifetime settings.
type TokensConfig struct {
	SigningSecret string `toml:"signing_secret"`
	Pepper        string `toml:"pepper"`
	AccessTTL     string `toml:"access_ttl"`
	RefreshTTL    string `toml:"refresh_ttl"`
}

// GetAccessTTL parses and returns the access token lifetime.
func (c *TokensConfig) GetAccessTTL() time.Duration {
	return parseDuration(c.AccessTTL, 10*time.Minute)
}

// GetRefreshTTL parses and returns the refresh token lifetime.
func (c *TokensConfig) GetRefreshTTL() time.Duration {
	return parseDuration(c.RefreshTTL, 30*24*time.Hour)
}

// OtpConfig holds one-time code settings.
type OtpConfig struct {
	TTL         string `toml:"ttl"`
	Digits      int    `toml:"digits"`
	MaxAttempts int    `toml:"max_attempts"`

	// DemoMode returns the raw code in the request response instead of
	// dispatching it. Test and demo environments only.
	DemoMode bool `toml:"demo_mode"`
}

// GetTTL parses and returns the challenge lifetime.
func (c *OtpConfig) GetTTL() time.Duration {
	return parseDuration(c.TTL, 5*time.Minute)
}

// RatePolicyConfig caps an operation at Limit per Window.
type RatePolicyConfig struct {
	Limit  int    `toml:"limit"`
	Window string `toml:"window"`
}

// GetWindow parses and returns the policy window.
func (c *RatePolicyConfig) GetWindow(fallback time.Duration) time.Duration {
	return parseDuration(c.Window, fallback)
}

// RateConfig holds per-operation admission policies.
type RateConfig struct {
	OtpRequest RatePolicyConfig `toml:"otp_request"`
	OtpVerify  RatePolicyConfig `toml:"otp_verify"`
	Refresh    RatePolicyConfig `toml:"refresh"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	Level string `toml:"level"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Environment: "development",
		Server:      ServerConfig{Addr: ":9000"},
		Redis:       RedisConfig{URL: "redis://localhost:6379/0"},
		Tokens: TokensConfig{
			AccessTTL:  "10m",
			RefreshTTL: "720h",
		},
		Otp: OtpConfig{
			TTL:         "5m",
			Digits:      6,
			MaxAttempts: 5,
		},
		RateLimits: RateConfig{
			OtpRequest: RatePolicyConfig{Limit: 5, Window: "1h"},
			OtpVerify:  RatePolicyConfig{Limit: 10, Window: "10m"},
			Refresh:    RatePolicyConfig{Limit: 30, Window: "10m"},
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load reads configuration from path (optional) and applies
// environment overrides. Secrets are expected from the environment in
// production; the file carries tunables.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks settings that have no sane fallback.
func (c *Config) Validate() error {
	if c.Tokens.SigningSecret == "" {
		return fmt.Errorf("tokens.signing_secret is required")
	}
	if c.Tokens.Pepper == "" {
		return fmt.Errorf("tokens.pepper is required")
	}
	if c.Otp.Digits < 4 || c.Otp.Digits > 10 {
		return fmt.Errorf("otp.digits must be between 4 and 10")
	}
	return nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("IDENTITY_ENV"); v != "" {
		cfg.Environment = v
	}
	if v := os.Getenv("IDENTITY_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("IDENTITY_REDIS_URL"); v != "" {
		cfg.Redis.URL = v
	}
	if v := os.Getenv("IDENTITY_SIGNING_SECRET"); v != "" {
		cfg.Tokens.SigningSecret = v
	}
	if v := os.Getenv("IDENTITY_PEPPER"); v != "" {
		cfg.Tokens.Pepper = v
	}
	if v := os.Getenv("IDENTITY_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("IDENTITY_OTP_DEMO_MODE"); v != "" {
		if demo, err := strconv.ParseBool(v); err == nil {
			cfg.Otp.DemoMode = demo
		}
	}
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
