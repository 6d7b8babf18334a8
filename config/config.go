// Package config is the process configuration: read once at startup,
// validated, then immutable. Secrets never live in the file; the file names
// the environment variables that hold them.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the complete engine configuration for one profile.
type Config struct {
	Profile    ProfileConfig    `json:"profile" yaml:"profile"`
	Risk       RiskConfig       `json:"risk" yaml:"risk"`
	Compliance ComplianceConfig `json:"compliance" yaml:"compliance"`
	Venue      VenueConfig      `json:"venue" yaml:"venue"`
	Journal    JournalConfig    `json:"journal" yaml:"journal"`
	Agent      AgentConfig      `json:"agent" yaml:"agent"`
	Metrics    MetricsConfig    `json:"metrics" yaml:"metrics"`
}

// ProfileConfig selects the operating profile and its universe.
type ProfileConfig struct {
	Name         string   `json:"name" yaml:"name"` // "fast" or "slow"
	Universe     []string `json:"universe" yaml:"universe"`
	IntervalSec  int      `json:"interval_sec,omitempty" yaml:"interval_sec,omitempty"` // fast profile
	IntervalMin  int      `json:"interval_min,omitempty" yaml:"interval_min,omitempty"` // slow profile
	Timezone     string   `json:"timezone,omitempty" yaml:"timezone,omitempty"`         // slow profile session tz
	LookbackBars int      `json:"lookback_bars" yaml:"lookback_bars"`
}

// RiskConfig contains the hard limits the ledger enforces.
type RiskConfig struct {
	MaxPositionPct float64 `json:"max_position_pct" yaml:"max_position_pct"`
	DailyLossLimit float64 `json:"daily_loss_limit" yaml:"daily_loss_limit"`
}

// ComplianceConfig controls the verdict cache.
type ComplianceConfig struct {
	TTLMinutes int `json:"ttl_minutes" yaml:"ttl_minutes"`
}

// VenueConfig selects the execution venue. API credentials are read from the
// named environment variables, never from this file.
type VenueConfig struct {
	Type         string `json:"type" yaml:"type"` // "binance" or "sim"
	Testnet      bool   `json:"testnet" yaml:"testnet"`
	APIKeyEnv    string `json:"api_key_env,omitempty" yaml:"api_key_env,omitempty"`
	SecretKeyEnv string `json:"secret_key_env,omitempty" yaml:"secret_key_env,omitempty"`
}

// APIKey resolves the venue API key from the environment.
func (v VenueConfig) APIKey() string {
	return os.Getenv(v.APIKeyEnv)
}

// SecretKey resolves the venue secret from the environment.
func (v VenueConfig) SecretKey() string {
	return os.Getenv(v.SecretKeyEnv)
}

// JournalConfig contains audit-store parameters.
type JournalConfig struct {
	DBPath  string `json:"db_path" yaml:"db_path"`
	CSVPath string `json:"csv_path,omitempty" yaml:"csv_path,omitempty"` // optional flat-file mirror
}

// AgentConfig selects the reasoning provider.
type AgentConfig struct {
	Provider   string `json:"provider" yaml:"provider"` // "openai" or "hold"
	BaseURL    string `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	Model      string `json:"model,omitempty" yaml:"model,omitempty"`
	APIKeyEnv  string `json:"api_key_env,omitempty" yaml:"api_key_env,omitempty"`
	TimeoutSec int    `json:"timeout_sec" yaml:"timeout_sec"`
}

// APIKey resolves the provider API key from the environment.
func (a AgentConfig) APIKey() string {
	return os.Getenv(a.APIKeyEnv)
}

// Timeout returns the provider call deadline.
func (a AgentConfig) Timeout() time.Duration {
	return time.Duration(a.TimeoutSec) * time.Second
}

// MetricsConfig controls the Prometheus endpoint. Empty Addr disables it.
type MetricsConfig struct {
	Addr string `json:"addr,omitempty" yaml:"addr,omitempty"`
}

// LoadDotenv loads a .env file into the process environment before secrets
// are resolved. A missing file is not an error.
func LoadDotenv(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

// LoadFromFile loads configuration from a file (YAML or JSON).
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()

	// Try YAML first, fall back to JSON
	if err := yaml.Unmarshal(data, cfg); err != nil {
		if jerr := json.Unmarshal(data, cfg); jerr != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// SaveToFile writes the configuration as YAML.
func (c *Config) SaveToFile(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Profile.Name != "fast" && c.Profile.Name != "slow" {
		return fmt.Errorf("profile.name must be 'fast' or 'slow'")
	}
	if len(c.Profile.Universe) == 0 {
		return fmt.Errorf("profile.universe must name at least one instrument")
	}
	if c.Profile.Name == "fast" && c.Profile.IntervalSec <= 0 {
		return fmt.Errorf("profile.interval_sec must be positive for the fast profile")
	}
	if c.Profile.Name == "slow" {
		if c.Profile.IntervalMin <= 0 {
			return fmt.Errorf("profile.interval_min must be positive for the slow profile")
		}
		if _, err := time.LoadLocation(c.Profile.Timezone); err != nil {
			return fmt.Errorf("profile.timezone: %w", err)
		}
	}
	if c.Profile.LookbackBars < 35 {
		return fmt.Errorf("profile.lookback_bars must be at least 35 to warm every indicator")
	}
	if c.Risk.MaxPositionPct <= 0 || c.Risk.MaxPositionPct > 1 {
		return fmt.Errorf("risk.max_position_pct must be between 0 and 1")
	}
	if c.Risk.DailyLossLimit <= 0 || c.Risk.DailyLossLimit > 1 {
		return fmt.Errorf("risk.daily_loss_limit must be between 0 and 1")
	}
	if c.Compliance.TTLMinutes <= 0 {
		return fmt.Errorf("compliance.ttl_minutes must be positive")
	}
	if c.Venue.Type != "binance" && c.Venue.Type != "sim" {
		return fmt.Errorf("venue.type must be 'binance' or 'sim'")
	}
	if c.Journal.DBPath == "" {
		return fmt.Errorf("journal.db_path is required")
	}
	if c.Agent.Provider != "openai" && c.Agent.Provider != "hold" {
		return fmt.Errorf("agent.provider must be 'openai' or 'hold'")
	}
	if c.Agent.Provider == "openai" {
		if c.Agent.BaseURL == "" || c.Agent.Model == "" {
			return fmt.Errorf("agent.base_url and agent.model are required for the openai provider")
		}
		if c.Agent.TimeoutSec <= 0 {
			return fmt.Errorf("agent.timeout_sec must be positive")
		}
	}
	return nil
}

// Default returns a configuration with sensible defaults: the fast profile
// on the Binance spot testnet, paper-safe out of the box.
func Default() *Config {
	return &Config{
		Profile: ProfileConfig{
			Name:         "fast",
			Universe:     []string{"BTCUSDT", "ETHUSDT"},
			IntervalSec:  30,
			IntervalMin:  5,
			Timezone:     "America/New_York",
			LookbackBars: 64,
		},
		Risk: RiskConfig{
			MaxPositionPct: 0.20,
			DailyLossLimit: 0.02,
		},
		Compliance: ComplianceConfig{
			TTLMinutes: 1440,
		},
		Venue: VenueConfig{
			Type:         "binance",
			Testnet:      true,
			APIKeyEnv:    "BINANCE_API_KEY",
			SecretKeyEnv: "BINANCE_SECRET_KEY",
		},
		Journal: JournalConfig{
			DBPath: "./tradebot.db",
		},
		Agent: AgentConfig{
			Provider:   "openai",
			BaseURL:    "https://api.openai.com",
			Model:      "gpt-4o-mini",
			APIKeyEnv:  "OPENAI_API_KEY",
			TimeoutSec: 30,
		},
	}
}
