// Package config loads the platform configuration from a YAML or JSON
// file, with environment-variable overrides for deployment knobs.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Config is the complete paper-trading configuration.
type Config struct {
	Account Account `json:"account" yaml:"account"`
	Risk    Risk    `json:"risk" yaml:"risk"`
	Sim     Sim     `json:"sim" yaml:"sim"`
	Venues  []Venue `json:"venues" yaml:"venues"`
	Storage Storage `json:"storage" yaml:"storage"`
	Logging Logging `json:"logging" yaml:"logging"`
}

// Account seeds the trading account.
type Account struct {
	Owner    string  `json:"owner" yaml:"owner"`
	Currency string  `json:"currency" yaml:"currency"`
	Balance  float64 `json:"balance" yaml:"balance"`
}

// Risk configures the gate's limits. A zero value disables the
// corresponding limit.
type Risk struct {
	MaxNotionalUSD  float64 `json:"max_notional_usd" yaml:"max_notional_usd"`
	MaxPositionPct  float64 `json:"max_position_pct" yaml:"max_position_pct"`
	MaxDrawdownPct  float64 `json:"max_drawdown_pct" yaml:"max_drawdown_pct"`
	MaxDailyLossPct float64 `json:"max_daily_loss_pct" yaml:"max_daily_loss_pct"`
	MaxTradesPerDay int     `json:"max_trades_per_day" yaml:"max_trades_per_day"`
	MaxExposurePct  float64 `json:"max_exposure_pct" yaml:"max_exposure_pct"`
}

// Sim configures the fill simulator.
type Sim struct {
	CommissionRate float64 `json:"commission_rate" yaml:"commission_rate"`
	WindowSize     int     `json:"window_size" yaml:"window_size"`
}

// Venue configures one venue and its distribution weight.
type Venue struct {
	Name   string  `json:"name" yaml:"name"`
	Weight float64 `json:"weight" yaml:"weight"`
}

// Storage selects the backing store for positions and history.
type Storage struct {
	Type string `json:"type" yaml:"type" env:"PAPERTRADE_STORAGE_TYPE"` // "memory" or "sqlite"
	Path string `json:"path,omitempty" yaml:"path,omitempty" env:"PAPERTRADE_STORAGE_PATH"`
}

// Logging configures the zap logger.
type Logging struct {
	Level string `json:"level" yaml:"level" env:"PAPERTRADE_LOG_LEVEL"`
}

// VenueTimeout is the per-venue dispatch timeout used by the
// coordinator. Fixed here rather than configured; a venue slower than
// this is a failed child result.
const VenueTimeout = 10 * time.Second

// LoadFromFile loads configuration from a YAML or JSON file, applies
// environment overrides and validates the result.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()

	if strings.HasSuffix(path, ".json") {
		err = json.Unmarshal(data, cfg)
	} else {
		err = yaml.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("apply env overrides: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// SaveToFile writes the configuration as YAML, or JSON for .json
// paths.
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error

	if strings.HasSuffix(path, ".json") {
		data, err = json.MarshalIndent(c, "", "  ")
	} else {
		data, err = yaml.Marshal(c)
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// Validate checks the configuration is usable.
func (c *Config) Validate() error {
	if c.Account.Owner == "" {
		return fmt.Errorf("account.owner is required")
	}
	if c.Account.Balance <= 0 {
		return fmt.Errorf("account.balance must be positive")
	}
	if c.Sim.CommissionRate < 0 {
		return fmt.Errorf("sim.commission_rate must not be negative")
	}
	if c.Sim.WindowSize <= 0 {
		return fmt.Errorf("sim.window_size must be positive")
	}
	if c.Storage.Type != "memory" && c.Storage.Type != "sqlite" {
		return fmt.Errorf("storage.type must be 'memory' or 'sqlite'")
	}
	if c.Storage.Type == "sqlite" && c.Storage.Path == "" {
		return fmt.Errorf("storage.path required for sqlite storage")
	}
	seen := map[string]bool{}
	for _, v := range c.Venues {
		if v.Name == "" {
			return fmt.Errorf("venue name is required")
		}
		if seen[v.Name] {
			return fmt.Errorf("duplicate venue %q", v.Name)
		}
		seen[v.Name] = true
		if v.Weight < 0 {
			return fmt.Errorf("venue %q weight must not be negative", v.Name)
		}
	}
	return nil
}

// Weights returns the configured venue weight map, or nil when no
// venue carries a weight (which means an even split).
func (c *Config) Weights() map[string]float64 {
	out := make(map[string]float64)
	any := false
	for _, v := range c.Venues {
		if v.Weight > 0 {
			out[v.Name] = v.Weight
			any = true
		}
	}
	if !any {
		return nil
	}
	return out
}

// Default returns a configuration with sensible defaults.
func Default() *Config {
	return &Config{
		Account: Account{
			Owner:    "paper-1",
			Currency: "USD",
			Balance:  100000,
		},
		Risk: Risk{
			MaxPositionPct:  0.25,
			MaxDrawdownPct:  0.20,
			MaxDailyLossPct: 0.05,
			MaxTradesPerDay: 50,
			MaxExposurePct:  1.0,
		},
		Sim: Sim{
			CommissionRate: 0.001,
			WindowSize:     100,
		},
		Venues: []Venue{
			{Name: "paper", Weight: 1},
		},
		Storage: Storage{Type: "memory"},
		Logging: Logging{Level: "info"},
	}
}
