// Package config loads server settings from the environment and an optional
// YAML file named by TRIPSPLIT_CONFIG.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/mmynk/tripsplit/internal/money"
	"github.com/mmynk/tripsplit/internal/settlement"
)

// Settlement holds the defaults used when settling a trip.
type Settlement struct {
	Strategy        settlement.StrategyName `yaml:"strategy"`
	RoundingMode    money.RoundingMode      `yaml:"rounding_mode"`
	RemainderTarget money.RemainderTarget   `yaml:"remainder_target"`
}

// Config is the server configuration.
type Config struct {
	Port       int        `yaml:"port"`
	DBPath     string     `yaml:"db_path"`
	LogLevel   string     `yaml:"log_level"`
	Settlement Settlement `yaml:"settlement"`
	// Currencies overrides the decimal places of currency codes.
	Currencies map[string]int32 `yaml:"currencies"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Port:     8080,
		DBPath:   "./data/tripsplit.db",
		LogLevel: "info",
		Settlement: Settlement{
			Strategy:        settlement.StrategyPairwise,
			RoundingMode:    money.RoundHalfUp,
			RemainderTarget: money.LargestShare,
		},
	}
}

// Load reads the YAML file named by TRIPSPLIT_CONFIG, if any, on top of the
// defaults and then applies environment overrides.
func Load() (Config, error) {
	cfg := Default()

	if path := os.Getenv("TRIPSPLIT_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("invalid PORT %q: %w", v, err)
		}
		cfg.Port = port
	}
	cfg.DBPath = getenvDefault("DB_PATH", cfg.DBPath)
	cfg.LogLevel = getenvDefault("LOG_LEVEL", cfg.LogLevel)
	cfg.Settlement.Strategy = settlement.StrategyName(getenvDefault("SETTLEMENT_STRATEGY", string(cfg.Settlement.Strategy)))

	return cfg, cfg.Validate()
}

// Validate checks that the settlement defaults name known policies.
func (c Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.DBPath == "" {
		return fmt.Errorf("db path required")
	}
	if _, err := settlement.StrategyFor(c.Settlement.Strategy); err != nil {
		return err
	}
	if !c.Settlement.RoundingMode.Valid() {
		return fmt.Errorf("invalid rounding mode %q", c.Settlement.RoundingMode)
	}
	if !c.Settlement.RemainderTarget.Valid() {
		return fmt.Errorf("invalid remainder target %q", c.Settlement.RemainderTarget)
	}
	for code, places := range c.Currencies {
		if places < 0 {
			return fmt.Errorf("invalid decimal places %d for %s", places, code)
		}
	}
	return nil
}

func getenvDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
