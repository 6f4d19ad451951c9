// Package config loads service configuration from an optional yaml file
// overlaid by environment variables.
package config

import (
	"errors"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config defines the service configuration.
type Config struct {
	DatabaseURL    string        `yaml:"database_url"`
	HTTPAddr       string        `yaml:"http_addr"`
	JWTSecret      string        `yaml:"jwt_secret"`
	CustodyAddress string        `yaml:"custody_address"`
	GenesisTime    time.Time     `yaml:"genesis_time"`
	BlockInterval  time.Duration `yaml:"block_interval"`
}

// Load reads the yaml file named by SUBSIDY_CONFIG when set, then applies
// environment overrides. DATABASE_URL may be empty; the service then runs on
// in-memory storage.
func Load() (Config, error) {
	cfg := Config{
		HTTPAddr:      ":8080",
		BlockInterval: time.Hour,
	}

	if path := os.Getenv("SUBSIDY_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}

	cfg.DatabaseURL = getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", cfg.DatabaseURL))
	cfg.HTTPAddr = getenvDefault("HTTP_ADDR", cfg.HTTPAddr)
	cfg.JWTSecret = getenvDefault("AUTH_JWT_SECRET", getenvDefault("JWT_SECRET", cfg.JWTSecret))
	cfg.CustodyAddress = getenvDefault("POOL_CUSTODY_ADDRESS", cfg.CustodyAddress)
	if raw := os.Getenv("GENESIS_TIME"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return cfg, errors.New("config: GENESIS_TIME must be RFC3339")
		}
		cfg.GenesisTime = parsed
	}
	cfg.BlockInterval = getenvDuration("BLOCK_INTERVAL", cfg.BlockInterval)

	if cfg.JWTSecret == "" {
		return cfg, errors.New("config: AUTH_JWT_SECRET is required")
	}
	if cfg.CustodyAddress == "" {
		return cfg, errors.New("config: POOL_CUSTODY_ADDRESS is required")
	}
	if cfg.GenesisTime.IsZero() {
		return cfg, errors.New("config: GENESIS_TIME is required")
	}
	if cfg.BlockInterval <= 0 {
		return cfg, errors.New("config: block interval must be positive")
	}
	return cfg, nil
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}
