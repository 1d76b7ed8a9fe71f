// Package config reads runtime settings from the environment, optionally
// seeded from a .env file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/JonMunkholm/askdb/internal/database"
	"github.com/JonMunkholm/askdb/internal/llm"
)

// LookupFunc resolves one configuration key.
type LookupFunc func(string) (string, bool)

// Config is the resolved process configuration. It is built once at startup
// and passed explicitly to the components that need it.
type Config struct {
	Addr         string
	ExamplesPath string
	DB           DBConfig
	LLM          llm.Config
	Log          LogConfig
}

// DBConfig selects the target database.
type DBConfig struct {
	Driver string // database.DriverSQLite or database.DriverPostgres
	DSN    string // file path for sqlite3, connection URL for postgres
}

// LogConfig controls the zap logger.
type LogConfig struct {
	Level string
	JSON  bool
}

func defaults() Config {
	return Config{
		Addr:         ":8080",
		ExamplesPath: "examples.json",
		DB: DBConfig{
			Driver: database.DriverSQLite,
			DSN:    "school.db",
		},
		LLM: llm.Config{
			Provider: "gemini",
		},
		Log: LogConfig{Level: "info"},
	}
}

// LoadFromEnv loads .env files if present (silently ignores missing ones)
// and reads the process environment.
func LoadFromEnv(envFiles ...string) (Config, error) {
	_ = godotenv.Load(envFiles...)
	return Load(os.LookupEnv)
}

// Load builds a Config from lookup, applying defaults for unset keys.
func Load(lookup LookupFunc) (Config, error) {
	if lookup == nil {
		return Config{}, fmt.Errorf("lookup function is required")
	}
	cfg := defaults()

	applyString(lookup, "ADDR", &cfg.Addr)
	applyString(lookup, "EXAMPLES_PATH", &cfg.ExamplesPath)
	applyString(lookup, "DB_DRIVER", &cfg.DB.Driver)
	applyString(lookup, "DB_DSN", &cfg.DB.DSN)
	applyString(lookup, "LLM_PROVIDER", &cfg.LLM.Provider)
	applyString(lookup, "GOOGLE_API_KEY", &cfg.LLM.APIKey)
	applyString(lookup, "LLM_API_KEY", &cfg.LLM.APIKey)
	applyString(lookup, "LLM_MODEL", &cfg.LLM.Model)
	applyString(lookup, "LLM_BASE_URL", &cfg.LLM.BaseURL)
	applyString(lookup, "LOG_LEVEL", &cfg.Log.Level)

	if err := applyDuration(lookup, "LLM_TIMEOUT", &cfg.LLM.Timeout); err != nil {
		return Config{}, err
	}
	if err := applyBool(lookup, "LOG_JSON", &cfg.Log.JSON); err != nil {
		return Config{}, err
	}

	cfg.DB.Driver = strings.ToLower(cfg.DB.Driver)
	cfg.LLM.Provider = strings.ToLower(cfg.LLM.Provider)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks values that cannot be defaulted.
func (c Config) Validate() error {
	switch c.DB.Driver {
	case database.DriverSQLite, database.DriverPostgres:
	default:
		return fmt.Errorf("invalid DB_DRIVER: %q (supported: %s, %s)", c.DB.Driver, database.DriverSQLite, database.DriverPostgres)
	}
	if c.DB.DSN == "" {
		return fmt.Errorf("DB_DSN is required")
	}
	switch c.LLM.Provider {
	case "gemini", "openai", "anthropic":
	default:
		return fmt.Errorf("invalid LLM_PROVIDER: %q (supported: gemini, openai, anthropic)", c.LLM.Provider)
	}
	if c.LLM.Timeout < 0 {
		return fmt.Errorf("LLM_TIMEOUT must not be negative")
	}
	return nil
}

func applyString(lookup LookupFunc, key string, dst *string) {
	if raw, ok := lookup(key); ok {
		if v := strings.TrimSpace(raw); v != "" {
			*dst = v
		}
	}
}

func applyDuration(lookup LookupFunc, key string, dst *time.Duration) error {
	raw, ok := lookup(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = d
	return nil
}

func applyBool(lookup LookupFunc, key string, dst *bool) error {
	raw, ok := lookup(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return nil
	}
	b, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = b
	return nil
}
