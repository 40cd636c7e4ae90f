// Package config loads the client configuration from a YAML file with
// environment-variable overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/prepdeck/prepdeck/internal/idle"
)

// Config is the client's runtime configuration.
type Config struct {
	// ServerURL is the base URL of the prepdeck auth API.
	ServerURL string `yaml:"server_url"`

	// IdleTimeout is the inactivity window after which the session
	// expires.
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// DataDir holds the persisted session document. Empty means
	// ~/.prepdeck/
	DataDir string `yaml:"data_dir"`

	Debug bool `yaml:"debug"`

	// Google OAuth client used to obtain a sign-in credential.
	GoogleClientID     string `yaml:"google_client_id"`
	GoogleClientSecret string `yaml:"google_client_secret"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		ServerURL:   "https://api.prepdeck.app",
		IdleTimeout: idle.DefaultThreshold,
	}
}

// Load reads the config file at path (default ~/.prepdeck/config.yaml when
// empty), then applies PREPDECK_* environment overrides. A missing file is
// not an error; defaults apply.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return cfg, fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(home, ".prepdeck", "config.yaml")
	}

	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}
	if err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	applyEnv(&cfg)

	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = idle.DefaultThreshold
	}

	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.ServerURL = getenv("PREPDECK_SERVER_URL", cfg.ServerURL)
	cfg.DataDir = getenv("PREPDECK_DATA_DIR", cfg.DataDir)
	cfg.GoogleClientID = getenv("PREPDECK_GOOGLE_CLIENT_ID", cfg.GoogleClientID)
	cfg.GoogleClientSecret = getenv("PREPDECK_GOOGLE_CLIENT_SECRET", cfg.GoogleClientSecret)
	cfg.IdleTimeout = getenvDuration("PREPDECK_IDLE_TIMEOUT", cfg.IdleTimeout)
	if os.Getenv("PREPDECK_DEBUG") != "" {
		cfg.Debug = true
	}
}

func getenv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
	}
	return fallback
}
