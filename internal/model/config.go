package model

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// DefaultAPIBaseURL is the root URL of the upstream notifications API.
const DefaultAPIBaseURL = "https://api.github.com"

// RefreshIntervals is the enumerated set of allowed refresh intervals.
var RefreshIntervals = []time.Duration{
	15 * time.Second,
	30 * time.Second,
	60 * time.Second,
	5 * time.Minute,
	15 * time.Minute,
	30 * time.Minute,
	time.Hour,
}

// DefaultRefreshInterval is used when no interval is configured.
const DefaultRefreshInterval = 60 * time.Second

// NormalizeRefreshInterval clamps an arbitrary configured interval to the
// nearest allowed value in RefreshIntervals. Non-positive values resolve
// to the default.
func NormalizeRefreshInterval(d time.Duration) time.Duration {
	if d <= 0 {
		return DefaultRefreshInterval
	}
	best := RefreshIntervals[0]
	bestDiff := absDuration(d - best)
	for _, allowed := range RefreshIntervals[1:] {
		if diff := absDuration(d - allowed); diff < bestDiff {
			best = allowed
			bestDiff = diff
		}
	}
	return best
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	// APIBaseURL is the root URL of the upstream API.
	APIBaseURL string `mapstructure:"api_base_url" yaml:"api_base_url"`

	// RefreshIntervalSec is how often (in seconds) the scheduler
	// triggers a sync. Clamped to RefreshIntervals on load.
	RefreshIntervalSec int `mapstructure:"refresh_interval_sec" yaml:"refresh_interval_sec"`

	// DatabasePath is the location of the SQLite cache database.
	DatabasePath string `mapstructure:"database_path" yaml:"database_path"`

	// LogLevel controls log verbosity (debug, info, warn, error).
	LogLevel string `mapstructure:"log_level" yaml:"log_level"`
}

// RefreshInterval returns the configured interval normalized to the
// allowed set.
func (c *AppConfig) RefreshInterval() time.Duration {
	return NormalizeRefreshInterval(
		time.Duration(c.RefreshIntervalSec) * time.Second,
	)
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/ghnotify/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "ghnotify", "config.yaml")
}

// DefaultDatabasePath returns the default path for the cache database,
// located at ~/.config/ghnotify/cache.db.
func DefaultDatabasePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "cache.db")
	}
	return filepath.Join(home, ".config", "ghnotify", "cache.db")
}

// defaultAppConfig returns a sensible default configuration.
func defaultAppConfig() *AppConfig {
	return &AppConfig{
		APIBaseURL:         DefaultAPIBaseURL,
		RefreshIntervalSec: int(DefaultRefreshInterval / time.Second),
		DatabasePath:       DefaultDatabasePath(),
		LogLevel:           "info",
	}
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// If the file does not exist, it returns a default configuration.
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	// Set defaults so missing keys resolve to sensible values.
	v.SetDefault("api_base_url", DefaultAPIBaseURL)
	v.SetDefault("refresh_interval_sec", int(DefaultRefreshInterval/time.Second))
	v.SetDefault("database_path", DefaultDatabasePath())
	v.SetDefault("log_level", "info")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(*os.PathError); ok {
			return defaultAppConfig(), nil
		}
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return defaultAppConfig(), nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := defaultAppConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	return cfg, nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("api_base_url", cfg.APIBaseURL)
	v.Set("refresh_interval_sec", cfg.RefreshIntervalSec)
	v.Set("database_path", cfg.DatabasePath)
	v.Set("log_level", cfg.LogLevel)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
