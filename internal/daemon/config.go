// Package daemon manages the habitforge runtime lifecycle and configuration.
package daemon

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/habitforge/habitforge/internal/app/engagement"
	"github.com/habitforge/habitforge/internal/infra/redis"
)

// Config holds all daemon configuration.
type Config struct {
	API           APIConfig                     `toml:"api"`
	Logging       LoggingConfig                 `toml:"logging"`
	Calendar      CalendarConfig                `toml:"calendar"`
	Sweep         SweepConfig                   `toml:"sweep"`
	Badges        BadgesConfig                  `toml:"badges"`
	Notifications engagement.NotificationPolicy `toml:"notifications"`
	Redis         redis.Config                  `toml:"redis"`
	Telemetry     TelemetryConfig               `toml:"telemetry"`
}

// APIConfig controls the HTTP API server.
type APIConfig struct {
	Host        string   `toml:"host"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level     string `toml:"level"`
	File      string `toml:"file"`
	MaxSizeMB int    `toml:"max_size_mb"`
	MaxFiles  int    `toml:"max_files"`
}

// CalendarConfig fixes the time zone periods are computed in.
type CalendarConfig struct {
	Timezone string `toml:"timezone"` // IANA name or "Local"
}

// SweepConfig controls the periodic elapsed-period sweep.
type SweepConfig struct {
	Interval string `toml:"interval"`
	Workers  int    `toml:"workers"`
}

// BadgesConfig is the badge catalog plus per-habit streak tiers.
type BadgesConfig struct {
	engagement.CatalogConfig
	HabitMilestones []int `toml:"habit_milestones"`
}

// TelemetryConfig controls metrics exposure.
type TelemetryConfig struct {
	Prometheus bool `toml:"prometheus"`
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() Config {
	homeDir := habitforgeHome()
	return Config{
		API: APIConfig{
			Host:        "127.0.0.1",
			Port:        7420,
			CORSOrigins: []string{"*"},
		},
		Logging: LoggingConfig{
			Level:     "info",
			File:      filepath.Join(homeDir, "habitforge.log"),
			MaxSizeMB: 10,
			MaxFiles:  3,
		},
		Calendar: CalendarConfig{
			Timezone: "Local",
		},
		Sweep: SweepConfig{
			Interval: "15m",
			Workers:  4,
		},
		Badges: BadgesConfig{
			CatalogConfig:   engagement.DefaultCatalogConfig(),
			HabitMilestones: append([]int(nil), engagement.DefaultHabitMilestones...),
		},
		Redis: redis.Config{
			Addr:    "127.0.0.1:6379",
			Channel: redis.DefaultChannel,
		},
		Telemetry: TelemetryConfig{
			Prometheus: true,
		},
	}
}

// LoadConfig reads config from ~/.habitforge/config.toml, falling back to defaults.
func LoadConfig() (Config, error) {
	return LoadConfigFile(filepath.Join(habitforgeHome(), "config.toml"))
}

// LoadConfigFile reads config from path over the defaults.
func LoadConfigFile(path string) (Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil // No config file yet, use defaults
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	if _, err := cfg.Location(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// SaveConfig writes the config to ~/.habitforge/config.toml.
func SaveConfig(cfg Config) error {
	path := filepath.Join(habitforgeHome(), "config.toml")
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	encoder := toml.NewEncoder(f)
	return encoder.Encode(cfg)
}

// Location resolves the calendar time zone.
func (c Config) Location() (*time.Location, error) {
	switch c.Calendar.Timezone {
	case "", "Local":
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Calendar.Timezone)
	if err != nil {
		return nil, fmt.Errorf("calendar timezone %q: %w", c.Calendar.Timezone, err)
	}
	return loc, nil
}

// SweepInterval parses the sweep interval, defaulting to 15 minutes.
func (c Config) SweepInterval() time.Duration {
	return parseDuration(c.Sweep.Interval, 15*time.Minute)
}

// habitforgeHome returns the data directory.
func habitforgeHome() string {
	if env := os.Getenv("HABITFORGE_HOME"); env != "" {
		return env
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".habitforge")
}

// Home is exported for use by other packages.
func Home() string {
	return habitforgeHome()
}

// parseDuration parses a duration string, returning a fallback on error.
func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
