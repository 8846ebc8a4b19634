// Package config loads runtime configuration from the environment.
//
// Values come from INVENTORY_-prefixed environment variables (a .env file in
// the working directory is loaded first). A double underscore separates
// nested keys, so INVENTORY_SERVER__PORT sets server.port. Anything unset
// keeps its default, and CLI flags override the result.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	_ "github.com/joho/godotenv/autoload"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is the prefix of every environment variable read by Load
const EnvPrefix = "INVENTORY_"

// Config is the root configuration object
type Config struct {
	DataDir     string            `koanf:"data_dir" validate:"required"`
	Log         LogConfig         `koanf:"log"`
	Server      ServerConfig      `koanf:"server"`
	Maintenance MaintenanceConfig `koanf:"maintenance"`
	Watch       WatchConfig       `koanf:"watch"`
}

// LogConfig controls log verbosity and the rotating log file
type LogConfig struct {
	Level string `koanf:"level" validate:"oneof=info debug trace"`
	// File is the log file path; empty places it next to the database
	File       string `koanf:"file"`
	MaxSizeMB  int    `koanf:"max_size_mb" validate:"gt=0"`
	MaxBackups int    `koanf:"max_backups" validate:"gte=0"`
	MaxAgeDays int    `koanf:"max_age_days" validate:"gte=0"`
	Compress   bool   `koanf:"compress"`
}

// ServerConfig groups settings for the HTTP surface started by `serve`
type ServerConfig struct {
	Bind        string `koanf:"bind" validate:"omitempty,ip"`
	Port        int    `koanf:"port" validate:"gte=1,lte=65535"`
	AllowSubnet string `koanf:"allow_subnet" validate:"omitempty,cidr"`
}

// MaintenanceConfig holds cron expressions for storage upkeep.
// An empty schedule disables that task.
type MaintenanceConfig struct {
	OptimizeSchedule string `koanf:"optimize_schedule"`
	VacuumSchedule   string `koanf:"vacuum_schedule"`
}

// WatchConfig controls detection of writes made by other processes
type WatchConfig struct {
	Enabled  bool          `koanf:"enabled"`
	Debounce time.Duration `koanf:"debounce" validate:"gte=0"`
}

// Default returns the configuration used when nothing is set
func Default() *Config {
	return &Config{
		DataDir: ".",
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  50,
			MaxBackups: 5,
			MaxAgeDays: 30,
			Compress:   true,
		},
		Server: ServerConfig{
			Bind: "127.0.0.1",
			Port: 8080,
		},
		Maintenance: MaintenanceConfig{
			OptimizeSchedule: "@daily",
			VacuumSchedule:   "@weekly",
		},
		Watch: WatchConfig{
			Enabled:  true,
			Debounce: 250 * time.Millisecond,
		},
	}
}

// envKey maps INVENTORY_SERVER__PORT to server.port
func envKey(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
}

// Load reads the environment over the defaults and validates the result
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks field constraints; call it again after applying CLI flags
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
