// Package config reads process settings from the environment.
package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds process-level settings. Bot behaviour lives in the config
// store, not here.
type Config struct {
	ConfigDir    string   `env:"CONFIG_DIR" envDefault:"./data"`
	DiscordToken string   `env:"DISCORD_TOKEN"`
	ModulePaths  []string `env:"MODULE_PATHS" envSeparator:"," envDefault:"./modules"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	LogFile  string `env:"LOG_FILE"`

	ConfigWatch         bool          `env:"CONFIG_WATCH" envDefault:"true"`
	ConfigWatchInterval time.Duration `env:"CONFIG_WATCH_INTERVAL" envDefault:"2s"`
	ConfigBackups       int           `env:"CONFIG_BACKUPS" envDefault:"3"`
}

// Load reads .env when present, then the environment. The returned bool
// reports whether a .env file was found.
func Load() (*Config, bool, error) {
	found := godotenv.Load() == nil

	cfg, err := Parse()
	return cfg, found, err
}

// Parse reads the environment only.
func Parse() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if cfg.ConfigBackups < 0 {
		return nil, fmt.Errorf("CONFIG_BACKUPS must not be negative")
	}
	return &cfg, nil
}

// ConfigFile is the path of the bot's config.json.
func (c *Config) ConfigFile() string {
	return filepath.Join(c.ConfigDir, "config.json")
}
