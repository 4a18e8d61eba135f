// Package config provides application configuration management.
// Configuration is loaded from environment variables following 12-factor principles.
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config holds all application configuration.
// All fields are populated from environment variables. Loaded once at
// startup and injected into components as an immutable snapshot.
type Config struct {
	// Application settings
	AppEnv  string `env:"APP_ENV" envDefault:"development"`
	AppPort int    `env:"APP_PORT" envDefault:"8080"`

	// Database (PostgreSQL)
	DatabaseURL string `env:"DATABASE_URL,required"`

	// Queue (Redis)
	RedisURL string `env:"REDIS_URL,required"`

	// Provisioning panel
	PanelURL    string `env:"PANEL_URL,required"`
	PanelAPIKey string `env:"PANEL_API_KEY,required"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// Server timeouts
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"10s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// Worker settings
	DequeueTimeout time.Duration `env:"DEQUEUE_TIMEOUT" envDefault:"5s"`

	// Economy settings
	RenewCostPerDay int64 `env:"RENEW_COST_PER_DAY" envDefault:"1"`
	AFKReward       int64 `env:"AFK_REWARD" envDefault:"10"`
	TaskReward      int64 `env:"TASK_REWARD" envDefault:"25"`

	// Feature toggles
	EnableTransfer bool `env:"ENABLE_TRANSFER" envDefault:"true"`
	EnableRenew    bool `env:"ENABLE_RENEW" envDefault:"true"`
	EnableDelete   bool `env:"ENABLE_DELETE" envDefault:"true"`

	// Comma-separated account ids with admin command access
	AdminAccountIDs string `env:"ADMIN_ACCOUNT_IDS" envDefault:""`

	// Path to the plan/store catalog JSON (created with defaults if absent)
	CatalogPath string `env:"CATALOG_PATH" envDefault:"catalog.json"`
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// GetAdminAccountIDs parses the comma-separated admin list.
// Entries that fail to parse are dropped.
func (c *Config) GetAdminAccountIDs() []int64 {
	if c.AdminAccountIDs == "" {
		return nil
	}

	parts := strings.Split(c.AdminAccountIDs, ",")
	result := make([]int64, 0, len(parts))

	for _, part := range parts {
		id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err == nil {
			result = append(result, id)
		}
	}

	return result
}

// IsAdmin reports whether an account id is in the admin list.
func (c *Config) IsAdmin(accountID int64) bool {
	for _, id := range c.GetAdminAccountIDs() {
		if id == accountID {
			return true
		}
	}
	return false
}

// Load parses environment variables and returns a Config.
// Returns an error if required variables are missing.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}
