// Package config loads pulseboard configuration from environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	// General
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	ListenAddr  string `envconfig:"LISTEN_ADDR" default:":8080"`
	OpsAddr     string `envconfig:"OPS_ADDR" default:":8090"` // health + metrics
	CORSOrigins string `envconfig:"CORS_ORIGINS"`

	// ClickUp
	ClickUpBaseURL string `envconfig:"CLICKUP_BASE_URL" default:"https://api.clickup.com/api/v2"`
	ClickUpToken   string `envconfig:"CLICKUP_TOKEN" required:"true"`
	ClickUpTeamID  string `envconfig:"CLICKUP_TEAM_ID" required:"true"`

	// Refresh
	RefreshInterval time.Duration `envconfig:"REFRESH_INTERVAL" default:"5m"`

	// Visibility rules (optional YAML file; built-in defaults when empty)
	VisibilityRulesPath string `envconfig:"VISIBILITY_RULES_PATH"`

	// Snapshot cache
	SnapshotDBPath string `envconfig:"SNAPSHOT_DB_PATH" default:"pulseboard.db"`

	// AI summarization (optional; dashboard works without it)
	AIAPIKey string `envconfig:"AI_API_KEY"`
	AIModel  string `envconfig:"AI_MODEL"`

	// Login allow-list and session tokens
	AllowedEmails string        `envconfig:"ALLOWED_EMAILS"` // comma-separated; empty disables auth
	SessionSecret string        `envconfig:"SESSION_SECRET"`
	SessionTTL    time.Duration `envconfig:"SESSION_TTL" default:"12h"`

	// Rate limiting on the dashboard API
	RateLimitRPS   int `envconfig:"RATE_LIMIT_RPS" default:"50"`
	RateLimitBurst int `envconfig:"RATE_LIMIT_BURST" default:"100"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("PULSEBOARD", &cfg); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if cfg.AuthEnabled() && cfg.SessionSecret == "" {
		return nil, fmt.Errorf("SESSION_SECRET is required when ALLOWED_EMAILS is set")
	}
	return &cfg, nil
}

// AIEnabled returns true if an AI API key is configured.
func (c *Config) AIEnabled() bool {
	return c.AIAPIKey != ""
}

// AuthEnabled returns true if the login allow-list is configured.
func (c *Config) AuthEnabled() bool {
	return c.AllowedEmails != ""
}

// AllowedEmailList returns the parsed, lowercased allow-list.
func (c *Config) AllowedEmailList() []string {
	if c.AllowedEmails == "" {
		return nil
	}
	parts := strings.Split(c.AllowedEmails, ",")
	emails := make([]string, 0, len(parts))
	for _, e := range parts {
		e = strings.ToLower(strings.TrimSpace(e))
		if e != "" {
			emails = append(emails, e)
		}
	}
	return emails
}
