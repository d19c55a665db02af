package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Setenv("PULSEBOARD_CLICKUP_TOKEN", "pk_test")
	t.Setenv("PULSEBOARD_CLICKUP_TEAM_ID", "team1")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, "5m0s", cfg.RefreshInterval.String())
	assert.Equal(t, "https://api.clickup.com/api/v2", cfg.ClickUpBaseURL)
	assert.False(t, cfg.AIEnabled())
	assert.False(t, cfg.AuthEnabled())
}

func TestLoad_MissingRequired(t *testing.T) {
	t.Setenv("PULSEBOARD_CLICKUP_TOKEN", "")
	t.Setenv("PULSEBOARD_CLICKUP_TEAM_ID", "")
	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_AuthRequiresSecret(t *testing.T) {
	setRequired(t)
	t.Setenv("PULSEBOARD_ALLOWED_EMAILS", "ops@example.com")

	_, err := Load()
	assert.Error(t, err)

	t.Setenv("PULSEBOARD_SESSION_SECRET", "shh")
	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.AuthEnabled())
}

func TestAllowedEmailList(t *testing.T) {
	cfg := &Config{AllowedEmails: " Ops@Example.com , lead@example.com ,"}
	assert.Equal(t, []string{"ops@example.com", "lead@example.com"}, cfg.AllowedEmailList())

	cfg = &Config{}
	assert.Nil(t, cfg.AllowedEmailList())
}
