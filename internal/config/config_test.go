package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/orgscope/internal/models"
	"github.com/wolfeidau/orgscope/internal/settings"
)

func TestDefault(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	require.Equal(t, "UTC", settings.GetOr(cfg.DefaultSettings, "app.timezone", nil))
	require.Equal(t, "light", settings.GetOr(cfg.DefaultSettings, "ui.theme", nil))
	require.Equal(t, 25, settings.GetOr(cfg.DefaultSettings, "ui.items_per_page", nil))
	require.True(t, settings.Has(cfg.DefaultSettings, "contact.email"))
	require.Equal(t, "nullable|email", cfg.ValidationRules["contact.email"])
	require.Equal(t, 7, cfg.Invitations.ExpirationDays)

	limit, ok := cfg.RateLimits.For(OpDeleteOrganization)
	require.True(t, ok)
	require.Equal(t, 3, limit.MaxAttempts)
	require.Equal(t, time.Hour, limit.Decay())

	_, ok = cfg.RateLimits.For(Operation("nope"))
	require.False(t, ok)
}

func TestLoadMergesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "orgscope.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
default_settings:
  ui:
    theme: dark
  custom:
    enabled: true
rate_limits:
  create_organization:
    max_attempts: 1
    decay_minutes: 5
invitations:
  expiration_days: 14
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, "dark", settings.GetOr(cfg.DefaultSettings, "ui.theme", nil))
	require.Equal(t, "default", settings.GetOr(cfg.DefaultSettings, "ui.layout", nil))
	require.Equal(t, true, settings.GetOr(cfg.DefaultSettings, "custom.enabled", nil))
	require.Equal(t, 14, cfg.Invitations.ExpirationDays)

	limit, _ := cfg.RateLimits.For(OpCreateOrganization)
	require.Equal(t, RateLimit{MaxAttempts: 1, DecayMinutes: 5}, limit)

	limit, _ = cfg.RateLimits.For(OpSwitchOrganization)
	require.Equal(t, 100, limit.MaxAttempts)
}

func TestLoadRejectsInvalidDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
default_settings:
  ui:
    theme: neon
`), 0o600))

	_, err := Load(path)
	require.ErrorContains(t, err, "ui.theme")

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestSettingsManager(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	m := cfg.SettingsManager()

	org := &models.Organization{Settings: settings.Document{"ui": map[string]any{"theme": "dark"}}}
	m.ApplyDefaults(org)
	require.Equal(t, "dark", settings.GetOr(org.AllSettings(), "ui.theme", nil))
	require.Equal(t, "USD", settings.GetOr(org.AllSettings(), "app.currency", nil))
	require.NoError(t, m.Validate(org))

	m.MergeOverrides(org, settings.Document{"ui": map[string]any{"items_per_page": 500}})
	require.Error(t, m.Validate(org))

	m.Reset(org)
	require.Equal(t, "light", settings.GetOr(org.AllSettings(), "ui.theme", nil))
}
