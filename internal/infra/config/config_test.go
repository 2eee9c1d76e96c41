package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var configKeys = []string{
	"TELEGRAM_TOKEN", "ADMIN_TELEGRAM_ID", "DATABASE_URL", "LOG_LEVEL", "ENVIRONMENT",
	"HTTP_ADDR", "ADMIN_API_TOKEN", "WEBHOOK_TOKEN", "COMPANY_NAME", "ANTI_SPAM_ENABLED",
	"ANTI_SPAM_COOLDOWN_DAYS", "PRE_DUE_LEAD_DAYS", "SEND_CONCURRENCY", "SEND_RATE_PER_SECOND",
	"RUN_BUSY_POLICY", "RUN_TIMEOUT",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range configKeys {
		t.Setenv(k, "")
	}
	t.Setenv("TIMEZONE", "UTC")
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.True(t, cfg.AntiSpamEnabled)
	assert.Equal(t, 3, cfg.AntiSpamCooldownDays)
	assert.Equal(t, 3, cfg.PreDueLeadDays)
	assert.Equal(t, 4, cfg.SendConcurrency)
	assert.Equal(t, "reject", cfg.RunBusyPolicy)
	assert.Equal(t, 10*time.Minute, cfg.RunTimeout)
	assert.Equal(t, time.UTC, cfg.Location)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{name: "cooldown out of range", key: "ANTI_SPAM_COOLDOWN_DAYS", val: "0"},
		{name: "lead days not a number", key: "PRE_DUE_LEAD_DAYS", val: "three"},
		{name: "anti spam not a bool", key: "ANTI_SPAM_ENABLED", val: "maybe"},
		{name: "busy policy", key: "RUN_BUSY_POLICY", val: "drop"},
		{name: "timezone", key: "TIMEZONE", val: "Mars/Olympus"},
		{name: "run timeout", key: "RUN_TIMEOUT", val: "soon"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.val)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoadRequiresAdminWithToken(t *testing.T) {
	clearEnv(t)
	t.Setenv("TELEGRAM_TOKEN", "123:abc")

	_, err := Load()
	assert.Error(t, err)

	t.Setenv("ADMIN_TELEGRAM_ID", "42")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, int64(42), cfg.AdminTelegramID)
}
