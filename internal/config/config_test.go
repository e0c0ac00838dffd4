package config

import (
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("ENVIRONMENT", "test")

	c, err := load()
	require.NoError(t, err)
	assert.Equal(t, "sqlite", c.StoreDriver)
	assert.Equal(t, "data/novabot.db", c.SQLitePath)
	assert.Equal(t, int64(10), c.StartingBalance)
	assert.Equal(t, int64(2), c.DailyCap)
	assert.Equal(t, 5*time.Minute, c.SchedulerTick)
	assert.Equal(t, 30*time.Second, c.SchedulerInitialDelay)
	assert.Equal(t, time.Second, c.SendInterval)
	assert.Equal(t, "8080", c.Port)
	assert.True(t, c.AIEnabled)
	assert.Equal(t, time.UTC, c.LedgerLocation)
	assert.Zero(t, c.CompletionTimeoutCap)
	assert.False(t, c.AdminEnabled())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("ENVIRONMENT", "test")
	t.Setenv("DAILY_CAP", "5")
	t.Setenv("SCHEDULER_TICK", "1m")
	t.Setenv("AI_ENABLED", "false")
	t.Setenv("LEDGER_TIMEZONE", "Asia/Colombo")
	t.Setenv("STORE_DRIVER", "Postgres")
	t.Setenv("DATABASE_URL", "postgres://localhost/nova")
	t.Setenv("COMPLETION_TIMEOUT_CAP", "60s")

	c, err := load()
	require.NoError(t, err)
	assert.Equal(t, int64(5), c.DailyCap)
	assert.Equal(t, time.Minute, c.SchedulerTick)
	assert.False(t, c.AIEnabled)
	assert.Equal(t, "Asia/Colombo", c.LedgerLocation.String())
	assert.Equal(t, "postgres", c.StoreDriver)
	assert.Equal(t, time.Minute, c.CompletionTimeoutCap)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"missing token", map[string]string{"ENVIRONMENT": "production"}},
		{"bad duration", map[string]string{"SCHEDULER_TICK": "often"}},
		{"zero cap", map[string]string{"DAILY_CAP": "0"}},
		{"negative timeout cap", map[string]string{"COMPLETION_TIMEOUT_CAP": "-1s"}},
		{"postgres without url", map[string]string{"STORE_DRIVER": "postgres"}},
		{"unknown driver", map[string]string{"STORE_DRIVER": "mongo"}},
		{"bad timezone", map[string]string{"LEDGER_TIMEZONE": "Mars/Olympus"}},
		{"admin without secret", map[string]string{"ADMIN_PASSWORD_HASH": "$2a$10$x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("ENVIRONMENT", "test")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := load()
			assert.Error(t, err)
		})
	}
}

func TestSetupLogging(t *testing.T) {
	defer log.SetLevel(log.InfoLevel)

	SetupLogging(&Config{Environment: "production", LogLevel: "debug"})
	assert.Equal(t, log.DebugLevel, log.GetLevel())
	_, isJSON := log.StandardLogger().Formatter.(*log.JSONFormatter)
	assert.True(t, isJSON)

	SetupLogging(&Config{LogLevel: "nonsense"})
	assert.Equal(t, log.InfoLevel, log.GetLevel())
}
