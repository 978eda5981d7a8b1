package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pushrelay/pushrelay/internal/config"
)

func TestFromEnv_Defaults(t *testing.T) {
	for _, key := range []string{
		"APP_PORT", "LOG_LEVEL", "API_KEY", "STORE_DRIVER", "PUSH_CHANNEL",
		"TRIGGER_INTERVAL", "TRIGGER_CONCURRENCY", "TRIGGER_RATE", "PUBSUB_PROJECT_ID",
	} {
		t.Setenv(key, "")
	}

	cfg := config.FromEnv()

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, zerolog.InfoLevel, cfg.LogLevel)
	assert.Equal(t, config.StoreMemory, cfg.StoreDriver)
	assert.Equal(t, config.ChannelLog, cfg.Push.DefaultChannel)
	assert.Equal(t, time.Minute, cfg.Trigger.Interval)
	assert.Equal(t, 4, cfg.Trigger.Concurrency)
	assert.Zero(t, cfg.Trigger.Rate)
	assert.False(t, cfg.PubSub.Enabled())
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("APP_PORT", "9090")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("API_KEY", "s3cret")
	t.Setenv("STORE_DRIVER", "SQLite")
	t.Setenv("PUSH_CHANNEL", "gateway")
	t.Setenv("GATEWAY_URL", "http://gateway.local/push")
	t.Setenv("TRIGGER_INTERVAL", "30s")
	t.Setenv("TRIGGER_CONCURRENCY", "8")
	t.Setenv("TRIGGER_RATE", "2.5")
	t.Setenv("TRIGGER_IN_PROCESS", "true")
	t.Setenv("PUBSUB_PROJECT_ID", "proj")
	t.Setenv("PUBSUB_SUBSCRIPTION", "ticks")

	cfg := config.FromEnv()

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, zerolog.DebugLevel, cfg.LogLevel)
	assert.Equal(t, "s3cret", cfg.APIKey)
	assert.Equal(t, config.StoreSQLite, cfg.StoreDriver)
	assert.Equal(t, config.ChannelGateway, cfg.Push.DefaultChannel)
	assert.Equal(t, "http://gateway.local/push", cfg.Push.GatewayURL)
	assert.Equal(t, 30*time.Second, cfg.Trigger.Interval)
	assert.Equal(t, 8, cfg.Trigger.Concurrency)
	assert.InDelta(t, 2.5, cfg.Trigger.Rate, 0.001)
	assert.True(t, cfg.Trigger.InProcess)
	assert.True(t, cfg.PubSub.Enabled())
}

func TestFromEnv_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("LOG_LEVEL", "loud")
	t.Setenv("TRIGGER_INTERVAL", "soon")
	t.Setenv("TRIGGER_CONCURRENCY", "-3")

	cfg := config.FromEnv()

	assert.Equal(t, zerolog.InfoLevel, cfg.LogLevel)
	assert.Equal(t, time.Minute, cfg.Trigger.Interval)
	assert.Equal(t, 4, cfg.Trigger.Concurrency)
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("PUSHRELAY_TEST_VALUE=from-dotenv\n"), 0o600))
	t.Cleanup(func() { _ = os.Unsetenv("PUSHRELAY_TEST_VALUE") })

	require.NoError(t, config.LoadDotEnv(path))
	assert.Equal(t, "from-dotenv", os.Getenv("PUSHRELAY_TEST_VALUE"))

	// Missing files are ignored.
	assert.NoError(t, config.LoadDotEnv(filepath.Join(dir, "missing.env")))
}
