// Package config loads process configuration from the environment.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

// Store drivers.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
)

// Push channel names.
const (
	ChannelLog     = "log"
	ChannelGateway = "gateway"
	ChannelExpo    = "expo"
)

// Config holds the relay's configuration.
type Config struct {
	Port     string
	Env      string
	LogLevel zerolog.Level

	// APIKey is the shared secret guarding the schedule API.
	APIKey string
	// RequireTLS rejects requests forwarded over plain HTTP.
	RequireTLS bool

	StoreDriver string
	SQLitePath  string

	Push    PushConfig
	Trigger TriggerConfig
	PubSub  PubSubConfig
	OTel    OTelConfig
}

// PushConfig configures the downstream notification channels.
type PushConfig struct {
	// DefaultChannel is used for devices registered without a channel.
	DefaultChannel string

	GatewayURL     string
	GatewayTimeout time.Duration

	// ExpoHost overrides the Expo push API host. Empty uses the SDK default.
	ExpoHost string
}

// TriggerConfig configures the schedule trigger loop.
type TriggerConfig struct {
	// InProcess runs the trigger loop inside the API process.
	InProcess   bool
	Interval    time.Duration
	Concurrency int
	FireTimeout time.Duration
	TickTimeout time.Duration
	// Rate caps deliveries per second within a tick. Zero disables pacing.
	Rate float64
}

// PubSubConfig configures the optional Pub/Sub tick source for the worker.
type PubSubConfig struct {
	ProjectID    string
	Subscription string
}

// Enabled reports whether both project and subscription are set.
func (c PubSubConfig) Enabled() bool {
	return c.ProjectID != "" && c.Subscription != ""
}

// OTelConfig configures OpenTelemetry export.
type OTelConfig struct {
	Enabled  bool
	Endpoint string
}

// LoadDotEnv loads a .env file if one exists. Missing files are not an error.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	var existing []string
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			existing = append(existing, p)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	return godotenv.Load(existing...)
}

// FromEnv creates a Config from environment variables.
func FromEnv() Config {
	level, err := zerolog.ParseLevel(strings.ToLower(getEnvOrDefault("LOG_LEVEL", "info")))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	return Config{
		Port:        getEnvOrDefault("APP_PORT", "8080"),
		Env:         getEnvOrDefault("APP_ENV", "development"),
		LogLevel:    level,
		APIKey:      os.Getenv("API_KEY"),
		RequireTLS:  getBool("REQUIRE_TLS", false),
		StoreDriver: strings.ToLower(getEnvOrDefault("STORE_DRIVER", StoreMemory)),
		SQLitePath:  getEnvOrDefault("SQLITE_PATH", "data/pushrelay.db"),
		Push: PushConfig{
			DefaultChannel: strings.ToLower(getEnvOrDefault("PUSH_CHANNEL", ChannelLog)),
			GatewayURL:     os.Getenv("GATEWAY_URL"),
			GatewayTimeout: getDuration("GATEWAY_TIMEOUT", 10*time.Second),
			ExpoHost:       os.Getenv("EXPO_HOST"),
		},
		Trigger: TriggerConfig{
			InProcess:   getBool("TRIGGER_IN_PROCESS", false),
			Interval:    getDuration("TRIGGER_INTERVAL", time.Minute),
			Concurrency: getInt("TRIGGER_CONCURRENCY", 4),
			FireTimeout: getDuration("TRIGGER_FIRE_TIMEOUT", 15*time.Second),
			TickTimeout: getDuration("TRIGGER_TICK_TIMEOUT", 50*time.Second),
			Rate:        getFloat("TRIGGER_RATE", 0),
		},
		PubSub: PubSubConfig{
			ProjectID:    os.Getenv("PUBSUB_PROJECT_ID"),
			Subscription: os.Getenv("PUBSUB_SUBSCRIPTION"),
		},
		OTel: OTelConfig{
			Enabled:  getBool("OTEL_ENABLED", false),
			Endpoint: getEnvOrDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		},
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil || v <= 0 {
		return defaultValue
	}
	return v
}

func getFloat(key string, defaultValue float64) float64 {
	v, err := strconv.ParseFloat(os.Getenv(key), 64)
	if err != nil || v < 0 {
		return defaultValue
	}
	return v
}

func getBool(key string, defaultValue bool) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return v
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	d, err := time.ParseDuration(os.Getenv(key))
	if err != nil || d <= 0 {
		return defaultValue
	}
	return d
}
