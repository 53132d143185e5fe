package config

import (
	"fmt"
	"os"
	"sync"
	"time"

	"splitpay/database"
)

// Config holds all application configuration
type Config struct {
	// HTTP server
	HTTPAddr string

	// Database configuration
	DatabaseURL  string
	DatabaseName string

	// NATS configuration; empty disables event publishing
	NATSServers string // NATS server addresses (comma-separated)

	// Redis configuration; empty means the in-process credential cache
	RedisURL string

	// External services
	GatewayBaseURL  string
	IdentityBaseURL string

	// Session tokens
	SessionSigningKey string
	SessionDuration   time.Duration

	// Settlement reconciliation
	SettlementDeadline      time.Duration // in-flight settlements older than this are failed
	SettlementSweepInterval time.Duration // zero disables the sweep worker

	// Environment
	Environment string // "development", "production" or "test"
}

var (
	instance *Config
	once     sync.Once
	mu       sync.Mutex // Protects instance for test setup
)

// Get returns the global configuration instance
func Get() *Config {
	mu.Lock()
	defer mu.Unlock()

	if instance != nil {
		return instance
	}

	once.Do(func() {
		var err error
		instance, err = load()
		if err != nil {
			if os.Getenv("GO_TEST") == "1" || os.Getenv("ENVIRONMENT") == "test" {
				instance = NewTestConfig()
			} else {
				panic(fmt.Sprintf("failed to load config: %v", err))
			}
		}
	})
	return instance
}

// GetDatabaseURL constructs the full database URL by combining base URL and
// database name
func (c *Config) GetDatabaseURL() string {
	return database.ConstructDatabaseURL(c.DatabaseURL, c.DatabaseName)
}

// load loads configuration from environment variables
func load() (*Config, error) {
	config := &Config{
		HTTPAddr: getEnvWithDefault("HTTP_ADDR", ":8080"),

		DatabaseURL:  os.Getenv("DATABASE_URL"),
		DatabaseName: os.Getenv("DATABASE_NAME"),

		NATSServers: os.Getenv("NATS_SERVERS"),
		RedisURL:    os.Getenv("REDIS_URL"),

		GatewayBaseURL:  os.Getenv("GATEWAY_BASE_URL"),
		IdentityBaseURL: os.Getenv("IDENTITY_BASE_URL"),

		SessionSigningKey: os.Getenv("SESSION_SIGNING_KEY"),
		SessionDuration:   24 * time.Hour,

		SettlementDeadline:      time.Hour,
		SettlementSweepInterval: 5 * time.Minute,

		Environment: getEnvWithDefault("ENVIRONMENT", "development"),
	}

	if d := os.Getenv("SESSION_DURATION"); d != "" {
		parsed, err := time.ParseDuration(d)
		if err != nil {
			return nil, fmt.Errorf("invalid SESSION_DURATION: %w", err)
		}
		config.SessionDuration = parsed
	}
	if d := os.Getenv("SETTLEMENT_DEADLINE"); d != "" {
		parsed, err := time.ParseDuration(d)
		if err != nil {
			return nil, fmt.Errorf("invalid SETTLEMENT_DEADLINE: %w", err)
		}
		config.SettlementDeadline = parsed
	}
	if d := os.Getenv("SETTLEMENT_SWEEP_INTERVAL"); d != "" {
		parsed, err := time.ParseDuration(d)
		if err != nil {
			return nil, fmt.Errorf("invalid SETTLEMENT_SWEEP_INTERVAL: %w", err)
		}
		config.SettlementSweepInterval = parsed
	}

	if config.Environment != "test" {
		if config.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required")
		}
		if config.GatewayBaseURL == "" {
			return nil, fmt.Errorf("GATEWAY_BASE_URL is required")
		}
		if config.IdentityBaseURL == "" {
			return nil, fmt.Errorf("IDENTITY_BASE_URL is required")
		}
		if config.SessionSigningKey == "" {
			return nil, fmt.Errorf("SESSION_SIGNING_KEY is required")
		}
	}

	return config, nil
}

// getEnvWithDefault returns the environment variable value or a default if
// not set
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// SetTestConfig overrides the global config instance for testing.
// This should only be called from test files.
func SetTestConfig(testConfig *Config) {
	mu.Lock()
	defer mu.Unlock()
	instance = testConfig
}

// ResetConfig resets the global config instance and sync.Once for testing.
// This should only be called from test files.
func ResetConfig() {
	mu.Lock()
	defer mu.Unlock()
	instance = nil
	once = sync.Once{}
}

// NewTestConfig creates a minimal config suitable for unit tests
func NewTestConfig() *Config {
	return &Config{
		Environment:             "test",
		HTTPAddr:                ":0",
		SessionSigningKey:       "test-signing-key-needs-32-bytes!!",
		SessionDuration:         time.Hour,
		SettlementDeadline:      time.Hour,
		SettlementSweepInterval: 0,
	}
}
