package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for Quayer Hooks
type Config struct {
	// HTTP server configuration
	HTTP HTTPConfig

	// MongoDB configuration
	MongoDB MongoDBConfig

	// Dispatch configuration (outbound webhook requests)
	Dispatch DispatchConfig

	// Engine configuration (fan-out behavior)
	Engine EngineConfig

	// Development mode
	DevMode bool
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	Port        int
	CORSOrigins []string
}

// MongoDBConfig holds MongoDB connection configuration
type MongoDBConfig struct {
	URI      string
	Database string
}

// DispatchConfig holds outbound webhook request configuration
type DispatchConfig struct {
	// DefaultTimeout applies when a subscription has no timeout configured
	DefaultTimeout time.Duration

	// UserAgent sent on every outbound request
	UserAgent string

	// MaxResponseBytes caps how much of a subscriber response body is captured
	MaxResponseBytes int64

	// CircuitBreaker settings. Disabled by default: with the breaker off,
	// one subscriber's failures can never suppress dispatch attempts.
	CircuitBreakerEnabled     bool
	CircuitBreakerRequests    uint32        // Requests allowed in half-open state
	CircuitBreakerInterval    time.Duration // Stats window
	CircuitBreakerRatio       float64       // Failure ratio to trip
	CircuitBreakerTimeout     time.Duration // Time in open state before half-open
	CircuitBreakerMinRequests uint32        // Min requests before evaluating ratio
}

// EngineConfig holds fan-out engine configuration
type EngineConfig struct {
	// MaxParallelDispatches caps concurrent deliveries per trigger (0 = unlimited)
	MaxParallelDispatches int

	// RateLimitPerMinute caps outbound dispatch rate across the engine (0 = unlimited)
	RateLimitPerMinute int

	// TriggerTimeout bounds a whole fan-out, including storage writes
	TriggerTimeout time.Duration
}

// Load loads configuration from environment variables with sensible defaults
func Load() (*Config, error) {
	cfg := &Config{
		HTTP: HTTPConfig{
			Port:        getEnvInt("HTTP_PORT", 8080),
			CORSOrigins: getEnvSlice("CORS_ORIGINS", []string{"http://localhost:3000"}),
		},

		MongoDB: MongoDBConfig{
			URI:      getEnv("MONGODB_URI", "mongodb://localhost:27017"),
			Database: getEnv("MONGODB_DATABASE", "quayer_hooks"),
		},

		Dispatch: DispatchConfig{
			DefaultTimeout:            getEnvDuration("DISPATCH_DEFAULT_TIMEOUT", 30*time.Second),
			UserAgent:                 getEnv("DISPATCH_USER_AGENT", "Quayer-Hooks/1.0"),
			MaxResponseBytes:          int64(getEnvInt("DISPATCH_MAX_RESPONSE_BYTES", 64*1024)),
			CircuitBreakerEnabled:     getEnvBool("DISPATCH_CIRCUIT_BREAKER_ENABLED", false),
			CircuitBreakerRequests:    uint32(getEnvInt("DISPATCH_CIRCUIT_BREAKER_REQUESTS", 10)),
			CircuitBreakerInterval:    getEnvDuration("DISPATCH_CIRCUIT_BREAKER_INTERVAL", 60*time.Second),
			CircuitBreakerRatio:       getEnvFloat("DISPATCH_CIRCUIT_BREAKER_RATIO", 0.5),
			CircuitBreakerTimeout:     getEnvDuration("DISPATCH_CIRCUIT_BREAKER_TIMEOUT", 5*time.Second),
			CircuitBreakerMinRequests: uint32(getEnvInt("DISPATCH_CIRCUIT_BREAKER_MIN_REQUESTS", 10)),
		},

		Engine: EngineConfig{
			MaxParallelDispatches: getEnvInt("ENGINE_MAX_PARALLEL_DISPATCHES", 0),
			RateLimitPerMinute:    getEnvInt("ENGINE_RATE_LIMIT_PER_MINUTE", 0),
			TriggerTimeout:        getEnvDuration("ENGINE_TRIGGER_TIMEOUT", 2*time.Minute),
		},

		DevMode: getEnvBool("QUAYER_HOOKS_DEV", false),
	}

	return cfg, nil
}

// Helper functions for environment variable parsing

func getEnv(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, ok := os.LookupEnv(key); ok {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value, ok := os.LookupEnv(key); ok {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value, ok := os.LookupEnv(key); ok {
		return strings.Split(value, ",")
	}
	return defaultValue
}
