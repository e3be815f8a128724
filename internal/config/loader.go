package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// TOMLConfig represents the TOML configuration file structure
type TOMLConfig struct {
	HTTP     TOMLHTTPConfig     `toml:"http"`
	MongoDB  TOMLMongoDBConfig  `toml:"mongodb"`
	Dispatch TOMLDispatchConfig `toml:"dispatch"`
	Engine   TOMLEngineConfig   `toml:"engine"`
	DevMode  bool               `toml:"dev_mode"`
}

// TOMLHTTPConfig represents HTTP configuration in TOML
type TOMLHTTPConfig struct {
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
}

// TOMLMongoDBConfig represents MongoDB configuration in TOML
type TOMLMongoDBConfig struct {
	URI      string `toml:"uri"`
	Database string `toml:"database"`
}

// TOMLDispatchConfig represents dispatch configuration in TOML
type TOMLDispatchConfig struct {
	DefaultTimeout            string  `toml:"default_timeout"`
	UserAgent                 string  `toml:"user_agent"`
	MaxResponseBytes          int64   `toml:"max_response_bytes"`
	CircuitBreakerEnabled     bool    `toml:"circuit_breaker_enabled"`
	CircuitBreakerRequests    uint32  `toml:"circuit_breaker_requests"`
	CircuitBreakerInterval    string  `toml:"circuit_breaker_interval"`
	CircuitBreakerRatio       float64 `toml:"circuit_breaker_ratio"`
	CircuitBreakerTimeout     string  `toml:"circuit_breaker_timeout"`
	CircuitBreakerMinRequests uint32  `toml:"circuit_breaker_min_requests"`
}

// TOMLEngineConfig represents engine configuration in TOML
type TOMLEngineConfig struct {
	MaxParallelDispatches int    `toml:"max_parallel_dispatches"`
	RateLimitPerMinute    int    `toml:"rate_limit_per_minute"`
	TriggerTimeout        string `toml:"trigger_timeout"`
}

// LoadFromFile loads configuration from a TOML file, applying the file's
// values on top of the environment-derived defaults.
func LoadFromFile(path string) (*Config, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}

	var tc TOMLConfig
	if _, err := toml.DecodeFile(path, &tc); err != nil {
		return nil, fmt.Errorf("decoding config file %s: %w", path, err)
	}

	applyTOML(cfg, &tc)
	return cfg, nil
}

// LoadWithFile loads configuration from QUAYER_HOOKS_CONFIG if set,
// falling back to environment variables only.
func LoadWithFile() (*Config, error) {
	path := os.Getenv("QUAYER_HOOKS_CONFIG")
	if path == "" {
		return Load()
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	return LoadFromFile(path)
}

func applyTOML(cfg *Config, tc *TOMLConfig) {
	if tc.HTTP.Port != 0 {
		cfg.HTTP.Port = tc.HTTP.Port
	}
	if len(tc.HTTP.CORSOrigins) > 0 {
		cfg.HTTP.CORSOrigins = tc.HTTP.CORSOrigins
	}

	if tc.MongoDB.URI != "" {
		cfg.MongoDB.URI = tc.MongoDB.URI
	}
	if tc.MongoDB.Database != "" {
		cfg.MongoDB.Database = tc.MongoDB.Database
	}

	if d := parseDuration(tc.Dispatch.DefaultTimeout); d > 0 {
		cfg.Dispatch.DefaultTimeout = d
	}
	if tc.Dispatch.UserAgent != "" {
		cfg.Dispatch.UserAgent = tc.Dispatch.UserAgent
	}
	if tc.Dispatch.MaxResponseBytes > 0 {
		cfg.Dispatch.MaxResponseBytes = tc.Dispatch.MaxResponseBytes
	}
	if tc.Dispatch.CircuitBreakerEnabled {
		cfg.Dispatch.CircuitBreakerEnabled = true
	}
	if tc.Dispatch.CircuitBreakerRequests > 0 {
		cfg.Dispatch.CircuitBreakerRequests = tc.Dispatch.CircuitBreakerRequests
	}
	if d := parseDuration(tc.Dispatch.CircuitBreakerInterval); d > 0 {
		cfg.Dispatch.CircuitBreakerInterval = d
	}
	if tc.Dispatch.CircuitBreakerRatio > 0 {
		cfg.Dispatch.CircuitBreakerRatio = tc.Dispatch.CircuitBreakerRatio
	}
	if d := parseDuration(tc.Dispatch.CircuitBreakerTimeout); d > 0 {
		cfg.Dispatch.CircuitBreakerTimeout = d
	}
	if tc.Dispatch.CircuitBreakerMinRequests > 0 {
		cfg.Dispatch.CircuitBreakerMinRequests = tc.Dispatch.CircuitBreakerMinRequests
	}

	if tc.Engine.MaxParallelDispatches > 0 {
		cfg.Engine.MaxParallelDispatches = tc.Engine.MaxParallelDispatches
	}
	if tc.Engine.RateLimitPerMinute > 0 {
		cfg.Engine.RateLimitPerMinute = tc.Engine.RateLimitPerMinute
	}
	if d := parseDuration(tc.Engine.TriggerTimeout); d > 0 {
		cfg.Engine.TriggerTimeout = d
	}

	if tc.DevMode {
		cfg.DevMode = true
	}
}

func parseDuration(s string) time.Duration {
	if s == "" {
		return 0
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0
	}
	return d
}
