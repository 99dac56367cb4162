package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all settings of the charges server, read from the environment.
type Config struct {
	Port            string
	LogLevel        string
	LogFormat       string
	ErrorSampleRate int
	OTELEnabled     bool
	ServiceName     string
	RulesFile       string
	WatchRules      bool
	RequestTimeout  time.Duration
	RulesCacheTTL   time.Duration
	ShutdownTimeout time.Duration
}

// Load reads configuration from environment variables with defaults.
func Load() (*Config, error) {
	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		LogFormat:   getEnv("LOG_FORMAT", "json"),
		OTELEnabled: strings.EqualFold(getEnv("OTEL_ENABLED", "false"), "true"),
		ServiceName: getEnv("OTEL_SERVICE_NAME", "charges"),
		RulesFile:   getEnv("RULES_FILE", ""),
		WatchRules:  strings.EqualFold(getEnv("RULES_WATCH", "true"), "true"),
	}

	var err error
	if cfg.ErrorSampleRate, err = getInt("ERROR_SAMPLE_RATE", 1); err != nil {
		return nil, err
	}
	if cfg.RequestTimeout, err = getDuration("REQUEST_TIMEOUT", 60*time.Second); err != nil {
		return nil, err
	}
	if cfg.RulesCacheTTL, err = getDuration("RULES_CACHE_TTL", 0); err != nil {
		return nil, err
	}
	if cfg.ShutdownTimeout, err = getDuration("SHUTDOWN_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Address returns the HTTP listen address.
func (c *Config) Address() string {
	return ":" + c.Port
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) (int, error) {
	raw, exists := os.LookupEnv(key)
	if !exists || raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return v, nil
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	raw, exists := os.LookupEnv(key)
	if !exists || raw == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid %s %q: must not be negative", key, raw)
	}
	return d, nil
}
