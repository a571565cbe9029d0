package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	// Set defaults
	config := GetDefaults()

	// Configure viper
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath("/etc/securedoc/")
	viper.AddConfigPath("$HOME/.securedoc/")

	// Environment variable overrides
	viper.SetEnvPrefix("SECUREDOC")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Use specific config file if provided
	if configPath != "" {
		viper.SetConfigFile(configPath)
	}

	// Read configuration
	if err := viper.ReadInConfig(); err != nil {
		// Config file not found is not an error - we'll use defaults
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Unmarshal into config struct
	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate configuration
	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// validateConfig validates the loaded configuration
func validateConfig(config *Config) error {
	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	if config.Logging.Level != "debug" && config.Logging.Level != "info" && config.Logging.Level != "warn" && config.Logging.Level != "error" {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", config.Logging.Level)
	}

	if config.Logging.Format != "json" && config.Logging.Format != "console" {
		return fmt.Errorf("invalid log format: %s (must be json or console)", config.Logging.Format)
	}

	if config.LLM.MaxRetries < 1 {
		return fmt.Errorf("llm.max_retries must be at least 1, got %d", config.LLM.MaxRetries)
	}

	if config.LLM.CircuitThreshold < 1 {
		return fmt.Errorf("llm.circuit_threshold must be at least 1, got %d", config.LLM.CircuitThreshold)
	}

	if config.Webhook.LedgerBackend != "memory" && config.Webhook.LedgerBackend != "redis" {
		return fmt.Errorf("invalid webhook ledger backend: %s (must be memory or redis)", config.Webhook.LedgerBackend)
	}

	if config.Webhook.LedgerBackend == "redis" && config.Webhook.RedisURL == "" {
		return fmt.Errorf("webhook.redis_url is required when ledger backend is redis")
	}

	if config.Webhook.LedgerCapacity < 1 {
		return fmt.Errorf("webhook.ledger_capacity must be at least 1, got %d", config.Webhook.LedgerCapacity)
	}

	return nil
}

// RateLimitValues parses the rate-limit numbers from their string form.
// Parse failures are returned as errors so callers can fail closed instead of
// serving traffic with an unenforced limit.
func (c *RateLimitConfig) RateLimitValues() (rate float64, burst float64, err error) {
	rate, err = strconv.ParseFloat(strings.TrimSpace(c.RequestsPerSecond), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("rate_limit.requests_per_second %q is not numeric: %w", c.RequestsPerSecond, err)
	}

	burst, err = strconv.ParseFloat(strings.TrimSpace(c.Burst), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("rate_limit.burst %q is not numeric: %w", c.Burst, err)
	}

	return rate, burst, nil
}

// Watch starts watching the configuration file for changes
func Watch(config *Config, callback func(*Config)) error {
	viper.WatchConfig()
	viper.OnConfigChange(func(e fsnotify.Event) {
		newConfig := &Config{}
		if err := viper.Unmarshal(newConfig); err != nil {
			// Log error but don't crash
			return
		}

		if err := validateConfig(newConfig); err != nil {
			// Log error but don't crash
			return
		}

		callback(newConfig)
	})

	return nil
}
