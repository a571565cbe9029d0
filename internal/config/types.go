package config

import "time"

// Config represents the main configuration structure
type Config struct {
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Auth      AuthConfig      `yaml:"auth" mapstructure:"auth"`
	RateLimit RateLimitConfig `yaml:"rate_limit" mapstructure:"rate_limit"`
	Privacy   PrivacyConfig   `yaml:"privacy" mapstructure:"privacy"`
	LLM       LLMConfig       `yaml:"llm" mapstructure:"llm"`
	Webhook   WebhookConfig   `yaml:"webhook" mapstructure:"webhook"`
	Logging   LoggingConfig   `yaml:"logging" mapstructure:"logging"`
	Monitor   MonitorConfig   `yaml:"monitor" mapstructure:"monitor"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port         int           `yaml:"port" mapstructure:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" mapstructure:"idle_timeout"`
}

// AuthConfig controls caller credential enforcement on the generate endpoint.
// When RequireAPIKey is set and APIKey is empty the server fails closed (503).
type AuthConfig struct {
	RequireAPIKey bool   `yaml:"require_api_key" mapstructure:"require_api_key"`
	APIKey        string `yaml:"api_key" mapstructure:"api_key"`
}

// RateLimitConfig contains per-identity admission control configuration.
// RequestsPerSecond and Burst are strings on purpose: they usually arrive via
// environment variables, and an unparseable value must surface as a
// fail-closed configuration error rather than a silent bypass.
type RateLimitConfig struct {
	Enabled           bool   `yaml:"enabled" mapstructure:"enabled"`
	RequestsPerSecond string `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	Burst             string `yaml:"burst" mapstructure:"burst"`
}

// PrivacyConfig contains PHI detection and masking configuration
type PrivacyConfig struct {
	Enabled   bool     `yaml:"enabled" mapstructure:"enabled"`
	Detectors []string `yaml:"detectors" mapstructure:"detectors"`
	// StrictReidentify turns a placeholder missing from the upstream
	// response into a hard failure instead of a logged warning.
	StrictReidentify bool `yaml:"strict_reidentify" mapstructure:"strict_reidentify"`
}

// LLMConfig contains outbound LLM provider configuration
type LLMConfig struct {
	URL              string        `yaml:"url" mapstructure:"url"`
	APIKey           string        `yaml:"api_key" mapstructure:"api_key"`
	Model            string        `yaml:"model" mapstructure:"model"`
	Timeout          time.Duration `yaml:"timeout" mapstructure:"timeout"`
	MaxRetries       int           `yaml:"max_retries" mapstructure:"max_retries"`
	RetryBaseDelay   time.Duration `yaml:"retry_base_delay" mapstructure:"retry_base_delay"`
	CircuitThreshold int           `yaml:"circuit_threshold" mapstructure:"circuit_threshold"`
}

// WebhookConfig contains billing webhook verification and ledger configuration
type WebhookConfig struct {
	Secret          string        `yaml:"secret" mapstructure:"secret"`
	ReplayTolerance time.Duration `yaml:"replay_tolerance" mapstructure:"replay_tolerance"`
	LedgerCapacity  int           `yaml:"ledger_capacity" mapstructure:"ledger_capacity"`
	LedgerBackend   string        `yaml:"ledger_backend" mapstructure:"ledger_backend"` // memory or redis
	RedisURL        string        `yaml:"redis_url" mapstructure:"redis_url"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"` // json or console
	File   struct {
		Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
		Path    string `yaml:"path" mapstructure:"path"`
	} `yaml:"file" mapstructure:"file"`
}

// MonitorConfig contains live event stream configuration
type MonitorConfig struct {
	Enabled             bool `yaml:"enabled" mapstructure:"enabled"`
	BroadcastDetections bool `yaml:"broadcast_detections" mapstructure:"broadcast_detections"`
	BroadcastWebhooks   bool `yaml:"broadcast_webhooks" mapstructure:"broadcast_webhooks"`
	BroadcastRequests   bool `yaml:"broadcast_requests" mapstructure:"broadcast_requests"`
}

// GetDefaults returns a configuration with sensible defaults
func GetDefaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Auth: AuthConfig{
			RequireAPIKey: false,
		},
		RateLimit: RateLimitConfig{
			Enabled:           true,
			RequestsPerSecond: "10",
			Burst:             "20",
		},
		Privacy: PrivacyConfig{
			Enabled:          true,
			Detectors:        []string{"all"},
			StrictReidentify: false,
		},
		LLM: LLMConfig{
			URL:              "https://api.openai.com/v1/chat/completions",
			Model:            "gpt-4",
			Timeout:          60 * time.Second,
			MaxRetries:       3,
			RetryBaseDelay:   time.Second,
			CircuitThreshold: 5,
		},
		Webhook: WebhookConfig{
			ReplayTolerance: 300 * time.Second,
			LedgerCapacity:  1000,
			LedgerBackend:   "memory",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Monitor: MonitorConfig{
			Enabled:             true,
			BroadcastDetections: true,
			BroadcastWebhooks:   true,
			BroadcastRequests:   true,
		},
	}
}
