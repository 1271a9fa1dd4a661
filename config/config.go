// Package config provides configuration management for the scribe gateway.
// It covers the HTTP server, the upstream generative-text service, the
// client-side rate limiter, the retry policy, and runtime behavior.
package config

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete server configuration.
// It combines server settings, upstream service configuration, rate limiting,
// retry behavior, and logging preferences into a single structure.
type Config struct {
	Server         ServerConfig         `yaml:"server"`
	Gemini         GeminiConfig         `yaml:"gemini"`
	RateLimit      RateLimitConfig      `yaml:"rate_limit"`
	Retry          RetryConfig          `yaml:"retry"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`
	Queue          QueueConfig          `yaml:"queue"`
	Logging        LoggingConfig        `yaml:"logging"`
}

// ServerConfig holds server-specific configuration for the HTTP server.
// It defines timeouts, limits, and operational parameters.
type ServerConfig struct {
	// Port specifies the HTTP server port (default: 8080)
	Port int `yaml:"port"`

	// ReadTimeout is the maximum duration for reading the entire request,
	// including the body (default: 30s)
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out writes of the
	// response. A processed request may spend minutes blocked on the rate
	// limiter plus retry backoff, so this must stay well above the worst-case
	// retry schedule (default: 15m)
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// MaxHeaderBytes controls the maximum number of bytes the server will
	// read parsing the request header's keys and values (default: 1MB)
	MaxHeaderBytes int `yaml:"max_header_bytes"`

	// ShutdownTimeout specifies how long to wait for the server to shutdown
	// gracefully before forcing termination (default: 30s)
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// GeminiConfig holds configuration for the upstream generative-text service.
type GeminiConfig struct {
	// Endpoint is the service base URL
	Endpoint string `yaml:"endpoint"`

	// APIKey authenticates outbound calls.
	// Use environment variables (e.g., ${GEMINI_API_KEY}) for secure configuration
	APIKey string `yaml:"api_key"`

	// Model is the model name interpolated into the generateContent path
	Model string `yaml:"model"`

	// RequestTimeout bounds a single network attempt. It does not cover time
	// spent waiting on the rate limiter or sleeping between retries (default: 60s)
	RequestTimeout time.Duration `yaml:"request_timeout"`

	// MaxContentTokens caps the estimated token count of incoming content.
	// Zero disables the check.
	MaxContentTokens int `yaml:"max_content_tokens"`

	// Encoding names the tiktoken encoding used to estimate token counts.
	// Gemini does not publish a tiktoken encoding, so this is an approximation
	// (default: cl100k_base)
	Encoding string `yaml:"encoding"`
}

// RateLimitConfig defines the client-side token bucket that keeps outbound
// calls under the upstream quota. Refill is continuous, not reset-to-full.
type RateLimitConfig struct {
	// Capacity is the bucket size in tokens (default: 8)
	Capacity int `yaml:"capacity"`

	// Refill is how many tokens are restored per Interval (default: 8)
	Refill int `yaml:"refill"`

	// Interval is the refill window (default: 60s). The defaults sit under
	// an upstream quota of 10 requests per minute.
	Interval time.Duration `yaml:"interval"`
}

// RetryConfig defines the retry behavior for quota-exceeded upstream
// responses. Only "too many requests" answers are retried; every other
// failure propagates immediately.
type RetryConfig struct {
	// MaxRetries is the maximum number of retries after the initial attempt (default: 5)
	MaxRetries int `yaml:"max_retries"`

	// InitialDelay is the delay before the first retry (default: 12s)
	InitialDelay time.Duration `yaml:"initial_delay"`

	// MaxDelay caps the exponential delay between retries (default: 2m)
	MaxDelay time.Duration `yaml:"max_delay"`

	// Jitter randomizes each delay within [d*(1-j), d*(1+j)] (default: 0.5)
	Jitter float64 `yaml:"jitter"`
}

// CircuitBreakerConfig configures the breaker guarding the upstream call path.
type CircuitBreakerConfig struct {
	// FailureThreshold is the number of consecutive failures needed to trip the circuit
	FailureThreshold uint32 `yaml:"failure_threshold"`

	// ResetTimeout is the period of the open state until it becomes half-open
	ResetTimeout time.Duration `yaml:"reset_timeout"`

	// HalfOpenRequests is the number of requests allowed through in half-open state
	HalfOpenRequests uint32 `yaml:"half_open_requests"`

	// TestMode indicates whether to skip Prometheus metric registration (for testing)
	TestMode bool `yaml:"test_mode"`
}

// QueueConfig defines the configuration for the request queue middleware.
type QueueConfig struct {
	// Enabled determines if the queue middleware is active
	Enabled bool `yaml:"enabled"`

	// InitialSize is the starting maximum size of the queue
	InitialSize int64 `yaml:"initial_size"`
}

// LoggingConfig holds logging-specific configuration.
type LoggingConfig struct {
	// Level sets logging verbosity: debug, info, warn, error
	Level string `yaml:"level"`

	// Format specifies log output format: json or text
	Format string `yaml:"format"`
}

// DefaultConfig returns a configuration that aligns with the validation
// requirements and the upstream free-tier quota.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    15 * time.Minute,
			MaxHeaderBytes:  1 << 20,
			ShutdownTimeout: 30 * time.Second,
		},

		Gemini: GeminiConfig{
			Endpoint:         "https://generativelanguage.googleapis.com",
			APIKey:           "${GEMINI_API_KEY}",
			Model:            "gemini-2.5-flash",
			RequestTimeout:   60 * time.Second,
			MaxContentTokens: 16384,
			Encoding:         "cl100k_base",
		},

		// Free tier allows 10 requests per minute; 8 leaves headroom.
		RateLimit: RateLimitConfig{
			Capacity: 8,
			Refill:   8,
			Interval: 60 * time.Second,
		},

		Retry: RetryConfig{
			MaxRetries:   5,
			InitialDelay: 12 * time.Second,
			MaxDelay:     2 * time.Minute,
			Jitter:       0.5,
		},

		CircuitBreaker: CircuitBreakerConfig{
			FailureThreshold: 5,
			ResetTimeout:     time.Minute,
			HalfOpenRequests: 1,
			TestMode:         false,
		},

		Queue: QueueConfig{
			Enabled:     true,
			InitialSize: 1000,
		},

		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// LoadFile loads configuration from a YAML file
func LoadFile(filename string) (*Config, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("open config file: %w", err)
	}
	defer f.Close()

	return Load(f)
}

// expandEnvVars resolves environment variable references within configuration
// strings. It supports standard ${VAR} substitution, ${VAR:-default} default
// value syntax, and nested variable references.
func expandEnvVars(s string) (string, error) {
	result := os.Expand(s, func(key string) string {
		if i := strings.Index(key, ":-"); i >= 0 {
			envKey := key[:i]
			defaultValue := key[i+2:]

			if val := os.Getenv(envKey); val != "" {
				return val
			}
			return defaultValue
		}

		return os.Getenv(key)
	})

	// Recursively expand until no further substitutions are possible
	prev := ""
	for prev != result {
		prev = result
		result = os.Expand(result, os.Getenv)
	}

	return result, nil
}

// Load loads configuration from an io.Reader
func Load(r io.Reader) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	expandedData, err := expandEnvVars(string(data))
	if err != nil {
		return nil, fmt.Errorf("expand environment variables: %w", err)
	}

	// Start with defaults
	config := DefaultConfig()

	dec := yaml.NewDecoder(strings.NewReader(expandedData))
	if err := dec.Decode(config); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	// The default api_key is itself a ${VAR} reference; expand it when the
	// file did not override it.
	if strings.Contains(config.Gemini.APIKey, "${") {
		expanded, err := expandEnvVars(config.Gemini.APIKey)
		if err != nil {
			return nil, fmt.Errorf("expand api key: %w", err)
		}
		config.Gemini.APIKey = expanded
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return config, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Server validation
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}
	if c.Server.ReadTimeout < 0 {
		return fmt.Errorf("negative read timeout: %v", c.Server.ReadTimeout)
	}
	if c.Server.WriteTimeout < 0 {
		return fmt.Errorf("negative write timeout: %v", c.Server.WriteTimeout)
	}
	if c.Server.MaxHeaderBytes < 0 {
		return fmt.Errorf("negative max header bytes: %d", c.Server.MaxHeaderBytes)
	}
	if c.Server.ShutdownTimeout < 0 {
		return fmt.Errorf("negative shutdown timeout: %v", c.Server.ShutdownTimeout)
	}

	// Upstream validation
	if c.Gemini.Endpoint == "" {
		return fmt.Errorf("empty gemini endpoint")
	}
	if c.Gemini.Model == "" {
		return fmt.Errorf("empty gemini model")
	}
	if c.Gemini.RequestTimeout <= 0 {
		return fmt.Errorf("non-positive gemini request timeout: %v", c.Gemini.RequestTimeout)
	}
	if c.Gemini.MaxContentTokens < 0 {
		return fmt.Errorf("negative max content tokens: %d", c.Gemini.MaxContentTokens)
	}

	// Rate limit validation
	if c.RateLimit.Capacity <= 0 {
		return fmt.Errorf("non-positive rate limit capacity: %d", c.RateLimit.Capacity)
	}
	if c.RateLimit.Refill <= 0 {
		return fmt.Errorf("non-positive rate limit refill: %d", c.RateLimit.Refill)
	}
	if c.RateLimit.Interval <= 0 {
		return fmt.Errorf("non-positive rate limit interval: %v", c.RateLimit.Interval)
	}

	// Retry validation
	if c.Retry.MaxRetries < 0 {
		return fmt.Errorf("negative max retries: %d", c.Retry.MaxRetries)
	}
	if c.Retry.InitialDelay <= 0 {
		return fmt.Errorf("non-positive initial retry delay: %v", c.Retry.InitialDelay)
	}
	if c.Retry.MaxDelay < c.Retry.InitialDelay {
		return fmt.Errorf("max retry delay %v below initial delay %v", c.Retry.MaxDelay, c.Retry.InitialDelay)
	}
	if c.Retry.Jitter < 0 || c.Retry.Jitter > 1 {
		return fmt.Errorf("retry jitter out of range [0,1]: %v", c.Retry.Jitter)
	}

	// Logging validation
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		// Valid levels
	default:
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	switch c.Logging.Format {
	case "json", "text":
		// Valid formats
	default:
		return fmt.Errorf("invalid log format: %s", c.Logging.Format)
	}

	return nil
}
