package config

import (
	"fmt"
	"net/url"

	pkgconfig "github.com/utafrali/checkout-wizard/pkg/config"
)

// Config holds all configuration for the checkout wizard service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort int `env:"WIZARD_HTTP_PORT" envDefault:"8080"`

	// Session store
	SessionTTLMinutes int `env:"SESSION_TTL_MINUTES" envDefault:"30"`

	// Mock checkout backend
	MockLatencyMs  int    `env:"MOCK_LATENCY_MS" envDefault:"600"`
	BackendBaseURL string `env:"CHECKOUT_BACKEND_URL" envDefault:"http://localhost:8080"`

	// Per-call timeout for backend requests during order completion.
	CompleteTimeoutSeconds int `env:"COMPLETE_TIMEOUT_SECONDS" envDefault:"10"`

	// Kafka
	KafkaBrokers []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`

	// Circuit breaker settings for backend calls
	CBMaxRequests  uint32  `env:"CB_MAX_REQUESTS" envDefault:"1"`
	CBInterval     int     `env:"CB_INTERVAL_SECONDS" envDefault:"60"`
	CBTimeout      int     `env:"CB_TIMEOUT_SECONDS" envDefault:"30"`
	CBFailureRatio float64 `env:"CB_FAILURE_RATIO" envDefault:"0.5"`
	CBMinRequests  uint32  `env:"CB_MIN_REQUESTS" envDefault:"5"`

	// Rate limiting (requests per second per client IP; 0 disables)
	RateLimitRPS   int `env:"RATE_LIMIT_RPS" envDefault:"50"`
	RateLimitBurst int `env:"RATE_LIMIT_BURST" envDefault:"100"`

	// CORS
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"http://localhost:3000" envSeparator:","`

	// OpenTelemetry
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load wizard config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate checks configuration invariants.
func (c *Config) validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	if c.SessionTTLMinutes < 1 {
		return fmt.Errorf("SESSION_TTL_MINUTES must be positive, got %d", c.SessionTTLMinutes)
	}
	if c.MockLatencyMs < 0 {
		return fmt.Errorf("MOCK_LATENCY_MS must not be negative, got %d", c.MockLatencyMs)
	}
	if len(c.KafkaBrokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS is required")
	}
	if c.OTELSampleRate < 0 || c.OTELSampleRate > 1.0 {
		return fmt.Errorf("OTEL_SAMPLE_RATE must be between 0.0 and 1.0, got %f", c.OTELSampleRate)
	}
	if c.BackendBaseURL == "" {
		return fmt.Errorf("CHECKOUT_BACKEND_URL is required")
	}
	if _, err := url.ParseRequestURI(c.BackendBaseURL); err != nil {
		return fmt.Errorf("invalid CHECKOUT_BACKEND_URL %q: %w", c.BackendBaseURL, err)
	}
	return nil
}
