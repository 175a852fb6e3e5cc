package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, 8080, cfg.HTTPPort)
	assert.Equal(t, 600, cfg.MockLatencyMs)
	assert.Equal(t, 30, cfg.SessionTTLMinutes)
	assert.Equal(t, "http://localhost:8080", cfg.BackendBaseURL)
	assert.Equal(t, []string{"localhost:9092"}, cfg.KafkaBrokers)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("WIZARD_HTTP_PORT", "9090")
	t.Setenv("MOCK_LATENCY_MS", "0")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092,kafka-2:9092")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://shop.example.com")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.HTTPPort)
	assert.Equal(t, 0, cfg.MockLatencyMs)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, []string{"https://shop.example.com"}, cfg.CORSAllowedOrigins)
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"port out of range", "WIZARD_HTTP_PORT", "99999"},
		{"negative latency", "MOCK_LATENCY_MS", "-1"},
		{"zero session ttl", "SESSION_TTL_MINUTES", "0"},
		{"sample rate too high", "OTEL_SAMPLE_RATE", "1.5"},
		{"bad backend url", "CHECKOUT_BACKEND_URL", "not a url"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
