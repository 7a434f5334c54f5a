package config

import (
	"context"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// Config holds runtime configuration for the pilotd service.
type Config struct {
	Addr         string   `env:"ADDR,default=:8080"`
	DBDSN        string   `env:"DB_DSN,required"`
	NATSURL      string   `env:"NATS_URL,default=nats://localhost:4222"`
	OTLPEndpoint string   `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	CORSOrigins  []string `env:"CORS_ALLOWED_ORIGINS,default=http://localhost:5173"`

	// NLU service settings.
	OllamaURL    string        `env:"OLLAMA_URL,default=http://localhost:11434"`
	ActiveModel  string        `env:"OLLAMA_ACTIVE_MODEL,default=phi3:3.8b-mini"`
	MaxTokens    int           `env:"OLLAMA_MAX_TOKENS,default=1000"`
	Temperature  float64       `env:"OLLAMA_TEMPERATURE,default=0.7"`
	SystemPrompt string        `env:"OLLAMA_SYSTEM_PROMPT"`
	NLUEnabled   bool          `env:"NLU_ENABLED,default=true"`
	ProbeTimeout time.Duration `env:"NLU_PROBE_TIMEOUT,default=5s"`
	GenTimeout   time.Duration `env:"NLU_GENERATE_TIMEOUT,default=60s"`

	// Per-action rate limits (requests per window).
	StatusCheckLimit int           `env:"RATE_LIMIT_STATUS_CHECK,default=60"`
	MessageLimit     int           `env:"RATE_LIMIT_MESSAGES,default=30"`
	RateLimitWindow  time.Duration `env:"RATE_LIMIT_WINDOW,default=60s"`
	HTTPRateLimit    int           `env:"HTTP_RATE_LIMIT,default=100"`
	HTTPRateWindow   time.Duration `env:"HTTP_RATE_WINDOW,default=1m"`
}

// Load returns a Config populated from environment variables.
func Load(ctx context.Context) (Config, error) {
	var cfg Config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return Config{}, err
	}
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = "You are Pilot, an intelligent assistant for the business data platform. Help users with their tasks while respecting their role-based permissions."
	}
	return cfg, nil
}
