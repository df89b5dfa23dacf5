// Package config provides application configuration.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Inference providers.
const (
	ProviderHTTP   = "http"
	ProviderGemini = "gemini"
)

// Action agent modes.
const (
	AgentModeHTTP     = "http"
	AgentModeDocker   = "docker"
	AgentModeDisabled = "disabled"
)

// Config holds all application configuration.
type Config struct {
	Port        string
	GRPCPort    string // empty disables the gRPC health server
	FrontendURL string
	LogLevel    slog.Level

	Inference          InferenceConfig
	ActionAgent        ActionAgentConfig
	KnowledgeURL       string
	WebSearchURL       string
	KnowledgeThreshold float64

	CatalogPath       string // embedded catalog when empty
	IntentDatasetPath string // embedded dataset when empty

	StoreEnabled      bool
	DBPath            string
	ExchangeRetention time.Duration
	RedisAddr         string // empty disables the metrics stream
	RedisStream       string

	Timeout   TimeoutConfig
	RateLimit RateLimitConfig

	MaxRequestBodySize int64
}

// InferenceConfig selects and configures the generation backend.
type InferenceConfig struct {
	Provider     string
	URL          string
	GeminiAPIKey string
	GeminiModel  string
}

// ActionAgentConfig selects how catalog commands are executed.
type ActionAgentConfig struct {
	Mode      string
	URL       string
	Token     string
	Container string
}

// TimeoutConfig holds per-collaborator call deadlines.
type TimeoutConfig struct {
	Generate  time.Duration
	Classify  time.Duration
	Intent    time.Duration
	Action    time.Duration
	Knowledge time.Duration
	Web       time.Duration
}

// RateLimitConfig bounds pipeline requests per caller.
type RateLimitConfig struct {
	Requests int
	Window   time.Duration
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	level, err := parseLevel(getEnv("LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	cfg := &Config{
		Port:        getEnv("PORT", "8000"),
		GRPCPort:    getEnv("GRPC_PORT", "50051"),
		FrontendURL: getEnv("FRONTEND_URL", ""),
		LogLevel:    level,
		Inference: InferenceConfig{
			Provider:     strings.ToLower(getEnv("INFERENCE_PROVIDER", ProviderHTTP)),
			URL:          getEnv("INFERENCE_URL", "http://localhost:8001"),
			GeminiAPIKey: getEnv("GEMINI_API_KEY", ""),
			GeminiModel:  getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
		},
		ActionAgent: ActionAgentConfig{
			Mode:      strings.ToLower(getEnv("ACTION_AGENT_MODE", AgentModeHTTP)),
			URL:       getEnv("ACTION_AGENT_URL", "http://localhost:9000"),
			Token:     getEnv("ACTION_AGENT_TOKEN", ""),
			Container: getEnv("ACTION_AGENT_CONTAINER", ""),
		},
		KnowledgeURL:       getEnv("RAG_URL", "http://localhost:8002"),
		WebSearchURL:       getEnv("WEB_SEARCH_URL", "http://localhost:8003"),
		KnowledgeThreshold: getEnvFloat("KNOWLEDGE_THRESHOLD", 0.5),
		CatalogPath:        getEnv("CATALOG_PATH", ""),
		IntentDatasetPath:  getEnv("INTENT_DATASET_PATH", ""),
		StoreEnabled:       getEnvBool("EXCHANGE_STORE_ENABLED", true),
		DBPath:             getEnv("DB_PATH", "./data/lanne.db"),
		ExchangeRetention:  getEnvDuration("EXCHANGE_RETENTION", 720*time.Hour),
		RedisAddr:          getEnv("REDIS_ADDR", ""),
		RedisStream:        getEnv("REDIS_STREAM", "lanne:exchanges"),
		Timeout: TimeoutConfig{
			Generate:  getEnvDuration("GENERATE_TIMEOUT", 60*time.Second),
			Classify:  getEnvDuration("CLASSIFY_TIMEOUT", 15*time.Second),
			Intent:    getEnvDuration("INTENT_TIMEOUT", 10*time.Second),
			Action:    getEnvDuration("ACTION_TIMEOUT", 20*time.Second),
			Knowledge: getEnvDuration("KNOWLEDGE_TIMEOUT", 10*time.Second),
			Web:       getEnvDuration("WEB_TIMEOUT", 15*time.Second),
		},
		RateLimit: RateLimitConfig{
			Requests: getEnvInt("RATE_LIMIT_REQUESTS", 30),
			Window:   getEnvDuration("RATE_LIMIT_WINDOW", time.Minute),
		},
		MaxRequestBodySize: int64(getEnvInt("MAX_REQUEST_BODY_SIZE", 64*1024)),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
//
//nolint:gocyclo // Flat list of independent checks.
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("PORT cannot be empty")
	}
	switch c.Inference.Provider {
	case ProviderHTTP:
		if c.Inference.URL == "" {
			return errors.New("INFERENCE_URL cannot be empty")
		}
	case ProviderGemini:
		if c.Inference.GeminiAPIKey == "" {
			return errors.New("GEMINI_API_KEY is required when INFERENCE_PROVIDER=gemini")
		}
	default:
		return fmt.Errorf("INFERENCE_PROVIDER must be %q or %q, got %q", ProviderHTTP, ProviderGemini, c.Inference.Provider)
	}
	switch c.ActionAgent.Mode {
	case AgentModeHTTP:
		if c.ActionAgent.URL == "" {
			return errors.New("ACTION_AGENT_URL cannot be empty")
		}
	case AgentModeDocker:
		if c.ActionAgent.Container == "" {
			return errors.New("ACTION_AGENT_CONTAINER is required when ACTION_AGENT_MODE=docker")
		}
	case AgentModeDisabled:
	default:
		return fmt.Errorf("ACTION_AGENT_MODE must be http, docker or disabled, got %q", c.ActionAgent.Mode)
	}
	if c.KnowledgeURL == "" {
		return errors.New("RAG_URL cannot be empty")
	}
	if c.WebSearchURL == "" {
		return errors.New("WEB_SEARCH_URL cannot be empty")
	}
	if c.KnowledgeThreshold < 0 || c.KnowledgeThreshold > 1 {
		return errors.New("KNOWLEDGE_THRESHOLD must be within [0, 1]")
	}
	if c.StoreEnabled && c.DBPath == "" {
		return errors.New("DB_PATH cannot be empty")
	}
	if c.ExchangeRetention <= 0 {
		return errors.New("EXCHANGE_RETENTION must be > 0")
	}
	for name, d := range map[string]time.Duration{
		"GENERATE_TIMEOUT":  c.Timeout.Generate,
		"CLASSIFY_TIMEOUT":  c.Timeout.Classify,
		"INTENT_TIMEOUT":    c.Timeout.Intent,
		"ACTION_TIMEOUT":    c.Timeout.Action,
		"KNOWLEDGE_TIMEOUT": c.Timeout.Knowledge,
		"WEB_TIMEOUT":       c.Timeout.Web,
		"RATE_LIMIT_WINDOW": c.RateLimit.Window,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be > 0", name)
		}
	}
	if c.RateLimit.Requests <= 0 {
		return errors.New("RATE_LIMIT_REQUESTS must be > 0")
	}
	if c.MaxRequestBodySize <= 0 {
		return errors.New("MAX_REQUEST_BODY_SIZE must be > 0")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

// AllowedOrigins returns the CORS and WebSocket origins.
func (c *Config) AllowedOrigins() []string {
	if c.IsDevelopment() {
		return []string{"*"}
	}
	return []string{strings.TrimRight(c.FrontendURL, "/")}
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	return level, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return f
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}
