// Package api provides HTTP handlers for the Lanne API.
package api

import (
	"context"
	"encoding/json"
	"iter"
	"log/slog"
	"net/http"

	"github.com/ashureev/lanne/internal/domain"
	"github.com/ashureev/lanne/internal/middleware"
	"github.com/ashureev/lanne/internal/store"
	"github.com/go-chi/chi/v5"
)

const defaultMaxRequestBodySize = 64 * 1024

// Pipeline runs queries through the orchestration pipeline.
type Pipeline interface {
	Stream(ctx context.Context, q domain.Query) iter.Seq[domain.StreamEvent]
	Process(ctx context.Context, q domain.Query) (domain.Response, error)
	Plan(ctx context.Context, text string) (domain.IntentClassification, domain.ExecutionPlan)
}

// History lists and probes recorded exchanges.
type History interface {
	ListExchanges(ctx context.Context, filter store.ExchangeFilter) ([]domain.Exchange, error)
	Ping(ctx context.Context) error
}

// ServiceInfo is reported by GET /.
type ServiceInfo struct {
	Service     string `json:"service"`
	Status      string `json:"status"`
	Version     string `json:"version"`
	ActionAgent string `json:"actionAgent"`
	Inference   string `json:"inference"`
}

// Options configures a Handler.
type Options struct {
	Pipeline Pipeline
	// History may be nil when exchange storage is disabled.
	History            History
	Info               ServiceInfo
	MaxRequestBodySize int64
	// AllowedOrigins gates WebSocket upgrades; empty accepts any origin.
	AllowedOrigins []string
	// Limiter throttles pipeline requests and WebSocket messages. Nil
	// disables throttling.
	Limiter *middleware.RateLimiter
	Logger  *slog.Logger
}

// Handler serves the orchestration endpoints.
type Handler struct {
	pipeline    Pipeline
	history     History
	info        ServiceInfo
	maxBodySize int64
	origins     []string
	limiter     *middleware.RateLimiter
	logger      *slog.Logger
}

// NewHandler creates a new Handler.
func NewHandler(opts Options) *Handler {
	if opts.MaxRequestBodySize <= 0 {
		opts.MaxRequestBodySize = defaultMaxRequestBodySize
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Info.Status == "" {
		opts.Info.Status = "running"
	}
	return &Handler{
		pipeline:    opts.Pipeline,
		history:     opts.History,
		info:        opts.Info,
		maxBodySize: opts.MaxRequestBodySize,
		origins:     opts.AllowedOrigins,
		limiter:     opts.Limiter,
		logger:      opts.Logger,
	}
}

// RegisterRoutes registers the read-only routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.HandleInfo)
	r.Get("/health", h.HandleHealth)
	r.Get("/debug/plan", h.HandleDebugPlan)
	r.Get("/api/exchanges", h.HandleExchanges)
}

// RegisterPipelineRoutes registers the routes that run the pipeline. Callers
// wrap them with rate limiting.
func (h *Handler) RegisterPipelineRoutes(r chi.Router) {
	r.Post("/internal/orchestrate", h.HandleOrchestrate)
	r.Post("/internal/orchestrate-sync", h.HandleOrchestrateSync)
	r.Get("/ws/orchestrate", h.HandleWebSocket)
}

// HandleInfo reports service identity and configured backends.
func (h *Handler) HandleInfo(w http.ResponseWriter, _ *http.Request) {
	JSON(w, http.StatusOK, h.info)
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to encode response", "error", err)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}
