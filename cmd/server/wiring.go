package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/ashureev/lanne/internal/actionagent"
	"github.com/ashureev/lanne/internal/config"
	"github.com/ashureev/lanne/internal/inference"
	"github.com/ashureev/lanne/internal/metrics"
	"github.com/ashureev/lanne/internal/orchestrator"
	"github.com/ashureev/lanne/internal/store"
)

func newBackend(ctx context.Context, cfg *config.Config, hc *http.Client) (inference.Backend, error) {
	switch cfg.Inference.Provider {
	case config.ProviderGemini:
		return inference.NewGeminiBackend(ctx, inference.GeminiConfig{
			APIKey:          cfg.Inference.GeminiAPIKey,
			Model:           cfg.Inference.GeminiModel,
			GenerateTimeout: cfg.Timeout.Generate,
			ClassifyTimeout: cfg.Timeout.Classify,
		})
	default:
		return inference.NewHTTPBackend(inference.HTTPConfig{
			BaseURL:         cfg.Inference.URL,
			GenerateTimeout: cfg.Timeout.Generate,
			ClassifyTimeout: cfg.Timeout.Classify,
		}, hc), nil
	}
}

func newActionAgent(cfg *config.Config, hc *http.Client) (actionagent.Agent, error) {
	switch cfg.ActionAgent.Mode {
	case config.AgentModeDocker:
		agent, err := actionagent.NewDockerAgent(cfg.ActionAgent.Container, cfg.Timeout.Action)
		if err != nil {
			return nil, fmt.Errorf("docker action agent: %w", err)
		}
		return agent, nil
	case config.AgentModeDisabled:
		return actionagent.Disabled{}, nil
	default:
		return actionagent.NewHTTPAgent(actionagent.HTTPConfig{
			BaseURL: cfg.ActionAgent.URL,
			Token:   cfg.ActionAgent.Token,
			Timeout: cfg.Timeout.Action,
		}, hc), nil
	}
}

// openStore returns nil when exchange storage is disabled.
func openStore(ctx context.Context, cfg *config.Config) (store.Repository, error) {
	if !cfg.StoreEnabled {
		slog.Info("Exchange store disabled")
		return nil, nil
	}
	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("initialize database: %w", err)
	}
	if err := repo.Ping(ctx); err != nil {
		_ = repo.Close()
		return nil, fmt.Errorf("database health check: %w", err)
	}
	slog.Info("Database connected", "path", cfg.DBPath)
	return repo, nil
}

// openMetrics returns a no-op recorder when Redis is not configured or
// unreachable; metrics never block startup.
func openMetrics(ctx context.Context, cfg *config.Config) (orchestrator.Recorder, func()) {
	if cfg.RedisAddr == "" {
		return metrics.Noop{}, func() {}
	}
	sink, err := metrics.NewRedisSink(ctx, cfg.RedisAddr, cfg.RedisStream)
	if err != nil {
		slog.Warn("Metrics stream unavailable, continuing without it", "addr", cfg.RedisAddr, "error", err)
		return metrics.Noop{}, func() {}
	}
	slog.Info("Metrics stream connected", "addr", cfg.RedisAddr, "stream", cfg.RedisStream)
	return sink, func() {
		if err := sink.Close(); err != nil {
			slog.Warn("Failed to close metrics stream", "error", err)
		}
	}
}
