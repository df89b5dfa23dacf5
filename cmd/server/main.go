// Lanne - Linux assistant orchestration server
package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ashureev/lanne/internal/api"
	"github.com/ashureev/lanne/internal/catalog"
	"github.com/ashureev/lanne/internal/config"
	"github.com/ashureev/lanne/internal/evaluator"
	"github.com/ashureev/lanne/internal/executor"
	"github.com/ashureev/lanne/internal/healthsvc"
	"github.com/ashureev/lanne/internal/intent"
	"github.com/ashureev/lanne/internal/knowledge"
	"github.com/ashureev/lanne/internal/middleware"
	"github.com/ashureev/lanne/internal/orchestrator"
	"github.com/ashureev/lanne/internal/planner"
	"github.com/ashureev/lanne/internal/responder"
	"github.com/ashureev/lanne/internal/store"
	"github.com/ashureev/lanne/internal/websearch"
	"github.com/joho/godotenv"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

const healthWatchInterval = 30 * time.Second

//nolint:gocyclo,funlen // Startup wiring is intentionally sequential to keep dependency setup explicit.
func main() {
	level := new(slog.LevelVar)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	level.Set(cfg.LogLevel)

	slog.Info("Starting server", "port", cfg.Port, "version", version,
		"inference", cfg.Inference.Provider, "action_agent", cfg.ActionAgent.Mode, "dev", cfg.IsDevelopment())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Per-call deadlines are set by each client from cfg.Timeout.
	hc := &http.Client{}

	backend, err := newBackend(ctx, cfg, hc)
	if err != nil {
		slog.Error("Failed to initialize inference backend", "error", err)
		os.Exit(1)
	}
	agent, err := newActionAgent(cfg, hc)
	if err != nil {
		slog.Error("Failed to initialize action agent", "error", err)
		os.Exit(1)
	}

	cat, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		slog.Error("Failed to load command catalog", "error", err)
		os.Exit(1)
	}
	dataset, err := intent.LoadDataset(cfg.IntentDatasetPath)
	if err != nil {
		slog.Error("Failed to load intent dataset", "error", err)
		os.Exit(1)
	}
	classifier, err := intent.NewFromDataset(dataset, backend, cfg.Timeout.Intent, logger)
	if err != nil {
		slog.Error("Failed to train intent classifier", "error", err)
		os.Exit(1)
	}
	slog.Info("Intent classifier ready", "catalog_commands", cat.Len())

	repo, err := openStore(ctx, cfg)
	if err != nil {
		slog.Error("Failed to open exchange store", "error", err)
		os.Exit(1)
	}
	if repo != nil {
		defer func() {
			if closeErr := repo.Close(); closeErr != nil {
				slog.Error("Failed to close repository", "error", closeErr)
			}
		}()
	}
	metricsRecorder, closeMetrics := openMetrics(ctx, cfg)
	defer closeMetrics()

	recorders := []orchestrator.Recorder{metricsRecorder}
	if repo != nil {
		recorders = append(recorders, repo)
	}

	exec := executor.New(executor.Config{
		Catalog:            cat,
		Agent:              agent,
		Knowledge:          knowledge.NewClient(cfg.KnowledgeURL, cfg.Timeout.Knowledge, hc),
		Web:                websearch.NewClient(cfg.WebSearchURL, cfg.Timeout.Web, hc),
		KnowledgeThreshold: cfg.KnowledgeThreshold,
		Logger:             logger,
	})
	orch := orchestrator.New(orchestrator.Config{
		Classifier: classifier,
		Planner:    planner.New(backend, cat, logger),
		Executor:   exec,
		Evaluator:  evaluator.New(backend, exec, logger),
		Responder:  responder.New(backend, logger),
		Recorders:  recorders,
		Logger:     logger,
	})

	opts := api.Options{
		Pipeline: orch,
		Info: api.ServiceInfo{
			Service:     "lanne-orchestrator",
			Version:     version,
			ActionAgent: cfg.ActionAgent.Mode,
			Inference:   cfg.Inference.Provider,
		},
		MaxRequestBodySize: cfg.MaxRequestBodySize,
		AllowedOrigins:     cfg.AllowedOrigins(),
		Limiter:            middleware.NewRateLimiter(ctx, cfg.RateLimit.Requests, cfg.RateLimit.Window),
		Logger:             logger,
	}
	if repo != nil {
		opts.History = repo
	}
	router := api.NewRouter(api.NewHandler(opts), cfg.AllowedOrigins())

	// Streaming responses require long writes, so there is no WriteTimeout.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	if repo != nil {
		store.StartRetentionWorker(ctx, repo, cfg.ExchangeRetention, store.RetentionInterval)
	}

	var health *healthsvc.Server
	if cfg.GRPCPort != "" {
		lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
		if err != nil {
			slog.Error("Failed to listen for gRPC health", "port", cfg.GRPCPort, "error", err)
			os.Exit(1)
		}
		health = healthsvc.NewServer(logger)
		go func() {
			if err := health.Serve(lis); err != nil {
				slog.Error("gRPC health server failed", "error", err)
			}
		}()
		if repo != nil {
			go health.Watch(ctx, healthWatchInterval, repo.Ping)
		}
	}

	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal.
	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")
	if health != nil {
		health.SetServing(false)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}
	if health != nil {
		health.Stop()
	}

	slog.Info("Server stopped successfully")
}
