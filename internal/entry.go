// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/ansuz/internal/api"
	"github.com/starford/ansuz/internal/history"
	"github.com/starford/ansuz/internal/inbox"
	"github.com/starford/ansuz/internal/limits"
	"github.com/starford/ansuz/internal/llm"
	"github.com/starford/ansuz/internal/mcpserver"
	"github.com/starford/ansuz/internal/noteservice"
	"github.com/starford/ansuz/internal/pipeline"
	"github.com/starford/ansuz/internal/sse"
	"github.com/starford/ansuz/internal/storage"
)

// defaultBaseURLs are the provider endpoints used when the config leaves
// base_url empty.
var defaultBaseURLs = map[string]string{
	"openai":     "https://api.openai.com/v1",
	"anthropic":  "https://api.anthropic.com/v1",
	"openrouter": "https://openrouter.ai/api/v1",
	"ollama":     "http://localhost:11434/v1",
	"lmstudio":   "http://localhost:1234/v1",
}

// Run starts the application with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	cfg := app.config

	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("vault_path", cfg.Vault.Path),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("backend", cfg.Backend.Provider+"/"+cfg.Backend.Model),
		slog.String("log_level", cfg.App.LogLevel.String()))

	throttle := app.brokerThrottle
	if throttle <= 0 {
		throttle = 2 * time.Second
	}
	svc, db, err := buildService(cfg, logger, sse.NewBroker(throttle))
	if err != nil {
		return err
	}
	defer db.Close()

	broker := svc.Broker()

	// Build API router.
	apiRouter := api.NewRouter(svc.Service, svc.Registry, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	g, gCtx := errgroup.WithContext(ctx)

	// Start inbox watcher if configured.
	if cfg.Inbox.Enabled() {
		if err := os.MkdirAll(cfg.Inbox.Path, 0o755); err != nil {
			return fmt.Errorf("create inbox dir: %w", err)
		}
		inboxStore, err := storage.NewFS(cfg.Inbox.Path)
		if err != nil {
			return fmt.Errorf("init inbox storage: %w", err)
		}
		watcher := inbox.NewWatcher(inboxStore, svc.Service, cfg.Inbox.Path, logger)
		g.Go(func() error {
			if err := watcher.Sweep(gCtx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Warn("inbox sweep failed", slog.String("error", err.Error()))
			}
			return watcher.Watch(gCtx)
		})
	}

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}
		broker.Close()

		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// RunMCP serves the MCP tools over stdio. Logs go to stderr so stdout stays
// a clean protocol stream.
func RunMCP(_ context.Context, cfg *Config) error {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	svc, db, err := buildService(cfg, logger, nil)
	if err != nil {
		return err
	}
	defer db.Close()

	return mcpserver.New(svc.Service).ServeStdio()
}

// services bundles the wired domain layer.
type services struct {
	Service  *noteservice.Service
	Registry *limits.Registry
	broker   *sse.Broker
}

// Broker returns the SSE broker, possibly nil.
func (s *services) Broker() *sse.Broker { return s.broker }

// buildService wires storage, history, backend, and pipeline into the note
// service shared by the HTTP and MCP surfaces.
func buildService(cfg *Config, logger *slog.Logger, broker *sse.Broker) (*services, *history.DB, error) {
	if err := os.MkdirAll(cfg.Vault.Path, 0o755); err != nil {
		return nil, nil, fmt.Errorf("create vault dir: %w", err)
	}
	store, err := storage.NewFS(cfg.Vault.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("init storage: %w", err)
	}

	db, err := history.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("init history: %w", err)
	}

	baseURL := cfg.Backend.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURLs[cfg.Backend.Provider]
	}
	backend := llm.NewClient(cfg.Backend.Provider, cfg.Backend.Model, baseURL, cfg.Backend.APIKey, 0)

	registry := limits.NewRegistry(cfg.Models)
	est := limits.NewEstimator(registry, cfg.Backend.MaxOutputTokens, logger)

	pipeCfg := pipeline.Config{
		Device:                cfg.Backend.Device(),
		Temperature:           cfg.Backend.Temperature,
		MinBucketSeconds:      cfg.Pipeline.MinBucketSeconds,
		ChunkHeadingThreshold: cfg.Pipeline.ChunkHeadingThreshold,
		LinkTemplate:          cfg.Pipeline.LinkTemplate,
		SummarySystemPrompt:   cfg.Pipeline.SummarySystemPrompt,
		LinkingSystemPrompt:   cfg.Pipeline.LinkingSystemPrompt,
	}

	svc := noteservice.NewService(store, db, backend, est, pipeCfg, broker, logger)
	return &services{Service: svc, Registry: registry, broker: broker}, db, nil
}
