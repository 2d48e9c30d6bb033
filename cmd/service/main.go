// Package main is the entry point for the service.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jsamuelsen/go-reqctx/internal/adapters/archive"
	"github.com/jsamuelsen/go-reqctx/internal/adapters/http"
	"github.com/jsamuelsen/go-reqctx/internal/adapters/http/handlers"
	"github.com/jsamuelsen/go-reqctx/internal/adapters/http/middleware"
	"github.com/jsamuelsen/go-reqctx/internal/app"
	"github.com/jsamuelsen/go-reqctx/internal/app/payload"
	"github.com/jsamuelsen/go-reqctx/internal/app/reqctx"
	"github.com/jsamuelsen/go-reqctx/internal/platform/config"
	"github.com/jsamuelsen/go-reqctx/internal/platform/logging"
	"github.com/jsamuelsen/go-reqctx/internal/platform/telemetry"
	"github.com/jsamuelsen/go-reqctx/internal/ports"
)

// Build-time variables, injected via ldflags.
// Example: go build -ldflags "-X main.Version=1.0.0 -X main.Commit=$(git rev-parse HEAD) -X main.BuildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
var (
	// Version is the semantic version of the service.
	Version = "dev"

	// Commit is the git commit SHA.
	Commit = "unknown"

	// BuildTime is the timestamp when the binary was built.
	BuildTime = "unknown"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()

	// 1. Determine profile from environment
	profile := os.Getenv("APP_ENVIRONMENT")
	if profile == "" {
		profile = "local"
	}

	// 2. Load and validate configuration (fail fast)
	cfg, err := config.Load(profile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// 3. Initialize logging. Records carry the IDs of the request context
	// installed on the flow that logs them.
	logger := logging.New(&logging.Config{
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		Service: cfg.App.Name,
		Version: cfg.App.Version,
		File: logging.FileConfig{
			Enabled:    cfg.Log.File.Enabled,
			Path:       cfg.Log.File.Path,
			MaxSizeMB:  cfg.Log.File.MaxSizeMB,
			MaxBackups: cfg.Log.File.MaxBackups,
			MaxAgeDays: cfg.Log.File.MaxAgeDays,
			Compress:   cfg.Log.File.Compress,
		},
		Attrs: payload.ContextAttrs,
	})
	logging.SetDefault(logger)

	logger.Info("starting service",
		slog.String("version", Version),
		slog.String("commit", Commit),
		slog.String("environment", cfg.App.Environment),
	)

	// 4. Initialize telemetry (noop if disabled)
	telProvider, err := telemetry.New(ctx, &telemetry.Config{
		Enabled:      cfg.Telemetry.Enabled,
		Endpoint:     cfg.Telemetry.Endpoint,
		ServiceName:  cfg.Telemetry.ServiceName,
		Version:      cfg.App.Version,
		Environment:  cfg.App.Environment,
		SamplingRate: cfg.Telemetry.SamplingRate,
	})
	if err != nil {
		return fmt.Errorf("initializing telemetry: %w", err)
	}

	defer func() {
		if shutdownErr := telProvider.Shutdown(ctx); shutdownErr != nil {
			logger.Error("telemetry shutdown error", slog.Any("error", shutdownErr))
		}
	}()

	contextMetrics, err := telemetry.NewContextMetrics(prometheus.DefaultRegisterer)
	if err != nil {
		return fmt.Errorf("registering context metrics: %w", err)
	}

	// 5. Create the result archive and batch service
	resultArchive := archive.NewMemory(cfg.Worker.ArchiveMaxRequests)

	// Runs after the server has drained in-flight requests.
	defer func() {
		if closeErr := resultArchive.Close(); closeErr != nil {
			logger.Error("archive close error", slog.Any("error", closeErr))
		}
	}()

	batchService := app.NewBatchService(resultArchive, &app.BatchServiceConfig{
		Logger:      logger,
		Concurrency: cfg.Worker.Concurrency,
	})

	// 6. Create health registry
	healthRegistry := ports.NewHealthRegistry(ports.WithCheckTimeout(cfg.Server.HealthCheckTimeout))

	for _, checker := range []ports.HealthChecker{resultArchive, app.ContextCheck{Readers: 4}} {
		if err := healthRegistry.Register(checker); err != nil {
			return fmt.Errorf("registering %s health check: %w", checker.Name(), err)
		}
	}

	// 7. Create handlers
	buildInfo := handlers.NewBuildInfo(cfg.App.Name, Version, Commit, BuildTime)
	healthHandler := handlers.NewHealthHandler(healthRegistry, buildInfo, prometheus.DefaultGatherer)
	batchHandler := handlers.NewBatchHandler(batchService)

	// 8. Create HTTP server
	server := http.New(&cfg.Server, logger,
		reqctx.WithLogger(logger),
		reqctx.WithCollisionHook(contextMetrics.Collision),
		reqctx.WithCollisionLogging(cfg.Context.CollisionLogging),
	)

	// 9. Setup router with all middleware and routes
	routerCfg := http.NewDefaultRouterConfig(logger, &cfg.App, healthHandler, batchHandler)
	routerCfg.RequestContext = middleware.RequestContextConfig{
		Deadline: cfg.Context.Deadline,
		Sink:     contextMetrics,
		Tracer:   telProvider.Tracer(),
		Observer: contextMetrics,
	}
	http.SetupRouter(server.Engine(), routerCfg)

	// 10. Start server (non-blocking)
	serverErr, err := server.Start()
	if err != nil {
		return fmt.Errorf("starting server: %w", err)
	}

	// 11. Wait for shutdown signal
	return waitForShutdown(ctx, logger, server, serverErr, cfg.Server.ShutdownTimeout)
}

// waitForShutdown blocks until a shutdown signal is received or server error occurs.
// It then performs graceful shutdown of the HTTP server.
func waitForShutdown(
	ctx context.Context,
	logger *slog.Logger,
	server *http.Server,
	serverErr <-chan error,
	shutdownTimeout time.Duration,
) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		return fmt.Errorf("server error: %w", err)

	case sig := <-quit:
		logger.Info("received shutdown signal", slog.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	logger.Info("initiating graceful shutdown",
		slog.Duration("timeout", shutdownTimeout),
	)

	// Stop accepting new requests, drain in-flight
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	logger.Info("shutdown complete")

	return nil
}
