//go:build integration

package integration

import (
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/jsamuelsen/go-reqctx/internal/adapters/archive"
	httpadapter "github.com/jsamuelsen/go-reqctx/internal/adapters/http"
	"github.com/jsamuelsen/go-reqctx/internal/adapters/http/handlers"
	"github.com/jsamuelsen/go-reqctx/internal/adapters/http/middleware"
	"github.com/jsamuelsen/go-reqctx/internal/app"
	"github.com/jsamuelsen/go-reqctx/internal/app/reqctx"
	"github.com/jsamuelsen/go-reqctx/internal/platform/config"
	"github.com/jsamuelsen/go-reqctx/internal/platform/telemetry"
	"github.com/jsamuelsen/go-reqctx/internal/ports"
)

// service is an in-process instance of the HTTP service.
type service struct {
	server   *httptest.Server
	metrics  *telemetry.ContextMetrics
	registry *prometheus.Registry
}

// startService wires the service the way cmd/service does, with a private
// metrics registry, and serves it on a local listener.
func startService(tb testing.TB) *service {
	tb.Helper()

	gin.SetMode(gin.TestMode)

	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	registry := prometheus.NewRegistry()

	metrics, err := telemetry.NewContextMetrics(registry)
	require.NoError(tb, err)

	resultArchive := archive.NewMemory(config.DefaultArchiveMaxRequests)
	batchService := app.NewBatchService(resultArchive, &app.BatchServiceConfig{
		Logger:      logger,
		Concurrency: config.DefaultWorkerConcurrency,
	})

	healthRegistry := ports.NewHealthRegistry(ports.WithCheckTimeout(time.Second))
	require.NoError(tb, healthRegistry.Register(resultArchive))
	require.NoError(tb, healthRegistry.Register(app.ContextCheck{}))

	engine := gin.New()
	httpadapter.SetupRouter(engine, httpadapter.RouterConfig{
		Logger:    logger,
		AppConfig: &config.AppConfig{Name: "integration", Version: "test", Environment: "test"},
		HealthHandler: handlers.NewHealthHandler(healthRegistry,
			handlers.NewBuildInfo("integration", "test", "none", "now"), registry),
		BatchHandler: handlers.NewBatchHandler(batchService),
		RequestContext: middleware.RequestContextConfig{
			Options: []reqctx.Option{
				reqctx.WithLogger(logger),
				reqctx.WithCollisionHook(metrics.Collision),
			},
			Deadline: config.DefaultRequestDeadline,
			Sink:     metrics,
			Observer: metrics,
		},
		Timeout: httpadapter.DefaultRequestTimeout,
	})

	s := &service{
		server:   httptest.NewServer(engine),
		metrics:  metrics,
		registry: registry,
	}
	tb.Cleanup(s.server.Close)

	return s
}
