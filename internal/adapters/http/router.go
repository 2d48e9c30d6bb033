package http

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jsamuelsen/go-reqctx/internal/adapters/http/handlers"
	"github.com/jsamuelsen/go-reqctx/internal/adapters/http/middleware"
	"github.com/jsamuelsen/go-reqctx/internal/platform/config"
	"github.com/jsamuelsen/go-reqctx/internal/platform/telemetry"
)

// DefaultRequestTimeout is the default timeout for API requests.
const DefaultRequestTimeout = 30 * time.Second

// RouterConfig contains configuration for setting up the router.
type RouterConfig struct {
	// Logger is the structured logger for request logging.
	Logger *slog.Logger

	// AppConfig contains application configuration.
	AppConfig *config.AppConfig

	// HealthHandler handles health check endpoints.
	HealthHandler *handlers.HealthHandler

	// BatchHandler handles the batch endpoints. Nil leaves them unregistered.
	BatchHandler *handlers.BatchHandler

	// RequestContext configures the per-request context store.
	RequestContext middleware.RequestContextConfig

	// Timeout caps the deadline of API requests.
	Timeout time.Duration
}

// SetupRouter configures all routes and middleware on the Gin engine.
// Middleware is applied in the following order (first to last):
//  1. Recovery - catch panics first
//  2. Request ID - generate/extract request ID
//  3. Correlation ID - handle distributed tracing correlation
//  4. OpenTelemetry - tracing and metrics
//  5. Request context - per-request flow and payloads
//  6. Logging - request logging (skips health endpoints)
//  7. Timeout - tightens the request deadline on /api/v1
//
// Route groups:
//   - /-/ (internal): Health endpoints, no timeout
//   - /api/v1/ (public API): Batch and context endpoints
func SetupRouter(engine *gin.Engine, cfg RouterConfig) {
	serviceName := "go-reqctx"
	if cfg.AppConfig != nil && cfg.AppConfig.Name != "" {
		serviceName = cfg.AppConfig.Name
	}

	engine.Use(
		middleware.Recovery(cfg.Logger),
		middleware.RequestID(),
		middleware.CorrelationID(),
	)
	engine.Use(telemetry.Middleware(serviceName)...)
	engine.Use(
		middleware.RequestContext(cfg.RequestContext),
		middleware.Logging(cfg.Logger),
	)

	if cfg.HealthHandler != nil {
		cfg.HealthHandler.RegisterHealthRoutesOnEngine(engine)
	}

	apiV1 := engine.Group("/api/v1")
	if cfg.Timeout > 0 {
		apiV1.Use(middleware.Timeout(cfg.Timeout))
	}

	setupAPIRoutes(apiV1, cfg)
}

// setupAPIRoutes registers business API routes.
func setupAPIRoutes(rg *gin.RouterGroup, cfg RouterConfig) {
	rg.GET("/context", handlers.Context)

	if cfg.BatchHandler != nil {
		cfg.BatchHandler.RegisterRoutes(rg)
	}
}

// NewDefaultRouterConfig creates a RouterConfig with sensible defaults.
func NewDefaultRouterConfig(
	logger *slog.Logger,
	appCfg *config.AppConfig,
	healthHandler *handlers.HealthHandler,
	batchHandler *handlers.BatchHandler,
) RouterConfig {
	return RouterConfig{
		Logger:        logger,
		AppConfig:     appCfg,
		HealthHandler: healthHandler,
		BatchHandler:  batchHandler,
		RequestContext: middleware.RequestContextConfig{
			Deadline: config.DefaultRequestDeadline,
		},
		Timeout: DefaultRequestTimeout,
	}
}
