package benchmark

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/jsamuelsen/go-reqctx/internal/adapters/archive"
	httpadapter "github.com/jsamuelsen/go-reqctx/internal/adapters/http"
	"github.com/jsamuelsen/go-reqctx/internal/adapters/http/handlers"
	"github.com/jsamuelsen/go-reqctx/internal/adapters/http/middleware"
	"github.com/jsamuelsen/go-reqctx/internal/app"
	"github.com/jsamuelsen/go-reqctx/internal/platform/config"
	"github.com/jsamuelsen/go-reqctx/internal/ports"
)

func init() {
	// Set Gin to release mode for accurate benchmarks
	gin.SetMode(gin.ReleaseMode)
}

// createGinContext creates a Gin context for handler testing.
func createGinContext(w http.ResponseWriter, r *http.Request) *gin.Context {
	c, _ := gin.CreateTestContext(w)
	c.Request = r

	return c
}

func setupHealthHandler(checkers ...ports.HealthChecker) *handlers.HealthHandler {
	registry := ports.NewHealthRegistry()
	for _, c := range checkers {
		_ = registry.Register(c)
	}

	buildInfo := handlers.NewBuildInfo("go-reqctx", "1.0.0", "abc123", "2024-01-01T00:00:00Z")

	return handlers.NewHealthHandler(registry, buildInfo, prometheus.NewRegistry())
}

// newRouter builds the full middleware chain with archiveSize retained
// requests.
func newRouter(archiveSize int) *gin.Engine {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))

	engine := gin.New()
	httpadapter.SetupRouter(engine, httpadapter.RouterConfig{
		Logger:        logger,
		AppConfig:     &config.AppConfig{Name: "bench"},
		HealthHandler: setupHealthHandler(),
		BatchHandler: handlers.NewBatchHandler(app.NewBatchService(archive.NewMemory(archiveSize),
			&app.BatchServiceConfig{Logger: logger})),
		RequestContext: middleware.RequestContextConfig{Deadline: config.DefaultRequestDeadline},
		Timeout:        httpadapter.DefaultRequestTimeout,
	})

	return engine
}

// BenchmarkLivenessHandler measures the liveness endpoint on its own.
func BenchmarkLivenessHandler(b *testing.B) {
	handler := setupHealthHandler()
	req := httptest.NewRequest(http.MethodGet, "/-/live", http.NoBody)

	b.ReportAllocs()

	for b.Loop() {
		w := httptest.NewRecorder()
		handler.Liveness(createGinContext(w, req))
	}
}

// BenchmarkReadinessHandler_WithChecks measures readiness with the checks
// the service registers.
func BenchmarkReadinessHandler_WithChecks(b *testing.B) {
	handler := setupHealthHandler(archive.NewMemory(1), app.ContextCheck{})
	req := httptest.NewRequest(http.MethodGet, "/-/ready", http.NoBody)

	b.ReportAllocs()

	for b.Loop() {
		w := httptest.NewRecorder()
		handler.Readiness(createGinContext(w, req))
	}
}

// BenchmarkContextEndpoint measures the full middleware chain, including
// request context setup, around a trivial handler.
func BenchmarkContextEndpoint(b *testing.B) {
	router := newRouter(1)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/context", http.NoBody)

	b.ReportAllocs()

	for b.Loop() {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
	}
}

// BenchmarkSubmitBatch measures a batch of eight tasks through the full
// chain. Each iteration gets a fresh request ID, so the archive is sized to
// forget old requests.
func BenchmarkSubmitBatch(b *testing.B) {
	router := newRouter(64)
	body := `{"tasks":[` +
		`{"id":"a","weight":1},{"id":"b","weight":1},{"id":"c","weight":1},{"id":"d","weight":1},` +
		`{"id":"e","weight":1},{"id":"f","weight":1},{"id":"g","weight":1},{"id":"h","weight":1}]}`

	b.ReportAllocs()

	for b.Loop() {
		req := httptest.NewRequestWithContext(context.Background(), http.MethodPost, "/api/v1/batches", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")

		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			b.Fatalf("status %d: %s", w.Code, w.Body.String())
		}
	}
}
