// Package http provides the HTTP adapter layer using Gin.
package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"

	"github.com/gin-gonic/gin"

	"github.com/jsamuelsen/go-reqctx/internal/app/reqctx"
	"github.com/jsamuelsen/go-reqctx/internal/platform/config"
	"github.com/jsamuelsen/go-reqctx/internal/platform/logging"
)

// Server serves the Gin engine and gives every request a base context
// carrying the service logger and a root request context slot. Flows the
// RequestContext middleware opens with reqctx.NewFlow inherit the root
// slot's options, so collision warnings are de-duplicated across requests.
type Server struct {
	engine *gin.Engine
	srv    *http.Server
	cfg    *config.ServerConfig
	logger *slog.Logger
	root   *reqctx.Slot

	listener atomic.Pointer[net.Listener]
	open     atomic.Int64
}

// New creates a server for cfg. Options apply to every request context
// created beneath the root slot.
func New(cfg *config.ServerConfig, logger *slog.Logger, opts ...reqctx.Option) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		engine: gin.New(),
		cfg:    cfg,
		logger: logger,
		root:   reqctx.NewSlot(opts...),
	}

	s.engine.Use(maxBodySize(cfg.MaxRequestSize))

	s.srv = &http.Server{
		Addr:         net.JoinHostPort(cfg.Host, fmt.Sprint(cfg.Port)),
		Handler:      s.engine,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
		BaseContext:  func(net.Listener) context.Context { return s.BaseContext() },
		ConnState:    s.trackConn,
	}

	return s
}

// Engine returns the Gin engine routes are registered on.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// BaseContext returns the context every request handled by s derives from.
func (s *Server) BaseContext() context.Context {
	return reqctx.WithSlot(logging.WithContext(context.Background(), s.logger), s.root)
}

// Start listens on the configured address and serves in the background.
// Listen errors are returned directly; serve errors arrive on the returned
// channel, which is closed once the server stops.
func (s *Server) Start() (<-chan error, error) {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return nil, fmt.Errorf("http server listen: %w", err)
	}

	s.listener.Store(&ln)

	s.logger.Info("starting HTTP server",
		slog.String("addr", ln.Addr().String()),
		slog.Duration("read_timeout", s.cfg.ReadTimeout),
		slog.Duration("write_timeout", s.cfg.WriteTimeout),
	)

	errCh := make(chan error, 1)

	go func() {
		defer close(errCh)

		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
	}()

	return errCh, nil
}

// Shutdown stops accepting connections and waits for in-flight requests
// until ctx is done.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server", slog.Int64("open_connections", s.open.Load()))

	if err := s.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}

	s.logger.Info("HTTP server stopped")

	return nil
}

// Addr returns the address being listened on once Start has succeeded, and
// the configured address before that.
func (s *Server) Addr() string {
	if ln := s.listener.Load(); ln != nil {
		return (*ln).Addr().String()
	}

	return s.srv.Addr
}

// OpenConnections returns the number of connections not yet closed.
func (s *Server) OpenConnections() int64 {
	return s.open.Load()
}

func (s *Server) trackConn(_ net.Conn, state http.ConnState) {
	switch state {
	case http.StateNew:
		s.open.Add(1)
	case http.StateClosed, http.StateHijacked:
		s.open.Add(-1)
	default:
	}
}

// maxBodySize returns middleware that limits the request body size.
func maxBodySize(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}
