package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"

	"github.com/jsamuelsen/go-reqctx/internal/adapters/http/dto"
	"github.com/jsamuelsen/go-reqctx/internal/app/payload"
	"github.com/jsamuelsen/go-reqctx/internal/app/reqctx"
	"github.com/jsamuelsen/go-reqctx/internal/platform/logging"
)

// Timeout returns middleware that enforces a request timeout.
//
// When the request context carries a deadline, it is tightened to at most
// timeout from now on a shallow copy installed for the rest of the chain, so
// middleware outside the scope keeps the original. The context.Context
// deadline is set the same way.
//
// Handlers must respect ctx.Done(). If the deadline passed and the handler
// wrote nothing, it:
//   - Returns 503 Service Unavailable with error envelope
//   - Logs the timeout as a warning
func Timeout(timeout time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		deadline := payload.NewDeadlineIn(timeout)

		if current, ok := payload.DeadlineOf(reqctx.Get(ctx)); ok {
			deadline = current.Tighten(timeout)

			g := reqctx.NewShallowCopyScopeGuardWith(reqctx.SlotFromContext(ctx), payload.KeyDeadline, deadline)
			defer g.Close()
		}

		ctx, cancel := deadline.Apply(ctx)
		defer cancel()

		c.Request = c.Request.WithContext(ctx)
		c.Next()

		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			handleTimeout(c, timeout)
		}
	}
}

// handleTimeout handles a timeout by logging and responding with an error.
func handleTimeout(c *gin.Context, timeout time.Duration) {
	ctx := c.Request.Context()

	var traceID string
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		traceID = sc.TraceID().String()
	}

	logging.FromContext(ctx).WarnContext(ctx, "request timeout",
		slog.String("path", c.Request.URL.Path),
		slog.String("method", c.Request.Method),
		slog.Duration("timeout", timeout),
	)

	if c.Writer.Written() {
		c.Abort()
		return
	}

	errResp := dto.NewErrorResponse(dto.ErrorCodeTimeout, "request timeout exceeded", nil)
	errResp.TraceID = traceID
	errResp.Stamp(reqctx.Get(ctx))

	c.AbortWithStatusJSON(http.StatusServiceUnavailable, errResp)
}
