package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/jsamuelsen/go-reqctx/internal/app/payload"
	"github.com/jsamuelsen/go-reqctx/internal/app/reqctx"
)

// spanName names the span owned by each request's context.
const spanName = "request.context"

// ScopeObserver is notified when a request scope opens and closes.
type ScopeObserver interface {
	ScopeOpened()
	ScopeClosed(entries int)
}

// RequestContextConfig configures the RequestContext middleware.
type RequestContextConfig struct {
	// Options, if set, apply to every context created for a request.
	// Otherwise request flows inherit the options of the slot carried by
	// the request's context.Context, such as the server's root slot.
	Options []reqctx.Option

	// Deadline, when positive, is stored as the request's deadline payload
	// and applied to the request's context.Context.
	Deadline time.Duration

	// Sink receives the request's counters once nothing holds them.
	Sink payload.CounterSink

	// Tracer starts the span owned by the request context. Defaults to the
	// global tracer.
	Tracer trace.Tracer

	// Observer, if set, is told about every scope.
	Observer ScopeObserver
}

// RequestContext returns middleware that gives each request its own flow
// and installs a fresh request context on it for the duration of the
// handler chain. The context is seeded with:
//   - the request and correlation IDs set by the RequestID and CorrelationID middleware
//   - a span owned by the context, ended when the last holder lets go
//   - the request deadline, when configured
//   - a counters payload flushed to the configured sink
//
// It must run after RequestID, CorrelationID and the tracing middleware.
func RequestContext(cfg RequestContextConfig) gin.HandlerFunc {
	tracer := cfg.Tracer
	if tracer == nil {
		tracer = otel.Tracer("github.com/jsamuelsen/go-reqctx/middleware")
	}

	var root *reqctx.Slot
	if len(cfg.Options) > 0 {
		root = reqctx.NewSlot(cfg.Options...)
	}

	return func(c *gin.Context) {
		parent := c.Request.Context()
		if root != nil {
			parent = reqctx.WithSlot(parent, root)
		}

		ctx, slot := reqctx.NewFlow(parent)

		g := reqctx.NewScopeGuard(slot)
		defer g.Close()

		rc := slot.Get()
		rc.SetContextData(payload.KeyRequestID, payload.NewRequestID(GetRequestID(c)))
		rc.SetContextData(payload.KeyCorrelationID, payload.NewCorrelationID(GetCorrelationID(c)))

		ctx, span := tracer.Start(ctx, spanName)
		rc.SetContextData(payload.KeySpan, payload.NewSpan(span))

		if cfg.Deadline > 0 {
			d := payload.NewDeadlineIn(cfg.Deadline)
			rc.SetContextData(payload.KeyDeadline, d)

			var cancel func()

			ctx, cancel = d.Apply(ctx)
			defer cancel()
		}

		rc.SetContextData(payload.KeyCounters, payload.NewCounters(cfg.Sink))

		if cfg.Observer != nil {
			cfg.Observer.ScopeOpened()
			defer func() { cfg.Observer.ScopeClosed(rc.Len()) }()
		}

		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
