package payload

import (
	"context"
	"log/slog"

	"github.com/jsamuelsen/go-reqctx/internal/app/reqctx"
)

// LogAttrs returns the log attributes describing rc. Missing payloads are
// skipped, so the default store yields no attributes.
func LogAttrs(rc *reqctx.RequestContext) []slog.Attr {
	if rc == nil {
		return nil
	}

	attrs := make([]slog.Attr, 0, 4)

	if id := RequestIDOf(rc); id != "" {
		attrs = append(attrs, slog.String("request_id", id))
	}

	if id := CorrelationIDOf(rc); id != "" {
		attrs = append(attrs, slog.String("correlation_id", id))
	}

	if id := TraceIDOf(rc); id != "" {
		attrs = append(attrs, slog.String("trace_id", id))
	}

	if d, ok := DeadlineOf(rc); ok {
		attrs = append(attrs, slog.Duration("deadline_remaining", d.Remaining()))
	}

	return attrs
}

// ContextAttrs returns LogAttrs for the request context installed in ctx's
// flow. It has the logging.AttrExtractor signature.
func ContextAttrs(ctx context.Context) []slog.Attr {
	return LogAttrs(reqctx.Get(ctx))
}
