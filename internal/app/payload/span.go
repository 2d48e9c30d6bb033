package payload

import (
	"context"
	"sync/atomic"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/jsamuelsen/go-reqctx/internal/app/reqctx"
)

// Span event names recorded when the owning context switches.
const (
	EventContextSet   = "reqctx.set"
	EventContextUnset = "reqctx.unset"
)

// Span hands ownership of an OpenTelemetry span to the request context.
// The span ends when the last context holding it lets go, so work handed to
// other goroutines keeps it open for as long as it runs.
type Span struct {
	reqctx.Base

	span        trace.Span
	activations atomic.Int64
}

// NewSpan wraps span. The caller must not end it.
func NewSpan(span trace.Span) *Span {
	return &Span{span: span}
}

// HasCallback returns true: context switches are recorded on the span.
func (s *Span) HasCallback() bool { return true }

// OnSet records that a flow started running with the span's context.
func (s *Span) OnSet() {
	n := s.activations.Add(1)
	s.span.AddEvent(EventContextSet, trace.WithAttributes(
		attribute.Int64("reqctx.activations", n),
	))
}

// OnUnset records that a flow stopped running with the span's context.
func (s *Span) OnUnset() {
	s.span.AddEvent(EventContextUnset)
}

// Destroy ends the span.
func (s *Span) Destroy() {
	s.span.End()
}

// Activations returns how many times OnSet ran.
func (s *Span) Activations() int64 {
	return s.activations.Load()
}

// SpanContext returns the wrapped span's SpanContext.
func (s *Span) SpanContext() trace.SpanContext {
	return s.span.SpanContext()
}

// ContextWith returns ctx carrying the span, for starting child spans.
func (s *Span) ContextWith(ctx context.Context) context.Context {
	return trace.ContextWithSpan(ctx, s.span)
}

// TraceIDOf returns the trace id of the span stored in rc, or "".
func TraceIDOf(rc *reqctx.RequestContext) string {
	s, ok := reqctx.Lookup[*Span](rc, KeySpan)
	if !ok || !s.SpanContext().HasTraceID() {
		return ""
	}

	return s.SpanContext().TraceID().String()
}
