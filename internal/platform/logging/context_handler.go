package logging

import (
	"context"
	"errors"
	"log/slog"
)

// AttrExtractor derives log attributes from a record's context.
type AttrExtractor func(ctx context.Context) []slog.Attr

// ContextHandler stamps each record with the attributes its AttrExtractor
// derives from the record's context, then hands the record to every sink
// enabled at its level. The service uses it to tag records with the payloads
// of the request context installed in the record's flow, and to write the
// same stamped record to the terminal and the rolling log file.
//
// The extractor runs once per record however many sinks there are.
type ContextHandler struct {
	sinks   []slog.Handler
	extract AttrExtractor
}

// NewContextHandler returns a handler writing to sinks. A nil extract adds
// nothing.
func NewContextHandler(extract AttrExtractor, sinks ...slog.Handler) *ContextHandler {
	return &ContextHandler{sinks: sinks, extract: extract}
}

// Enabled reports whether any sink handles records at level.
func (h *ContextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, sink := range h.sinks {
		if sink.Enabled(ctx, level) {
			return true
		}
	}

	return false
}

// Handle stamps r and passes a copy to each enabled sink. Errors from all
// sinks are joined.
func (h *ContextHandler) Handle(ctx context.Context, r slog.Record) error { //nolint:gocritic // slog.Handler interface requires value
	var attrs []slog.Attr
	if h.extract != nil && ctx != nil {
		attrs = h.extract(ctx)
	}

	var errs []error

	for _, sink := range h.sinks {
		if !sink.Enabled(ctx, r.Level) {
			continue
		}

		out := r.Clone()
		out.AddAttrs(attrs...)

		if err := sink.Handle(ctx, out); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// WithAttrs returns a ContextHandler whose sinks have attrs added.
func (h *ContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return h.derive(func(sink slog.Handler) slog.Handler { return sink.WithAttrs(attrs) })
}

// WithGroup returns a ContextHandler whose sinks open group name. Extracted
// attributes land inside the group.
func (h *ContextHandler) WithGroup(name string) slog.Handler {
	return h.derive(func(sink slog.Handler) slog.Handler { return sink.WithGroup(name) })
}

func (h *ContextHandler) derive(fn func(slog.Handler) slog.Handler) *ContextHandler {
	sinks := make([]slog.Handler, len(h.sinks))
	for i, sink := range h.sinks {
		sinks[i] = fn(sink)
	}

	return &ContextHandler{sinks: sinks, extract: h.extract}
}
