// Package payload provides the request data types the service stores in a
// reqctx.RequestContext.
package payload

import (
	"github.com/google/uuid"

	"github.com/jsamuelsen/go-reqctx/internal/app/reqctx"
)

// Keys under which the service stores its payloads.
const (
	KeyRequestID     = "request_id"
	KeyCorrelationID = "correlation_id"
	KeySpan          = "span"
	KeyDeadline      = "deadline"
	KeyCounters      = "counters"
)

// RequestID identifies one request.
type RequestID struct {
	reqctx.Base

	id string
}

// NewRequestID returns a RequestID for id, generating a UUID v4 if id is empty.
func NewRequestID(id string) *RequestID {
	if id == "" {
		id = uuid.New().String()
	}

	return &RequestID{id: id}
}

// String returns the id.
func (r *RequestID) String() string {
	return r.id
}

// CorrelationID identifies the business transaction a request belongs to.
type CorrelationID struct {
	reqctx.Base

	id string
}

// NewCorrelationID returns a CorrelationID for id, generating a UUID v4 if id
// is empty.
func NewCorrelationID(id string) *CorrelationID {
	if id == "" {
		id = uuid.New().String()
	}

	return &CorrelationID{id: id}
}

// String returns the id.
func (c *CorrelationID) String() string {
	return c.id
}

// RequestIDOf returns the request id stored in rc, or "".
func RequestIDOf(rc *reqctx.RequestContext) string {
	if r, ok := reqctx.Lookup[*RequestID](rc, KeyRequestID); ok {
		return r.String()
	}

	return ""
}

// CorrelationIDOf returns the correlation id stored in rc, or "".
func CorrelationIDOf(rc *reqctx.RequestContext) string {
	if c, ok := reqctx.Lookup[*CorrelationID](rc, KeyCorrelationID); ok {
		return c.String()
	}

	return ""
}
