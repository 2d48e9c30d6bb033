// Package dto provides Data Transfer Objects for HTTP request/response handling.
package dto

import (
	"net/http"

	"github.com/jsamuelsen/go-reqctx/internal/app/payload"
	"github.com/jsamuelsen/go-reqctx/internal/app/reqctx"
)

// ErrorResponse is the envelope of every error response. RequestID and
// TraceID come from the request context so callers can quote the failing
// request.
type ErrorResponse struct {
	Error     ErrorDetail `json:"error"`
	RequestID string      `json:"requestId,omitempty"`
	TraceID   string      `json:"traceId,omitempty"`
}

// ErrorDetail contains the error information.
type ErrorDetail struct {
	// Code is one of the ErrorCode constants.
	Code string `json:"code"`

	Message string `json:"message"`

	// Details holds field-level messages for validation errors.
	Details map[string]string `json:"details,omitempty"`
}

// Machine-readable error codes.
const (
	ErrorCodeNotFound    = "NOT_FOUND"
	ErrorCodeConflict    = "CONFLICT"
	ErrorCodeValidation  = "VALIDATION_ERROR"
	ErrorCodeBadRequest  = "BAD_REQUEST"
	ErrorCodeUnavailable = "SERVICE_UNAVAILABLE"
	ErrorCodeTimeout     = "TIMEOUT"
	ErrorCodeInternal    = "INTERNAL_ERROR"

	// ErrorCodeExpired means the request deadline passed before work started.
	ErrorCodeExpired = "DEADLINE_EXPIRED"
)

var codeStatus = map[string]int{
	ErrorCodeNotFound:    http.StatusNotFound,
	ErrorCodeConflict:    http.StatusConflict,
	ErrorCodeValidation:  http.StatusBadRequest,
	ErrorCodeBadRequest:  http.StatusBadRequest,
	ErrorCodeUnavailable: http.StatusServiceUnavailable,
	ErrorCodeTimeout:     http.StatusGatewayTimeout,
	ErrorCodeExpired:     http.StatusGatewayTimeout,
	ErrorCodeInternal:    http.StatusInternalServerError,
}

// HTTPStatusFromCode returns the HTTP status answered for code. Unknown
// codes map to 500.
func HTTPStatusFromCode(code string) int {
	if status, ok := codeStatus[code]; ok {
		return status
	}

	return http.StatusInternalServerError
}

// NewErrorResponse creates an error response. details may be nil.
func NewErrorResponse(code, message string, details map[string]string) *ErrorResponse {
	return &ErrorResponse{
		Error: ErrorDetail{Code: code, Message: message, Details: details},
	}
}

// Stamp copies the request and trace IDs held by rc onto e and returns e.
// IDs rc does not hold leave the fields as they were.
func (e *ErrorResponse) Stamp(rc *reqctx.RequestContext) *ErrorResponse {
	if id := payload.RequestIDOf(rc); id != "" {
		e.RequestID = id
	}

	if id := payload.TraceIDOf(rc); id != "" {
		e.TraceID = id
	}

	return e
}
