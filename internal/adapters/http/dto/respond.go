package dto

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jsamuelsen/go-reqctx/internal/app/reqctx"
	"github.com/jsamuelsen/go-reqctx/internal/domain"
	"github.com/jsamuelsen/go-reqctx/internal/platform/logging"
)

// errorMappings are tried in order; the first match decides the response.
// A mapping with an empty message echoes the error text.
var errorMappings = []struct {
	match   func(error) bool
	code    string
	message string
}{
	{match: domain.IsNotFound, code: ErrorCodeNotFound},
	{match: domain.IsConflict, code: ErrorCodeConflict},
	{match: domain.IsValidation, code: ErrorCodeValidation},
	{match: domain.IsExpired, code: ErrorCodeExpired},
	{
		match:   func(err error) bool { return errors.Is(err, context.DeadlineExceeded) },
		code:    ErrorCodeTimeout,
		message: "request deadline exceeded",
	},
	{match: domain.IsUnavailable, code: ErrorCodeUnavailable},
}

// MapDomainError maps a domain error to an HTTP status code and error response.
// Unknown errors are mapped to 500 Internal Server Error with a generic message.
func MapDomainError(err error) (int, *ErrorResponse) {
	if err == nil {
		return http.StatusOK, nil
	}

	for _, m := range errorMappings {
		if !m.match(err) {
			continue
		}

		message := m.message
		if message == "" {
			message = err.Error()
		}

		return HTTPStatusFromCode(m.code), NewErrorResponse(m.code, message, fieldDetails(err))
	}

	// Unknown errors get a generic message to avoid leaking internals.
	return http.StatusInternalServerError, NewErrorResponse(ErrorCodeInternal, "an internal error occurred", nil)
}

// fieldDetails returns the field-level detail of a validation error.
func fieldDetails(err error) map[string]string {
	var domainErr *domain.Error
	if !errors.As(err, &domainErr) || domainErr.Field() == "" {
		return nil
	}

	return map[string]string{domainErr.Field(): domainErr.Detail}
}

// annotate stamps the request and trace IDs of the request context onto resp.
func annotate(c *gin.Context, resp *ErrorResponse) *ErrorResponse {
	return resp.Stamp(reqctx.Get(c.Request.Context()))
}

// HandleError writes an error response to the gin.Context.
// It maps domain errors to HTTP responses and includes the request and
// trace IDs when a request context is installed.
func HandleError(c *gin.Context, err error) {
	status, errResp := MapDomainError(err)
	errResp = annotate(c, errResp)

	if status == http.StatusInternalServerError {
		ctx := c.Request.Context()
		logging.FromContext(ctx).ErrorContext(ctx, "internal error", slog.Any("error", err))
	}

	c.JSON(status, errResp)
}

// RespondWithErrorCode writes an error response with a specific error code.
// Use this for adapter-level errors (e.g., validation, bad request) that
// don't originate from domain errors.
func RespondWithErrorCode(c *gin.Context, code, message string) {
	c.JSON(HTTPStatusFromCode(code), annotate(c, NewErrorResponse(code, message, nil)))
}

// RespondWithValidationErrors writes a 400 response with field-level validation errors.
func RespondWithValidationErrors(c *gin.Context, fieldErrors map[string]string) {
	errResp := NewErrorResponse(
		ErrorCodeValidation,
		"request validation failed",
		fieldErrors,
	)

	c.JSON(http.StatusBadRequest, annotate(c, errResp))
}

// RespondWithBindError answers a failed BindAndValidate call: field
// errors for validation failures, a bad request otherwise.
func RespondWithBindError(c *gin.Context, err error) {
	if IsValidationError(err) {
		RespondWithValidationErrors(c, ValidationErrors(err))
		return
	}

	RespondWithErrorCode(c, ErrorCodeBadRequest, "malformed request")
}
