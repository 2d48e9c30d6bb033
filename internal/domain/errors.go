// Package domain contains the batch types processed by the service and the
// errors its operations report. Errors are transport-agnostic; adapters map
// them to HTTP responses.
package domain

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for use with errors.Is().
var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict indicates a state conflict such as a duplicate entry.
	ErrConflict = errors.New("conflict")

	// ErrValidation indicates business rule validation failed.
	ErrValidation = errors.New("validation failed")

	// ErrExpired indicates the request ran out of time before the work started.
	ErrExpired = errors.New("deadline expired")

	// ErrUnavailable indicates a required dependency is unavailable.
	ErrUnavailable = errors.New("unavailable")
)

// Kind classifies an Error. Every kind wraps one of the sentinel errors.
type Kind int

const (
	KindNotFound Kind = iota + 1
	KindConflict
	KindValidation
	KindExpired
	KindUnavailable
)

// Sentinel returns the sentinel error an Error of kind k wraps.
func (k Kind) Sentinel() error {
	switch k {
	case KindNotFound:
		return ErrNotFound
	case KindConflict:
		return ErrConflict
	case KindValidation:
		return ErrValidation
	case KindExpired:
		return ErrExpired
	case KindUnavailable:
		return ErrUnavailable
	default:
		return nil
	}
}

// Error is the error type reported by domain operations.
//
// Subject names what the error is about: the entity for not found and
// conflict errors, the field for validation errors, the operation for
// expired errors and the service for unavailable errors. Detail holds the
// entity id or the reason.
type Error struct {
	Kind     Kind
	Subject  string
	Detail   string
	Deadline time.Time
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindNotFound:
		if e.Detail != "" {
			return fmt.Sprintf("%s with id %q not found", e.Subject, e.Detail)
		}

		return e.Subject + " not found"

	case KindConflict:
		return fmt.Sprintf("%s conflict: %s", e.Subject, e.Detail)

	case KindValidation:
		if e.Subject != "" {
			return fmt.Sprintf("validation failed for %s: %s", e.Subject, e.Detail)
		}

		return "validation failed: " + e.Detail

	case KindExpired:
		if e.Deadline.IsZero() {
			return fmt.Sprintf("operation %q: deadline expired", e.Subject)
		}

		return fmt.Sprintf("operation %q: deadline %s expired", e.Subject, e.Deadline.Format(time.RFC3339Nano))

	case KindUnavailable:
		if e.Detail != "" {
			return fmt.Sprintf("service %q unavailable: %s", e.Subject, e.Detail)
		}

		return fmt.Sprintf("service %q unavailable", e.Subject)

	default:
		return fmt.Sprintf("%s: %s", e.Subject, e.Detail)
	}
}

// Unwrap returns the sentinel of e's kind, for errors.Is.
func (e *Error) Unwrap() error {
	return e.Kind.Sentinel()
}

// Field returns the invalid field of a validation error, or "".
func (e *Error) Field() string {
	if e.Kind != KindValidation {
		return ""
	}

	return e.Subject
}

// NewNotFoundError reports that entity id does not exist.
func NewNotFoundError(entity, id string) error {
	return &Error{Kind: KindNotFound, Subject: entity, Detail: id}
}

// NewConflictError reports a conflict on entity.
func NewConflictError(entity, reason string) error {
	return &Error{Kind: KindConflict, Subject: entity, Detail: reason}
}

// NewValidationError reports an invalid field. An empty field means the
// input as a whole.
func NewValidationError(field, message string) error {
	return &Error{Kind: KindValidation, Subject: field, Detail: message}
}

// NewExpiredError reports work refused because the request deadline passed.
func NewExpiredError(operation string, deadline time.Time) error {
	return &Error{Kind: KindExpired, Subject: operation, Deadline: deadline}
}

// NewUnavailableError reports that service cannot be used.
func NewUnavailableError(service, reason string) error {
	return &Error{Kind: KindUnavailable, Subject: service, Detail: reason}
}

// IsNotFound checks if an error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConflict checks if an error is a conflict error.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

// IsValidation checks if an error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsExpired checks if an error is an expired error.
func IsExpired(err error) bool {
	return errors.Is(err, ErrExpired)
}

// IsUnavailable checks if an error is an unavailable error.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}
