// internal/errors/errors.go
package appErrors

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind string

const (
	KindNotFound   Kind = "NOT_FOUND"
	KindValidation Kind = "VALIDATION"
	KindConflict   Kind = "CONFLICT"
	KindImmutable  Kind = "IMMUTABLE"
	KindNoCapacity Kind = "NO_CAPACITY"
	KindUpstream   Kind = "UPSTREAM_FAILURE"
	KindInternal   Kind = "INTERNAL"
)

// Error is the single error type crossing service boundaries. Details carries
// whatever a client needs to explain the failure without a second request.
type Error struct {
	Kind    Kind
	Message string
	Details map[string]any
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) StatusCode() int {
	switch e.Kind {
	case KindNotFound:
		return http.StatusNotFound
	case KindValidation, KindNoCapacity:
		return http.StatusUnprocessableEntity
	case KindConflict, KindImmutable:
		return http.StatusConflict
	case KindUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func NewNotFound(resource string, id any) error {
	return &Error{
		Kind:    KindNotFound,
		Message: fmt.Sprintf("%s with ID %v not found", resource, id),
		Details: map[string]any{"resource": resource, "id": id},
	}
}

func NewValidation(format string, args ...any) error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func NewConflict(message string, details map[string]any) error {
	return &Error{Kind: KindConflict, Message: message, Details: details}
}

func NewImmutable(format string, args ...any) error {
	return &Error{Kind: KindImmutable, Message: fmt.Sprintf(format, args...)}
}

func NewNoCapacity(format string, args ...any) error {
	return &Error{Kind: KindNoCapacity, Message: fmt.Sprintf(format, args...)}
}

func NewUpstream(message string, err error) error {
	return &Error{Kind: KindUpstream, Message: message, Err: err}
}

// KindOf classifies err; anything that is not an *Error is internal.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

func HTTPStatus(err error) int {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.StatusCode()
	}
	return http.StatusInternalServerError
}
