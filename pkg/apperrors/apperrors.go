package apperrors

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/lib/pq"
)

// Kind classifies engine failures so handlers can map them to HTTP statuses
// without inspecting message strings.
type Kind string

const (
	KindInsufficientStock Kind = "insufficient_stock"
	KindInvalidTransition Kind = "invalid_transition"
	KindPermissionDenied  Kind = "permission_denied"
	KindInvalidInput      Kind = "invalid_input"
	KindNotFound          Kind = "not_found"
	KindConflict          Kind = "conflict"
	KindDependencyFailure Kind = "dependency_failure"
	KindInternal          Kind = "internal"
)

type Error struct {
	Kind    Kind
	Message string
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

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func InsufficientStock(message string) *Error {
	return New(KindInsufficientStock, message)
}

func InvalidTransition(message string) *Error {
	return New(KindInvalidTransition, message)
}

func PermissionDenied(message string) *Error {
	return New(KindPermissionDenied, message)
}

func InvalidInput(message string) *Error {
	return New(KindInvalidInput, message)
}

func NotFound(message string) *Error {
	return New(KindNotFound, message)
}

// KindOf extracts the classification from any error in the chain,
// defaulting to KindInternal for unclassified failures.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// HTTPStatus maps an error kind to the status code the AJAX contract promises:
// 400 input, 403 permission, 404 not found, 409 conflict, 500 unexpected.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindInvalidInput:
		return http.StatusBadRequest
	case KindPermissionDenied:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindInsufficientStock, KindInvalidTransition, KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// UserMessage returns the short actionable message for interactive flows.
// Unclassified errors are not leaked to the caller.
func UserMessage(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "An unexpected error occurred"
}

// FromDBError converts Postgres constraint violations into classified errors
// so callers see a conflict instead of a raw driver message.
func FromDBError(err error, message string) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23505":
			return Wrap(KindConflict, message+": value already exists", err)
		case "23503":
			return Wrap(KindConflict, message+": value is referenced by other records", err)
		}
	}
	return fmt.Errorf("%s: %w", message, err)
}
