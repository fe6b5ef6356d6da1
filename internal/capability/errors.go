// internal/capability/errors.go
package capability

import (
	"context"
	"errors"
	"strings"
)

var (
	// ErrNotFound is returned for names absent from the registry or reserved
	// for internal use.
	ErrNotFound = errors.New("capability not found")
	// ErrInvalidParameters is returned when arguments do not match a Spec.
	ErrInvalidParameters = errors.New("invalid parameters")
	// ErrHandlerPanic wraps a panic recovered from a Handler.
	ErrHandlerPanic = errors.New("handler panicked")
)

// ErrorCode is a string type used for structured error reporting from
// capability handlers.
type ErrorCode string

const (
	ErrCodeNotFound          ErrorCode = "CAPABILITY_NOT_FOUND"
	ErrCodeInvalidParameters ErrorCode = "INVALID_PARAMETERS"
	ErrCodeExecutionFailure  ErrorCode = "EXECUTION_FAILURE"
	ErrCodeHandlerPanic      ErrorCode = "HANDLER_PANIC"

	// -- Browser/DOM Errors --
	ErrCodeElementNotFound ErrorCode = "ELEMENT_NOT_FOUND"
	ErrCodeTimeoutError    ErrorCode = "TIMEOUT_ERROR"
	ErrCodeNavigationError ErrorCode = "NAVIGATION_ERROR"
)

// Classify maps a handler error to an ErrorCode for structured logs.
func Classify(err error) ErrorCode {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return ErrCodeNotFound
	case errors.Is(err, ErrInvalidParameters):
		return ErrCodeInvalidParameters
	case errors.Is(err, ErrHandlerPanic):
		return ErrCodeHandlerPanic
	case errors.Is(err, context.DeadlineExceeded):
		return ErrCodeTimeoutError
	}

	msg := err.Error()
	switch {
	case strings.Contains(msg, "element not found") || strings.Contains(msg, "no element found"):
		return ErrCodeElementNotFound
	case strings.Contains(msg, "timeout"):
		return ErrCodeTimeoutError
	case strings.Contains(msg, "net::ERR"):
		return ErrCodeNavigationError
	}
	return ErrCodeExecutionFailure
}
