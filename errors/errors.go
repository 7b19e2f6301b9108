package errors

import (
	"errors"
	"fmt"
)

var (
	ErrNotAuthenticated = fmt.Errorf("not authenticated")
	ErrInvalidScope     = fmt.Errorf("invalid scope id")
	ErrNotParticipant   = fmt.Errorf("not a participant")
	ErrNotFound         = fmt.Errorf("message not found")
	ErrNotAllowed       = fmt.Errorf("not allowed")
	ErrServer           = fmt.Errorf("persistence failure")
	ErrInvalidPayload   = fmt.Errorf("invalid payload")
	ErrEmptyMessage     = fmt.Errorf("%w: empty message", ErrInvalidPayload)
	ErrBreakerOpen      = fmt.Errorf("circuit breaker open")
	ErrWorkerPanic      = fmt.Errorf("worker panic")
)

// CodeOf maps an operation error to the wire error code delivered in scoped
// error events. Unknown errors degrade to server-error, never to a panic.
func CodeOf(err error) string {
	switch {
	case errors.Is(err, ErrNotAuthenticated):
		return "not-authenticated"
	case errors.Is(err, ErrInvalidScope):
		return "invalid-scope"
	case errors.Is(err, ErrInvalidPayload):
		return "invalid-payload"
	case errors.Is(err, ErrNotParticipant):
		return "not-a-participant"
	case errors.Is(err, ErrNotFound):
		return "not-found"
	case errors.Is(err, ErrNotAllowed):
		return "not-allowed"
	default:
		return "server-error"
	}
}
