package relay_errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Common errors
var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrNotFound           = errors.New("not found")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrAlreadyExists      = errors.New("already exists")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrStaleAck           = errors.New("stale acknowledgement")
	ErrRateLimited        = errors.New("rate limited")
)

// Invalid wraps ErrInvalidInput with a description of the offending field.
func Invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// Unavailable classifies a downstream failure. Errors already in the taxonomy
// pass through unchanged; everything else, timeouts included, becomes
// ErrServiceUnavailable.
func Unavailable(err error) error {
	if err == nil {
		return nil
	}
	if IsKnown(err) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: downstream timeout", ErrServiceUnavailable)
	}
	return fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
}

// IsKnown reports whether err belongs to the taxonomy above.
func IsKnown(err error) bool {
	for _, known := range []error{
		ErrInvalidInput, ErrNotFound, ErrUnauthorized, ErrForbidden,
		ErrAlreadyExists, ErrServiceUnavailable, ErrStaleAck, ErrRateLimited,
	} {
		if errors.Is(err, known) {
			return true
		}
	}
	return false
}

// IsClientError reports whether err was caused by the request itself.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrForbidden) ||
		errors.Is(err, ErrUnauthorized)
}

func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrStaleAck):
		return http.StatusNotFound
	case errors.Is(err, ErrAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrServiceUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Code returns the machine readable code used in HTTP bodies and websocket
// error events.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrInvalidInput):
		return "INVALID_REQUEST"
	case errors.Is(err, ErrUnauthorized):
		return "UNAUTHORIZED"
	case errors.Is(err, ErrForbidden):
		return "FORBIDDEN"
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrStaleAck):
		return "NOT_FOUND"
	case errors.Is(err, ErrAlreadyExists):
		return "CONFLICT"
	case errors.Is(err, ErrRateLimited):
		return "RATE_LIMITED"
	case errors.Is(err, ErrServiceUnavailable):
		return "DOWNSTREAM_UNAVAILABLE"
	default:
		return "INTERNAL_ERROR"
	}
}
