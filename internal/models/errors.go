package models

import (
	"errors"
	"net/http"
)

// Sentinel errors for the engine. Handlers map them to HTTP statuses with
// ErrorStatusCode; services wrap them with fmt.Errorf("...: %w", err) so the
// cause survives through the call stack.
var (
	ErrInvalidRequest      = errors.New("invalid request")
	ErrNotFound            = errors.New("not found")
	ErrTrialGuardBlocked   = errors.New("recipient not in trial allow-list")
	ErrProviderRejected    = errors.New("provider rejected message")
	ErrProviderUnavailable = errors.New("provider unavailable")
	ErrSignatureInvalid    = errors.New("invalid webhook signature")
	ErrMalformedWebhook    = errors.New("malformed webhook payload")

	// ErrStoreConflict is the unique-constraint race on contact/thread
	// creation. Repositories return it so callers can re-fetch the winning
	// row; it must never reach an HTTP response.
	ErrStoreConflict = errors.New("store conflict")
)

func ErrorStatusCode(err error) int {
	switch {
	case errors.Is(err, ErrInvalidRequest), errors.Is(err, ErrMalformedWebhook):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrSignatureInvalid):
		return http.StatusForbidden
	case errors.Is(err, ErrTrialGuardBlocked), errors.Is(err, ErrProviderRejected):
		return http.StatusBadRequest
	case errors.Is(err, ErrProviderUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
