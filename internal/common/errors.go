// Package common defines shared constants and sentinel errors used across
// repository, service and transport layers. Callers should use errors.Is to
// match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound      = errors.New("not found")
	ErrorAlreadyExists = errors.New("already exists")

	// Service-level errors.
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")
	ErrorValidation   = errors.New("validation error")

	// Token errors. Both are reported to clients as unauthorized.
	ErrInvalidToken = errors.New("invalid token")
	ErrStaleToken   = errors.New("stale refresh token")
)

// APIError pairs a sentinel error with a message that is safe to return to
// clients. errors.Is(apiErr, sentinel) holds for the wrapped sentinel.
type APIError struct {
	Kind    error
	Message string
}

// NewAPIError returns an APIError of the given kind.
func NewAPIError(kind error, message string) *APIError {
	return &APIError{Kind: kind, Message: message}
}

func (e *APIError) Error() string {
	return e.Message
}

func (e *APIError) Unwrap() error {
	return e.Kind
}

// PublicMessage returns the client-visible message carried by err, or
// fallback when err is not an APIError.
func PublicMessage(err error, fallback string) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return fallback
}
