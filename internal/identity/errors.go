package identity

import (
	"errors"
	"fmt"
)

// Failure kinds reported by the identity backend client. Every error returned
// by Client matches exactly one of these with errors.Is.
var (
	ErrInvalidInput         = errors.New("invalid input")
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrBackendUnreachable   = errors.New("identity backend unreachable")
	ErrTimeout              = errors.New("identity backend timeout")
	ErrMalformedResponse    = errors.New("malformed identity backend response")
	ErrVerificationRequired = errors.New("email verification required")
)

// BackendError describes a non-success answer from the identity backend.
type BackendError struct {
	Kind    error
	Status  int
	Message string
}

func (e *BackendError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s (status %d)", e.Kind, e.Status)
	}
	return fmt.Sprintf("%s (status %d): %s", e.Kind, e.Status, e.Message)
}

func (e *BackendError) Unwrap() error {
	return e.Kind
}

// Message returns the user-facing text carried by err, falling back to a
// generic authentication failure.
func Message(err error) string {
	var backendErr *BackendError
	if errors.As(err, &backendErr) && backendErr.Message != "" {
		return backendErr.Message
	}
	switch {
	case errors.Is(err, ErrInvalidInput):
		return "Email and password are required"
	case errors.Is(err, ErrTimeout):
		return "The authentication server did not respond in time"
	case errors.Is(err, ErrBackendUnreachable):
		return "Unable to reach the authentication server. Please try again later."
	default:
		return "Authentication failed"
	}
}
