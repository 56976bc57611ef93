package auth

import (
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation"

	"collabit/internal/identity"
)

// Credentials is a password login attempt.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate checks that both fields are present. Everything else about the
// credentials is the backend's call.
func (c Credentials) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Email, validation.Required),
		validation.Field(&c.Password, validation.Required),
	)
}

// Registration is a new password account request.
type Registration struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate checks the registration payload before it is proxied. Password
// policy belongs to the backend.
func (r Registration) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required),
		validation.Field(&r.Password, validation.Required),
	)
}

func invalidInput(err error) error {
	return fmt.Errorf("%w: %w", identity.ErrInvalidInput, err)
}
