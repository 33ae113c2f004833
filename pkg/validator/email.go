package validator

import (
	"errors"
	"strings"

	playground "github.com/go-playground/validator/v10"
)

var (
	// ErrEmptyEmail indicates email is empty
	ErrEmptyEmail = errors.New("email cannot be empty")

	// ErrInvalidEmail indicates email is malformed
	ErrInvalidEmail = errors.New("email address is not valid")
)

// EmailValidator validates email addresses with the same rules gin applies to `binding:"email"`
type EmailValidator struct {
	validate *playground.Validate
}

// NewEmailValidator creates a new email validator instance
func NewEmailValidator() *EmailValidator {
	return &EmailValidator{validate: playground.New()}
}

// Validate returns the trimmed, lower-cased address or an error
func (v *EmailValidator) Validate(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", ErrEmptyEmail
	}
	if err := v.validate.Var(email, "email"); err != nil {
		return "", ErrInvalidEmail
	}
	return email, nil
}
