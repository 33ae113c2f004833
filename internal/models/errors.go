package models

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

var (
	// ErrNotFound indicates the requested train, coach or booking does not exist
	ErrNotFound = errors.New("resource not found")

	// ErrHoldNotFound indicates no active hold exists with the given id
	ErrHoldNotFound = errors.New("seat hold not found")

	// ErrHoldExpired indicates the hold lapsed before the booking was completed
	ErrHoldExpired = errors.New("seat hold has expired")

	// ErrConflict indicates the change would break seats or bookings that depend on the resource
	ErrConflict = errors.New("resource is in use")

	// ErrDuplicateTrainNumber indicates another train already uses the number
	ErrDuplicateTrainNumber = errors.New("train number already exists")

	// ErrDuplicateBookingID is returned by stores when a booking identifier is already taken
	ErrDuplicateBookingID = errors.New("booking identifier already exists")

	// ErrInvalidCredentials indicates email or password mismatch
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrEmailTaken indicates an account already exists for the email
	ErrEmailTaken = errors.New("an account with this email already exists")

	// ErrOTPNotFound indicates no OTP is pending for the email, or it expired
	ErrOTPNotFound = errors.New("no pending OTP for this email or it has expired")

	// ErrOTPInvalid indicates the submitted code does not match
	ErrOTPInvalid = errors.New("invalid OTP code")

	// ErrOTPAttemptsExceeded indicates too many wrong codes were submitted
	ErrOTPAttemptsExceeded = errors.New("maximum OTP verification attempts exceeded")
)

// FieldError is a single field-level validation failure
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError reports malformed passenger or seat input. It is user-correctable.
type ValidationError struct {
	Fields []FieldError `json:"fields"`
}

// NewValidationError builds a ValidationError with a single field failure
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Fields: []FieldError{{Field: field, Message: message}}}
}

// Add appends a field failure
func (e *ValidationError) Add(field, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: message})
}

// HasErrors reports whether any failure was recorded
func (e *ValidationError) HasErrors() bool {
	return len(e.Fields) > 0
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.Field + ": " + f.Message
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// InvalidInputError reports an argument a computation cannot accept
type InvalidInputError struct {
	Message string
}

func (e *InvalidInputError) Error() string {
	return "invalid input: " + e.Message
}

// SeatUnavailableError lists requested seats that are not vacant
type SeatUnavailableError struct {
	CoachID     uuid.UUID
	SeatNumbers []string
}

func (e *SeatUnavailableError) Error() string {
	return fmt.Sprintf("seats no longer available in coach %s: %s", e.CoachID, strings.Join(e.SeatNumbers, ", "))
}

// InsufficientSeatsError reports a count request larger than the vacant seats
type InsufficientSeatsError struct {
	CoachID   uuid.UUID
	Requested int
	Vacant    int
}

func (e *InsufficientSeatsError) Error() string {
	return fmt.Sprintf("coach %s has %d vacant seats, %d requested", e.CoachID, e.Vacant, e.Requested)
}

// IdentifierExhaustionError reports that no unique booking identifier was found within the retry bound
type IdentifierExhaustionError struct {
	Attempts int
}

func (e *IdentifierExhaustionError) Error() string {
	return fmt.Sprintf("failed to generate unique booking identifier after %d attempts", e.Attempts)
}

// PersistenceError wraps a storage failure
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failure during %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// NewPersistenceError wraps err unless it already carries a domain meaning
func NewPersistenceError(op string, err error) error {
	if err == nil {
		return nil
	}
	var pe *PersistenceError
	if errors.As(err, &pe) {
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}
