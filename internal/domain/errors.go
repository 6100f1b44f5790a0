package domain

import "github.com/cockroachdb/errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrCapacityExceeded  = errors.New("not enough spots available")
	ErrInvalidQuantity   = errors.New("number of people must be at least 1")
	ErrForbidden         = errors.New("forbidden")
	ErrInconsistentState = errors.New("inconsistent participant count")

	ErrUnauthorized         = errors.New("unauthorized")
	ErrInvalidInput         = errors.New("invalid input")
	ErrInvalidTransition    = errors.New("invalid status transition")
	ErrAlreadyCancelled     = errors.New("booking already cancelled")
	ErrTrekNotBookable      = errors.New("trek is not open for booking")
	ErrConflict             = errors.New("conflict")
	ErrSerializationFailure = errors.New("serialization failure")
)

// InputError is a validation failure that matches ErrInvalidInput.
type InputError struct {
	Msg string
}

func (e *InputError) Error() string {
	return e.Msg
}

func (e *InputError) Is(target error) bool {
	return target == ErrInvalidInput
}

func Invalid(msg string) error {
	return &InputError{Msg: msg}
}
