package domain

import "errors"

// ErrInvalidInput is matched by every InputError.
var ErrInvalidInput = errors.New("invalid input")

// InputError is a client mistake: missing or malformed fields, or an id that
// does not resolve. Message is safe to show to the client.
type InputError struct {
	Message string
	Err     error
}

// NewInputError creates an InputError with an optional cause.
func NewInputError(message string, cause error) *InputError {
	return &InputError{Message: message, Err: cause}
}

func (e *InputError) Error() string {
	return e.Message
}

func (e *InputError) Unwrap() error {
	return e.Err
}

func (e *InputError) Is(target error) bool {
	return target == ErrInvalidInput
}
