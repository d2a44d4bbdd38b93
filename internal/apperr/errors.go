// Package apperr defines the error taxonomy shared by the service and API layers.
package apperr

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrInvalidInput    = errors.New("invalid input")
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrGeneratorUnavailable is returned when no generator credentials were configured.
	ErrGeneratorUnavailable = errors.New("generator unavailable")
	// ErrGeneratorFailure covers generator call errors and timeouts.
	ErrGeneratorFailure = errors.New("generator failure")
)

// InvalidInput wraps err so that errors.Is(err, ErrInvalidInput) holds
// while keeping the descriptive message of err.
func InvalidInput(err error) error {
	if err == nil {
		return nil
	}
	return &invalidInputError{err: err}
}

type invalidInputError struct {
	err error
}

func (e *invalidInputError) Error() string { return e.err.Error() }

func (e *invalidInputError) Unwrap() []error { return []error{ErrInvalidInput, e.err} }
