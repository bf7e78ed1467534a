package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates the requested entity was not found or has expired.
	ErrNotFound = errors.New("not found")
	// ErrForbidden indicates the caller does not own the requested entity.
	ErrForbidden = errors.New("forbidden")
	// ErrConflict indicates a uniqueness violation; callers may retry.
	ErrConflict = errors.New("conflict")
)

// ValidationError is malformed or policy-violating input, carrying a
// machine-readable code for the boundary layer to surface.
type ValidationError struct {
	Code    string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func Validationf(code, format string, args ...interface{}) error {
	return &ValidationError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// AsValidation returns err as a ValidationError, or nil if it is not one.
func AsValidation(err error) *ValidationError {
	var v *ValidationError
	if errors.As(err, &v) {
		return v
	}
	return nil
}
