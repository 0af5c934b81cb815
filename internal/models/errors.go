package models

import (
	"errors"
	"fmt"
)

// ErrInvalidInput is returned when a caller violates an input contract
// (negative prices, mismatched series lengths, non-finite values).
var ErrInvalidInput = errors.New("invalid input")

// InvalidInputf wraps ErrInvalidInput with a descriptive message.
func InvalidInputf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}
