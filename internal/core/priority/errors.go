package priority

import (
	"errors"
	"fmt"
)

// =============================================================================
// Error Types
// =============================================================================

var (
	// ErrInvalidInput is returned when a name cannot be assigned a priority.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidConfig is returned by New when the assigner configuration is unusable.
	ErrInvalidConfig = errors.New("invalid priority config")
)

// InputError describes why a name was rejected.
type InputError struct {
	Name   string
	Reason string
}

func (e *InputError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("invalid input: %s", e.Reason)
	}
	return fmt.Sprintf("invalid input %q: %s", e.Name, e.Reason)
}

// Unwrap makes errors.Is(err, ErrInvalidInput) hold.
func (e *InputError) Unwrap() error {
	return ErrInvalidInput
}
