package deployment

import (
	"errors"
	"fmt"
)

// =============================================================================
// Error Types
// =============================================================================

var (
	// ErrNoApps is returned when the app list is empty.
	ErrNoApps = errors.New("no apps configured")

	// ErrTooManyApps is returned when the app list exceeds the listener rule quota.
	ErrTooManyApps = errors.New("too many apps for one listener")

	// ErrInvalidAppName is returned when a name cannot be used for resource naming.
	ErrInvalidAppName = errors.New("invalid app name")

	// ErrDuplicateApp is returned when the same name is configured twice.
	ErrDuplicateApp = errors.New("duplicate app name")

	// ErrPriorityCollision is returned when two distinct apps get the same priority.
	ErrPriorityCollision = errors.New("routing priority collision")

	// ErrInvalidParams is returned when plan parameters are unusable.
	ErrInvalidParams = errors.New("invalid plan parameters")
)

// PlanError wraps errors with the app the failure is about.
type PlanError struct {
	App     string // empty when the failure is not about one app
	Message string
	Err     error
}

func (e *PlanError) Error() string {
	if e.App != "" {
		return fmt.Sprintf("app %q: %s", e.App, e.Message)
	}
	return e.Message
}

func (e *PlanError) Unwrap() error {
	return e.Err
}

// NewPlanError creates a new PlanError.
func NewPlanError(app, message string, err error) *PlanError {
	return &PlanError{
		App:     app,
		Message: message,
		Err:     err,
	}
}

// PriorityCollisionError reports two apps that hash to the same priority.
type PriorityCollisionError struct {
	Priority int
	First    string
	Second   string
}

func (e *PriorityCollisionError) Error() string {
	return fmt.Sprintf("apps %q and %q both map to routing priority %d", e.First, e.Second, e.Priority)
}

// Unwrap makes errors.Is(err, ErrPriorityCollision) hold.
func (e *PriorityCollisionError) Unwrap() error {
	return ErrPriorityCollision
}
