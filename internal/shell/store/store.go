package store

import (
	"context"

	"github.com/artpar/appfleet/internal/core/domain"
)

// =============================================================================
// Store Interface
// =============================================================================

// Store defines the persistence interface for plan history.
type Store interface {
	// Plan operations
	SavePlan(ctx context.Context, record *domain.PlanRecord) error
	UpdatePlan(ctx context.Context, record *domain.PlanRecord) error
	GetPlan(ctx context.Context, id string) (*domain.PlanRecord, error)
	ListPlans(ctx context.Context, opts ListOptions) ([]domain.PlanRecord, error)

	// LatestAppliedPlan returns the most recently applied plan, or ErrNotFound.
	LatestAppliedPlan(ctx context.Context) (*domain.PlanRecord, error)

	// Transaction support
	WithTx(ctx context.Context, fn func(Store) error) error

	// Lifecycle
	Close() error
}

// =============================================================================
// Options
// =============================================================================

// ListOptions defines pagination and filtering options.
type ListOptions struct {
	Limit  int
	Offset int
}

// DefaultListOptions returns default list options.
func DefaultListOptions() ListOptions {
	return ListOptions{
		Limit:  100,
		Offset: 0,
	}
}

// Normalize ensures list options have valid values.
func (o ListOptions) Normalize() ListOptions {
	if o.Limit <= 0 {
		o.Limit = 100
	}
	if o.Limit > 1000 {
		o.Limit = 1000
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
	return o
}
