package domain

import (
	"errors"
	"time"

	"github.com/artpar/appfleet/internal/core/deployment"
	"github.com/google/uuid"
)

// =============================================================================
// Plan Record Errors
// =============================================================================

var (
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrEmptyPlan         = errors.New("plan has no apps")
)

// =============================================================================
// Plan Status
// =============================================================================

type PlanStatus string

const (
	PlanStatusPlanned  PlanStatus = "planned"
	PlanStatusApplying PlanStatus = "applying"
	PlanStatusApplied  PlanStatus = "applied"
	PlanStatusFailed   PlanStatus = "failed"
)

// =============================================================================
// Plan Record
// =============================================================================

// PlanRecord is a built deployment plan kept in the local history.
// Recorded priorities are only used for diffing against later plans; they
// are never fed back into priority assignment.
type PlanRecord struct {
	ID           string               `json:"id" yaml:"id"`
	Fingerprint  string               `json:"fingerprint" yaml:"fingerprint"`
	MaxPriority  int                  `json:"max_priority" yaml:"max_priority"`
	HashFamily   string               `json:"hash_family" yaml:"hash_family"`
	Status       PlanStatus           `json:"status" yaml:"status"`
	Rules        []deployment.RuleRef `json:"rules" yaml:"rules"`
	Plan         deployment.Plan      `json:"plan" yaml:"plan"`
	ErrorMessage string               `json:"error_message,omitempty" yaml:"error_message,omitempty"`
	CreatedAt    time.Time            `json:"created_at" yaml:"created_at"`
	UpdatedAt    time.Time            `json:"updated_at" yaml:"updated_at"`
	AppliedAt    *time.Time           `json:"applied_at,omitempty" yaml:"applied_at,omitempty"`
}

// NewPlanRecord creates a record for a freshly built plan.
func NewPlanRecord(plan deployment.Plan, maxPriority int, hashFamily string) (*PlanRecord, error) {
	if len(plan.Apps) == 0 {
		return nil, ErrEmptyPlan
	}

	now := time.Now().UTC()
	return &PlanRecord{
		ID:          "plan_" + uuid.New().String()[:8],
		Fingerprint: plan.Fingerprint,
		MaxPriority: maxPriority,
		HashFamily:  hashFamily,
		Status:      PlanStatusPlanned,
		Rules:       deployment.RuleRefs(plan),
		Plan:        plan,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// Transition moves the record to a new status.
func (r *PlanRecord) Transition(to PlanStatus) error {
	if err := ValidatePlanTransition(r.Status, to); err != nil {
		return err
	}

	r.Status = to
	r.UpdatedAt = time.Now().UTC()

	if to == PlanStatusApplying {
		r.ErrorMessage = ""
	}
	if to == PlanStatusApplied {
		now := time.Now().UTC()
		r.AppliedAt = &now
	}

	return nil
}

// TransitionToFailed marks an apply as failed.
func (r *PlanRecord) TransitionToFailed(errorMessage string) error {
	if r.Status != PlanStatusApplying {
		return ErrInvalidTransition
	}
	r.Status = PlanStatusFailed
	r.ErrorMessage = errorMessage
	r.UpdatedAt = time.Now().UTC()
	return nil
}

// =============================================================================
// State Machine
// =============================================================================

// validPlanTransitions defines the allowed state transitions.
var validPlanTransitions = map[PlanStatus][]PlanStatus{
	PlanStatusPlanned:  {PlanStatusApplying},
	PlanStatusApplying: {PlanStatusApplied, PlanStatusFailed},
	PlanStatusFailed:   {PlanStatusApplying},
	PlanStatusApplied:  {}, // Terminal state
}

// ValidatePlanTransition checks if a status transition is valid.
func ValidatePlanTransition(from, to PlanStatus) error {
	allowed, exists := validPlanTransitions[from]
	if !exists {
		return ErrInvalidTransition
	}
	for _, s := range allowed {
		if s == to {
			return nil
		}
	}
	return ErrInvalidTransition
}
