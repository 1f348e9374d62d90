package billing

import (
	"context"
	"time"

	"github.com/cloudmarket/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// ResourcePlanPeriod records a time interval during which a specific plan
// was in effect for a resource. End == nil marks the single currently open
// period; the periods of a resource tile its lifetime contiguously.
type ResourcePlanPeriod struct {
	shared.BaseEntity
	ResourceID uuid.UUID
	PlanID     uuid.UUID
	Start      time.Time
	End        *time.Time
}

// NewResourcePlanPeriod opens a period starting at the given instant
func NewResourcePlanPeriod(resourceID, planID uuid.UUID, start time.Time) (*ResourcePlanPeriod, error) {
	if resourceID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_RESOURCE", "Resource ID cannot be empty")
	}
	if planID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_PLAN", "Plan ID cannot be empty")
	}
	return &ResourcePlanPeriod{
		BaseEntity: shared.NewBaseEntity(),
		ResourceID: resourceID,
		PlanID:     planID,
		Start:      start,
	}, nil
}

// IsOpen returns true while the period has no end
func (p *ResourcePlanPeriod) IsOpen() bool {
	return p.End == nil
}

// CloseAt seals the period at the given instant
func (p *ResourcePlanPeriod) CloseAt(at time.Time) error {
	if !p.IsOpen() {
		return shared.NewDomainError("PERIOD_CLOSED", "Plan period is already closed")
	}
	if at.Before(p.Start) {
		return shared.NewDomainError("INVALID_INTERVAL", "Period end cannot be before start")
	}
	p.End = &at
	p.Touch()
	return nil
}

// ErrPeriodAlreadyOpen signals a caller bug: a period was opened while
// another one is still open for the same resource
var ErrPeriodAlreadyOpen = shared.NewDomainError("PERIOD_ALREADY_OPEN",
	"An open plan period already exists for this resource")

// PlanPeriodTracker maintains the open/closed plan periods of resources.
// It is a domain service: all storage goes through the repository, which
// enforces the at-most-one-open-period invariant with a partial unique
// index.
type PlanPeriodTracker struct {
	periods ResourcePlanPeriodRepository
}

// NewPlanPeriodTracker creates a tracker over the given repository
func NewPlanPeriodTracker(periods ResourcePlanPeriodRepository) *PlanPeriodTracker {
	return &PlanPeriodTracker{periods: periods}
}

// Open starts a new period for the resource. Opening while another period
// is open is a data-integrity error, not a user error: callers must close
// the previous period first.
func (t *PlanPeriodTracker) Open(ctx context.Context, resourceID, planID uuid.UUID, at time.Time) (*ResourcePlanPeriod, error) {
	current, err := t.periods.FindOpen(ctx, resourceID)
	if err != nil && err != shared.ErrNotFound {
		return nil, err
	}
	if current != nil {
		return nil, ErrPeriodAlreadyOpen
	}

	period, err := NewResourcePlanPeriod(resourceID, planID, at)
	if err != nil {
		return nil, err
	}
	if err := t.periods.Create(ctx, period); err != nil {
		return nil, err
	}
	return period, nil
}

// Close seals the currently open period. Returns (nil, nil) when no period
// is open - e.g. the resource predates tracking - so callers can log the
// no-op and continue.
func (t *PlanPeriodTracker) Close(ctx context.Context, resourceID uuid.UUID, at time.Time) (*ResourcePlanPeriod, error) {
	current, err := t.periods.FindOpen(ctx, resourceID)
	if err != nil {
		if err == shared.ErrNotFound {
			return nil, nil
		}
		return nil, err
	}
	if err := current.CloseAt(at); err != nil {
		return nil, err
	}
	if err := t.periods.Save(ctx, current); err != nil {
		return nil, err
	}
	return current, nil
}

// SwitchPlan atomically closes the current open period and opens a new one
// with the new plan at the same instant, keeping the timeline contiguous.
// Callers run it inside the registration transaction.
func (t *PlanPeriodTracker) SwitchPlan(ctx context.Context, resourceID, newPlanID uuid.UUID, at time.Time) (*ResourcePlanPeriod, error) {
	if _, err := t.Close(ctx, resourceID, at); err != nil {
		return nil, err
	}
	return t.Open(ctx, resourceID, newPlanID, at)
}
