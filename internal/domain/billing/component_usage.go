package billing

import (
	"time"

	"github.com/cloudmarket/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ComponentUsage is one metered usage record reported by a resource
// backend: how much of a plan component a resource consumed during a
// billing period. At most one record exists per (resource, component,
// billing period); backends overwrite the value as the period progresses.
type ComponentUsage struct {
	shared.BaseEntity
	ResourceID    uuid.UUID
	ComponentType string
	// BillingPeriod is the first day of the calendar month the usage
	// belongs to
	BillingPeriod time.Time
	Usage         decimal.Decimal
	MeasuredUnit  string
	RecordedAt    time.Time
}

// NewComponentUsage records metered usage for a billing period
func NewComponentUsage(
	resourceID uuid.UUID,
	componentType string,
	billingPeriod time.Time,
	usage decimal.Decimal,
	measuredUnit string,
) (*ComponentUsage, error) {
	if resourceID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_RESOURCE", "Resource ID cannot be empty")
	}
	if componentType == "" {
		return nil, shared.NewDomainError("INVALID_COMPONENT", "Component type cannot be empty")
	}
	if usage.IsNegative() {
		return nil, shared.NewDomainError("INVALID_USAGE", "Usage cannot be negative")
	}
	return &ComponentUsage{
		BaseEntity:    shared.NewBaseEntity(),
		ResourceID:    resourceID,
		ComponentType: componentType,
		BillingPeriod: MonthStart(billingPeriod),
		Usage:         usage,
		MeasuredUnit:  measuredUnit,
		RecordedAt:    time.Now(),
	}, nil
}
