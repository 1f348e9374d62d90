package billing

import (
	"github.com/cloudmarket/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BillingKind describes how a plan component is charged
type BillingKind string

const (
	BillingKindFixed BillingKind = "FIXED" // charged for the whole period
	BillingKindUsage BillingKind = "USAGE" // charged by metered usage
	BillingKindLimit BillingKind = "LIMIT" // charged by the configured limit
)

// IsValid checks if the billing kind is valid
func (k BillingKind) IsValid() bool {
	switch k {
	case BillingKindFixed, BillingKindUsage, BillingKindLimit:
		return true
	}
	return false
}

// Plan is immutable pricing reference data owned by the catalog.
// A plan carries a base price plus zero or more priced components.
type Plan struct {
	shared.BaseEntity
	Name        string
	UnitPrice   decimal.Decimal
	Unit        BillingUnit
	ArticleCode string
	ProductCode string
	Archived    bool
}

// PlanComponent is one priced component of a plan
type PlanComponent struct {
	shared.BaseEntity
	PlanID        uuid.UUID
	ComponentType string
	MeasuredUnit  string
	BillingKind   BillingKind
	// Price per Factor units of usage
	Price  decimal.Decimal
	Factor decimal.Decimal
	// Amount is the included allowance for FIXED/LIMIT components
	Amount decimal.Decimal
}

// UnitCost returns the cost of a single unit of usage (price / factor)
func (c *PlanComponent) UnitCost() (decimal.Decimal, error) {
	if c.Factor.IsZero() {
		return decimal.Zero, shared.NewDomainError("INVALID_FACTOR", "Plan component factor cannot be zero")
	}
	return c.Price.Div(c.Factor), nil
}

// UsageCost computes the charge for a metered usage amount, rounding up to
// 2 decimal places so truncation never under-bills
func (c *PlanComponent) UsageCost(usage decimal.Decimal) (decimal.Decimal, error) {
	if c.Factor.IsZero() {
		return decimal.Zero, shared.NewDomainError("INVALID_FACTOR", "Plan component factor cannot be zero")
	}
	if usage.IsNegative() {
		return decimal.Zero, shared.NewDomainError("INVALID_USAGE", "Usage cannot be negative")
	}
	return usage.Mul(c.Price).Div(c.Factor).RoundUp(2), nil
}
