package billing

import (
	"time"

	"github.com/cloudmarket/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Credit is a customer-scoped prepaid balance. The registration path
// consumes it when computing the effective price of new invoice items;
// the balance never goes below zero.
type Credit struct {
	shared.BaseEntity
	CustomerID uuid.UUID
	Value      decimal.Decimal
	EndDate    *time.Time
}

// NewCredit grants a prepaid balance to a customer
func NewCredit(customerID uuid.UUID, value decimal.Decimal, endDate *time.Time) (*Credit, error) {
	if customerID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_CUSTOMER", "Customer ID cannot be empty")
	}
	if value.IsNegative() {
		return nil, shared.NewDomainError("INVALID_CREDIT", "Credit value cannot be negative")
	}
	return &Credit{
		BaseEntity: shared.NewBaseEntity(),
		CustomerID: customerID,
		Value:      value,
		EndDate:    endDate,
	}, nil
}

// IsActive returns true while the credit can still be consumed
func (c *Credit) IsActive(now time.Time) bool {
	if !c.Value.IsPositive() {
		return false
	}
	return c.EndDate == nil || now.Before(*c.EndDate)
}

// Consume deducts up to the requested amount and returns what was actually
// taken from the balance
func (c *Credit) Consume(amount decimal.Decimal) decimal.Decimal {
	if !amount.IsPositive() || !c.Value.IsPositive() {
		return decimal.Zero
	}
	taken := decimal.Min(amount, c.Value)
	c.Value = c.Value.Sub(taken)
	c.Touch()
	return taken
}
