package billing

import (
	"fmt"
	"time"

	"github.com/cloudmarket/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InvoiceState represents the lifecycle state of an invoice
type InvoiceState string

const (
	InvoiceStatePending  InvoiceState = "PENDING"  // open for item mutation
	InvoiceStateCreated  InvoiceState = "CREATED"  // finalized, items frozen
	InvoiceStatePaid     InvoiceState = "PAID"     // settled
	InvoiceStateCanceled InvoiceState = "CANCELED" // voided after creation
)

// IsValid checks if the state is a valid InvoiceState
func (s InvoiceState) IsValid() bool {
	switch s {
	case InvoiceStatePending, InvoiceStateCreated, InvoiceStatePaid, InvoiceStateCanceled:
		return true
	}
	return false
}

// String returns the string representation of InvoiceState
func (s InvoiceState) String() string {
	return string(s)
}

// IsTerminal returns true if no further transitions are possible
func (s InvoiceState) IsTerminal() bool {
	return s == InvoiceStatePaid || s == InvoiceStateCanceled
}

// invoiceTransitions encodes the legal state machine as data. Transitions
// are checked at the single mutation entry point instead of scattered
// per-method validation.
var invoiceTransitions = map[InvoiceState][]InvoiceState{
	InvoiceStatePending:  {InvoiceStateCreated},
	InvoiceStateCreated:  {InvoiceStatePaid, InvoiceStateCanceled},
	InvoiceStatePaid:     {},
	InvoiceStateCanceled: {},
}

// CanTransition reports whether moving from s to target is legal
func (s InvoiceState) CanTransition(target InvoiceState) bool {
	for _, next := range invoiceTransitions[s] {
		if next == target {
			return true
		}
	}
	return false
}

// Invoice is the monthly, per-customer aggregate of billable line items.
// Identity is (customer, year, month); a unique constraint in storage backs
// idempotent get-or-create. Items may only be mutated while PENDING.
type Invoice struct {
	shared.BaseAggregateRoot
	CustomerID  uuid.UUID
	Year        int
	Month       time.Month
	State       InvoiceState
	TaxPercent  decimal.Decimal
	InvoiceDate *time.Time
	// Total is derived and persisted when the invoice leaves PENDING
	Total decimal.Decimal
}

// NewInvoice creates a pending invoice for the given customer and month
func NewInvoice(customerID uuid.UUID, year int, month time.Month, taxPercent decimal.Decimal) (*Invoice, error) {
	if customerID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_CUSTOMER", "Customer ID cannot be empty")
	}
	if year < 2000 || year > 2200 {
		return nil, shared.NewDomainError("INVALID_YEAR", "Year is out of range")
	}
	if month < time.January || month > time.December {
		return nil, shared.NewDomainError("INVALID_MONTH", "Month must be between 1 and 12")
	}
	if taxPercent.IsNegative() || taxPercent.GreaterThan(decimal.NewFromInt(100)) {
		return nil, shared.NewDomainError("INVALID_TAX_PERCENT", "Tax percent must be between 0 and 100")
	}

	inv := &Invoice{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		CustomerID:        customerID,
		Year:              year,
		Month:             month,
		State:             InvoiceStatePending,
		TaxPercent:        taxPercent,
		Total:             decimal.Zero,
	}
	inv.AddDomainEvent(NewInvoiceCreatedEvent(inv))
	return inv, nil
}

// transition is the single state mutation entry point
func (i *Invoice) transition(target InvoiceState, at time.Time) error {
	if !i.State.CanTransition(target) {
		return shared.NewDomainError("INVALID_STATE",
			fmt.Sprintf("Illegal invoice transition %s -> %s", i.State, target))
	}
	previous := i.State
	i.State = target
	if previous == InvoiceStatePending {
		// Leaving PENDING freezes the item set and stamps the invoice date
		i.InvoiceDate = &at
	}
	i.UpdatedAt = at
	i.IncrementVersion()
	i.AddDomainEvent(NewInvoiceStateChangedEvent(i, previous))
	return nil
}

// Finalize transitions the invoice out of PENDING, freezing its items and
// recording the computed total (tax already applied by the caller)
func (i *Invoice) Finalize(total decimal.Decimal, at time.Time) error {
	if total.IsNegative() {
		return shared.NewDomainError("INVALID_TOTAL", "Invoice total cannot be negative")
	}
	if err := i.transition(InvoiceStateCreated, at); err != nil {
		return err
	}
	i.Total = total
	return nil
}

// MarkPaid settles a created invoice
func (i *Invoice) MarkPaid(at time.Time) error {
	return i.transition(InvoiceStatePaid, at)
}

// Cancel voids a created invoice
func (i *Invoice) Cancel(at time.Time) error {
	return i.transition(InvoiceStateCanceled, at)
}

// IsPending returns true while items may still be attached or mutated
func (i *Invoice) IsPending() bool {
	return i.State == InvoiceStatePending
}

// PeriodStart returns the first instant of the invoice month
func (i *Invoice) PeriodStart() time.Time {
	return time.Date(i.Year, i.Month, 1, 0, 0, 0, 0, time.UTC)
}

// PeriodEnd returns the first instant of the following month (half-open)
func (i *Invoice) PeriodEnd() time.Time {
	return i.PeriodStart().AddDate(0, 1, 0)
}

// Covers returns true if the given instant falls inside the invoice month
func (i *Invoice) Covers(t time.Time) bool {
	return !t.Before(i.PeriodStart()) && t.Before(i.PeriodEnd())
}

// ComputeTotal sums the item prices and applies the tax percent. Rounding
// happens once, on the final amount.
func (i *Invoice) ComputeTotal(items []InvoiceItem) decimal.Decimal {
	sum := decimal.Zero
	for idx := range items {
		sum = sum.Add(items[idx].TotalPrice())
	}
	taxed := sum.Mul(decimal.NewFromInt(100).Add(i.TaxPercent)).Div(decimal.NewFromInt(100))
	return taxed.RoundUp(2)
}
