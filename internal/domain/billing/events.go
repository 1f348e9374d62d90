package billing

import (
	"github.com/cloudmarket/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// Event types raised by the billing aggregates
const (
	EventInvoiceCreated      = "billing.invoice.created"
	EventInvoiceStateChanged = "billing.invoice.state_changed"
)

// InvoiceCreatedEvent is raised when a pending invoice is opened for a
// customer and month
type InvoiceCreatedEvent struct {
	shared.BaseDomainEvent
	CustomerID uuid.UUID `json:"customer_id"`
	Year       int       `json:"year"`
	Month      int       `json:"month"`
}

// NewInvoiceCreatedEvent creates an InvoiceCreatedEvent
func NewInvoiceCreatedEvent(inv *Invoice) *InvoiceCreatedEvent {
	return &InvoiceCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventInvoiceCreated, inv.ID),
		CustomerID:      inv.CustomerID,
		Year:            inv.Year,
		Month:           int(inv.Month),
	}
}

// InvoiceStateChangedEvent is raised on every legal state transition
type InvoiceStateChangedEvent struct {
	shared.BaseDomainEvent
	CustomerID    uuid.UUID    `json:"customer_id"`
	PreviousState InvoiceState `json:"previous_state"`
	NewState      InvoiceState `json:"new_state"`
}

// NewInvoiceStateChangedEvent creates an InvoiceStateChangedEvent
func NewInvoiceStateChangedEvent(inv *Invoice, previous InvoiceState) *InvoiceStateChangedEvent {
	return &InvoiceStateChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventInvoiceStateChanged, inv.ID),
		CustomerID:      inv.CustomerID,
		PreviousState:   previous,
		NewState:        inv.State,
	}
}
