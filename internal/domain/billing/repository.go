package billing

import (
	"context"
	"time"

	"github.com/cloudmarket/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InvoiceFilter holds filtering options for invoice queries
type InvoiceFilter struct {
	shared.Filter
	CustomerID *uuid.UUID
	Year       *int
	Month      *int
	State      *InvoiceState
	FromDate   *time.Time
	ToDate     *time.Time
	MinTotal   *decimal.Decimal
	MaxTotal   *decimal.Decimal
}

// InvoiceItemFilter holds filtering options for invoice item queries
type InvoiceItemFilter struct {
	shared.Filter
	InvoiceID  *uuid.UUID
	ResourceID *uuid.UUID
	Kind       *ResourceKind
	ProjectID  *uuid.UUID
	FromDate   *time.Time
	ToDate     *time.Time
}

// InvoiceRepository persists Invoice aggregates
type InvoiceRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Invoice, error)
	// FindByCustomerMonth returns the invoice identified by
	// (customer, year, month), or shared.ErrNotFound
	FindByCustomerMonth(ctx context.Context, customerID uuid.UUID, year int, month time.Month) (*Invoice, error)
	// Create inserts a new invoice. The unique (customer, year, month)
	// constraint makes concurrent creation race-safe: the loser receives
	// shared.ErrAlreadyExists and re-reads the winner's row.
	Create(ctx context.Context, invoice *Invoice) error
	Save(ctx context.Context, invoice *Invoice) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindAll(ctx context.Context, filter InvoiceFilter) ([]Invoice, error)
	Count(ctx context.Context, filter InvoiceFilter) (int64, error)
	// ListByStateForMonth returns all invoices of a month in the given state
	ListByStateForMonth(ctx context.Context, state InvoiceState, year int, month time.Month) ([]Invoice, error)
}

// InvoiceItemRepository persists invoice line items
type InvoiceItemRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*InvoiceItem, error)
	ListByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]InvoiceItem, error)
	FindAll(ctx context.Context, filter InvoiceItemFilter) ([]InvoiceItem, error)
	// FindLatestForResource returns the resource's item with the greatest
	// end within the invoice, or shared.ErrNotFound
	FindLatestForResource(ctx context.Context, invoiceID uuid.UUID, resource ResourceRef) (*InvoiceItem, error)
	// FindOverlapping returns the most recent item of the resource whose
	// interval ends on the calendar day starting at dayStart, or
	// shared.ErrNotFound. An item "ends on" day D when its end lies in
	// (D, D+24h].
	FindOverlapping(ctx context.Context, invoiceID uuid.UUID, resource ResourceRef, dayStart time.Time) (*InvoiceItem, error)
	// FindUsageItem returns the usage-based item for (resource, component)
	// on the invoice, or shared.ErrNotFound
	FindUsageItem(ctx context.Context, invoiceID uuid.UUID, resource ResourceRef, componentType string) (*InvoiceItem, error)
	Create(ctx context.Context, item *InvoiceItem) error
	Save(ctx context.Context, item *InvoiceItem) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// ResourcePlanPeriodRepository persists plan periods
type ResourcePlanPeriodRepository interface {
	// FindOpen returns the single open period of the resource, or
	// shared.ErrNotFound
	FindOpen(ctx context.Context, resourceID uuid.UUID) (*ResourcePlanPeriod, error)
	Create(ctx context.Context, period *ResourcePlanPeriod) error
	Save(ctx context.Context, period *ResourcePlanPeriod) error
	ListByResource(ctx context.Context, resourceID uuid.UUID) ([]ResourcePlanPeriod, error)
}

// ResourceRepository reads the provisioned resources reference data
type ResourceRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Resource, error)
	ListByCustomerAndKind(ctx context.Context, customerID uuid.UUID, kind ResourceKind) ([]Resource, error)
	// ListCustomerIDsBillableBetween returns the customers owning at least
	// one resource with a plan period overlapping [start, end)
	ListCustomerIDsBillableBetween(ctx context.Context, start, end time.Time) ([]uuid.UUID, error)
}

// CustomerRepository reads the customer reference data
type CustomerRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Customer, error)
	FindAll(ctx context.Context, filter shared.Filter) ([]Customer, error)
}

// PlanRepository reads the immutable price/plan catalog
type PlanRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Plan, error)
	FindComponent(ctx context.Context, planID uuid.UUID, componentType string) (*PlanComponent, error)
	ListComponents(ctx context.Context, planID uuid.UUID) ([]PlanComponent, error)
}

// ComponentUsageRepository persists metered usage records
type ComponentUsageRepository interface {
	// ListForPeriod returns all usage records of the billing period
	// starting at the given month
	ListForPeriod(ctx context.Context, period time.Time) ([]ComponentUsage, error)
	FindForResource(ctx context.Context, resourceID uuid.UUID, componentType string, period time.Time) (*ComponentUsage, error)
	// Upsert inserts or replaces the record keyed by
	// (resource, component, billing period)
	Upsert(ctx context.Context, usage *ComponentUsage) error
}

// CreditRepository persists prepaid customer credits
type CreditRepository interface {
	// FindActiveByCustomer returns the customer's consumable credit at the
	// given instant, or shared.ErrNotFound
	FindActiveByCustomer(ctx context.Context, customerID uuid.UUID, now time.Time) (*Credit, error)
	Create(ctx context.Context, credit *Credit) error
	Save(ctx context.Context, credit *Credit) error
}
