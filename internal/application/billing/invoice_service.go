package billing

import (
	"context"
	"time"

	"github.com/cloudmarket/backend/internal/domain/billing"
	"github.com/cloudmarket/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// InvoiceService exposes invoice reads, state transitions and the manual
// item corrections operators apply while an invoice is still pending
type InvoiceService struct {
	scope        TransactionScope
	invoiceRepo  billing.InvoiceRepository
	itemRepo     billing.InvoiceItemRepository
	registration *RegistrationService
	logger       *zap.Logger
}

// NewInvoiceService creates a new InvoiceService
func NewInvoiceService(
	scope TransactionScope,
	invoiceRepo billing.InvoiceRepository,
	itemRepo billing.InvoiceItemRepository,
	registration *RegistrationService,
	logger *zap.Logger,
) *InvoiceService {
	return &InvoiceService{
		scope:        scope,
		invoiceRepo:  invoiceRepo,
		itemRepo:     itemRepo,
		registration: registration,
		logger:       logger,
	}
}

// GetInvoice returns an invoice with its items
func (s *InvoiceService) GetInvoice(ctx context.Context, id uuid.UUID) (*billing.Invoice, []billing.InvoiceItem, error) {
	invoice, err := s.invoiceRepo.FindByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	items, err := s.itemRepo.ListByInvoice(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return invoice, items, nil
}

// ListInvoices returns invoices matching the filter plus the total count
func (s *InvoiceService) ListInvoices(ctx context.Context, filter billing.InvoiceFilter) ([]billing.Invoice, int64, error) {
	invoices, err := s.invoiceRepo.FindAll(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.invoiceRepo.Count(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	return invoices, total, nil
}

// GetOrCreateCurrent returns the customer's invoice for the month containing
// now, creating a pending one when absent. Safe to call concurrently.
func (s *InvoiceService) GetOrCreateCurrent(ctx context.Context, customerID uuid.UUID, now time.Time) (*billing.Invoice, error) {
	if customerID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_CUSTOMER", "Customer ID cannot be empty")
	}
	var invoice *billing.Invoice
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		invoice, err = s.registration.GetOrCreatePending(ctx, repos, customerID, now)
		return err
	})
	return invoice, err
}

// CurrentTotal returns the amount accrued on the invoice up to now: the
// already-taxed persisted total for finalized invoices, the running taxed
// sum of item prices for pending ones
func (s *InvoiceService) CurrentTotal(ctx context.Context, id uuid.UUID, now time.Time) (decimal.Decimal, error) {
	invoice, err := s.invoiceRepo.FindByID(ctx, id)
	if err != nil {
		return decimal.Zero, err
	}
	if !invoice.IsPending() {
		return invoice.Total, nil
	}
	items, err := s.itemRepo.ListByInvoice(ctx, id)
	if err != nil {
		return decimal.Zero, err
	}
	sum := decimal.Zero
	for idx := range items {
		sum = sum.Add(items[idx].CurrentPrice(now))
	}
	taxed := sum.Mul(decimal.NewFromInt(100).Add(invoice.TaxPercent)).Div(decimal.NewFromInt(100))
	return taxed.RoundUp(2), nil
}

// MarkPaid settles a created invoice
func (s *InvoiceService) MarkPaid(ctx context.Context, id uuid.UUID, at time.Time) (*billing.Invoice, error) {
	return s.transition(ctx, id, at, (*billing.Invoice).MarkPaid)
}

// Cancel voids a created invoice
func (s *InvoiceService) Cancel(ctx context.Context, id uuid.UUID, at time.Time) (*billing.Invoice, error) {
	return s.transition(ctx, id, at, (*billing.Invoice).Cancel)
}

func (s *InvoiceService) transition(ctx context.Context, id uuid.UUID, at time.Time, apply func(*billing.Invoice, time.Time) error) (*billing.Invoice, error) {
	invoice, err := s.invoiceRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := apply(invoice, at); err != nil {
		return nil, err
	}
	if err := s.invoiceRepo.Save(ctx, invoice); err != nil {
		return nil, err
	}
	s.logger.Info("Invoice state changed",
		zap.String("invoice_id", id.String()),
		zap.String("state", invoice.State.String()))
	return invoice, nil
}

// CreateItemInput carries the fields of a manually created invoice item
type CreateItemInput struct {
	InvoiceID     uuid.UUID
	Resource      billing.ResourceRef
	Name          string
	UnitPrice     decimal.Decimal
	Unit          billing.BillingUnit
	Start         time.Time
	End           time.Time
	Quantity      *decimal.Decimal
	Factor        *decimal.Decimal
	MeasuredUnit  string
	ComponentType string
	ArticleCode   string
	ProductCode   string
	Details       map[string]any
}

// CreateItem attaches a manual correction item to a pending invoice
func (s *InvoiceService) CreateItem(ctx context.Context, input CreateItemInput) (*billing.InvoiceItem, error) {
	invoice, err := s.invoiceRepo.FindByID(ctx, input.InvoiceID)
	if err != nil {
		return nil, err
	}
	if !invoice.IsPending() {
		return nil, shared.NewDomainError("INVOICE_NOT_PENDING",
			"Items can only be added to a pending invoice")
	}
	if !invoice.Covers(input.Start) || input.End.After(invoice.PeriodEnd()) {
		return nil, shared.NewDomainError("OUT_OF_PERIOD",
			"Item interval must fall inside the invoice month")
	}

	item, err := billing.NewInvoiceItem(input.InvoiceID, input.Resource, input.Name,
		input.UnitPrice, input.Unit, input.Start, input.End)
	if err != nil {
		return nil, err
	}
	if input.Quantity != nil {
		item.Quantity = *input.Quantity
	}
	if input.Factor != nil {
		item.Factor = *input.Factor
	}
	item.MeasuredUnit = input.MeasuredUnit
	item.ComponentType = input.ComponentType
	item.WithCodes(input.ArticleCode, input.ProductCode).WithDetails(input.Details)

	if err := s.itemRepo.Create(ctx, item); err != nil {
		return nil, err
	}
	s.logger.Info("Created manual invoice item",
		zap.String("invoice_id", input.InvoiceID.String()),
		zap.String("item_id", item.ID.String()))
	return item, nil
}

// UpdateItemInput carries the mutable fields of an invoice item. Nil fields
// are left unchanged.
type UpdateItemInput struct {
	Name      *string
	UnitPrice *decimal.Decimal
	Quantity  *decimal.Decimal
	Start     *time.Time
	End       *time.Time
	Details   map[string]any
}

// UpdateItem corrects an item of a pending invoice
func (s *InvoiceService) UpdateItem(ctx context.Context, itemID uuid.UUID, input UpdateItemInput) (*billing.InvoiceItem, error) {
	item, err := s.itemRepo.FindByID(ctx, itemID)
	if err != nil {
		return nil, err
	}
	invoice, err := s.invoiceRepo.FindByID(ctx, item.InvoiceID)
	if err != nil {
		return nil, err
	}
	if !invoice.IsPending() {
		return nil, shared.NewDomainError("INVOICE_NOT_PENDING",
			"Items of a finalized invoice cannot be changed")
	}

	if input.Name != nil {
		item.Name = *input.Name
	}
	if input.UnitPrice != nil {
		if input.UnitPrice.IsNegative() {
			return nil, shared.NewDomainError("INVALID_PRICE", "Unit price cannot be negative")
		}
		item.UnitPrice = *input.UnitPrice
	}
	if input.Quantity != nil {
		item.Quantity = *input.Quantity
	}
	if input.Start != nil {
		item.Start = *input.Start
	}
	if input.End != nil {
		item.End = *input.End
	}
	if item.End.Before(item.Start) {
		return nil, shared.NewDomainError("INVALID_INTERVAL", "Interval end cannot be before start")
	}
	if !invoice.Covers(item.Start) || item.End.After(invoice.PeriodEnd()) {
		return nil, shared.NewDomainError("OUT_OF_PERIOD",
			"Item interval must fall inside the invoice month")
	}
	item.WithDetails(input.Details)
	item.Touch()

	if err := s.itemRepo.Save(ctx, item); err != nil {
		return nil, err
	}
	return item, nil
}

// DeleteItem removes an item from a pending invoice
func (s *InvoiceService) DeleteItem(ctx context.Context, itemID uuid.UUID) error {
	item, err := s.itemRepo.FindByID(ctx, itemID)
	if err != nil {
		return err
	}
	invoice, err := s.invoiceRepo.FindByID(ctx, item.InvoiceID)
	if err != nil {
		return err
	}
	if !invoice.IsPending() {
		return shared.NewDomainError("INVOICE_NOT_PENDING",
			"Items of a finalized invoice cannot be deleted")
	}
	if err := s.itemRepo.Delete(ctx, itemID); err != nil {
		return err
	}
	s.logger.Info("Deleted invoice item",
		zap.String("invoice_id", invoice.ID.String()),
		zap.String("item_id", itemID.String()))
	return nil
}

// ListItems returns items matching the filter
func (s *InvoiceService) ListItems(ctx context.Context, filter billing.InvoiceItemFilter) ([]billing.InvoiceItem, error) {
	return s.itemRepo.FindAll(ctx, filter)
}
