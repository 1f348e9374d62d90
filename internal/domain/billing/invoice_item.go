package billing

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/cloudmarket/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ItemDetails is a free-form snapshot of the priced attributes of a
// resource (tenant name, package template, applied credit, ...), persisted
// as JSONB so the description survives deletion of the source records.
type ItemDetails map[string]any

// Value implements driver.Valuer for JSONB storage
func (d ItemDetails) Value() (driver.Value, error) {
	if d == nil {
		return "{}", nil
	}
	return json.Marshal(d)
}

// Scan implements sql.Scanner for JSONB retrieval
func (d *ItemDetails) Scan(value interface{}) error {
	if value == nil {
		*d = ItemDetails{}
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return errors.New("failed to scan ItemDetails: unsupported type")
	}
	if len(bytes) == 0 {
		*d = ItemDetails{}
		return nil
	}
	return json.Unmarshal(bytes, d)
}

// InvoiceItem is one priced interval of resource consumption on an invoice.
// The interval [Start, End) is half-open and lies within the invoice month.
// Project fields are frozen at creation since the project may be deleted
// while the invoice is still open.
type InvoiceItem struct {
	shared.BaseEntity
	InvoiceID     uuid.UUID
	Resource      ResourceRef
	Name          string
	ProjectID     uuid.UUID
	ProjectName   string
	ProjectUUID   string
	UnitPrice     decimal.Decimal
	Unit          BillingUnit
	Quantity      decimal.Decimal
	Factor        decimal.Decimal
	Start         time.Time
	End           time.Time
	MeasuredUnit  string
	ComponentType string
	ArticleCode   string
	ProductCode   string
	CreditApplied decimal.Decimal
	Details       ItemDetails
}

// NewInvoiceItem creates an invoice item for the given interval
func NewInvoiceItem(
	invoiceID uuid.UUID,
	resource ResourceRef,
	name string,
	unitPrice decimal.Decimal,
	unit BillingUnit,
	start, end time.Time,
) (*InvoiceItem, error) {
	if invoiceID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_INVOICE", "Invoice ID cannot be empty")
	}
	if resource.IsZero() || !resource.Kind.IsValid() {
		return nil, shared.NewDomainError("INVALID_RESOURCE", "Resource reference is not valid")
	}
	if unitPrice.IsNegative() {
		return nil, shared.NewDomainError("INVALID_PRICE", "Unit price cannot be negative")
	}
	if !unit.IsValid() {
		return nil, shared.NewDomainError("INVALID_UNIT", "Billing unit is not valid")
	}
	if end.Before(start) {
		return nil, shared.NewDomainError("INVALID_INTERVAL", "Interval end cannot be before start")
	}

	return &InvoiceItem{
		BaseEntity:    shared.NewBaseEntity(),
		InvoiceID:     invoiceID,
		Resource:      resource,
		Name:          name,
		UnitPrice:     unitPrice,
		Unit:          unit,
		Quantity:      decimal.NewFromInt(1),
		Factor:        decimal.NewFromInt(1),
		Start:         start,
		End:           end,
		CreditApplied: decimal.Zero,
		Details:       ItemDetails{},
	}, nil
}

// WithProject freezes the project snapshot fields on the item
func (it *InvoiceItem) WithProject(projectID uuid.UUID, name, projectUUID string) *InvoiceItem {
	it.ProjectID = projectID
	it.ProjectName = name
	it.ProjectUUID = projectUUID
	return it
}

// WithCodes sets the accounting article and product codes
func (it *InvoiceItem) WithCodes(articleCode, productCode string) *InvoiceItem {
	it.ArticleCode = articleCode
	it.ProductCode = productCode
	return it
}

// WithDetails merges the given snapshot into the item details
func (it *InvoiceItem) WithDetails(details map[string]any) *InvoiceItem {
	if it.Details == nil {
		it.Details = ItemDetails{}
	}
	for k, v := range details {
		it.Details[k] = v
	}
	return it
}

// Close sets the interval end to the given instant. Used when billing for
// the resource stops; items are closed, never deleted.
func (it *InvoiceItem) Close(at time.Time) error {
	if at.Before(it.Start) {
		return shared.NewDomainError("INVALID_INTERVAL", "Interval end cannot be before start")
	}
	it.End = at
	it.Touch()
	return nil
}

// IsZeroLength returns true when the interval covers nothing and the item
// should not be billed (overlap resolution can collapse an item this way)
func (it *InvoiceItem) IsZeroLength() bool {
	return !it.End.After(it.Start)
}

// BilledDays returns the number of calendar days the interval covers.
// A partially covered final day counts as a full day.
func (it *InvoiceItem) BilledDays() int64 {
	if it.IsZeroLength() {
		return 0
	}
	startDay := StartOfDay(it.Start)
	endDay := StartOfDay(it.End)
	days := int64(endDay.Sub(startDay) / (24 * time.Hour))
	if it.End.After(endDay) {
		days++
	}
	return days
}

// DailyPrice normalizes the unit price to a per-day rate for overlap
// comparison. PER_HOUR deliberately keeps the historical hourly*24
// conversion used throughout pricing.
func (it *InvoiceItem) DailyPrice() decimal.Decimal {
	switch it.Unit {
	case UnitPerDay:
		return it.UnitPrice
	case UnitPerHour:
		return it.UnitPrice.Mul(decimal.NewFromInt(24))
	case UnitPerMonth:
		return it.UnitPrice.Div(decimal.NewFromInt(DaysInMonth(it.Start)))
	default:
		return it.UnitPrice
	}
}

// TotalPrice returns the full price of the interval, with any applied
// credit subtracted (never below zero)
func (it *InvoiceItem) TotalPrice() decimal.Decimal {
	return it.priceForDays(it.BilledDays())
}

// CurrentPrice returns the price accrued up to the given instant: interval
// items are charged for elapsed full days, monthly items at the full
// monthly rate once started, usage items at their recorded quantity.
func (it *InvoiceItem) CurrentPrice(now time.Time) decimal.Decimal {
	if it.Unit == UnitPerMonth || it.Unit == UnitQuantity {
		return it.TotalPrice()
	}
	if now.After(it.End) {
		return it.TotalPrice()
	}
	if now.Before(it.Start) {
		return decimal.Zero
	}
	elapsed := InvoiceItem{Unit: it.Unit, UnitPrice: it.UnitPrice, Start: it.Start, End: StartOfDay(now)}
	days := elapsed.BilledDays()
	return it.priceForDays(days)
}

// priceForDays computes the charge for the given number of billed days
func (it *InvoiceItem) priceForDays(days int64) decimal.Decimal {
	var raw decimal.Decimal
	switch it.Unit {
	case UnitPerDay:
		raw = it.UnitPrice.Mul(decimal.NewFromInt(days))
	case UnitPerHour:
		raw = it.UnitPrice.Mul(decimal.NewFromInt(24)).Mul(decimal.NewFromInt(days))
	case UnitPerMonth:
		raw = it.UnitPrice.Mul(decimal.NewFromInt(days)).Div(decimal.NewFromInt(DaysInMonth(it.Start)))
	case UnitQuantity:
		if it.Factor.IsZero() {
			raw = decimal.Zero
		} else {
			raw = it.Quantity.Mul(it.UnitPrice).Div(it.Factor).RoundUp(2)
		}
	default:
		raw = decimal.Zero
	}
	total := raw.Sub(it.CreditApplied)
	if total.IsNegative() {
		return decimal.Zero
	}
	return total
}

// ApplyCredit consumes up to the item's remaining price from the given
// credit balance and records the consumed amount on the item. Returns the
// amount actually consumed.
func (it *InvoiceItem) ApplyCredit(available decimal.Decimal) decimal.Decimal {
	if !available.IsPositive() {
		return decimal.Zero
	}
	remaining := it.TotalPrice()
	consumable := decimal.Min(available, remaining)
	it.CreditApplied = it.CreditApplied.Add(consumable)
	it.Touch()
	return consumable
}
