package dto

import (
	"time"

	"github.com/cloudmarket/backend/internal/domain/billing"
	"github.com/shopspring/decimal"
)

// InvoiceResponse represents an invoice in API responses
type InvoiceResponse struct {
	ID          string          `json:"id"`
	CustomerID  string          `json:"customer_id"`
	Year        int             `json:"year"`
	Month       int             `json:"month"`
	State       string          `json:"state"`
	TaxPercent  decimal.Decimal `json:"tax_percent"`
	InvoiceDate *time.Time      `json:"invoice_date,omitempty"`
	Total       decimal.Decimal `json:"total"`
	PeriodStart time.Time       `json:"period_start"`
	PeriodEnd   time.Time       `json:"period_end"`
	Version     int             `json:"version"`
	TimestampResponse
}

// NewInvoiceResponse maps a domain invoice to its API representation
func NewInvoiceResponse(inv *billing.Invoice) InvoiceResponse {
	return InvoiceResponse{
		ID:          inv.ID.String(),
		CustomerID:  inv.CustomerID.String(),
		Year:        inv.Year,
		Month:       int(inv.Month),
		State:       inv.State.String(),
		TaxPercent:  inv.TaxPercent,
		InvoiceDate: inv.InvoiceDate,
		Total:       inv.Total,
		PeriodStart: inv.PeriodStart(),
		PeriodEnd:   inv.PeriodEnd(),
		Version:     inv.Version,
		TimestampResponse: TimestampResponse{
			CreatedAt: inv.CreatedAt,
			UpdatedAt: inv.UpdatedAt,
		},
	}
}

// InvoiceItemResponse represents an invoice item in API responses
type InvoiceItemResponse struct {
	ID            string          `json:"id"`
	InvoiceID     string          `json:"invoice_id"`
	ResourceKind  string          `json:"resource_kind"`
	ResourceID    string          `json:"resource_id"`
	Name          string          `json:"name"`
	ProjectName   string          `json:"project_name,omitempty"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	Unit          string          `json:"unit"`
	Quantity      decimal.Decimal `json:"quantity"`
	Factor        decimal.Decimal `json:"factor"`
	Start         time.Time       `json:"start"`
	End           time.Time       `json:"end"`
	BilledDays    int64           `json:"billed_days"`
	MeasuredUnit  string          `json:"measured_unit,omitempty"`
	ComponentType string          `json:"component_type,omitempty"`
	ArticleCode   string          `json:"article_code,omitempty"`
	ProductCode   string          `json:"product_code,omitempty"`
	CreditApplied decimal.Decimal `json:"credit_applied"`
	TotalPrice    decimal.Decimal `json:"total_price"`
	Details       map[string]any  `json:"details,omitempty"`
}

// NewInvoiceItemResponse maps a domain invoice item to its API representation
func NewInvoiceItemResponse(item *billing.InvoiceItem) InvoiceItemResponse {
	return InvoiceItemResponse{
		ID:            item.ID.String(),
		InvoiceID:     item.InvoiceID.String(),
		ResourceKind:  item.Resource.Kind.String(),
		ResourceID:    item.Resource.ID.String(),
		Name:          item.Name,
		ProjectName:   item.ProjectName,
		UnitPrice:     item.UnitPrice,
		Unit:          item.Unit.String(),
		Quantity:      item.Quantity,
		Factor:        item.Factor,
		Start:         item.Start,
		End:           item.End,
		BilledDays:    item.BilledDays(),
		MeasuredUnit:  item.MeasuredUnit,
		ComponentType: item.ComponentType,
		ArticleCode:   item.ArticleCode,
		ProductCode:   item.ProductCode,
		CreditApplied: item.CreditApplied,
		TotalPrice:    item.TotalPrice(),
		Details:       item.Details,
	}
}

// NewInvoiceItemResponses maps a slice of domain items
func NewInvoiceItemResponses(items []billing.InvoiceItem) []InvoiceItemResponse {
	responses := make([]InvoiceItemResponse, len(items))
	for i := range items {
		responses[i] = NewInvoiceItemResponse(&items[i])
	}
	return responses
}

// InvoiceWithItemsResponse bundles an invoice with its items
type InvoiceWithItemsResponse struct {
	InvoiceResponse
	Items []InvoiceItemResponse `json:"items"`
}

// InvoiceTotalResponse carries the running total of an invoice
type InvoiceTotalResponse struct {
	InvoiceID string          `json:"invoice_id"`
	State     string          `json:"state"`
	Total     decimal.Decimal `json:"total"`
	AsOf      time.Time       `json:"as_of"`
}

// ListInvoicesRequest represents invoice list query parameters
type ListInvoicesRequest struct {
	ListRequest
	CustomerID string `form:"customer_id" binding:"omitempty,uuid"`
	Year       *int   `form:"year" binding:"omitempty,min=2000,max=2200"`
	Month      *int   `form:"month" binding:"omitempty,min=1,max=12"`
	State      string `form:"state" binding:"omitempty,oneof=PENDING CREATED PAID CANCELED"`
}

// CreateInvoiceItemRequest represents a manual item correction on a pending invoice
type CreateInvoiceItemRequest struct {
	ResourceKind  string           `json:"resource_kind" binding:"required,oneof=INSTANCE VOLUME PACKAGE"`
	ResourceID    string           `json:"resource_id" binding:"required,uuid"`
	Name          string           `json:"name" binding:"required,min=1,max=255"`
	UnitPrice     decimal.Decimal  `json:"unit_price" binding:"required"`
	Unit          string           `json:"unit" binding:"required,oneof=PER_DAY PER_MONTH PER_HOUR QUANTITY"`
	Start         time.Time        `json:"start" binding:"required"`
	End           time.Time        `json:"end" binding:"required"`
	Quantity      *decimal.Decimal `json:"quantity"`
	Factor        *decimal.Decimal `json:"factor"`
	MeasuredUnit  string           `json:"measured_unit" binding:"max=50"`
	ComponentType string           `json:"component_type" binding:"max=100"`
	ArticleCode   string           `json:"article_code" binding:"max=50"`
	ProductCode   string           `json:"product_code" binding:"max=50"`
	Details       map[string]any   `json:"details"`
}

// UpdateInvoiceItemRequest represents a partial item update; nil fields are unchanged
type UpdateInvoiceItemRequest struct {
	Name      *string          `json:"name" binding:"omitempty,min=1,max=255"`
	UnitPrice *decimal.Decimal `json:"unit_price"`
	Quantity  *decimal.Decimal `json:"quantity"`
	Start     *time.Time       `json:"start"`
	End       *time.Time       `json:"end"`
	Details   map[string]any   `json:"details"`
}

// RecordUsageRequest reports metered consumption of one resource component
type RecordUsageRequest struct {
	ResourceID    string          `json:"resource_id" binding:"required,uuid"`
	ComponentType string          `json:"component_type" binding:"required,min=1,max=100"`
	Usage         decimal.Decimal `json:"usage" binding:"required"`
	MeasuredUnit  string          `json:"measured_unit" binding:"max=50"`
	Period        *time.Time      `json:"period"`
}

// ComponentUsageResponse represents a recorded usage value
type ComponentUsageResponse struct {
	ResourceID    string          `json:"resource_id"`
	ComponentType string          `json:"component_type"`
	BillingPeriod time.Time       `json:"billing_period"`
	Usage         decimal.Decimal `json:"usage"`
	MeasuredUnit  string          `json:"measured_unit,omitempty"`
	RecordedAt    time.Time       `json:"recorded_at"`
}

// NewComponentUsageResponse maps a domain usage record to its API representation
func NewComponentUsageResponse(usage *billing.ComponentUsage) ComponentUsageResponse {
	return ComponentUsageResponse{
		ResourceID:    usage.ResourceID.String(),
		ComponentType: usage.ComponentType,
		BillingPeriod: usage.BillingPeriod,
		Usage:         usage.Usage,
		MeasuredUnit:  usage.MeasuredUnit,
		RecordedAt:    usage.RecordedAt,
	}
}

// ResourceEventRequest carries a resource lifecycle notification from the
// orchestration layer into the billing engine
type ResourceEventRequest struct {
	EventType  string     `json:"event_type" binding:"required,oneof=resource.created resource.plan_changed resource.terminated"`
	ResourceID string     `json:"resource_id" binding:"required,uuid"`
	NewPlanID  string     `json:"new_plan_id" binding:"omitempty,uuid"`
	OccurredAt *time.Time `json:"occurred_at"`
}

// MonthlyRunResponse summarizes one monthly generator run
type MonthlyRunResponse struct {
	Year            int      `json:"year"`
	Month           int      `json:"month"`
	CustomersTotal  int      `json:"customers_total"`
	ItemsRegistered int      `json:"items_registered"`
	Finalized       int      `json:"finalized"`
	FailureCount    int      `json:"failure_count"`
	Errors          []string `json:"errors,omitempty"`
}

// AggregationRunResponse summarizes one usage aggregation run
type AggregationRunResponse struct {
	Period       time.Time `json:"period"`
	RecordsTotal int       `json:"records_total"`
	ItemsCreated int       `json:"items_created"`
	ItemsUpdated int       `json:"items_updated"`
	SkippedCount int       `json:"skipped_count"`
	FailureCount int       `json:"failure_count"`
	Errors       []string  `json:"errors,omitempty"`
}
