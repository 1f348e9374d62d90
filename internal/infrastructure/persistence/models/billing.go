package models

import (
	"time"

	"github.com/cloudmarket/backend/internal/domain/billing"
	"github.com/cloudmarket/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InvoiceModel is the persistence model for the Invoice aggregate root.
type InvoiceModel struct {
	AggregateModel
	CustomerID  uuid.UUID            `gorm:"type:uuid;not null;uniqueIndex:idx_invoice_customer_month,priority:1"`
	Year        int                  `gorm:"not null;uniqueIndex:idx_invoice_customer_month,priority:2"`
	Month       int                  `gorm:"not null;uniqueIndex:idx_invoice_customer_month,priority:3"`
	State       billing.InvoiceState `gorm:"type:varchar(20);not null;default:'PENDING';index"`
	TaxPercent  decimal.Decimal      `gorm:"type:decimal(5,2);not null"`
	InvoiceDate *time.Time           `gorm:"index"`
	Total       decimal.Decimal      `gorm:"type:numeric(20,7);not null"`
}

// TableName returns the table name for GORM
func (InvoiceModel) TableName() string {
	return "invoices"
}

// ToDomain converts the persistence model to a domain Invoice.
func (m *InvoiceModel) ToDomain() *billing.Invoice {
	inv := &billing.Invoice{
		CustomerID:  m.CustomerID,
		Year:        m.Year,
		Month:       time.Month(m.Month),
		State:       m.State,
		TaxPercent:  m.TaxPercent,
		InvoiceDate: m.InvoiceDate,
		Total:       m.Total,
	}
	m.PopulateAggregateRoot(&inv.BaseAggregateRoot)
	return inv
}

// FromDomain populates the persistence model from a domain Invoice.
func (m *InvoiceModel) FromDomain(inv *billing.Invoice) {
	m.FromDomainAggregateRoot(inv.BaseAggregateRoot)
	m.CustomerID = inv.CustomerID
	m.Year = inv.Year
	m.Month = int(inv.Month)
	m.State = inv.State
	m.TaxPercent = inv.TaxPercent
	m.InvoiceDate = inv.InvoiceDate
	m.Total = inv.Total
}

// InvoiceItemModel is the persistence model for invoice line items.
type InvoiceItemModel struct {
	BaseModel
	InvoiceID     uuid.UUID            `gorm:"type:uuid;not null;index;index:idx_item_invoice_resource,priority:1"`
	ResourceKind  billing.ResourceKind `gorm:"type:varchar(20);not null;index:idx_item_invoice_resource,priority:2"`
	ResourceID    uuid.UUID            `gorm:"type:uuid;not null;index:idx_item_invoice_resource,priority:3"`
	Name          string               `gorm:"type:varchar(500);not null"`
	ProjectID     uuid.UUID            `gorm:"type:uuid;index"`
	ProjectName   string               `gorm:"type:varchar(200)"`
	ProjectUUID   string               `gorm:"type:varchar(64)"`
	UnitPrice     decimal.Decimal      `gorm:"type:numeric(20,7);not null"`
	Unit          billing.BillingUnit  `gorm:"type:varchar(20);not null"`
	Quantity      decimal.Decimal      `gorm:"type:numeric(20,7);not null;default:1"`
	Factor        decimal.Decimal      `gorm:"type:numeric(20,7);not null;default:1"`
	// "end" is reserved in SQL, so the interval columns carry explicit names
	Start time.Time `gorm:"column:start_time;not null"`
	End   time.Time `gorm:"column:end_time;not null;index"`

	MeasuredUnit  string              `gorm:"type:varchar(30)"`
	ComponentType string              `gorm:"type:varchar(100);index"`
	ArticleCode   string              `gorm:"type:varchar(30)"`
	ProductCode   string              `gorm:"type:varchar(30)"`
	CreditApplied decimal.Decimal     `gorm:"type:numeric(20,7);not null"`
	Details       billing.ItemDetails `gorm:"type:jsonb;default:'{}'"`
}

// TableName returns the table name for GORM
func (InvoiceItemModel) TableName() string {
	return "invoice_items"
}

// ToDomain converts the persistence model to a domain InvoiceItem.
func (m *InvoiceItemModel) ToDomain() *billing.InvoiceItem {
	return &billing.InvoiceItem{
		BaseEntity: shared.BaseEntity{
			ID:        m.ID,
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		InvoiceID:     m.InvoiceID,
		Resource:      billing.ResourceRef{Kind: m.ResourceKind, ID: m.ResourceID},
		Name:          m.Name,
		ProjectID:     m.ProjectID,
		ProjectName:   m.ProjectName,
		ProjectUUID:   m.ProjectUUID,
		UnitPrice:     m.UnitPrice,
		Unit:          m.Unit,
		Quantity:      m.Quantity,
		Factor:        m.Factor,
		Start:         m.Start,
		End:           m.End,
		MeasuredUnit:  m.MeasuredUnit,
		ComponentType: m.ComponentType,
		ArticleCode:   m.ArticleCode,
		ProductCode:   m.ProductCode,
		CreditApplied: m.CreditApplied,
		Details:       m.Details,
	}
}

// FromDomain populates the persistence model from a domain InvoiceItem.
func (m *InvoiceItemModel) FromDomain(item *billing.InvoiceItem) {
	m.FromDomainBaseEntity(item.BaseEntity)
	m.InvoiceID = item.InvoiceID
	m.ResourceKind = item.Resource.Kind
	m.ResourceID = item.Resource.ID
	m.Name = item.Name
	m.ProjectID = item.ProjectID
	m.ProjectName = item.ProjectName
	m.ProjectUUID = item.ProjectUUID
	m.UnitPrice = item.UnitPrice
	m.Unit = item.Unit
	m.Quantity = item.Quantity
	m.Factor = item.Factor
	m.Start = item.Start
	m.End = item.End
	m.MeasuredUnit = item.MeasuredUnit
	m.ComponentType = item.ComponentType
	m.ArticleCode = item.ArticleCode
	m.ProductCode = item.ProductCode
	m.CreditApplied = item.CreditApplied
	m.Details = item.Details
}

// ResourcePlanPeriodModel is the persistence model for plan periods.
// The at-most-one-open-period invariant is enforced by a partial unique
// index on (resource_id) WHERE end IS NULL, created in the migrations.
type ResourcePlanPeriodModel struct {
	BaseModel
	ResourceID uuid.UUID  `gorm:"type:uuid;not null;index"`
	PlanID     uuid.UUID  `gorm:"type:uuid;not null;index"`
	Start      time.Time  `gorm:"column:start_time;not null"`
	End        *time.Time `gorm:"column:end_time;index"`
}

// TableName returns the table name for GORM
func (ResourcePlanPeriodModel) TableName() string {
	return "resource_plan_periods"
}

// ToDomain converts the persistence model to a domain ResourcePlanPeriod.
func (m *ResourcePlanPeriodModel) ToDomain() *billing.ResourcePlanPeriod {
	return &billing.ResourcePlanPeriod{
		BaseEntity: m.BaseModel.ToDomain(),
		ResourceID: m.ResourceID,
		PlanID:     m.PlanID,
		Start:      m.Start,
		End:        m.End,
	}
}

// FromDomain populates the persistence model from a domain ResourcePlanPeriod.
func (m *ResourcePlanPeriodModel) FromDomain(p *billing.ResourcePlanPeriod) {
	m.FromDomainBaseEntity(p.BaseEntity)
	m.ResourceID = p.ResourceID
	m.PlanID = p.PlanID
	m.Start = p.Start
	m.End = p.End
}

// ResourceModel is the persistence model for the provisioned resource read model.
type ResourceModel struct {
	BaseModel
	Kind        billing.ResourceKind  `gorm:"type:varchar(20);not null;index:idx_resource_customer_kind,priority:2"`
	Name        string                `gorm:"type:varchar(200);not null"`
	CustomerID  uuid.UUID             `gorm:"type:uuid;not null;index:idx_resource_customer_kind,priority:1"`
	ProjectID   uuid.UUID             `gorm:"type:uuid;index"`
	ProjectName string                `gorm:"type:varchar(200)"`
	ProjectUUID string                `gorm:"type:varchar(64)"`
	PlanID      uuid.UUID             `gorm:"type:uuid;index"`
	State       billing.ResourceState `gorm:"type:varchar(20);not null;index"`
	Attributes  billing.ItemDetails   `gorm:"type:jsonb;default:'{}'"`
	Size        int64                 `gorm:"not null;default:0"`
}

// TableName returns the table name for GORM
func (ResourceModel) TableName() string {
	return "resources"
}

// ToDomain converts the persistence model to a domain Resource.
func (m *ResourceModel) ToDomain() *billing.Resource {
	return &billing.Resource{
		BaseEntity:  m.BaseModel.ToDomain(),
		Kind:        m.Kind,
		Name:        m.Name,
		CustomerID:  m.CustomerID,
		ProjectID:   m.ProjectID,
		ProjectName: m.ProjectName,
		ProjectUUID: m.ProjectUUID,
		PlanID:      m.PlanID,
		State:       m.State,
		Attributes:  m.Attributes,
		Size:        m.Size,
	}
}

// CustomerModel is the persistence model for the customer read model.
type CustomerModel struct {
	BaseModel
	Name           string `gorm:"type:varchar(200);not null"`
	TaxPercent     *int
	PaymentDueDays *int
}

// TableName returns the table name for GORM
func (CustomerModel) TableName() string {
	return "customers"
}

// ToDomain converts the persistence model to a domain Customer.
func (m *CustomerModel) ToDomain() *billing.Customer {
	return &billing.Customer{
		BaseEntity:     m.BaseModel.ToDomain(),
		Name:           m.Name,
		TaxPercent:     m.TaxPercent,
		PaymentDueDays: m.PaymentDueDays,
	}
}

// PlanModel is the persistence model for the plan catalog.
type PlanModel struct {
	BaseModel
	Name        string              `gorm:"type:varchar(200);not null"`
	UnitPrice   decimal.Decimal     `gorm:"type:numeric(20,7);not null"`
	Unit        billing.BillingUnit `gorm:"type:varchar(20);not null"`
	ArticleCode string              `gorm:"type:varchar(30)"`
	ProductCode string              `gorm:"type:varchar(30)"`
	Archived    bool                `gorm:"not null;default:false"`
}

// TableName returns the table name for GORM
func (PlanModel) TableName() string {
	return "plans"
}

// ToDomain converts the persistence model to a domain Plan.
func (m *PlanModel) ToDomain() *billing.Plan {
	return &billing.Plan{
		BaseEntity:  m.BaseModel.ToDomain(),
		Name:        m.Name,
		UnitPrice:   m.UnitPrice,
		Unit:        m.Unit,
		ArticleCode: m.ArticleCode,
		ProductCode: m.ProductCode,
		Archived:    m.Archived,
	}
}

// PlanComponentModel is the persistence model for priced plan components.
type PlanComponentModel struct {
	BaseModel
	PlanID        uuid.UUID           `gorm:"type:uuid;not null;uniqueIndex:idx_component_plan_type,priority:1"`
	ComponentType string              `gorm:"type:varchar(100);not null;uniqueIndex:idx_component_plan_type,priority:2"`
	MeasuredUnit  string              `gorm:"type:varchar(30)"`
	BillingKind   billing.BillingKind `gorm:"type:varchar(20);not null"`
	Price         decimal.Decimal     `gorm:"type:numeric(20,7);not null"`
	Factor        decimal.Decimal     `gorm:"type:numeric(20,7);not null;default:1"`
	Amount        decimal.Decimal     `gorm:"type:numeric(20,7);not null;default:0"`
}

// TableName returns the table name for GORM
func (PlanComponentModel) TableName() string {
	return "plan_components"
}

// ToDomain converts the persistence model to a domain PlanComponent.
func (m *PlanComponentModel) ToDomain() *billing.PlanComponent {
	return &billing.PlanComponent{
		BaseEntity:    m.BaseModel.ToDomain(),
		PlanID:        m.PlanID,
		ComponentType: m.ComponentType,
		MeasuredUnit:  m.MeasuredUnit,
		BillingKind:   m.BillingKind,
		Price:         m.Price,
		Factor:        m.Factor,
		Amount:        m.Amount,
	}
}

// ComponentUsageModel is the persistence model for metered usage records.
type ComponentUsageModel struct {
	BaseModel
	ResourceID    uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_usage_resource_component_period,priority:1"`
	ComponentType string          `gorm:"type:varchar(100);not null;uniqueIndex:idx_usage_resource_component_period,priority:2"`
	BillingPeriod time.Time       `gorm:"not null;uniqueIndex:idx_usage_resource_component_period,priority:3"`
	Usage         decimal.Decimal `gorm:"type:numeric(20,7);not null"`
	MeasuredUnit  string          `gorm:"type:varchar(30)"`
	RecordedAt    time.Time       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (ComponentUsageModel) TableName() string {
	return "component_usages"
}

// ToDomain converts the persistence model to a domain ComponentUsage.
func (m *ComponentUsageModel) ToDomain() *billing.ComponentUsage {
	return &billing.ComponentUsage{
		BaseEntity:    m.BaseModel.ToDomain(),
		ResourceID:    m.ResourceID,
		ComponentType: m.ComponentType,
		BillingPeriod: m.BillingPeriod,
		Usage:         m.Usage,
		MeasuredUnit:  m.MeasuredUnit,
		RecordedAt:    m.RecordedAt,
	}
}

// FromDomain populates the persistence model from a domain ComponentUsage.
func (m *ComponentUsageModel) FromDomain(u *billing.ComponentUsage) {
	m.FromDomainBaseEntity(u.BaseEntity)
	m.ResourceID = u.ResourceID
	m.ComponentType = u.ComponentType
	m.BillingPeriod = u.BillingPeriod
	m.Usage = u.Usage
	m.MeasuredUnit = u.MeasuredUnit
	m.RecordedAt = u.RecordedAt
}

// CreditModel is the persistence model for prepaid customer credits.
type CreditModel struct {
	BaseModel
	CustomerID uuid.UUID       `gorm:"type:uuid;not null;index"`
	Value      decimal.Decimal `gorm:"type:numeric(20,7);not null"`
	EndDate    *time.Time      `gorm:"index"`
}

// TableName returns the table name for GORM
func (CreditModel) TableName() string {
	return "credits"
}

// ToDomain converts the persistence model to a domain Credit.
func (m *CreditModel) ToDomain() *billing.Credit {
	return &billing.Credit{
		BaseEntity: m.BaseModel.ToDomain(),
		CustomerID: m.CustomerID,
		Value:      m.Value,
		EndDate:    m.EndDate,
	}
}

// FromDomain populates the persistence model from a domain Credit.
func (m *CreditModel) FromDomain(c *billing.Credit) {
	m.FromDomainBaseEntity(c.BaseEntity)
	m.CustomerID = c.CustomerID
	m.Value = c.Value
	m.EndDate = c.EndDate
}
