package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/cloudmarket/backend/internal/domain/billing"
	"github.com/cloudmarket/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// baseRegistrator carries the lookups every concrete registrator shares:
// resolving the billing owner, listing billable sources of a kind and
// locating the latest item of a resource on an invoice.
type baseRegistrator struct {
	kind         billing.ResourceKind
	resourceRepo billing.ResourceRepository
	planRepo     billing.PlanRepository
	itemRepo     billing.InvoiceItemRepository
}

// Kind returns the resource kind this registrator handles
func (r *baseRegistrator) Kind() billing.ResourceKind {
	return r.kind
}

// Customer resolves the billing owner of a resource
func (r *baseRegistrator) Customer(_ context.Context, source *billing.Resource) (uuid.UUID, error) {
	if source.CustomerID == uuid.Nil {
		return uuid.Nil, shared.NewDomainError("ORPHAN_RESOURCE",
			fmt.Sprintf("Resource %s has no billing owner", source.ID))
	}
	return source.CustomerID, nil
}

// Sources lists the billable resources of this kind for a customer
func (r *baseRegistrator) Sources(ctx context.Context, customerID uuid.UUID) ([]billing.Resource, error) {
	resources, err := r.resourceRepo.ListByCustomerAndKind(ctx, customerID, r.kind)
	if err != nil {
		return nil, err
	}
	billable := make([]billing.Resource, 0, len(resources))
	for _, res := range resources {
		if res.IsBillable() {
			billable = append(billable, res)
		}
	}
	return billable, nil
}

// FindExistingItem locates the latest item of the resource on the invoice,
// or returns nil when the resource has not been billed there yet
func (r *baseRegistrator) FindExistingItem(ctx context.Context, source *billing.Resource, invoiceID uuid.UUID) (*billing.InvoiceItem, error) {
	item, err := r.itemRepo.FindLatestForResource(ctx, invoiceID, source.Ref())
	if err != nil {
		if err == shared.ErrNotFound {
			return nil, nil
		}
		return nil, err
	}
	return item, nil
}

// plan resolves the effective plan of a resource
func (r *baseRegistrator) plan(ctx context.Context, source *billing.Resource) (*billing.Plan, error) {
	if source.PlanID == uuid.Nil {
		return nil, shared.NewDomainError("MISSING_PLAN",
			fmt.Sprintf("Resource %s has no plan assigned", source.ID))
	}
	return r.planRepo.FindByID(ctx, source.PlanID)
}

// InstanceRegistrator bills compute instances at the flat rate of their plan
type InstanceRegistrator struct {
	baseRegistrator
}

// NewInstanceRegistrator creates the registrator for compute instances
func NewInstanceRegistrator(
	resourceRepo billing.ResourceRepository,
	planRepo billing.PlanRepository,
	itemRepo billing.InvoiceItemRepository,
) *InstanceRegistrator {
	return &InstanceRegistrator{baseRegistrator{
		kind:         billing.KindInstance,
		resourceRepo: resourceRepo,
		planRepo:     planRepo,
		itemRepo:     itemRepo,
	}}
}

// BuildItem prices an instance at its plan rate over the given interval
func (r *InstanceRegistrator) BuildItem(ctx context.Context, source *billing.Resource, invoice *billing.Invoice, start, end time.Time) (*billing.InvoiceItem, error) {
	plan, err := r.plan(ctx, source)
	if err != nil {
		return nil, err
	}
	item, err := billing.NewInvoiceItem(invoice.ID, source.Ref(), r.Name(source), plan.UnitPrice, plan.Unit, start, end)
	if err != nil {
		return nil, err
	}
	item.WithProject(source.ProjectID, source.ProjectName, source.ProjectUUID).
		WithCodes(plan.ArticleCode, plan.ProductCode).
		WithDetails(r.Details(ctx, source))
	item.Details["plan_name"] = plan.Name
	return item, nil
}

// Name produces the item description for an instance
func (r *InstanceRegistrator) Name(source *billing.Resource) string {
	return fmt.Sprintf("Instance %s", source.Name)
}

// Details snapshots the priced attributes of an instance
func (r *InstanceRegistrator) Details(_ context.Context, source *billing.Resource) billing.ItemDetails {
	details := billing.ItemDetails{"resource_name": source.Name}
	for k, v := range source.Attributes {
		details[k] = v
	}
	return details
}

// VolumeRegistrator bills block storage by allocated size: the plan price is
// per allocation unit (GB), so the item rate scales with the volume size
type VolumeRegistrator struct {
	baseRegistrator
}

// NewVolumeRegistrator creates the registrator for block storage volumes
func NewVolumeRegistrator(
	resourceRepo billing.ResourceRepository,
	planRepo billing.PlanRepository,
	itemRepo billing.InvoiceItemRepository,
) *VolumeRegistrator {
	return &VolumeRegistrator{baseRegistrator{
		kind:         billing.KindVolume,
		resourceRepo: resourceRepo,
		planRepo:     planRepo,
		itemRepo:     itemRepo,
	}}
}

// BuildItem prices a volume at plan rate times allocated size
func (r *VolumeRegistrator) BuildItem(ctx context.Context, source *billing.Resource, invoice *billing.Invoice, start, end time.Time) (*billing.InvoiceItem, error) {
	plan, err := r.plan(ctx, source)
	if err != nil {
		return nil, err
	}
	if source.Size <= 0 {
		return nil, shared.NewDomainError("INVALID_SIZE",
			fmt.Sprintf("Volume %s has no allocated size", source.ID))
	}
	price := plan.UnitPrice.Mul(decimal.NewFromInt(source.Size))
	item, err := billing.NewInvoiceItem(invoice.ID, source.Ref(), r.Name(source), price, plan.Unit, start, end)
	if err != nil {
		return nil, err
	}
	item.WithProject(source.ProjectID, source.ProjectName, source.ProjectUUID).
		WithCodes(plan.ArticleCode, plan.ProductCode).
		WithDetails(r.Details(ctx, source))
	item.Details["plan_name"] = plan.Name
	return item, nil
}

// Name produces the item description for a volume
func (r *VolumeRegistrator) Name(source *billing.Resource) string {
	return fmt.Sprintf("Volume %s (%d GB)", source.Name, source.Size)
}

// Details snapshots the priced attributes of a volume
func (r *VolumeRegistrator) Details(_ context.Context, source *billing.Resource) billing.ItemDetails {
	details := billing.ItemDetails{
		"resource_name": source.Name,
		"size_gb":       source.Size,
	}
	for k, v := range source.Attributes {
		details[k] = v
	}
	return details
}

// PackageRegistrator bills tenant packages at their template plan rate.
// Package plans are historically priced per hour and prorated as
// hourly price * 24 * billed days; that conversion lives in the item
// pricing and is kept for backward compatible totals.
type PackageRegistrator struct {
	baseRegistrator
}

// NewPackageRegistrator creates the registrator for tenant packages
func NewPackageRegistrator(
	resourceRepo billing.ResourceRepository,
	planRepo billing.PlanRepository,
	itemRepo billing.InvoiceItemRepository,
) *PackageRegistrator {
	return &PackageRegistrator{baseRegistrator{
		kind:         billing.KindPackage,
		resourceRepo: resourceRepo,
		planRepo:     planRepo,
		itemRepo:     itemRepo,
	}}
}

// BuildItem prices a package at its template plan rate
func (r *PackageRegistrator) BuildItem(ctx context.Context, source *billing.Resource, invoice *billing.Invoice, start, end time.Time) (*billing.InvoiceItem, error) {
	plan, err := r.plan(ctx, source)
	if err != nil {
		return nil, err
	}
	item, err := billing.NewInvoiceItem(invoice.ID, source.Ref(), r.Name(source), plan.UnitPrice, plan.Unit, start, end)
	if err != nil {
		return nil, err
	}
	item.WithProject(source.ProjectID, source.ProjectName, source.ProjectUUID).
		WithCodes(plan.ArticleCode, plan.ProductCode).
		WithDetails(r.Details(ctx, source))
	item.Details["template_name"] = plan.Name
	return item, nil
}

// Name produces the item description for a package
func (r *PackageRegistrator) Name(source *billing.Resource) string {
	return fmt.Sprintf("Package %s", source.Name)
}

// Details snapshots the priced attributes of a package
func (r *PackageRegistrator) Details(_ context.Context, source *billing.Resource) billing.ItemDetails {
	details := billing.ItemDetails{"tenant_name": source.Name}
	for k, v := range source.Attributes {
		details[k] = v
	}
	return details
}

// Ensure the concrete registrators satisfy the strategy interface
var _ billing.Registrator = (*InstanceRegistrator)(nil)
var _ billing.Registrator = (*VolumeRegistrator)(nil)
var _ billing.Registrator = (*PackageRegistrator)(nil)
