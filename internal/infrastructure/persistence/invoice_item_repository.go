package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/cloudmarket/backend/internal/domain/billing"
	"github.com/cloudmarket/backend/internal/domain/shared"
	"github.com/cloudmarket/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormInvoiceItemRepository implements InvoiceItemRepository using GORM
type GormInvoiceItemRepository struct {
	db *gorm.DB
}

// NewGormInvoiceItemRepository creates a new GormInvoiceItemRepository
func NewGormInvoiceItemRepository(db *gorm.DB) *GormInvoiceItemRepository {
	return &GormInvoiceItemRepository{db: db}
}

// FindByID finds an invoice item by its ID
func (r *GormInvoiceItemRepository) FindByID(ctx context.Context, id uuid.UUID) (*billing.InvoiceItem, error) {
	var model models.InvoiceItemModel
	if err := r.db.WithContext(ctx).
		First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// ListByInvoice lists all items of an invoice
func (r *GormInvoiceItemRepository) ListByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]billing.InvoiceItem, error) {
	var itemModels []models.InvoiceItemModel
	if err := r.db.WithContext(ctx).
		Where("invoice_id = ?", invoiceID).
		Order("start_time ASC, created_at ASC").
		Find(&itemModels).Error; err != nil {
		return nil, err
	}
	items := make([]billing.InvoiceItem, len(itemModels))
	for i, model := range itemModels {
		items[i] = *model.ToDomain()
	}
	return items, nil
}

// FindAll finds invoice items matching the filter
func (r *GormInvoiceItemRepository) FindAll(ctx context.Context, filter billing.InvoiceItemFilter) ([]billing.InvoiceItem, error) {
	var itemModels []models.InvoiceItemModel
	query := r.db.WithContext(ctx).Model(&models.InvoiceItemModel{})

	if filter.InvoiceID != nil {
		query = query.Where("invoice_id = ?", *filter.InvoiceID)
	}
	if filter.ResourceID != nil {
		query = query.Where("resource_id = ?", *filter.ResourceID)
	}
	if filter.Kind != nil {
		query = query.Where("resource_kind = ?", *filter.Kind)
	}
	if filter.ProjectID != nil {
		query = query.Where("project_id = ?", *filter.ProjectID)
	}
	if filter.FromDate != nil {
		query = query.Where("end_time > ?", *filter.FromDate)
	}
	if filter.ToDate != nil {
		query = query.Where("start_time < ?", *filter.ToDate)
	}
	if filter.Page > 0 && filter.PageSize > 0 {
		query = query.Offset(filter.Offset()).Limit(filter.PageSize)
	}
	orderBy := ValidateSortField(filter.OrderBy, InvoiceItemSortFields, "start_time")
	query = query.Order(orderBy + " " + ValidateSortOrder(filter.OrderDir))

	if err := query.Find(&itemModels).Error; err != nil {
		return nil, err
	}
	items := make([]billing.InvoiceItem, len(itemModels))
	for i, model := range itemModels {
		items[i] = *model.ToDomain()
	}
	return items, nil
}

// FindLatestForResource returns the resource's item with the greatest end
// within the invoice
func (r *GormInvoiceItemRepository) FindLatestForResource(ctx context.Context, invoiceID uuid.UUID, resource billing.ResourceRef) (*billing.InvoiceItem, error) {
	var model models.InvoiceItemModel
	if err := r.db.WithContext(ctx).
		Where("invoice_id = ? AND resource_kind = ? AND resource_id = ?",
			invoiceID, resource.Kind, resource.ID).
		Order("end_time DESC").
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindOverlapping returns the most recent item of the resource whose
// interval ends on the calendar day starting at dayStart. An item ends on
// that day when its end lies in (dayStart, dayStart+24h]: a midnight end
// belongs to the preceding day under half-open interval semantics.
func (r *GormInvoiceItemRepository) FindOverlapping(ctx context.Context, invoiceID uuid.UUID, resource billing.ResourceRef, dayStart time.Time) (*billing.InvoiceItem, error) {
	nextDay := dayStart.AddDate(0, 0, 1)
	var model models.InvoiceItemModel
	if err := r.db.WithContext(ctx).
		Where("invoice_id = ? AND resource_kind = ? AND resource_id = ? AND end_time > ? AND end_time <= ?",
			invoiceID, resource.Kind, resource.ID, dayStart, nextDay).
		Order("end_time DESC").
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindUsageItem returns the usage-based item for (resource, component) on
// the invoice
func (r *GormInvoiceItemRepository) FindUsageItem(ctx context.Context, invoiceID uuid.UUID, resource billing.ResourceRef, componentType string) (*billing.InvoiceItem, error) {
	var model models.InvoiceItemModel
	if err := r.db.WithContext(ctx).
		Where("invoice_id = ? AND resource_kind = ? AND resource_id = ? AND unit = ? AND component_type = ?",
			invoiceID, resource.Kind, resource.ID, billing.UnitQuantity, componentType).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Create inserts a new invoice item
func (r *GormInvoiceItemRepository) Create(ctx context.Context, item *billing.InvoiceItem) error {
	var model models.InvoiceItemModel
	model.FromDomain(item)
	return r.db.WithContext(ctx).Create(&model).Error
}

// Save persists an existing invoice item
func (r *GormInvoiceItemRepository) Save(ctx context.Context, item *billing.InvoiceItem) error {
	var model models.InvoiceItemModel
	model.FromDomain(item)
	result := r.db.WithContext(ctx).Save(&model)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Delete removes an invoice item
func (r *GormInvoiceItemRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&models.InvoiceItemModel{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Ensure GormInvoiceItemRepository implements the repository interface
var _ billing.InvoiceItemRepository = (*GormInvoiceItemRepository)(nil)
