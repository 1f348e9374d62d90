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

// GormResourceRepository implements ResourceRepository using GORM
type GormResourceRepository struct {
	db *gorm.DB
}

// NewGormResourceRepository creates a new GormResourceRepository
func NewGormResourceRepository(db *gorm.DB) *GormResourceRepository {
	return &GormResourceRepository{db: db}
}

// FindByID finds a resource by its ID
func (r *GormResourceRepository) FindByID(ctx context.Context, id uuid.UUID) (*billing.Resource, error) {
	var model models.ResourceModel
	if err := r.db.WithContext(ctx).
		First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// ListByCustomerAndKind lists all resources of a kind owned by a customer
func (r *GormResourceRepository) ListByCustomerAndKind(ctx context.Context, customerID uuid.UUID, kind billing.ResourceKind) ([]billing.Resource, error) {
	var resourceModels []models.ResourceModel
	if err := r.db.WithContext(ctx).
		Where("customer_id = ? AND kind = ?", customerID, kind).
		Order("created_at ASC").
		Find(&resourceModels).Error; err != nil {
		return nil, err
	}
	resources := make([]billing.Resource, len(resourceModels))
	for i, model := range resourceModels {
		resources[i] = *model.ToDomain()
	}
	return resources, nil
}

// ListCustomerIDsBillableBetween returns the distinct customers owning at
// least one resource with a plan period overlapping [start, end)
func (r *GormResourceRepository) ListCustomerIDsBillableBetween(ctx context.Context, start, end time.Time) ([]uuid.UUID, error) {
	var customerIDs []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&models.ResourceModel{}).
		Distinct("resources.customer_id").
		Joins("JOIN resource_plan_periods p ON p.resource_id = resources.id").
		Where("p.start_time < ? AND (p.end_time IS NULL OR p.end_time > ?)", end, start).
		Pluck("resources.customer_id", &customerIDs).Error
	if err != nil {
		return nil, err
	}
	return customerIDs, nil
}

// Ensure GormResourceRepository implements the repository interface
var _ billing.ResourceRepository = (*GormResourceRepository)(nil)
