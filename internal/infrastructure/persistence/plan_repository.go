package persistence

import (
	"context"
	"errors"

	"github.com/cloudmarket/backend/internal/domain/billing"
	"github.com/cloudmarket/backend/internal/domain/shared"
	"github.com/cloudmarket/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormPlanRepository implements PlanRepository using GORM. The catalog is
// read-only for the billing engine; plans are managed upstream.
type GormPlanRepository struct {
	db *gorm.DB
}

// NewGormPlanRepository creates a new GormPlanRepository
func NewGormPlanRepository(db *gorm.DB) *GormPlanRepository {
	return &GormPlanRepository{db: db}
}

// FindByID finds a plan by its ID
func (r *GormPlanRepository) FindByID(ctx context.Context, id uuid.UUID) (*billing.Plan, error) {
	var model models.PlanModel
	if err := r.db.WithContext(ctx).
		First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindComponent finds a priced component of a plan by component type
func (r *GormPlanRepository) FindComponent(ctx context.Context, planID uuid.UUID, componentType string) (*billing.PlanComponent, error) {
	var model models.PlanComponentModel
	if err := r.db.WithContext(ctx).
		Where("plan_id = ? AND component_type = ?", planID, componentType).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// ListComponents lists all priced components of a plan
func (r *GormPlanRepository) ListComponents(ctx context.Context, planID uuid.UUID) ([]billing.PlanComponent, error) {
	var componentModels []models.PlanComponentModel
	if err := r.db.WithContext(ctx).
		Where("plan_id = ?", planID).
		Order("component_type ASC").
		Find(&componentModels).Error; err != nil {
		return nil, err
	}
	components := make([]billing.PlanComponent, len(componentModels))
	for i, model := range componentModels {
		components[i] = *model.ToDomain()
	}
	return components, nil
}

// Ensure GormPlanRepository implements the repository interface
var _ billing.PlanRepository = (*GormPlanRepository)(nil)
