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

// GormResourcePlanPeriodRepository implements ResourcePlanPeriodRepository
// using GORM. A partial unique index on (resource_id) WHERE end_time IS NULL
// backs the at-most-one-open-period invariant at the storage level.
type GormResourcePlanPeriodRepository struct {
	db *gorm.DB
}

// NewGormResourcePlanPeriodRepository creates a new GormResourcePlanPeriodRepository
func NewGormResourcePlanPeriodRepository(db *gorm.DB) *GormResourcePlanPeriodRepository {
	return &GormResourcePlanPeriodRepository{db: db}
}

// FindOpen returns the single open period of the resource
func (r *GormResourcePlanPeriodRepository) FindOpen(ctx context.Context, resourceID uuid.UUID) (*billing.ResourcePlanPeriod, error) {
	var model models.ResourcePlanPeriodModel
	if err := r.db.WithContext(ctx).
		Where("resource_id = ? AND end_time IS NULL", resourceID).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Create inserts a new plan period. A unique violation means another open
// period already exists for the resource.
func (r *GormResourcePlanPeriodRepository) Create(ctx context.Context, period *billing.ResourcePlanPeriod) error {
	var model models.ResourcePlanPeriodModel
	model.FromDomain(period)
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		if isUniqueViolation(err) {
			return billing.ErrPeriodAlreadyOpen
		}
		return err
	}
	return nil
}

// Save persists an existing plan period
func (r *GormResourcePlanPeriodRepository) Save(ctx context.Context, period *billing.ResourcePlanPeriod) error {
	var model models.ResourcePlanPeriodModel
	model.FromDomain(period)
	result := r.db.WithContext(ctx).Save(&model)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// ListByResource lists all periods of a resource, oldest first
func (r *GormResourcePlanPeriodRepository) ListByResource(ctx context.Context, resourceID uuid.UUID) ([]billing.ResourcePlanPeriod, error) {
	var periodModels []models.ResourcePlanPeriodModel
	if err := r.db.WithContext(ctx).
		Where("resource_id = ?", resourceID).
		Order("start_time ASC").
		Find(&periodModels).Error; err != nil {
		return nil, err
	}
	periods := make([]billing.ResourcePlanPeriod, len(periodModels))
	for i, model := range periodModels {
		periods[i] = *model.ToDomain()
	}
	return periods, nil
}

// Ensure GormResourcePlanPeriodRepository implements the repository interface
var _ billing.ResourcePlanPeriodRepository = (*GormResourcePlanPeriodRepository)(nil)
