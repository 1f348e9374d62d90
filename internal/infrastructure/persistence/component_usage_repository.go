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
	"gorm.io/gorm/clause"
)

// GormComponentUsageRepository implements ComponentUsageRepository using GORM
type GormComponentUsageRepository struct {
	db *gorm.DB
}

// NewGormComponentUsageRepository creates a new GormComponentUsageRepository
func NewGormComponentUsageRepository(db *gorm.DB) *GormComponentUsageRepository {
	return &GormComponentUsageRepository{db: db}
}

// ListForPeriod lists all usage records of the billing period
func (r *GormComponentUsageRepository) ListForPeriod(ctx context.Context, period time.Time) ([]billing.ComponentUsage, error) {
	var usageModels []models.ComponentUsageModel
	if err := r.db.WithContext(ctx).
		Where("billing_period = ?", period).
		Order("resource_id ASC, component_type ASC").
		Find(&usageModels).Error; err != nil {
		return nil, err
	}
	usages := make([]billing.ComponentUsage, len(usageModels))
	for i, model := range usageModels {
		usages[i] = *model.ToDomain()
	}
	return usages, nil
}

// FindForResource finds the usage record keyed by (resource, component, period)
func (r *GormComponentUsageRepository) FindForResource(ctx context.Context, resourceID uuid.UUID, componentType string, period time.Time) (*billing.ComponentUsage, error) {
	var model models.ComponentUsageModel
	if err := r.db.WithContext(ctx).
		Where("resource_id = ? AND component_type = ? AND billing_period = ?",
			resourceID, componentType, period).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Upsert inserts or replaces the record keyed by
// (resource, component, billing period). The latest reported value wins.
func (r *GormComponentUsageRepository) Upsert(ctx context.Context, usage *billing.ComponentUsage) error {
	var model models.ComponentUsageModel
	model.FromDomain(usage)
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "resource_id"}, {Name: "component_type"}, {Name: "billing_period"},
		},
		DoUpdates: clause.AssignmentColumns([]string{"usage", "measured_unit", "recorded_at", "updated_at"}),
	}).Create(&model).Error
}

// Ensure GormComponentUsageRepository implements the repository interface
var _ billing.ComponentUsageRepository = (*GormComponentUsageRepository)(nil)
