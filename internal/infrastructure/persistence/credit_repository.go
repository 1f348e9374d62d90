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

// GormCreditRepository implements CreditRepository using GORM
type GormCreditRepository struct {
	db *gorm.DB
}

// NewGormCreditRepository creates a new GormCreditRepository
func NewGormCreditRepository(db *gorm.DB) *GormCreditRepository {
	return &GormCreditRepository{db: db}
}

// FindActiveByCustomer returns the customer's consumable credit at the
// given instant, oldest grant first
func (r *GormCreditRepository) FindActiveByCustomer(ctx context.Context, customerID uuid.UUID, now time.Time) (*billing.Credit, error) {
	var model models.CreditModel
	if err := r.db.WithContext(ctx).
		Where("customer_id = ? AND value > 0 AND (end_date IS NULL OR end_date > ?)", customerID, now).
		Order("created_at ASC").
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Create inserts a new credit
func (r *GormCreditRepository) Create(ctx context.Context, credit *billing.Credit) error {
	var model models.CreditModel
	model.FromDomain(credit)
	return r.db.WithContext(ctx).Create(&model).Error
}

// Save persists an existing credit
func (r *GormCreditRepository) Save(ctx context.Context, credit *billing.Credit) error {
	var model models.CreditModel
	model.FromDomain(credit)
	result := r.db.WithContext(ctx).Save(&model)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Ensure GormCreditRepository implements the repository interface
var _ billing.CreditRepository = (*GormCreditRepository)(nil)
