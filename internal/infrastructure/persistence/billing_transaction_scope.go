package persistence

import (
	"context"

	appbilling "github.com/cloudmarket/backend/internal/application/billing"
	"github.com/cloudmarket/backend/internal/domain/billing"
	"gorm.io/gorm"
)

// GormTransactionScope implements TransactionScope using GORM transactions.
// It provides atomic execution of multiple repository operations.
type GormTransactionScope struct {
	db *gorm.DB
}

// NewGormTransactionScope creates a new GormTransactionScope.
func NewGormTransactionScope(db *gorm.DB) *GormTransactionScope {
	return &GormTransactionScope{db: db}
}

// Execute runs the given function within a database transaction.
// If the function returns an error, the transaction is rolled back.
// If the function succeeds, the transaction is committed.
func (s *GormTransactionScope) Execute(ctx context.Context, fn func(repos appbilling.TransactionalRepositories) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repos := &gormTransactionalRepositories{tx: tx}
		return fn(repos)
	})
}

// gormTransactionalRepositories provides access to all repositories within a transaction.
type gormTransactionalRepositories struct {
	tx *gorm.DB
}

// InvoiceRepo returns the invoice repository scoped to the current transaction.
func (r *gormTransactionalRepositories) InvoiceRepo() billing.InvoiceRepository {
	return NewGormInvoiceRepository(r.tx)
}

// ItemRepo returns the invoice item repository scoped to the current transaction.
func (r *gormTransactionalRepositories) ItemRepo() billing.InvoiceItemRepository {
	return NewGormInvoiceItemRepository(r.tx)
}

// PeriodRepo returns the plan period repository scoped to the current transaction.
func (r *gormTransactionalRepositories) PeriodRepo() billing.ResourcePlanPeriodRepository {
	return NewGormResourcePlanPeriodRepository(r.tx)
}

// CreditRepo returns the credit repository scoped to the current transaction.
func (r *gormTransactionalRepositories) CreditRepo() billing.CreditRepository {
	return NewGormCreditRepository(r.tx)
}

// UsageRepo returns the component usage repository scoped to the current transaction.
func (r *gormTransactionalRepositories) UsageRepo() billing.ComponentUsageRepository {
	return NewGormComponentUsageRepository(r.tx)
}

// SavePoint marks a named savepoint within the current transaction.
// Statements that may fail by design (the insert racing the unique invoice
// constraint) run behind one, because postgres rejects everything after a
// failed statement until the transaction rolls back to a savepoint.
func (r *gormTransactionalRepositories) SavePoint(name string) error {
	return r.tx.SavePoint(name).Error
}

// RollbackTo rolls the current transaction back to the named savepoint.
func (r *gormTransactionalRepositories) RollbackTo(name string) error {
	return r.tx.RollbackTo(name).Error
}

// Ensure GormTransactionScope implements TransactionScope
var _ appbilling.TransactionScope = (*GormTransactionScope)(nil)

// Ensure gormTransactionalRepositories implements TransactionalRepositories
var _ appbilling.TransactionalRepositories = (*gormTransactionalRepositories)(nil)
