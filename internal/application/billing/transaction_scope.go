package billing

import (
	"context"

	"github.com/cloudmarket/backend/internal/domain/billing"
)

// TransactionScope provides transactional access to billing repositories.
// When a function is executed within a transaction scope, all repository
// operations are part of the same database transaction and commit or roll
// back atomically.
//
// The registration path depends on this: overlap resolution mutates an
// existing item and creates a new one, and a partial write would leave a
// contested day with zero or two owners.
type TransactionScope interface {
	// Execute runs the given function within a database transaction.
	// If the function returns an error, the transaction is rolled back.
	// If the function succeeds, the transaction is committed.
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories provides access to the billing repositories
// within a transaction. All repositories returned share the same underlying
// database transaction.
type TransactionalRepositories interface {
	// InvoiceRepo returns the invoice repository scoped to the current transaction
	InvoiceRepo() billing.InvoiceRepository
	// ItemRepo returns the invoice item repository scoped to the current transaction
	ItemRepo() billing.InvoiceItemRepository
	// PeriodRepo returns the plan period repository scoped to the current transaction
	PeriodRepo() billing.ResourcePlanPeriodRepository
	// CreditRepo returns the credit repository scoped to the current transaction
	CreditRepo() billing.CreditRepository
	// UsageRepo returns the component usage repository scoped to the current transaction
	UsageRepo() billing.ComponentUsageRepository
}

// NoOpTransactionScope is a transaction scope that doesn't actually use
// transactions. Useful for testing or when transaction support is not
// required.
type NoOpTransactionScope struct {
	invoiceRepo billing.InvoiceRepository
	itemRepo    billing.InvoiceItemRepository
	periodRepo  billing.ResourcePlanPeriodRepository
	creditRepo  billing.CreditRepository
	usageRepo   billing.ComponentUsageRepository
}

// NewNoOpTransactionScope creates a NoOpTransactionScope with the given repositories.
func NewNoOpTransactionScope(
	invoiceRepo billing.InvoiceRepository,
	itemRepo billing.InvoiceItemRepository,
	periodRepo billing.ResourcePlanPeriodRepository,
	creditRepo billing.CreditRepository,
	usageRepo billing.ComponentUsageRepository,
) *NoOpTransactionScope {
	return &NoOpTransactionScope{
		invoiceRepo: invoiceRepo,
		itemRepo:    itemRepo,
		periodRepo:  periodRepo,
		creditRepo:  creditRepo,
		usageRepo:   usageRepo,
	}
}

// Execute runs the function without a real transaction.
func (s *NoOpTransactionScope) Execute(_ context.Context, fn func(repos TransactionalRepositories) error) error {
	return fn(s)
}

// InvoiceRepo returns the invoice repository.
func (s *NoOpTransactionScope) InvoiceRepo() billing.InvoiceRepository {
	return s.invoiceRepo
}

// ItemRepo returns the invoice item repository.
func (s *NoOpTransactionScope) ItemRepo() billing.InvoiceItemRepository {
	return s.itemRepo
}

// PeriodRepo returns the plan period repository.
func (s *NoOpTransactionScope) PeriodRepo() billing.ResourcePlanPeriodRepository {
	return s.periodRepo
}

// CreditRepo returns the credit repository.
func (s *NoOpTransactionScope) CreditRepo() billing.CreditRepository {
	return s.creditRepo
}

// UsageRepo returns the component usage repository.
func (s *NoOpTransactionScope) UsageRepo() billing.ComponentUsageRepository {
	return s.usageRepo
}

// Ensure NoOpTransactionScope implements both interfaces
var _ TransactionScope = (*NoOpTransactionScope)(nil)
var _ TransactionalRepositories = (*NoOpTransactionScope)(nil)
