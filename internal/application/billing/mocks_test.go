package billing

import (
	"context"
	"time"

	"github.com/cloudmarket/backend/internal/domain/billing"
	"github.com/cloudmarket/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// mockInvoiceRepo is a mock implementation of billing.InvoiceRepository
type mockInvoiceRepo struct {
	mock.Mock
}

func (m *mockInvoiceRepo) FindByID(ctx context.Context, id uuid.UUID) (*billing.Invoice, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.Invoice), args.Error(1)
}

func (m *mockInvoiceRepo) FindByCustomerMonth(ctx context.Context, customerID uuid.UUID, year int, month time.Month) (*billing.Invoice, error) {
	args := m.Called(ctx, customerID, year, month)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.Invoice), args.Error(1)
}

func (m *mockInvoiceRepo) Create(ctx context.Context, invoice *billing.Invoice) error {
	args := m.Called(ctx, invoice)
	return args.Error(0)
}

func (m *mockInvoiceRepo) Save(ctx context.Context, invoice *billing.Invoice) error {
	args := m.Called(ctx, invoice)
	return args.Error(0)
}

func (m *mockInvoiceRepo) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockInvoiceRepo) FindAll(ctx context.Context, filter billing.InvoiceFilter) ([]billing.Invoice, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]billing.Invoice), args.Error(1)
}

func (m *mockInvoiceRepo) Count(ctx context.Context, filter billing.InvoiceFilter) (int64, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockInvoiceRepo) ListByStateForMonth(ctx context.Context, state billing.InvoiceState, year int, month time.Month) ([]billing.Invoice, error) {
	args := m.Called(ctx, state, year, month)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]billing.Invoice), args.Error(1)
}

// mockItemRepo is a mock implementation of billing.InvoiceItemRepository
type mockItemRepo struct {
	mock.Mock
}

func (m *mockItemRepo) FindByID(ctx context.Context, id uuid.UUID) (*billing.InvoiceItem, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.InvoiceItem), args.Error(1)
}

func (m *mockItemRepo) ListByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]billing.InvoiceItem, error) {
	args := m.Called(ctx, invoiceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]billing.InvoiceItem), args.Error(1)
}

func (m *mockItemRepo) FindAll(ctx context.Context, filter billing.InvoiceItemFilter) ([]billing.InvoiceItem, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]billing.InvoiceItem), args.Error(1)
}

func (m *mockItemRepo) FindLatestForResource(ctx context.Context, invoiceID uuid.UUID, resource billing.ResourceRef) (*billing.InvoiceItem, error) {
	args := m.Called(ctx, invoiceID, resource)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.InvoiceItem), args.Error(1)
}

func (m *mockItemRepo) FindOverlapping(ctx context.Context, invoiceID uuid.UUID, resource billing.ResourceRef, dayStart time.Time) (*billing.InvoiceItem, error) {
	args := m.Called(ctx, invoiceID, resource, dayStart)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.InvoiceItem), args.Error(1)
}

func (m *mockItemRepo) FindUsageItem(ctx context.Context, invoiceID uuid.UUID, resource billing.ResourceRef, componentType string) (*billing.InvoiceItem, error) {
	args := m.Called(ctx, invoiceID, resource, componentType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.InvoiceItem), args.Error(1)
}

func (m *mockItemRepo) Create(ctx context.Context, item *billing.InvoiceItem) error {
	args := m.Called(ctx, item)
	return args.Error(0)
}

func (m *mockItemRepo) Save(ctx context.Context, item *billing.InvoiceItem) error {
	args := m.Called(ctx, item)
	return args.Error(0)
}

func (m *mockItemRepo) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// mockPeriodRepo is a mock implementation of billing.ResourcePlanPeriodRepository
type mockPeriodRepo struct {
	mock.Mock
}

func (m *mockPeriodRepo) FindOpen(ctx context.Context, resourceID uuid.UUID) (*billing.ResourcePlanPeriod, error) {
	args := m.Called(ctx, resourceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.ResourcePlanPeriod), args.Error(1)
}

func (m *mockPeriodRepo) Create(ctx context.Context, period *billing.ResourcePlanPeriod) error {
	args := m.Called(ctx, period)
	return args.Error(0)
}

func (m *mockPeriodRepo) Save(ctx context.Context, period *billing.ResourcePlanPeriod) error {
	args := m.Called(ctx, period)
	return args.Error(0)
}

func (m *mockPeriodRepo) ListByResource(ctx context.Context, resourceID uuid.UUID) ([]billing.ResourcePlanPeriod, error) {
	args := m.Called(ctx, resourceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]billing.ResourcePlanPeriod), args.Error(1)
}

// mockCreditRepo is a mock implementation of billing.CreditRepository
type mockCreditRepo struct {
	mock.Mock
}

func (m *mockCreditRepo) FindActiveByCustomer(ctx context.Context, customerID uuid.UUID, now time.Time) (*billing.Credit, error) {
	args := m.Called(ctx, customerID, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.Credit), args.Error(1)
}

func (m *mockCreditRepo) Create(ctx context.Context, credit *billing.Credit) error {
	args := m.Called(ctx, credit)
	return args.Error(0)
}

func (m *mockCreditRepo) Save(ctx context.Context, credit *billing.Credit) error {
	args := m.Called(ctx, credit)
	return args.Error(0)
}

// mockUsageRepo is a mock implementation of billing.ComponentUsageRepository
type mockUsageRepo struct {
	mock.Mock
}

func (m *mockUsageRepo) ListForPeriod(ctx context.Context, period time.Time) ([]billing.ComponentUsage, error) {
	args := m.Called(ctx, period)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]billing.ComponentUsage), args.Error(1)
}

func (m *mockUsageRepo) FindForResource(ctx context.Context, resourceID uuid.UUID, componentType string, period time.Time) (*billing.ComponentUsage, error) {
	args := m.Called(ctx, resourceID, componentType, period)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.ComponentUsage), args.Error(1)
}

func (m *mockUsageRepo) Upsert(ctx context.Context, usage *billing.ComponentUsage) error {
	args := m.Called(ctx, usage)
	return args.Error(0)
}

// mockCustomerRepo is a mock implementation of billing.CustomerRepository
type mockCustomerRepo struct {
	mock.Mock
}

func (m *mockCustomerRepo) FindByID(ctx context.Context, id uuid.UUID) (*billing.Customer, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.Customer), args.Error(1)
}

func (m *mockCustomerRepo) FindAll(ctx context.Context, filter shared.Filter) ([]billing.Customer, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]billing.Customer), args.Error(1)
}

// mockResourceRepo is a mock implementation of billing.ResourceRepository
type mockResourceRepo struct {
	mock.Mock
}

func (m *mockResourceRepo) FindByID(ctx context.Context, id uuid.UUID) (*billing.Resource, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.Resource), args.Error(1)
}

func (m *mockResourceRepo) ListByCustomerAndKind(ctx context.Context, customerID uuid.UUID, kind billing.ResourceKind) ([]billing.Resource, error) {
	args := m.Called(ctx, customerID, kind)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]billing.Resource), args.Error(1)
}

func (m *mockResourceRepo) ListCustomerIDsBillableBetween(ctx context.Context, start, end time.Time) ([]uuid.UUID, error) {
	args := m.Called(ctx, start, end)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]uuid.UUID), args.Error(1)
}

// mockPlanRepo is a mock implementation of billing.PlanRepository
type mockPlanRepo struct {
	mock.Mock
}

func (m *mockPlanRepo) FindByID(ctx context.Context, id uuid.UUID) (*billing.Plan, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.Plan), args.Error(1)
}

func (m *mockPlanRepo) FindComponent(ctx context.Context, planID uuid.UUID, componentType string) (*billing.PlanComponent, error) {
	args := m.Called(ctx, planID, componentType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.PlanComponent), args.Error(1)
}

func (m *mockPlanRepo) ListComponents(ctx context.Context, planID uuid.UUID) ([]billing.PlanComponent, error) {
	args := m.Called(ctx, planID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]billing.PlanComponent), args.Error(1)
}

// testRepos bundles the mocks behind a NoOpTransactionScope
type testRepos struct {
	invoices  *mockInvoiceRepo
	items     *mockItemRepo
	periods   *mockPeriodRepo
	credits   *mockCreditRepo
	usage     *mockUsageRepo
	customers *mockCustomerRepo
	resources *mockResourceRepo
	plans     *mockPlanRepo
	scope     *NoOpTransactionScope
}

func newTestRepos() *testRepos {
	r := &testRepos{
		invoices:  &mockInvoiceRepo{},
		items:     &mockItemRepo{},
		periods:   &mockPeriodRepo{},
		credits:   &mockCreditRepo{},
		usage:     &mockUsageRepo{},
		customers: &mockCustomerRepo{},
		resources: &mockResourceRepo{},
		plans:     &mockPlanRepo{},
	}
	r.scope = NewNoOpTransactionScope(r.invoices, r.items, r.periods, r.credits, r.usage)
	return r
}

// countingScope counts transactions so tests can assert how work is split
// across them
type countingScope struct {
	inner      TransactionScope
	executions int
}

func (s *countingScope) Execute(ctx context.Context, fn func(TransactionalRepositories) error) error {
	s.executions++
	return s.inner.Execute(ctx, fn)
}

// Interface checks for the mocks
var (
	_ billing.InvoiceRepository            = (*mockInvoiceRepo)(nil)
	_ billing.InvoiceItemRepository        = (*mockItemRepo)(nil)
	_ billing.ResourcePlanPeriodRepository = (*mockPeriodRepo)(nil)
	_ billing.CreditRepository             = (*mockCreditRepo)(nil)
	_ billing.ComponentUsageRepository     = (*mockUsageRepo)(nil)
	_ billing.CustomerRepository           = (*mockCustomerRepo)(nil)
	_ billing.ResourceRepository           = (*mockResourceRepo)(nil)
	_ billing.PlanRepository               = (*mockPlanRepo)(nil)
)
