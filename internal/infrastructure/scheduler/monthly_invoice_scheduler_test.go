package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	appbilling "github.com/cloudmarket/backend/internal/application/billing"
	"github.com/cloudmarket/backend/internal/domain/billing"
)

// ---------------------------------------------------------------------------
// Test Helpers
// ---------------------------------------------------------------------------

// stubInvoiceRepo counts finalization lookups. Only the method an empty
// rollover touches is implemented; anything else panics loudly.
type stubInvoiceRepo struct {
	billing.InvoiceRepository
	listCalls atomic.Int32
}

func (s *stubInvoiceRepo) ListByStateForMonth(_ context.Context, _ billing.InvoiceState, _ int, _ time.Month) ([]billing.Invoice, error) {
	s.listCalls.Add(1)
	return nil, nil
}

type stubResourceRepo struct {
	billing.ResourceRepository
}

func (s *stubResourceRepo) ListCustomerIDsBillableBetween(_ context.Context, _, _ time.Time) ([]uuid.UUID, error) {
	return nil, nil
}

func newMonthlySchedulerFixture(t *testing.T, config MonthlyInvoiceSchedulerConfig) (*MonthlyInvoiceScheduler, *stubInvoiceRepo) {
	t.Helper()

	invoices := &stubInvoiceRepo{}
	scope := appbilling.NewNoOpTransactionScope(invoices, nil, nil, nil, nil)
	registry := billing.NewRegistratorRegistry()
	registration := appbilling.NewRegistrationService(scope, registry, nil, zap.NewNop(),
		appbilling.DefaultRegistrationServiceConfig())
	service := appbilling.NewMonthlyInvoiceService(scope, registry, registration,
		&stubResourceRepo{}, zap.NewNop())

	return NewMonthlyInvoiceScheduler(service, zap.NewNop(), config), invoices
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestDefaultMonthlyInvoiceSchedulerConfig(t *testing.T) {
	cfg := DefaultMonthlyInvoiceSchedulerConfig()

	assert.True(t, cfg.Enabled)
	assert.Equal(t, 0, cfg.RunHour)
	assert.Equal(t, 30*time.Minute, cfg.RunTimeout)
}

func TestMonthlyInvoiceScheduler_StartStop(t *testing.T) {
	ctx := context.Background()
	s, _ := newMonthlySchedulerFixture(t, DefaultMonthlyInvoiceSchedulerConfig())

	require.NoError(t, s.Start(ctx))
	assert.True(t, s.IsRunning())

	// Starting twice is a no-op
	require.NoError(t, s.Start(ctx))
	assert.True(t, s.IsRunning())

	require.NoError(t, s.Stop(ctx))
	assert.False(t, s.IsRunning())

	// Stopping twice is a no-op
	require.NoError(t, s.Stop(ctx))
}

func TestMonthlyInvoiceScheduler_RejectsInvalidRunHour(t *testing.T) {
	cfg := DefaultMonthlyInvoiceSchedulerConfig()
	cfg.RunHour = 24
	s, _ := newMonthlySchedulerFixture(t, cfg)

	err := s.Start(context.Background())
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.False(t, s.IsRunning())
}

func TestMonthlyInvoiceScheduler_Disabled(t *testing.T) {
	cfg := DefaultMonthlyInvoiceSchedulerConfig()
	cfg.Enabled = false
	s, _ := newMonthlySchedulerFixture(t, cfg)

	require.NoError(t, s.Start(context.Background()))
	assert.False(t, s.IsRunning())
}

func TestMonthlyInvoiceScheduler_TriggerImmediateRun(t *testing.T) {
	ctx := context.Background()

	t.Run("rejected while stopped", func(t *testing.T) {
		s, invoices := newMonthlySchedulerFixture(t, DefaultMonthlyInvoiceSchedulerConfig())

		err := s.TriggerImmediateRun(ctx, time.Now())
		assert.ErrorIs(t, err, ErrSchedulerNotRunning)
		assert.Zero(t, invoices.listCalls.Load())
	})

	t.Run("executes one rollover while running", func(t *testing.T) {
		s, invoices := newMonthlySchedulerFixture(t, DefaultMonthlyInvoiceSchedulerConfig())
		require.NoError(t, s.Start(ctx))
		defer func() { _ = s.Stop(ctx) }()

		require.NoError(t, s.TriggerImmediateRun(ctx, time.Date(2026, time.April, 1, 0, 0, 0, 0, time.UTC)))

		assert.Eventually(t, func() bool {
			return invoices.listCalls.Load() == 1
		}, time.Second, 10*time.Millisecond, "rollover should finalize the previous month")
	})
}
