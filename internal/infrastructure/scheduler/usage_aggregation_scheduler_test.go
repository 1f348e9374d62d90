package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	appbilling "github.com/cloudmarket/backend/internal/application/billing"
	"github.com/cloudmarket/backend/internal/domain/billing"
)

type stubUsageRepo struct {
	billing.ComponentUsageRepository
	listCalls atomic.Int32
}

func (s *stubUsageRepo) ListForPeriod(_ context.Context, _ time.Time) ([]billing.ComponentUsage, error) {
	s.listCalls.Add(1)
	return nil, nil
}

func newUsageSchedulerFixture(t *testing.T, config UsageAggregationSchedulerConfig) (*UsageAggregationScheduler, *stubUsageRepo) {
	t.Helper()

	usage := &stubUsageRepo{}
	scope := appbilling.NewNoOpTransactionScope(nil, nil, nil, nil, usage)
	registry := billing.NewRegistratorRegistry()
	registration := appbilling.NewRegistrationService(scope, registry, nil, zap.NewNop(),
		appbilling.DefaultRegistrationServiceConfig())
	service := appbilling.NewUsageAggregationService(scope, usage, nil, nil, registration, zap.NewNop())

	return NewUsageAggregationScheduler(service, zap.NewNop(), config), usage
}

func TestDefaultUsageAggregationSchedulerConfig(t *testing.T) {
	cfg := DefaultUsageAggregationSchedulerConfig()

	assert.True(t, cfg.Enabled)
	assert.Equal(t, time.Hour, cfg.Interval)
	assert.Equal(t, 15*time.Minute, cfg.RunTimeout)
}

func TestNewUsageAggregationScheduler_ClampsInterval(t *testing.T) {
	cfg := DefaultUsageAggregationSchedulerConfig()
	cfg.Interval = 0
	s, _ := newUsageSchedulerFixture(t, cfg)

	assert.Equal(t, time.Hour, s.config.Interval)
}

func TestUsageAggregationScheduler_StartStop(t *testing.T) {
	ctx := context.Background()
	s, _ := newUsageSchedulerFixture(t, DefaultUsageAggregationSchedulerConfig())

	require.NoError(t, s.Start(ctx))
	assert.True(t, s.IsRunning())
	require.NoError(t, s.Start(ctx))

	require.NoError(t, s.Stop(ctx))
	assert.False(t, s.IsRunning())
	require.NoError(t, s.Stop(ctx))
}

func TestUsageAggregationScheduler_Disabled(t *testing.T) {
	cfg := DefaultUsageAggregationSchedulerConfig()
	cfg.Enabled = false
	s, _ := newUsageSchedulerFixture(t, cfg)

	require.NoError(t, s.Start(context.Background()))
	assert.False(t, s.IsRunning())
}

func TestUsageAggregationScheduler_RunsOnInterval(t *testing.T) {
	ctx := context.Background()
	cfg := DefaultUsageAggregationSchedulerConfig()
	cfg.Interval = 10 * time.Millisecond
	s, usage := newUsageSchedulerFixture(t, cfg)

	require.NoError(t, s.Start(ctx))
	defer func() { _ = s.Stop(ctx) }()

	assert.Eventually(t, func() bool {
		return usage.listCalls.Load() >= 2
	}, time.Second, 5*time.Millisecond, "ticker should drive repeated aggregation runs")
}

func TestUsageAggregationScheduler_TriggerImmediateRun(t *testing.T) {
	ctx := context.Background()

	t.Run("rejected while stopped", func(t *testing.T) {
		s, usage := newUsageSchedulerFixture(t, DefaultUsageAggregationSchedulerConfig())

		err := s.TriggerImmediateRun(ctx)
		assert.ErrorIs(t, err, ErrSchedulerNotRunning)
		assert.Zero(t, usage.listCalls.Load())
	})

	t.Run("executes one run while running", func(t *testing.T) {
		s, usage := newUsageSchedulerFixture(t, DefaultUsageAggregationSchedulerConfig())
		require.NoError(t, s.Start(ctx))
		defer func() { _ = s.Stop(ctx) }()

		require.NoError(t, s.TriggerImmediateRun(ctx))

		assert.Eventually(t, func() bool {
			return usage.listCalls.Load() == 1
		}, time.Second, 10*time.Millisecond)
	})
}
