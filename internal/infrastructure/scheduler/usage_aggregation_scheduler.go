package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/cloudmarket/backend/internal/application/billing"
	"go.uber.org/zap"
)

// UsageAggregationScheduler periodically folds reported component usage
// into invoice items so pending invoices track consumption mid-month
type UsageAggregationScheduler struct {
	service   *billing.UsageAggregationService
	logger    *zap.Logger
	config    UsageAggregationSchedulerConfig
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
}

// UsageAggregationSchedulerConfig holds configuration for the usage aggregation scheduler
type UsageAggregationSchedulerConfig struct {
	// Enabled determines if the scheduler is active
	Enabled bool

	// Interval between aggregation runs
	Interval time.Duration

	// RunTimeout is the maximum time for one aggregation run
	RunTimeout time.Duration
}

// DefaultUsageAggregationSchedulerConfig returns default configuration
func DefaultUsageAggregationSchedulerConfig() UsageAggregationSchedulerConfig {
	return UsageAggregationSchedulerConfig{
		Enabled:    true,
		Interval:   time.Hour,
		RunTimeout: 15 * time.Minute,
	}
}

// NewUsageAggregationScheduler creates a new usage aggregation scheduler
func NewUsageAggregationScheduler(
	service *billing.UsageAggregationService,
	logger *zap.Logger,
	config UsageAggregationSchedulerConfig,
) *UsageAggregationScheduler {
	if config.Interval <= 0 {
		config.Interval = time.Hour
	}
	return &UsageAggregationScheduler{
		service: service,
		logger:  logger,
		config:  config,
	}
}

// Start starts the usage aggregation scheduler
func (s *UsageAggregationScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	if !s.config.Enabled {
		s.mu.Unlock()
		s.logger.Info("Usage aggregation scheduler is disabled")
		return nil
	}
	s.isRunning = true
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(1)
	go s.runLoop(ctx)

	s.logger.Info("Usage aggregation scheduler started",
		zap.Duration("interval", s.config.Interval))
	return nil
}

// Stop gracefully stops the scheduler
func (s *UsageAggregationScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Usage aggregation scheduler stopped gracefully")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Usage aggregation scheduler stop timed out")
		return ctx.Err()
	}
}

// runLoop runs aggregation on a fixed interval
func (s *UsageAggregationScheduler) runLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Debug("Usage aggregation loop stopping")
			return
		case <-ticker.C:
			s.executeRun(ctx)
		}
	}
}

// executeRun executes one aggregation run
func (s *UsageAggregationScheduler) executeRun(ctx context.Context) {
	runCtx, cancel := context.WithTimeout(ctx, s.config.RunTimeout)
	defer cancel()

	startTime := time.Now()
	result, err := s.service.Run(runCtx, time.Now())
	duration := time.Since(startTime)

	if err != nil {
		s.logger.Error("Usage aggregation failed",
			zap.Duration("duration", duration),
			zap.Error(err))
		return
	}

	s.logger.Info("Usage aggregation run completed",
		zap.Duration("duration", duration),
		zap.Int("records", result.RecordsTotal),
		zap.Int("created", result.ItemsCreated),
		zap.Int("updated", result.ItemsUpdated),
		zap.Int("failures", result.FailureCount))
}

// TriggerImmediateRun triggers an immediate aggregation run
func (s *UsageAggregationScheduler) TriggerImmediateRun(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return ErrSchedulerNotRunning
	}
	s.wg.Add(1)
	s.mu.Unlock()

	s.logger.Info("Triggering immediate usage aggregation")

	go func() {
		defer s.wg.Done()
		s.executeRun(ctx)
	}()

	return nil
}

// IsRunning returns whether the scheduler is running
func (s *UsageAggregationScheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isRunning
}
