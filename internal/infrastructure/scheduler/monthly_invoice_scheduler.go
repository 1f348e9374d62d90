package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cloudmarket/backend/internal/application/billing"
	"go.uber.org/zap"
)

// MonthlyInvoiceScheduler fires the month rollover on the first day of each
// month: finalize last month's invoices, open this month's.
type MonthlyInvoiceScheduler struct {
	service   *billing.MonthlyInvoiceService
	logger    *zap.Logger
	config    MonthlyInvoiceSchedulerConfig
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
}

// MonthlyInvoiceSchedulerConfig holds configuration for the monthly invoice scheduler
type MonthlyInvoiceSchedulerConfig struct {
	// Enabled determines if the scheduler is active
	Enabled bool

	// RunHour is the hour (0-23) on the 1st when the rollover fires
	RunHour int

	// RunTimeout is the maximum time for one rollover run
	RunTimeout time.Duration
}

// DefaultMonthlyInvoiceSchedulerConfig returns default configuration
func DefaultMonthlyInvoiceSchedulerConfig() MonthlyInvoiceSchedulerConfig {
	return MonthlyInvoiceSchedulerConfig{
		Enabled:    true,
		RunHour:    0, // midnight on the 1st
		RunTimeout: 30 * time.Minute,
	}
}

// NewMonthlyInvoiceScheduler creates a new monthly invoice scheduler
func NewMonthlyInvoiceScheduler(
	service *billing.MonthlyInvoiceService,
	logger *zap.Logger,
	config MonthlyInvoiceSchedulerConfig,
) *MonthlyInvoiceScheduler {
	return &MonthlyInvoiceScheduler{
		service: service,
		logger:  logger,
		config:  config,
	}
}

// Start starts the monthly invoice scheduler
func (s *MonthlyInvoiceScheduler) Start(ctx context.Context) error {
	if s.config.RunHour < 0 || s.config.RunHour > 23 {
		return fmt.Errorf("%w: run hour %d out of range", ErrInvalidConfig, s.config.RunHour)
	}

	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	if !s.config.Enabled {
		s.mu.Unlock()
		s.logger.Info("Monthly invoice scheduler is disabled")
		return nil
	}
	s.isRunning = true
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(1)
	go s.runMonthly(ctx)

	s.logger.Info("Monthly invoice scheduler started",
		zap.Int("run_hour", s.config.RunHour))
	return nil
}

// Stop gracefully stops the scheduler
func (s *MonthlyInvoiceScheduler) Stop(ctx context.Context) error {
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

	// Wait for goroutines to finish with timeout
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Monthly invoice scheduler stopped gracefully")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Monthly invoice scheduler stop timed out")
		return ctx.Err()
	}
}

// runMonthly sleeps until the next month boundary and fires the rollover
func (s *MonthlyInvoiceScheduler) runMonthly(ctx context.Context) {
	defer s.wg.Done()

	for {
		now := time.Now()
		nextRun := time.Date(now.Year(), now.Month(), 1, s.config.RunHour, 0, 0, 0, now.Location())
		if !now.Before(nextRun) {
			nextRun = nextRun.AddDate(0, 1, 0)
		}
		delay := time.Until(nextRun)

		s.logger.Info("Monthly invoice rollover scheduled",
			zap.Time("next_run", nextRun),
			zap.Duration("delay", delay))

		select {
		case <-ctx.Done():
			s.logger.Debug("Monthly invoice loop stopping")
			return
		case <-time.After(delay):
			s.executeRun(ctx, nextRun)
		}
	}
}

// executeRun executes one rollover for the month containing runAt
func (s *MonthlyInvoiceScheduler) executeRun(ctx context.Context, runAt time.Time) {
	runCtx, cancel := context.WithTimeout(ctx, s.config.RunTimeout)
	defer cancel()

	startTime := time.Now()
	result, err := s.service.Run(runCtx, runAt)
	duration := time.Since(startTime)

	if err != nil {
		s.logger.Error("Monthly invoice rollover failed",
			zap.Duration("duration", duration),
			zap.Error(err))
		return
	}

	s.logger.Info("Monthly invoice rollover completed",
		zap.Duration("duration", duration),
		zap.Int("customers", result.CustomersTotal),
		zap.Int("items_registered", result.ItemsRegistered),
		zap.Int("finalized", result.Finalized),
		zap.Int("failures", result.FailureCount))
}

// TriggerImmediateRun triggers an immediate rollover for the month
// containing now. Used for catch-up after downtime over a month boundary.
func (s *MonthlyInvoiceScheduler) TriggerImmediateRun(ctx context.Context, now time.Time) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return ErrSchedulerNotRunning
	}
	s.wg.Add(1)
	s.mu.Unlock()

	s.logger.Info("Triggering immediate monthly invoice rollover")

	// Run in a goroutine to not block
	go func() {
		defer s.wg.Done()
		s.executeRun(ctx, now)
	}()

	return nil
}

// IsRunning returns whether the scheduler is running
func (s *MonthlyInvoiceScheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isRunning
}
