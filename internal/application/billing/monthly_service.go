package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/cloudmarket/backend/internal/domain/billing"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MonthlyInvoiceService runs the month rollover: it finalizes the previous
// month's pending invoices and opens fresh invoices with items for every
// customer whose resources are still running.
//
// The run is idempotent. Invoices are keyed by (customer, year, month) and
// a resource already billed on the month's invoice is skipped, so a crashed
// or repeated run converges to the same state.
type MonthlyInvoiceService struct {
	scope        TransactionScope
	registry     *billing.RegistratorRegistry
	registration *RegistrationService
	resourceRepo billing.ResourceRepository
	logger       *zap.Logger
}

// NewMonthlyInvoiceService creates a new MonthlyInvoiceService
func NewMonthlyInvoiceService(
	scope TransactionScope,
	registry *billing.RegistratorRegistry,
	registration *RegistrationService,
	resourceRepo billing.ResourceRepository,
	logger *zap.Logger,
) *MonthlyInvoiceService {
	return &MonthlyInvoiceService{
		scope:        scope,
		registry:     registry,
		registration: registration,
		resourceRepo: resourceRepo,
		logger:       logger,
	}
}

// MonthlyRunResult summarizes one generator run
type MonthlyRunResult struct {
	Year            int
	Month           time.Month
	CustomersTotal  int
	ItemsRegistered int
	Finalized       int
	FailureCount    int
	Errors          []error
}

// Run executes the rollover for the month containing now. The caller passes
// now explicitly so reruns for a past boundary stay reproducible. Failures
// are isolated per customer and per invoice; one broken customer never
// blocks the rest of the run.
func (s *MonthlyInvoiceService) Run(ctx context.Context, now time.Time) (*MonthlyRunResult, error) {
	periodStart := billing.MonthStart(now)
	result := &MonthlyRunResult{
		Year:  periodStart.Year(),
		Month: periodStart.Month(),
	}

	s.logger.Info("Starting monthly invoice run",
		zap.Int("year", result.Year),
		zap.Int("month", int(result.Month)))

	s.finalizePrevious(ctx, periodStart, now, result)

	customers, err := s.resourceRepo.ListCustomerIDsBillableBetween(ctx, periodStart, billing.MonthEnd(now))
	if err != nil {
		return result, err
	}
	result.CustomersTotal = len(customers)

	for _, customerID := range customers {
		registered, err := s.processCustomer(ctx, customerID, periodStart)
		if err != nil {
			result.FailureCount++
			result.Errors = append(result.Errors,
				fmt.Errorf("customer %s: %w", customerID, err))
			s.logger.Error("Failed to process customer",
				zap.String("customer_id", customerID.String()),
				zap.Error(err))
			continue
		}
		result.ItemsRegistered += registered
	}

	s.logger.Info("Monthly invoice run completed",
		zap.Int("customers", result.CustomersTotal),
		zap.Int("items_registered", result.ItemsRegistered),
		zap.Int("finalized", result.Finalized),
		zap.Int("failures", result.FailureCount))
	return result, nil
}

// processCustomer opens the customer's invoice for the month and registers
// one item per running resource not billed on it yet, all in one transaction
func (s *MonthlyInvoiceService) processCustomer(ctx context.Context, customerID uuid.UUID, periodStart time.Time) (int, error) {
	registered := 0
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		invoice, err := s.registration.GetOrCreatePending(ctx, repos, customerID, periodStart)
		if err != nil {
			return err
		}
		if !invoice.IsPending() {
			// Month already finalized; a rerun has nothing left to do here
			return nil
		}

		for _, kind := range s.registry.Kinds() {
			reg, err := s.registry.For(kind)
			if err != nil {
				return err
			}
			sources, err := reg.Sources(ctx, customerID)
			if err != nil {
				return err
			}
			for idx := range sources {
				source := &sources[idx]
				existing, err := reg.FindExistingItem(ctx, source, invoice.ID)
				if err != nil {
					return err
				}
				if existing != nil {
					continue
				}
				if err := s.registration.RegisterResource(ctx, repos, reg, source, invoice, periodStart); err != nil {
					return err
				}
				registered++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return registered, nil
}

// finalizePrevious moves the previous month's pending invoices to CREATED,
// computing and persisting their taxed totals. Each invoice is finalized in
// its own transaction: a failed statement aborts the postgres transaction it
// runs in, so sharing one across the batch would turn a single bad invoice
// into a wholesale rollback.
func (s *MonthlyInvoiceService) finalizePrevious(ctx context.Context, periodStart, now time.Time, result *MonthlyRunResult) {
	previous := periodStart.AddDate(0, -1, 0)

	var pending []billing.Invoice
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		pending, err = repos.InvoiceRepo().ListByStateForMonth(ctx,
			billing.InvoiceStatePending, previous.Year(), previous.Month())
		return err
	})
	if err != nil {
		result.FailureCount++
		result.Errors = append(result.Errors, fmt.Errorf("finalize %d-%02d: %w",
			previous.Year(), int(previous.Month()), err))
		return
	}

	for idx := range pending {
		invoice := &pending[idx]
		err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
			return s.finalizeInvoice(ctx, repos, invoice, now)
		})
		if err != nil {
			result.FailureCount++
			result.Errors = append(result.Errors,
				fmt.Errorf("invoice %s: %w", invoice.ID, err))
			s.logger.Error("Failed to finalize invoice",
				zap.String("invoice_id", invoice.ID.String()),
				zap.Error(err))
			continue
		}
		result.Finalized++
	}
}

func (s *MonthlyInvoiceService) finalizeInvoice(ctx context.Context, repos TransactionalRepositories, invoice *billing.Invoice, now time.Time) error {
	items, err := repos.ItemRepo().ListByInvoice(ctx, invoice.ID)
	if err != nil {
		return err
	}
	total := invoice.ComputeTotal(items)
	if err := invoice.Finalize(total, now); err != nil {
		return err
	}
	return repos.InvoiceRepo().Save(ctx, invoice)
}
