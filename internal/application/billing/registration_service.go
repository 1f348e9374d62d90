package billing

import (
	"context"
	"time"

	"github.com/cloudmarket/backend/internal/domain/billing"
	"github.com/cloudmarket/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// RegistrationService is the single entry point for resource lifecycle
// events. Each event resolves to one registrator call plus one plan period
// tracker call, executed in a single transaction per resource, so invoice
// items and plan periods can never diverge.
type RegistrationService struct {
	scope        TransactionScope
	registry     *billing.RegistratorRegistry
	customerRepo billing.CustomerRepository
	logger       *zap.Logger

	// Configuration
	defaultTaxPercent int
}

// RegistrationServiceConfig contains configuration for RegistrationService
type RegistrationServiceConfig struct {
	DefaultTaxPercent int
}

// DefaultRegistrationServiceConfig returns default configuration
func DefaultRegistrationServiceConfig() RegistrationServiceConfig {
	return RegistrationServiceConfig{
		DefaultTaxPercent: 0,
	}
}

// NewRegistrationService creates a new RegistrationService
func NewRegistrationService(
	scope TransactionScope,
	registry *billing.RegistratorRegistry,
	customerRepo billing.CustomerRepository,
	logger *zap.Logger,
	config RegistrationServiceConfig,
) *RegistrationService {
	if config.DefaultTaxPercent < 0 {
		config.DefaultTaxPercent = 0
	}
	return &RegistrationService{
		scope:             scope,
		registry:          registry,
		customerRepo:      customerRepo,
		logger:            logger,
		defaultTaxPercent: config.DefaultTaxPercent,
	}
}

// OnResourceCreated opens billing for a newly provisioned resource: a new
// invoice item runs from the provisioning instant to the end of the month,
// and a plan period opens at the same instant.
func (s *RegistrationService) OnResourceCreated(ctx context.Context, resource *billing.Resource, at time.Time) error {
	reg, err := s.registry.For(resource.Kind)
	if err != nil {
		return err
	}
	customerID, err := reg.Customer(ctx, resource)
	if err != nil {
		return err
	}

	return s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		invoice, err := s.getOrCreatePending(ctx, repos, customerID, at)
		if err != nil {
			return err
		}
		if err := s.registerItem(ctx, repos, reg, resource, invoice, at); err != nil {
			return err
		}

		tracker := billing.NewPlanPeriodTracker(repos.PeriodRepo())
		if _, err := tracker.Open(ctx, resource.ID, resource.PlanID, at); err != nil {
			return err
		}

		s.logger.Info("Opened billing for resource",
			zap.String("resource_id", resource.ID.String()),
			zap.String("kind", resource.Kind.String()),
			zap.String("customer_id", customerID.String()))
		return nil
	})
}

// OnPlanChanged closes the running item and plan period at the switch
// instant and opens a new item priced by the new plan. Both items touch the
// switch day; overlap resolution decides which one bills it.
func (s *RegistrationService) OnPlanChanged(ctx context.Context, resource *billing.Resource, newPlanID uuid.UUID, at time.Time) error {
	reg, err := s.registry.For(resource.Kind)
	if err != nil {
		return err
	}
	customerID, err := reg.Customer(ctx, resource)
	if err != nil {
		return err
	}
	if newPlanID == uuid.Nil {
		return shared.NewDomainError("INVALID_PLAN", "Plan ID cannot be empty")
	}

	return s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		invoice, err := s.getOrCreatePending(ctx, repos, customerID, at)
		if err != nil {
			return err
		}

		current, err := repos.ItemRepo().FindLatestForResource(ctx, invoice.ID, resource.Ref())
		if err != nil && err != shared.ErrNotFound {
			return err
		}
		if current != nil && current.End.After(at) {
			if err := current.Close(at); err != nil {
				return err
			}
			if err := repos.ItemRepo().Save(ctx, current); err != nil {
				return err
			}
		}

		switched := *resource
		switched.PlanID = newPlanID
		if err := s.registerItem(ctx, repos, reg, &switched, invoice, at); err != nil {
			return err
		}

		tracker := billing.NewPlanPeriodTracker(repos.PeriodRepo())
		if _, err := tracker.SwitchPlan(ctx, resource.ID, newPlanID, at); err != nil {
			return err
		}

		s.logger.Info("Switched resource plan",
			zap.String("resource_id", resource.ID.String()),
			zap.String("new_plan_id", newPlanID.String()))
		return nil
	})
}

// OnResourceTerminated stops billing for the resource: the running item is
// closed at the termination instant (never deleted) and the open plan
// period is sealed.
func (s *RegistrationService) OnResourceTerminated(ctx context.Context, resource *billing.Resource, at time.Time) error {
	reg, err := s.registry.For(resource.Kind)
	if err != nil {
		return err
	}
	customerID, err := reg.Customer(ctx, resource)
	if err != nil {
		return err
	}

	return s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		invoice, err := repos.InvoiceRepo().FindByCustomerMonth(ctx, customerID, at.Year(), at.Month())
		if err != nil && err != shared.ErrNotFound {
			return err
		}
		if invoice != nil {
			item, err := repos.ItemRepo().FindLatestForResource(ctx, invoice.ID, resource.Ref())
			if err != nil && err != shared.ErrNotFound {
				return err
			}
			if item != nil && item.End.After(at) {
				if err := item.Close(at); err != nil {
					return err
				}
				if err := repos.ItemRepo().Save(ctx, item); err != nil {
					return err
				}
			}
		}

		tracker := billing.NewPlanPeriodTracker(repos.PeriodRepo())
		closed, err := tracker.Close(ctx, resource.ID, at)
		if err != nil {
			return err
		}
		if closed == nil {
			// Resource predates period tracking; nothing to seal
			s.logger.Warn("No open plan period to close",
				zap.String("resource_id", resource.ID.String()))
		}

		s.logger.Info("Closed billing for resource",
			zap.String("resource_id", resource.ID.String()),
			zap.String("kind", resource.Kind.String()))
		return nil
	})
}

// RegisterResource opens a billing item for a resource on the given invoice
// without touching plan periods. The monthly generator uses it to carry
// running resources into a fresh month.
func (s *RegistrationService) RegisterResource(
	ctx context.Context,
	repos TransactionalRepositories,
	reg billing.Registrator,
	source *billing.Resource,
	invoice *billing.Invoice,
	start time.Time,
) error {
	return s.registerItem(ctx, repos, reg, source, invoice, start)
}

// GetOrCreatePending returns the pending invoice of the customer for the
// month containing the given instant, creating it when absent.
func (s *RegistrationService) GetOrCreatePending(ctx context.Context, repos TransactionalRepositories, customerID uuid.UUID, at time.Time) (*billing.Invoice, error) {
	return s.getOrCreatePending(ctx, repos, customerID, at)
}

// savepointer is implemented by transaction scopes that can roll back to a
// named savepoint. Postgres aborts the whole transaction once a statement
// fails, so the insert racing the unique invoice constraint must run inside
// a savepoint or the loser's recovery read would be rejected too.
type savepointer interface {
	SavePoint(name string) error
	RollbackTo(name string) error
}

// getOrCreatePending implements idempotent invoice creation. Concurrent
// callers race on the unique (customer, year, month) constraint; the loser
// rolls back to the pre-insert savepoint and re-reads the winner's row
// instead of failing.
func (s *RegistrationService) getOrCreatePending(ctx context.Context, repos TransactionalRepositories, customerID uuid.UUID, at time.Time) (*billing.Invoice, error) {
	invoice, err := repos.InvoiceRepo().FindByCustomerMonth(ctx, customerID, at.Year(), at.Month())
	if err == nil {
		return invoice, nil
	}
	if err != shared.ErrNotFound {
		return nil, err
	}

	customer, err := s.customerRepo.FindByID(ctx, customerID)
	if err != nil {
		return nil, err
	}
	tax := decimal.NewFromInt(int64(customer.EffectiveTaxPercent(s.defaultTaxPercent)))

	invoice, err = billing.NewInvoice(customerID, at.Year(), at.Month(), tax)
	if err != nil {
		return nil, err
	}
	const savepoint = "create_invoice"
	sp, canSavepoint := repos.(savepointer)
	if canSavepoint {
		if err := sp.SavePoint(savepoint); err != nil {
			return nil, err
		}
	}
	if err := repos.InvoiceRepo().Create(ctx, invoice); err != nil {
		if err == shared.ErrAlreadyExists {
			if canSavepoint {
				if rbErr := sp.RollbackTo(savepoint); rbErr != nil {
					return nil, rbErr
				}
			}
			return repos.InvoiceRepo().FindByCustomerMonth(ctx, customerID, at.Year(), at.Month())
		}
		return nil, err
	}

	s.logger.Info("Created pending invoice",
		zap.String("customer_id", customerID.String()),
		zap.Int("year", at.Year()),
		zap.Int("month", int(at.Month())))
	return invoice, nil
}

// registerItem builds, overlap-resolves and persists one invoice item for a
// resource, consuming any active customer credit. All writes happen on the
// transaction-scoped repositories of the caller.
func (s *RegistrationService) registerItem(
	ctx context.Context,
	repos TransactionalRepositories,
	reg billing.Registrator,
	source *billing.Resource,
	invoice *billing.Invoice,
	start time.Time,
) error {
	if !invoice.IsPending() {
		return shared.NewDomainError("INVOICE_NOT_PENDING",
			"Items can only be registered on a pending invoice")
	}
	if !invoice.Covers(start) {
		return shared.NewDomainError("OUT_OF_PERIOD",
			"Item start does not fall inside the invoice month")
	}

	item, err := reg.BuildItem(ctx, source, invoice, start, invoice.PeriodEnd())
	if err != nil {
		return err
	}

	existing, err := repos.ItemRepo().FindOverlapping(ctx, invoice.ID, source.Ref(), billing.StartOfDay(start))
	if err != nil && err != shared.ErrNotFound {
		return err
	}

	outcome := billing.ResolveOverlap(existing, item)
	if outcome != billing.OutcomeNoOverlap {
		if err := repos.ItemRepo().Save(ctx, existing); err != nil {
			return err
		}
		s.logger.Debug("Resolved item overlap",
			zap.String("resource_id", source.ID.String()),
			zap.Int("outcome", int(outcome)))
	}
	if item.IsZeroLength() {
		// The existing item covers everything the new one would have billed
		return nil
	}

	if err := s.applyCredit(ctx, repos, invoice.CustomerID, item, start); err != nil {
		return err
	}

	return repos.ItemRepo().Create(ctx, item)
}

// applyCredit consumes the customer's active prepaid credit against the
// item's price, recording the consumed amount on both sides
func (s *RegistrationService) applyCredit(ctx context.Context, repos TransactionalRepositories, customerID uuid.UUID, item *billing.InvoiceItem, now time.Time) error {
	credit, err := repos.CreditRepo().FindActiveByCustomer(ctx, customerID, now)
	if err != nil {
		if err == shared.ErrNotFound {
			return nil
		}
		return err
	}

	consumed := item.ApplyCredit(credit.Value)
	if !consumed.IsPositive() {
		return nil
	}
	credit.Consume(consumed)
	if err := repos.CreditRepo().Save(ctx, credit); err != nil {
		return err
	}

	s.logger.Info("Applied customer credit",
		zap.String("customer_id", customerID.String()),
		zap.String("consumed", consumed.String()))
	return nil
}

// Ensure RegistrationService handles the full resource lifecycle
var _ billing.ResourceLifecycle = (*RegistrationService)(nil)
