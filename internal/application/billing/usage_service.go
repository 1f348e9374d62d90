package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/cloudmarket/backend/internal/domain/billing"
	"github.com/cloudmarket/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// UsageAggregationService turns metered component usage into invoice items.
// Each (resource, component, billing period) maps to exactly one
// quantity-priced item on the month's invoice; re-aggregating replaces the
// recorded quantity instead of stacking new items, so the job can run as
// often as backends report.
type UsageAggregationService struct {
	scope        TransactionScope
	usageRepo    billing.ComponentUsageRepository
	resourceRepo billing.ResourceRepository
	planRepo     billing.PlanRepository
	registration *RegistrationService
	logger       *zap.Logger
}

// NewUsageAggregationService creates a new UsageAggregationService
func NewUsageAggregationService(
	scope TransactionScope,
	usageRepo billing.ComponentUsageRepository,
	resourceRepo billing.ResourceRepository,
	planRepo billing.PlanRepository,
	registration *RegistrationService,
	logger *zap.Logger,
) *UsageAggregationService {
	return &UsageAggregationService{
		scope:        scope,
		usageRepo:    usageRepo,
		resourceRepo: resourceRepo,
		planRepo:     planRepo,
		registration: registration,
		logger:       logger,
	}
}

// RecordUsage upserts the metered usage of a resource component for the
// billing period containing the given instant. Backends call this as the
// period progresses; the latest value wins.
func (s *UsageAggregationService) RecordUsage(
	ctx context.Context,
	resourceID uuid.UUID,
	componentType string,
	period time.Time,
	usage decimal.Decimal,
	measuredUnit string,
) (*billing.ComponentUsage, error) {
	record, err := billing.NewComponentUsage(resourceID, componentType, period, usage, measuredUnit)
	if err != nil {
		return nil, err
	}
	if err := s.usageRepo.Upsert(ctx, record); err != nil {
		return nil, err
	}
	return record, nil
}

// AggregationResult summarizes one aggregation run
type AggregationResult struct {
	Period       time.Time
	RecordsTotal int
	ItemsCreated int
	ItemsUpdated int
	SkippedCount int
	FailureCount int
	Errors       []error
}

// Run aggregates all usage records of the billing period containing now
// into invoice items. Failures are isolated per record.
func (s *UsageAggregationService) Run(ctx context.Context, now time.Time) (*AggregationResult, error) {
	period := billing.MonthStart(now)
	result := &AggregationResult{Period: period}

	records, err := s.usageRepo.ListForPeriod(ctx, period)
	if err != nil {
		return result, err
	}
	result.RecordsTotal = len(records)

	for idx := range records {
		record := &records[idx]
		created, err := s.aggregateRecord(ctx, record, period)
		if err != nil {
			if err == errComponentNotMetered {
				result.SkippedCount++
				continue
			}
			result.FailureCount++
			result.Errors = append(result.Errors,
				fmt.Errorf("resource %s component %s: %w", record.ResourceID, record.ComponentType, err))
			s.logger.Error("Failed to aggregate usage record",
				zap.String("resource_id", record.ResourceID.String()),
				zap.String("component_type", record.ComponentType),
				zap.Error(err))
			continue
		}
		if created {
			result.ItemsCreated++
		} else {
			result.ItemsUpdated++
		}
	}

	s.logger.Info("Usage aggregation completed",
		zap.Time("period", period),
		zap.Int("records", result.RecordsTotal),
		zap.Int("created", result.ItemsCreated),
		zap.Int("updated", result.ItemsUpdated),
		zap.Int("skipped", result.SkippedCount),
		zap.Int("failures", result.FailureCount))
	return result, nil
}

// errComponentNotMetered marks records whose plan component is not usage
// priced; fixed and limit components are billed through the base item
var errComponentNotMetered = shared.NewDomainError("NOT_METERED",
	"Plan component is not usage-priced")

// aggregateRecord upserts the invoice item backing one usage record.
// Returns true when a new item was created.
func (s *UsageAggregationService) aggregateRecord(ctx context.Context, record *billing.ComponentUsage, period time.Time) (bool, error) {
	resource, err := s.resourceRepo.FindByID(ctx, record.ResourceID)
	if err != nil {
		return false, err
	}
	component, err := s.planRepo.FindComponent(ctx, resource.PlanID, record.ComponentType)
	if err != nil {
		return false, err
	}
	if component.BillingKind != billing.BillingKindUsage {
		return false, errComponentNotMetered
	}
	if component.Factor.IsZero() {
		return false, shared.NewDomainError("INVALID_FACTOR", "Plan component factor cannot be zero")
	}

	created := false
	err = s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		invoice, err := s.registration.GetOrCreatePending(ctx, repos, resource.CustomerID, period)
		if err != nil {
			return err
		}
		if !invoice.IsPending() {
			return shared.NewDomainError("INVOICE_NOT_PENDING",
				"Usage cannot be billed to a finalized invoice")
		}

		item, err := repos.ItemRepo().FindUsageItem(ctx, invoice.ID, resource.Ref(), record.ComponentType)
		if err != nil && err != shared.ErrNotFound {
			return err
		}
		if item != nil {
			item.Quantity = record.Usage
			item.UnitPrice = component.Price
			item.Factor = component.Factor
			item.Touch()
			return repos.ItemRepo().Save(ctx, item)
		}

		item, err = billing.NewInvoiceItem(invoice.ID, resource.Ref(),
			fmt.Sprintf("%s usage of %s", record.ComponentType, resource.Name),
			component.Price, billing.UnitQuantity, period, billing.MonthEnd(period))
		if err != nil {
			return err
		}
		item.Quantity = record.Usage
		item.Factor = component.Factor
		item.MeasuredUnit = component.MeasuredUnit
		item.ComponentType = record.ComponentType
		item.WithProject(resource.ProjectID, resource.ProjectName, resource.ProjectUUID)
		created = true
		return repos.ItemRepo().Create(ctx, item)
	})
	return created, err
}
