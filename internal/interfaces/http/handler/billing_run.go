package handler

import (
	"time"

	billingapp "github.com/cloudmarket/backend/internal/application/billing"
	"github.com/cloudmarket/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
)

// BillingRunHandler exposes manual triggers for the scheduled billing jobs.
// Operators use these for catch-up after downtime over a month boundary and
// for forcing a mid-month usage refresh.
type BillingRunHandler struct {
	BaseHandler
	monthlyService *billingapp.MonthlyInvoiceService
	usageService   *billingapp.UsageAggregationService
}

// NewBillingRunHandler creates a new BillingRunHandler
func NewBillingRunHandler(
	monthlyService *billingapp.MonthlyInvoiceService,
	usageService *billingapp.UsageAggregationService,
) *BillingRunHandler {
	return &BillingRunHandler{
		monthlyService: monthlyService,
		usageService:   usageService,
	}
}

// RunMonthly runs the monthly invoice rollover for the current month
func (h *BillingRunHandler) RunMonthly(c *gin.Context) {
	result, err := h.monthlyService.Run(c.Request.Context(), time.Now())
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, dto.MonthlyRunResponse{
		Year:            result.Year,
		Month:           int(result.Month),
		CustomersTotal:  result.CustomersTotal,
		ItemsRegistered: result.ItemsRegistered,
		Finalized:       result.Finalized,
		FailureCount:    result.FailureCount,
		Errors:          errorStrings(result.Errors),
	})
}

// RunUsageAggregation folds reported usage into invoice items now
func (h *BillingRunHandler) RunUsageAggregation(c *gin.Context) {
	result, err := h.usageService.Run(c.Request.Context(), time.Now())
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, dto.AggregationRunResponse{
		Period:       result.Period,
		RecordsTotal: result.RecordsTotal,
		ItemsCreated: result.ItemsCreated,
		ItemsUpdated: result.ItemsUpdated,
		SkippedCount: result.SkippedCount,
		FailureCount: result.FailureCount,
		Errors:       errorStrings(result.Errors),
	})
}

func errorStrings(errs []error) []string {
	if len(errs) == 0 {
		return nil
	}
	out := make([]string, len(errs))
	for i, err := range errs {
		out[i] = err.Error()
	}
	return out
}

// RegisterRoutes registers all billing run routes
func (h *BillingRunHandler) RegisterRoutes(rg *gin.RouterGroup) {
	runs := rg.Group("/billing/runs")
	{
		runs.POST("/monthly", h.RunMonthly)
		runs.POST("/usage-aggregation", h.RunUsageAggregation)
	}
}
