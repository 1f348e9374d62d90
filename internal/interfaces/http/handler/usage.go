package handler

import (
	"time"

	billingapp "github.com/cloudmarket/backend/internal/application/billing"
	"github.com/cloudmarket/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// UsageHandler handles metered usage reporting from resource backends
type UsageHandler struct {
	BaseHandler
	usageService *billingapp.UsageAggregationService
}

// NewUsageHandler creates a new UsageHandler
func NewUsageHandler(usageService *billingapp.UsageAggregationService) *UsageHandler {
	return &UsageHandler{usageService: usageService}
}

// Record upserts the metered usage of a resource component for the current
// billing period. The latest reported value wins.
func (h *UsageHandler) Record(c *gin.Context) {
	var req dto.RecordUsageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}
	resourceID, err := uuid.Parse(req.ResourceID)
	if err != nil {
		h.BadRequest(c, "Invalid resource ID")
		return
	}
	period := time.Now()
	if req.Period != nil {
		period = *req.Period
	}

	record, err := h.usageService.RecordUsage(
		c.Request.Context(), resourceID, req.ComponentType, period, req.Usage, req.MeasuredUnit)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, dto.NewComponentUsageResponse(record))
}

// RegisterRoutes registers all usage routes
func (h *UsageHandler) RegisterRoutes(rg *gin.RouterGroup) {
	usage := rg.Group("/billing/usage")
	{
		usage.POST("", h.Record)
	}
}
