package handler

import (
	"time"

	"github.com/cloudmarket/backend/internal/domain/billing"
	"github.com/cloudmarket/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Resource lifecycle event types accepted from the orchestration layer
const (
	EventResourceCreated    = "resource.created"
	EventResourcePlanChange = "resource.plan_changed"
	EventResourceTerminated = "resource.terminated"
)

// ResourceEventHandler receives resource lifecycle notifications and routes
// them into the billing engine. The orchestration layer owns the resource
// records; this endpoint only reacts to their state changes.
type ResourceEventHandler struct {
	BaseHandler
	lifecycle    billing.ResourceLifecycle
	resourceRepo billing.ResourceRepository
}

// NewResourceEventHandler creates a new ResourceEventHandler
func NewResourceEventHandler(
	lifecycle billing.ResourceLifecycle,
	resourceRepo billing.ResourceRepository,
) *ResourceEventHandler {
	return &ResourceEventHandler{
		lifecycle:    lifecycle,
		resourceRepo: resourceRepo,
	}
}

// Handle dispatches one lifecycle event to the matching billing operation
func (h *ResourceEventHandler) Handle(c *gin.Context) {
	var req dto.ResourceEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}
	resourceID, err := uuid.Parse(req.ResourceID)
	if err != nil {
		h.BadRequest(c, "Invalid resource ID")
		return
	}
	occurredAt := time.Now()
	if req.OccurredAt != nil {
		occurredAt = *req.OccurredAt
	}

	resource, err := h.resourceRepo.FindByID(c.Request.Context(), resourceID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	switch req.EventType {
	case EventResourceCreated:
		err = h.lifecycle.OnResourceCreated(c.Request.Context(), resource, occurredAt)
	case EventResourcePlanChange:
		if req.NewPlanID == "" {
			h.BadRequest(c, "new_plan_id is required for plan change events")
			return
		}
		var newPlanID uuid.UUID
		newPlanID, err = uuid.Parse(req.NewPlanID)
		if err != nil {
			h.BadRequest(c, "Invalid plan ID")
			return
		}
		err = h.lifecycle.OnPlanChanged(c.Request.Context(), resource, newPlanID, occurredAt)
	case EventResourceTerminated:
		err = h.lifecycle.OnResourceTerminated(c.Request.Context(), resource, occurredAt)
	default:
		h.BadRequest(c, "Unknown event type")
		return
	}
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}

// RegisterRoutes registers all resource event routes
func (h *ResourceEventHandler) RegisterRoutes(rg *gin.RouterGroup) {
	events := rg.Group("/billing/events")
	{
		events.POST("", h.Handle)
	}
}
