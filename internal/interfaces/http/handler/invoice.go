package handler

import (
	"context"
	"fmt"
	"time"

	billingapp "github.com/cloudmarket/backend/internal/application/billing"
	"github.com/cloudmarket/backend/internal/domain/billing"
	"github.com/cloudmarket/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// InvoiceHandler handles invoice-related API endpoints
type InvoiceHandler struct {
	BaseHandler
	invoiceService *billingapp.InvoiceService
	exportService  *billingapp.ExportService
}

// NewInvoiceHandler creates a new InvoiceHandler
func NewInvoiceHandler(
	invoiceService *billingapp.InvoiceService,
	exportService *billingapp.ExportService,
) *InvoiceHandler {
	return &InvoiceHandler{
		invoiceService: invoiceService,
		exportService:  exportService,
	}
}

// List returns invoices matching the query filters
func (h *InvoiceHandler) List(c *gin.Context) {
	req := dto.ListInvoicesRequest{ListRequest: dto.DefaultListRequest()}
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	filter := billing.InvoiceFilter{}
	filter.Page = req.Page
	filter.PageSize = req.PageSize
	filter.OrderBy = req.OrderBy
	filter.OrderDir = req.OrderDir
	if req.CustomerID != "" {
		id, err := uuid.Parse(req.CustomerID)
		if err != nil {
			h.BadRequest(c, "Invalid customer ID")
			return
		}
		filter.CustomerID = &id
	}
	filter.Year = req.Year
	filter.Month = req.Month
	if req.State != "" {
		state := billing.InvoiceState(req.State)
		filter.State = &state
	}

	invoices, total, err := h.invoiceService.ListInvoices(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	responses := make([]dto.InvoiceResponse, len(invoices))
	for i := range invoices {
		responses[i] = dto.NewInvoiceResponse(&invoices[i])
	}
	h.SuccessWithMeta(c, responses, total, req.Page, req.PageSize)
}

// Get returns one invoice with its items
func (h *InvoiceHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid invoice ID")
		return
	}

	invoice, items, err := h.invoiceService.GetInvoice(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, dto.InvoiceWithItemsResponse{
		InvoiceResponse: dto.NewInvoiceResponse(invoice),
		Items:           dto.NewInvoiceItemResponses(items),
	})
}

// GetTotal returns the amount accrued on the invoice up to now
func (h *InvoiceHandler) GetTotal(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid invoice ID")
		return
	}

	now := time.Now()
	total, err := h.invoiceService.CurrentTotal(c.Request.Context(), id, now)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	invoice, _, err := h.invoiceService.GetInvoice(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, dto.InvoiceTotalResponse{
		InvoiceID: id.String(),
		State:     invoice.State.String(),
		Total:     total,
		AsOf:      now,
	})
}

// GetCurrent returns the customer's invoice for the running month, creating
// a pending one when absent
func (h *InvoiceHandler) GetCurrent(c *gin.Context) {
	customerID, err := uuid.Parse(c.Param("customerID"))
	if err != nil {
		h.BadRequest(c, "Invalid customer ID")
		return
	}

	invoice, err := h.invoiceService.GetOrCreateCurrent(c.Request.Context(), customerID, time.Now())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.NewInvoiceResponse(invoice))
}

// Pay settles a created invoice
func (h *InvoiceHandler) Pay(c *gin.Context) {
	h.transition(c, h.invoiceService.MarkPaid)
}

// Cancel voids a created invoice
func (h *InvoiceHandler) Cancel(c *gin.Context) {
	h.transition(c, h.invoiceService.Cancel)
}

func (h *InvoiceHandler) transition(c *gin.Context, apply func(ctx context.Context, id uuid.UUID, at time.Time) (*billing.Invoice, error)) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid invoice ID")
		return
	}

	invoice, err := apply(c.Request.Context(), id, time.Now())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.NewInvoiceResponse(invoice))
}

// ListItems returns the items of one invoice
func (h *InvoiceHandler) ListItems(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid invoice ID")
		return
	}

	items, err := h.invoiceService.ListItems(c.Request.Context(), billing.InvoiceItemFilter{InvoiceID: &id})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.NewInvoiceItemResponses(items))
}

// CreateItem attaches a manual correction item to a pending invoice
func (h *InvoiceHandler) CreateItem(c *gin.Context) {
	invoiceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid invoice ID")
		return
	}

	var req dto.CreateInvoiceItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}
	resourceID, err := uuid.Parse(req.ResourceID)
	if err != nil {
		h.BadRequest(c, "Invalid resource ID")
		return
	}

	item, err := h.invoiceService.CreateItem(c.Request.Context(), billingapp.CreateItemInput{
		InvoiceID: invoiceID,
		Resource: billing.ResourceRef{
			Kind: billing.ResourceKind(req.ResourceKind),
			ID:   resourceID,
		},
		Name:          req.Name,
		UnitPrice:     req.UnitPrice,
		Unit:          billing.BillingUnit(req.Unit),
		Start:         req.Start,
		End:           req.End,
		Quantity:      req.Quantity,
		Factor:        req.Factor,
		MeasuredUnit:  req.MeasuredUnit,
		ComponentType: req.ComponentType,
		ArticleCode:   req.ArticleCode,
		ProductCode:   req.ProductCode,
		Details:       req.Details,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, dto.NewInvoiceItemResponse(item))
}

// UpdateItem corrects an item of a pending invoice
func (h *InvoiceHandler) UpdateItem(c *gin.Context) {
	itemID, err := uuid.Parse(c.Param("itemID"))
	if err != nil {
		h.BadRequest(c, "Invalid item ID")
		return
	}

	var req dto.UpdateInvoiceItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	item, err := h.invoiceService.UpdateItem(c.Request.Context(), itemID, billingapp.UpdateItemInput{
		Name:      req.Name,
		UnitPrice: req.UnitPrice,
		Quantity:  req.Quantity,
		Start:     req.Start,
		End:       req.End,
		Details:   req.Details,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.NewInvoiceItemResponse(item))
}

// DeleteItem removes an item from a pending invoice
func (h *InvoiceHandler) DeleteItem(c *gin.Context) {
	itemID, err := uuid.Parse(c.Param("itemID"))
	if err != nil {
		h.BadRequest(c, "Invalid item ID")
		return
	}

	if err := h.invoiceService.DeleteItem(c.Request.Context(), itemID); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}

// Export streams one finalized invoice as CSV
func (h *InvoiceHandler) Export(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid invoice ID")
		return
	}

	filename := fmt.Sprintf("invoice-%s.csv", id)
	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))

	if err := h.exportService.ExportInvoice(c.Request.Context(), c.Writer, id); err != nil {
		h.HandleError(c, err)
		return
	}
}

// ExportMonth streams every finalized invoice of a month as CSV
func (h *InvoiceHandler) ExportMonth(c *gin.Context) {
	var req struct {
		Year  int `form:"year" binding:"required,min=2000,max=2200"`
		Month int `form:"month" binding:"required,min=1,max=12"`
	}
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	filename := fmt.Sprintf("invoices-%04d-%02d.csv", req.Year, req.Month)
	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))

	if err := h.exportService.ExportMonth(c.Request.Context(), c.Writer, req.Year, time.Month(req.Month)); err != nil {
		h.HandleError(c, err)
		return
	}
}

// RegisterRoutes registers all invoice routes
func (h *InvoiceHandler) RegisterRoutes(rg *gin.RouterGroup) {
	invoices := rg.Group("/billing/invoices")
	{
		invoices.GET("", h.List)
		invoices.GET("/export", h.ExportMonth)
		invoices.GET("/:id", h.Get)
		invoices.GET("/:id/total", h.GetTotal)
		invoices.GET("/:id/export", h.Export)
		invoices.POST("/:id/pay", h.Pay)
		invoices.POST("/:id/cancel", h.Cancel)
		invoices.GET("/:id/items", h.ListItems)
		invoices.POST("/:id/items", h.CreateItem)
		invoices.PUT("/:id/items/:itemID", h.UpdateItem)
		invoices.DELETE("/:id/items/:itemID", h.DeleteItem)
	}

	customers := rg.Group("/billing/customers")
	{
		customers.GET("/:customerID/invoices/current", h.GetCurrent)
	}
}
