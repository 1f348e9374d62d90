package billing

import (
	"context"
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"github.com/cloudmarket/backend/internal/domain/billing"
	"github.com/cloudmarket/backend/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ExportService renders finalized invoices as CSV for the downstream
// accounting system
type ExportService struct {
	invoiceRepo  billing.InvoiceRepository
	itemRepo     billing.InvoiceItemRepository
	customerRepo billing.CustomerRepository
	logger       *zap.Logger

	// Configuration
	delimiter rune
}

// ExportServiceConfig contains configuration for ExportService
type ExportServiceConfig struct {
	Delimiter rune
}

// DefaultExportServiceConfig returns default configuration
func DefaultExportServiceConfig() ExportServiceConfig {
	return ExportServiceConfig{
		Delimiter: ',',
	}
}

// NewExportService creates a new ExportService
func NewExportService(
	invoiceRepo billing.InvoiceRepository,
	itemRepo billing.InvoiceItemRepository,
	customerRepo billing.CustomerRepository,
	logger *zap.Logger,
	config ExportServiceConfig,
) *ExportService {
	if config.Delimiter == 0 {
		config.Delimiter = ','
	}
	return &ExportService{
		invoiceRepo:  invoiceRepo,
		itemRepo:     itemRepo,
		customerRepo: customerRepo,
		logger:       logger,
		delimiter:    config.Delimiter,
	}
}

var exportHeader = []string{
	"invoice_id", "customer", "year", "month", "state",
	"item_name", "article_code", "product_code", "project",
	"start", "end", "unit", "unit_price", "quantity", "total",
}

// ExportInvoice writes one invoice and its items as CSV rows. Pending
// invoices are not exportable; accounting only receives frozen amounts.
func (s *ExportService) ExportInvoice(ctx context.Context, w io.Writer, invoiceID uuid.UUID) error {
	invoice, err := s.invoiceRepo.FindByID(ctx, invoiceID)
	if err != nil {
		return err
	}
	if invoice.IsPending() {
		return shared.NewDomainError("INVOICE_NOT_FINALIZED",
			"Pending invoices cannot be exported")
	}

	cw := csv.NewWriter(w)
	cw.Comma = s.delimiter
	if err := cw.Write(exportHeader); err != nil {
		return err
	}
	if err := s.writeInvoice(ctx, cw, invoice); err != nil {
		return err
	}
	cw.Flush()
	return cw.Error()
}

// ExportMonth writes every finalized invoice of the month as CSV rows
func (s *ExportService) ExportMonth(ctx context.Context, w io.Writer, year int, month time.Month) error {
	invoices, err := s.invoiceRepo.ListByStateForMonth(ctx, billing.InvoiceStateCreated, year, month)
	if err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	cw.Comma = s.delimiter
	if err := cw.Write(exportHeader); err != nil {
		return err
	}
	for idx := range invoices {
		if err := s.writeInvoice(ctx, cw, &invoices[idx]); err != nil {
			return err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return err
	}

	s.logger.Info("Exported invoices",
		zap.Int("year", year),
		zap.Int("month", int(month)),
		zap.Int("count", len(invoices)))
	return nil
}

func (s *ExportService) writeInvoice(ctx context.Context, cw *csv.Writer, invoice *billing.Invoice) error {
	customer, err := s.customerRepo.FindByID(ctx, invoice.CustomerID)
	if err != nil {
		return err
	}
	items, err := s.itemRepo.ListByInvoice(ctx, invoice.ID)
	if err != nil {
		return err
	}

	for idx := range items {
		item := &items[idx]
		if item.IsZeroLength() {
			continue
		}
		row := []string{
			invoice.ID.String(),
			customer.Name,
			strconv.Itoa(invoice.Year),
			strconv.Itoa(int(invoice.Month)),
			invoice.State.String(),
			item.Name,
			item.ArticleCode,
			item.ProductCode,
			item.ProjectName,
			item.Start.Format(time.RFC3339),
			item.End.Format(time.RFC3339),
			item.Unit.String(),
			item.UnitPrice.String(),
			item.Quantity.String(),
			item.TotalPrice().String(),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	return nil
}
