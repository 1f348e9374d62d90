package billing

import (
	"bytes"
	"context"
	"encoding/csv"
	"testing"
	"time"

	"github.com/cloudmarket/backend/internal/domain/billing"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newExportFixture(t *testing.T, config ExportServiceConfig) (*ExportService, *testRepos) {
	t.Helper()
	repos := newTestRepos()
	service := NewExportService(repos.invoices, repos.items, repos.customers, zap.NewNop(), config)
	return service, repos
}

func finalizedInvoice(t *testing.T, customerID uuid.UUID) *billing.Invoice {
	t.Helper()
	invoice := pendingInvoice(t, customerID, 2026, time.March)
	require.NoError(t, invoice.Finalize(decimal.NewFromInt(110),
		time.Date(2026, time.April, 1, 0, 0, 0, 0, time.UTC)))
	return invoice
}

func TestExportServiceExportInvoice(t *testing.T) {
	ctx := context.Background()
	customerID := uuid.New()

	t.Run("writes header and item rows", func(t *testing.T) {
		service, repos := newExportFixture(t, DefaultExportServiceConfig())
		invoice := finalizedInvoice(t, customerID)

		item, err := billing.NewInvoiceItem(invoice.ID,
			billing.ResourceRef{Kind: billing.KindInstance, ID: uuid.New()}, "Instance web-1",
			decimal.NewFromInt(10), billing.UnitPerDay,
			invoice.PeriodStart(), invoice.PeriodStart().AddDate(0, 0, 10))
		require.NoError(t, err)
		item.WithCodes("ART-42", "PRD-7")
		item.ProjectName = "acme-prod"

		repos.invoices.On("FindByID", ctx, invoice.ID).Return(invoice, nil)
		repos.customers.On("FindByID", ctx, customerID).
			Return(&billing.Customer{Name: "ACME Corp"}, nil)
		repos.items.On("ListByInvoice", ctx, invoice.ID).
			Return([]billing.InvoiceItem{*item}, nil)

		var buf bytes.Buffer
		require.NoError(t, service.ExportInvoice(ctx, &buf, invoice.ID))

		rows, err := csv.NewReader(bytes.NewReader(buf.Bytes())).ReadAll()
		require.NoError(t, err)
		require.Len(t, rows, 2)

		assert.Equal(t, exportHeader, rows[0])
		row := rows[1]
		assert.Equal(t, invoice.ID.String(), row[0])
		assert.Equal(t, "ACME Corp", row[1])
		assert.Equal(t, "2026", row[2])
		assert.Equal(t, "3", row[3])
		assert.Equal(t, "CREATED", row[4])
		assert.Equal(t, "Instance web-1", row[5])
		assert.Equal(t, "ART-42", row[6])
		assert.Equal(t, "PRD-7", row[7])
		assert.Equal(t, "acme-prod", row[8])
		assert.Equal(t, "PER_DAY", row[11])
		assert.Equal(t, "10", row[12])
		assert.Equal(t, "100", row[14])
	})

	t.Run("zero length items are not exported", func(t *testing.T) {
		service, repos := newExportFixture(t, DefaultExportServiceConfig())
		invoice := finalizedInvoice(t, customerID)

		collapsed, err := billing.NewInvoiceItem(invoice.ID,
			billing.ResourceRef{Kind: billing.KindInstance, ID: uuid.New()}, "collapsed",
			decimal.NewFromInt(1), billing.UnitPerDay,
			invoice.PeriodStart(), invoice.PeriodStart())
		require.NoError(t, err)

		repos.invoices.On("FindByID", ctx, invoice.ID).Return(invoice, nil)
		repos.customers.On("FindByID", ctx, customerID).
			Return(&billing.Customer{Name: "ACME Corp"}, nil)
		repos.items.On("ListByInvoice", ctx, invoice.ID).
			Return([]billing.InvoiceItem{*collapsed}, nil)

		var buf bytes.Buffer
		require.NoError(t, service.ExportInvoice(ctx, &buf, invoice.ID))

		rows, err := csv.NewReader(bytes.NewReader(buf.Bytes())).ReadAll()
		require.NoError(t, err)
		assert.Len(t, rows, 1, "header only")
	})

	t.Run("pending invoices are not exportable", func(t *testing.T) {
		service, repos := newExportFixture(t, DefaultExportServiceConfig())
		invoice := pendingInvoice(t, customerID, 2026, time.March)

		repos.invoices.On("FindByID", ctx, invoice.ID).Return(invoice, nil)

		var buf bytes.Buffer
		err := service.ExportInvoice(ctx, &buf, invoice.ID)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "cannot be exported")
		assert.Zero(t, buf.Len())
	})

	t.Run("honors a custom delimiter", func(t *testing.T) {
		service, repos := newExportFixture(t, ExportServiceConfig{Delimiter: ';'})
		invoice := finalizedInvoice(t, customerID)

		repos.invoices.On("FindByID", ctx, invoice.ID).Return(invoice, nil)
		repos.customers.On("FindByID", ctx, customerID).
			Return(&billing.Customer{Name: "ACME Corp"}, nil)
		repos.items.On("ListByInvoice", ctx, invoice.ID).Return([]billing.InvoiceItem{}, nil)

		var buf bytes.Buffer
		require.NoError(t, service.ExportInvoice(ctx, &buf, invoice.ID))
		assert.Contains(t, buf.String(), "invoice_id;customer;year")
	})
}

func TestExportServiceExportMonth(t *testing.T) {
	ctx := context.Background()

	t.Run("exports every finalized invoice of the month", func(t *testing.T) {
		service, repos := newExportFixture(t, DefaultExportServiceConfig())
		first, second := uuid.New(), uuid.New()
		invoiceA := finalizedInvoice(t, first)
		invoiceB := finalizedInvoice(t, second)

		itemA, err := billing.NewInvoiceItem(invoiceA.ID,
			billing.ResourceRef{Kind: billing.KindVolume, ID: uuid.New()}, "Volume data (100 GB)",
			decimal.NewFromInt(2), billing.UnitPerDay,
			invoiceA.PeriodStart(), invoiceA.PeriodEnd())
		require.NoError(t, err)

		repos.invoices.On("ListByStateForMonth", ctx, billing.InvoiceStateCreated, 2026, time.March).
			Return([]billing.Invoice{*invoiceA, *invoiceB}, nil)
		repos.customers.On("FindByID", ctx, first).Return(&billing.Customer{Name: "First"}, nil)
		repos.customers.On("FindByID", ctx, second).Return(&billing.Customer{Name: "Second"}, nil)
		repos.items.On("ListByInvoice", ctx, invoiceA.ID).Return([]billing.InvoiceItem{*itemA}, nil)
		repos.items.On("ListByInvoice", ctx, invoiceB.ID).Return([]billing.InvoiceItem{}, nil)

		var buf bytes.Buffer
		require.NoError(t, service.ExportMonth(ctx, &buf, 2026, time.March))

		rows, err := csv.NewReader(bytes.NewReader(buf.Bytes())).ReadAll()
		require.NoError(t, err)
		require.Len(t, rows, 2, "header plus one row; the second invoice has no items")
		assert.Equal(t, "First", rows[1][1])
	})
}
