package persistence

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/cloudmarket/backend/internal/domain/billing"
	"github.com/cloudmarket/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newMockInvoiceItemRepository(t *testing.T) (*GormInvoiceItemRepository, sqlmock.Sqlmock, *sql.DB) {
	gormDB, mock, mockDB := newMockGormDB(t)
	return NewGormInvoiceItemRepository(gormDB), mock, mockDB
}

func itemColumns() []string {
	return []string{"id", "invoice_id", "resource_kind", "resource_id", "name",
		"unit_price", "unit", "quantity", "factor", "start_time", "end_time", "credit_applied"}
}

func TestGormInvoiceItemRepository_ListByInvoice(t *testing.T) {
	t.Run("lists items ordered by interval start", func(t *testing.T) {
		repo, mock, mockDB := newMockInvoiceItemRepository(t)
		defer mockDB.Close()

		invoiceID := uuid.New()
		start := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
		end := time.Date(2026, time.March, 11, 0, 0, 0, 0, time.UTC)

		rows := sqlmock.NewRows(itemColumns()).
			AddRow(uuid.New(), invoiceID, "INSTANCE", uuid.New(), "Instance web-1",
				decimal.NewFromInt(10), "PER_DAY", decimal.NewFromInt(1), decimal.NewFromInt(1),
				start, end, decimal.Zero)

		mock.ExpectQuery(`SELECT \* FROM "invoice_items" WHERE invoice_id = \$1 ORDER BY start_time ASC, created_at ASC`).
			WithArgs(invoiceID).
			WillReturnRows(rows)

		items, err := repo.ListByInvoice(context.Background(), invoiceID)

		assert.NoError(t, err)
		require.Len(t, items, 1)
		assert.Equal(t, billing.KindInstance, items[0].Resource.Kind)
		assert.Equal(t, billing.UnitPerDay, items[0].Unit)
		assert.True(t, items[0].Start.Equal(start))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormInvoiceItemRepository_FindOverlapping(t *testing.T) {
	invoiceID := uuid.New()
	resource := billing.ResourceRef{Kind: billing.KindInstance, ID: uuid.New()}
	dayStart := time.Date(2026, time.March, 15, 0, 0, 0, 0, time.UTC)
	nextDay := dayStart.AddDate(0, 0, 1)

	t.Run("matches an item ending within the contested day", func(t *testing.T) {
		repo, mock, mockDB := newMockInvoiceItemRepository(t)
		defer mockDB.Close()

		itemID := uuid.New()
		rows := sqlmock.NewRows(itemColumns()).
			AddRow(itemID, invoiceID, "INSTANCE", resource.ID, "Instance web-1",
				decimal.NewFromInt(10), "PER_DAY", decimal.NewFromInt(1), decimal.NewFromInt(1),
				time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC),
				dayStart.Add(9*time.Hour), decimal.Zero)

		mock.ExpectQuery(`SELECT \* FROM "invoice_items" WHERE invoice_id = \$1 AND resource_kind = \$2 AND resource_id = \$3 AND end_time > \$4 AND end_time <= \$5 ORDER BY end_time DESC.* LIMIT .*`).
			WithArgs(invoiceID, resource.Kind, resource.ID, dayStart, nextDay, 1).
			WillReturnRows(rows)

		item, err := repo.FindOverlapping(context.Background(), invoiceID, resource, dayStart)

		assert.NoError(t, err)
		require.NotNil(t, item)
		assert.Equal(t, itemID, item.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("a midnight end belongs to the previous day", func(t *testing.T) {
		// The window is half open on the left, so an item ending exactly at
		// dayStart is not a candidate. The repository encodes that in the
		// query itself; here we only pin the window bounds it sends.
		repo, mock, mockDB := newMockInvoiceItemRepository(t)
		defer mockDB.Close()

		mock.ExpectQuery(`SELECT \* FROM "invoice_items" WHERE invoice_id = \$1 AND resource_kind = \$2 AND resource_id = \$3 AND end_time > \$4 AND end_time <= \$5 ORDER BY end_time DESC.* LIMIT .*`).
			WithArgs(invoiceID, resource.Kind, resource.ID, dayStart, nextDay, 1).
			WillReturnError(gorm.ErrRecordNotFound)

		item, err := repo.FindOverlapping(context.Background(), invoiceID, resource, dayStart)

		assert.Nil(t, item)
		assert.Equal(t, shared.ErrNotFound, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormInvoiceItemRepository_FindUsageItem(t *testing.T) {
	t.Run("finds the quantity item of a component", func(t *testing.T) {
		repo, mock, mockDB := newMockInvoiceItemRepository(t)
		defer mockDB.Close()

		invoiceID := uuid.New()
		resource := billing.ResourceRef{Kind: billing.KindInstance, ID: uuid.New()}
		period := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)

		rows := sqlmock.NewRows(append(itemColumns(), "component_type")).
			AddRow(uuid.New(), invoiceID, "INSTANCE", resource.ID, "storage usage of web-1",
				decimal.NewFromInt(5), "QUANTITY", decimal.NewFromInt(2048), decimal.NewFromInt(1024),
				period, billing.MonthEnd(period), decimal.Zero, "storage")

		mock.ExpectQuery(`SELECT \* FROM "invoice_items" WHERE invoice_id = \$1 AND resource_kind = \$2 AND resource_id = \$3 AND unit = \$4 AND component_type = \$5 ORDER BY .* LIMIT .*`).
			WithArgs(invoiceID, resource.Kind, resource.ID, billing.UnitQuantity, "storage", 1).
			WillReturnRows(rows)

		item, err := repo.FindUsageItem(context.Background(), invoiceID, resource, "storage")

		assert.NoError(t, err)
		require.NotNil(t, item)
		assert.Equal(t, "storage", item.ComponentType)
		assert.True(t, decimal.NewFromInt(2048).Equal(item.Quantity))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormInvoiceItemRepository_Create(t *testing.T) {
	t.Run("inserts a new item", func(t *testing.T) {
		repo, mock, mockDB := newMockInvoiceItemRepository(t)
		defer mockDB.Close()

		item, err := billing.NewInvoiceItem(uuid.New(),
			billing.ResourceRef{Kind: billing.KindVolume, ID: uuid.New()}, "Volume data (100 GB)",
			decimal.NewFromInt(2), billing.UnitPerDay,
			time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC),
			time.Date(2026, time.April, 1, 0, 0, 0, 0, time.UTC))
		require.NoError(t, err)

		mock.ExpectExec(`INSERT INTO "invoice_items"`).
			WillReturnResult(sqlmock.NewResult(0, 1))

		assert.NoError(t, repo.Create(context.Background(), item))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
