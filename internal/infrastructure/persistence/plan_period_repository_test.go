package persistence

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/cloudmarket/backend/internal/domain/billing"
	"github.com/cloudmarket/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newMockPlanPeriodRepository(t *testing.T) (*GormResourcePlanPeriodRepository, sqlmock.Sqlmock, *sql.DB) {
	gormDB, mock, mockDB := newMockGormDB(t)
	return NewGormResourcePlanPeriodRepository(gormDB), mock, mockDB
}

func TestGormResourcePlanPeriodRepository_FindOpen(t *testing.T) {
	resourceID := uuid.New()

	t.Run("finds the open period of a resource", func(t *testing.T) {
		repo, mock, mockDB := newMockPlanPeriodRepository(t)
		defer mockDB.Close()

		periodID := uuid.New()
		planID := uuid.New()
		start := time.Date(2026, time.March, 5, 10, 0, 0, 0, time.UTC)

		rows := sqlmock.NewRows([]string{"id", "resource_id", "plan_id", "start_time", "end_time"}).
			AddRow(periodID, resourceID, planID, start, nil)

		mock.ExpectQuery(`SELECT \* FROM "resource_plan_periods" WHERE resource_id = \$1 AND end_time IS NULL ORDER BY .* LIMIT .*`).
			WithArgs(resourceID, 1).
			WillReturnRows(rows)

		period, err := repo.FindOpen(context.Background(), resourceID)

		assert.NoError(t, err)
		require.NotNil(t, period)
		assert.Equal(t, planID, period.PlanID)
		assert.Nil(t, period.End)
		assert.True(t, period.IsOpen())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns not found sentinel when every period is sealed", func(t *testing.T) {
		repo, mock, mockDB := newMockPlanPeriodRepository(t)
		defer mockDB.Close()

		mock.ExpectQuery(`SELECT \* FROM "resource_plan_periods" WHERE resource_id = \$1 AND end_time IS NULL ORDER BY .* LIMIT .*`).
			WithArgs(resourceID, 1).
			WillReturnError(gorm.ErrRecordNotFound)

		period, err := repo.FindOpen(context.Background(), resourceID)

		assert.Nil(t, period)
		assert.Equal(t, shared.ErrNotFound, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormResourcePlanPeriodRepository_Create(t *testing.T) {
	newPeriod := func(t *testing.T) *billing.ResourcePlanPeriod {
		t.Helper()
		period, err := billing.NewResourcePlanPeriod(uuid.New(), uuid.New(),
			time.Date(2026, time.March, 5, 10, 0, 0, 0, time.UTC))
		require.NoError(t, err)
		return period
	}

	t.Run("inserts a new period", func(t *testing.T) {
		repo, mock, mockDB := newMockPlanPeriodRepository(t)
		defer mockDB.Close()

		mock.ExpectExec(`INSERT INTO "resource_plan_periods"`).
			WillReturnResult(sqlmock.NewResult(0, 1))

		assert.NoError(t, repo.Create(context.Background(), newPeriod(t)))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("a second open period violates the partial unique index", func(t *testing.T) {
		repo, mock, mockDB := newMockPlanPeriodRepository(t)
		defer mockDB.Close()

		mock.ExpectExec(`INSERT INTO "resource_plan_periods"`).
			WillReturnError(errors.New(`duplicate key value violates unique constraint "idx_period_one_open" (SQLSTATE 23505)`))

		err := repo.Create(context.Background(), newPeriod(t))

		assert.ErrorIs(t, err, billing.ErrPeriodAlreadyOpen)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
