package billing

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewComponentUsage(t *testing.T) {
	resourceID := uuid.New()

	t.Run("normalizes the period to the month start", func(t *testing.T) {
		reported := time.Date(2026, time.March, 17, 14, 30, 0, 0, time.UTC)
		usage, err := NewComponentUsage(resourceID, "cpu", reported, decimal.NewFromInt(12), "cores")
		require.NoError(t, err)

		assert.Equal(t, time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC), usage.BillingPeriod)
		assert.Equal(t, "cpu", usage.ComponentType)
		assert.Equal(t, "cores", usage.MeasuredUnit)
		assert.False(t, usage.RecordedAt.IsZero())
	})

	t.Run("fails with empty resource", func(t *testing.T) {
		_, err := NewComponentUsage(uuid.Nil, "cpu", time.Now(), decimal.NewFromInt(1), "cores")
		require.Error(t, err)
	})

	t.Run("fails with empty component type", func(t *testing.T) {
		_, err := NewComponentUsage(resourceID, "", time.Now(), decimal.NewFromInt(1), "cores")
		require.Error(t, err)
	})

	t.Run("fails with negative usage", func(t *testing.T) {
		_, err := NewComponentUsage(resourceID, "cpu", time.Now(), decimal.NewFromInt(-1), "cores")
		require.Error(t, err)
	})
}
