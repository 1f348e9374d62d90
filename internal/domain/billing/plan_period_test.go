package billing

import (
	"context"
	"testing"
	"time"

	"github.com/cloudmarket/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memoryPeriodRepo is an in-memory ResourcePlanPeriodRepository for tracker
// tests
type memoryPeriodRepo struct {
	periods []*ResourcePlanPeriod
}

func (r *memoryPeriodRepo) FindOpen(_ context.Context, resourceID uuid.UUID) (*ResourcePlanPeriod, error) {
	for _, p := range r.periods {
		if p.ResourceID == resourceID && p.IsOpen() {
			return p, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *memoryPeriodRepo) Create(_ context.Context, period *ResourcePlanPeriod) error {
	for _, p := range r.periods {
		if p.ResourceID == period.ResourceID && p.IsOpen() && period.IsOpen() {
			return shared.ErrAlreadyExists
		}
	}
	r.periods = append(r.periods, period)
	return nil
}

func (r *memoryPeriodRepo) Save(_ context.Context, period *ResourcePlanPeriod) error {
	for i, p := range r.periods {
		if p.ID == period.ID {
			r.periods[i] = period
			return nil
		}
	}
	return shared.ErrNotFound
}

func (r *memoryPeriodRepo) ListByResource(_ context.Context, resourceID uuid.UUID) ([]ResourcePlanPeriod, error) {
	var out []ResourcePlanPeriod
	for _, p := range r.periods {
		if p.ResourceID == resourceID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func TestResourcePlanPeriod(t *testing.T) {
	start := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)

	t.Run("new period is open", func(t *testing.T) {
		period, err := NewResourcePlanPeriod(uuid.New(), uuid.New(), start)
		require.NoError(t, err)
		assert.True(t, period.IsOpen())
	})

	t.Run("fails without resource or plan", func(t *testing.T) {
		_, err := NewResourcePlanPeriod(uuid.Nil, uuid.New(), start)
		require.Error(t, err)
		_, err = NewResourcePlanPeriod(uuid.New(), uuid.Nil, start)
		require.Error(t, err)
	})

	t.Run("close seals the period once", func(t *testing.T) {
		period, err := NewResourcePlanPeriod(uuid.New(), uuid.New(), start)
		require.NoError(t, err)

		require.NoError(t, period.CloseAt(start.AddDate(0, 0, 10)))
		assert.False(t, period.IsOpen())
		require.Error(t, period.CloseAt(start.AddDate(0, 0, 20)))
	})

	t.Run("close before start is rejected", func(t *testing.T) {
		period, err := NewResourcePlanPeriod(uuid.New(), uuid.New(), start)
		require.NoError(t, err)
		require.Error(t, period.CloseAt(start.Add(-time.Hour)))
	})
}

func TestPlanPeriodTracker(t *testing.T) {
	ctx := context.Background()
	at := time.Date(2026, time.March, 5, 10, 0, 0, 0, time.UTC)

	t.Run("open starts a period", func(t *testing.T) {
		repo := &memoryPeriodRepo{}
		tracker := NewPlanPeriodTracker(repo)
		resourceID, planID := uuid.New(), uuid.New()

		period, err := tracker.Open(ctx, resourceID, planID, at)
		require.NoError(t, err)
		assert.Equal(t, planID, period.PlanID)
		assert.True(t, period.IsOpen())
	})

	t.Run("open while a period is open fails", func(t *testing.T) {
		repo := &memoryPeriodRepo{}
		tracker := NewPlanPeriodTracker(repo)
		resourceID := uuid.New()

		_, err := tracker.Open(ctx, resourceID, uuid.New(), at)
		require.NoError(t, err)

		_, err = tracker.Open(ctx, resourceID, uuid.New(), at.Add(time.Hour))
		assert.ErrorIs(t, err, ErrPeriodAlreadyOpen)
	})

	t.Run("close seals the open period", func(t *testing.T) {
		repo := &memoryPeriodRepo{}
		tracker := NewPlanPeriodTracker(repo)
		resourceID := uuid.New()

		_, err := tracker.Open(ctx, resourceID, uuid.New(), at)
		require.NoError(t, err)

		closed, err := tracker.Close(ctx, resourceID, at.AddDate(0, 0, 3))
		require.NoError(t, err)
		require.NotNil(t, closed)
		assert.False(t, closed.IsOpen())

		_, err = repo.FindOpen(ctx, resourceID)
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("close without an open period is a no-op", func(t *testing.T) {
		tracker := NewPlanPeriodTracker(&memoryPeriodRepo{})
		closed, err := tracker.Close(ctx, uuid.New(), at)
		require.NoError(t, err)
		assert.Nil(t, closed)
	})

	t.Run("switch plan keeps the timeline contiguous", func(t *testing.T) {
		repo := &memoryPeriodRepo{}
		tracker := NewPlanPeriodTracker(repo)
		resourceID, oldPlan, newPlan := uuid.New(), uuid.New(), uuid.New()

		_, err := tracker.Open(ctx, resourceID, oldPlan, at)
		require.NoError(t, err)

		switchAt := at.AddDate(0, 0, 7)
		opened, err := tracker.SwitchPlan(ctx, resourceID, newPlan, switchAt)
		require.NoError(t, err)
		assert.Equal(t, newPlan, opened.PlanID)
		assert.Equal(t, switchAt, opened.Start)

		periods, err := repo.ListByResource(ctx, resourceID)
		require.NoError(t, err)
		require.Len(t, periods, 2)
		require.NotNil(t, periods[0].End)
		assert.Equal(t, switchAt, *periods[0].End, "old period closed at the switch instant")
	})
}
