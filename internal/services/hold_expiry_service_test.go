package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/railbook/train-booking-backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHoldExpiryService_RunOnce(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	train := env.seedTrain(t)
	sleeper := train.Coaches[1]

	stale, err := env.allocator.Allocate(ctx, sleeper.ID, models.SeatSelection{Count: 5})
	require.NoError(t, err)

	env.clock.Advance(6 * time.Minute)
	fresh, err := env.allocator.Allocate(ctx, sleeper.ID, models.SeatSelection{Count: 2})
	require.NoError(t, err)

	env.clock.Advance(5 * time.Minute)

	// batch size is 2 in the test env, so five lapsed seats take three batches
	result, err := env.sweeper.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, result.Released)
	assert.Equal(t, 3, result.Batches)

	seats, err := env.store.GetHeldSeats(ctx, stale.ID)
	require.NoError(t, err)
	assert.Empty(t, seats)

	live, err := env.allocator.GetHold(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Len(t, live.Seats, 2)

	avail := env.availability(t, sleeper)
	assert.Equal(t, 6, avail.Vacant)
	assert.Equal(t, 2, avail.Held)

	again, err := env.sweeper.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, again.Released)
}

type brokenSeatStore struct {
	SeatStore
}

func (brokenSeatStore) ReleaseExpiredHolds(ctx context.Context, now time.Time, limit int) (int, error) {
	return 0, errors.New("connection reset")
}

func (brokenSeatStore) ReleaseHold(ctx context.Context, holdID uuid.UUID, now time.Time) (int, error) {
	return 0, errors.New("connection reset")
}

func TestHoldExpiryService_StoreError(t *testing.T) {
	sweeper := NewHoldExpiryService(brokenSeatStore{}, 10, newTestLogger())

	_, err := sweeper.RunOnce(context.Background())
	assert.Error(t, err)
}

func TestCronService_RunHoldSweepNow(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	coach := env.seedTrain(t).Coaches[0]

	_, err := env.allocator.Allocate(ctx, coach.ID, models.SeatSelection{Count: 1})
	require.NoError(t, err)
	env.clock.Advance(time.Hour)

	cronSvc := NewCronService(env.sweeper, "@every 1m", newTestLogger())
	require.NoError(t, cronSvc.Start())
	defer cronSvc.Stop()

	status := cronSvc.GetJobStatus()
	assert.Equal(t, 1, status["job_count"])

	result, err := cronSvc.RunHoldSweepNow(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Released)
}

func TestCronService_InvalidSchedule(t *testing.T) {
	cronSvc := NewCronService(NewHoldExpiryService(brokenSeatStore{}, 10, newTestLogger()), "not a schedule", newTestLogger())
	assert.Error(t, cronSvc.Start())
}
