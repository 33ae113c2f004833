package services

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/railbook/train-booking-backend/internal/database"
	"github.com/railbook/train-booking-backend/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

const testFareFloor = 134

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 11, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// testEnv wires the booking core over one in-memory store
type testEnv struct {
	store     *database.MemoryStore
	clock     *fakeClock
	trains    *TrainService
	inventory *CoachInventory
	allocator *SeatAllocator
	ids       *BookingIdentifierGenerator
	bookings  *BookingService
	sweeper   *HoldExpiryService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWithBookings(t, nil)
}

// newTestEnvWithBookings lets a test wrap the booking store, e.g. to inject failures
func newTestEnvWithBookings(t *testing.T, wrap func(BookingStore) BookingStore) *testEnv {
	t.Helper()

	logger := newTestLogger()
	store := database.NewMemoryStore()
	clock := newFakeClock()

	var bookingStore BookingStore = store
	if wrap != nil {
		bookingStore = wrap(store)
	}

	env := &testEnv{store: store, clock: clock}
	env.trains = NewTrainService(store, logger)
	env.trains.now = clock.Now
	env.inventory = NewCoachInventory(store, store)
	env.inventory.now = clock.Now
	env.allocator = NewSeatAllocator(store, store, 10*time.Minute, logger)
	env.allocator.now = clock.Now
	env.ids = NewBookingIdentifierGenerator(bookingStore, "RBK", 6, 10)
	env.bookings = NewBookingService(store, store, bookingStore, env.allocator,
		NewFareCalculator(testFareFloor), env.ids, "INR", logger)
	env.bookings.now = clock.Now
	env.sweeper = NewHoldExpiryService(store, 2, logger)
	env.sweeper.now = clock.Now
	return env
}

// seedTrain creates a train with a 4-seat 3A coach (1450) and an 8-seat SL coach priced under the floor
func (e *testEnv) seedTrain(t *testing.T) *models.Train {
	t.Helper()
	train, err := e.trains.CreateTrain(context.Background(), &models.TrainInput{
		Number:      "12951",
		Name:        "Mumbai Rajdhani",
		Origin:      "Mumbai Central",
		Destination: "New Delhi",
		Coaches: []models.CoachInput{
			{Class: models.CoachClass3A, TotalSeats: 4, Price: 1450},
			{Class: models.CoachClassSL, TotalSeats: 8, Price: 100},
		},
	})
	require.NoError(t, err)
	return train
}

func (e *testEnv) availability(t *testing.T, coach models.Coach) models.Availability {
	t.Helper()
	avail, err := e.inventory.GetAvailability(context.Background(), coach.ID)
	require.NoError(t, err)
	return avail
}

func testPassengers(n int) []models.Passenger {
	names := []string{"Asha Rao", "Ravi Rao", "Meera Rao", "Kiran Rao", "Dev Rao"}
	out := make([]models.Passenger, n)
	for i := range out {
		out[i] = models.Passenger{Name: names[i%len(names)], Age: 30 + i, Gender: "female"}
	}
	if n > 0 {
		out[0].Email = "Asha@Example.com"
		out[0].Phone = "+91 98765 43210"
	}
	return out
}
