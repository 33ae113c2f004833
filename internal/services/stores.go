package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/railbook/train-booking-backend/internal/models"
)

// TrainStore persists trains and their coaches.
// Implemented by database.TrainRepository and database.MemoryStore.
type TrainStore interface {
	CreateTrain(ctx context.Context, train *models.Train, seats []models.Seat) error
	UpdateTrain(ctx context.Context, train *models.Train, seats []models.Seat, replaceCoaches bool, now time.Time) error
	DeleteTrain(ctx context.Context, id uuid.UUID, now time.Time) error
	GetTrain(ctx context.Context, id uuid.UUID) (*models.Train, error)
	GetTrainByNumber(ctx context.Context, number string) (*models.Train, error)
	ListTrains(ctx context.Context) ([]models.Train, error)
	ListCoaches(ctx context.Context, trainID uuid.UUID) ([]models.Coach, error)
	GetCoach(ctx context.Context, coachID uuid.UUID) (*models.Coach, error)
}

// SeatStore owns per-seat occupancy. HoldSeats runs pick while the coach is locked
// and applies the result all or nothing.
type SeatStore interface {
	ListSeats(ctx context.Context, coachID uuid.UUID) ([]models.Seat, error)
	Availability(ctx context.Context, coachID uuid.UUID, now time.Time) (models.Availability, error)
	HoldSeats(ctx context.Context, coachID, holdID uuid.UUID, now, expiresAt time.Time, pick models.SeatPicker) ([]models.Seat, error)
	GetHeldSeats(ctx context.Context, holdID uuid.UUID) ([]models.Seat, error)
	ReleaseHold(ctx context.Context, holdID uuid.UUID, now time.Time) (int, error)
	ReleaseExpiredHolds(ctx context.Context, now time.Time, limit int) (int, error)
}

// BookingIDChecker answers whether a booking identifier is already in use
type BookingIDChecker interface {
	BookingIDExists(ctx context.Context, bookingID string) (bool, error)
}

// BookingStore persists bookings. CreateBooking books the hold's seats in the same
// transaction and fails with models.ErrHoldExpired if any of them lapsed.
type BookingStore interface {
	BookingIDChecker
	CreateBooking(ctx context.Context, booking *models.Booking, holdID uuid.UUID, now time.Time) error
	GetBooking(ctx context.Context, bookingID string) (*models.Booking, error)
	ListBookings(ctx context.Context, limit, offset int) ([]models.Booking, error)
	ListPassengers(ctx context.Context, filter models.PassengerFilter) ([]models.PassengerRow, error)
}

// UserStore persists accounts
type UserStore interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error
	MarkEmailVerified(ctx context.Context, id uuid.UUID) error
}
