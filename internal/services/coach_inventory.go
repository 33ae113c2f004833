package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/railbook/train-booking-backend/internal/models"
)

// CoachInventory answers coach and seat availability questions from the seat records
type CoachInventory struct {
	trains TrainStore
	seats  SeatStore
	now    func() time.Time
}

// NewCoachInventory creates a new CoachInventory
func NewCoachInventory(trains TrainStore, seats SeatStore) *CoachInventory {
	return &CoachInventory{
		trains: trains,
		seats:  seats,
		now:    time.Now,
	}
}

// ListCoaches returns the coaches of a train in position order
func (i *CoachInventory) ListCoaches(ctx context.Context, trainID uuid.UUID) ([]models.Coach, error) {
	if _, err := i.trains.GetTrain(ctx, trainID); err != nil {
		return nil, err
	}
	return i.trains.ListCoaches(ctx, trainID)
}

// GetAvailability counts the coach's seats by effective status
func (i *CoachInventory) GetAvailability(ctx context.Context, coachID uuid.UUID) (models.Availability, error) {
	if _, err := i.trains.GetCoach(ctx, coachID); err != nil {
		return models.Availability{}, err
	}
	return i.seats.Availability(ctx, coachID, i.now())
}

// SeatMap returns every seat of the coach with its effective status.
// Lapsed holds are shown as vacant and their hold details are dropped.
func (i *CoachInventory) SeatMap(ctx context.Context, coachID uuid.UUID) ([]models.Seat, error) {
	if _, err := i.trains.GetCoach(ctx, coachID); err != nil {
		return nil, err
	}

	seats, err := i.seats.ListSeats(ctx, coachID)
	if err != nil {
		return nil, err
	}

	now := i.now()
	for idx := range seats {
		seat := &seats[idx]
		if status := seat.EffectiveStatus(now); status != seat.Status {
			seat.Status = status
			seat.HoldID = nil
			seat.HeldUntil = nil
		}
	}
	return seats, nil
}
