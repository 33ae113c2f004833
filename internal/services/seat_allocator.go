package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/railbook/train-booking-backend/internal/models"
	"github.com/sirupsen/logrus"
)

// SeatAllocator turns vacant seats into time-bounded holds.
// Every allocation is all or nothing: on failure no seat changes.
type SeatAllocator struct {
	trains       TrainStore
	seats        SeatStore
	holdDuration time.Duration
	logger       *logrus.Logger
	now          func() time.Time
}

// NewSeatAllocator creates a new SeatAllocator
func NewSeatAllocator(trains TrainStore, seats SeatStore, holdDuration time.Duration, logger *logrus.Logger) *SeatAllocator {
	return &SeatAllocator{
		trains:       trains,
		seats:        seats,
		holdDuration: holdDuration,
		logger:       logger,
		now:          time.Now,
	}
}

// Allocate holds the requested seats of a coach.
// Explicit selections fail with SeatUnavailableError listing every taken seat;
// count selections fail with InsufficientSeatsError when too few seats are vacant.
func (a *SeatAllocator) Allocate(ctx context.Context, coachID uuid.UUID, selection models.SeatSelection) (*models.Hold, error) {
	selection, err := normalizeSelection(selection)
	if err != nil {
		return nil, err
	}

	if _, err := a.trains.GetCoach(ctx, coachID); err != nil {
		return nil, err
	}

	var pick models.SeatPicker
	if selection.IsExplicit() {
		pick = explicitPicker(coachID, selection.SeatNumbers)
	} else {
		pick = countPicker(coachID, selection.Count)
	}

	holdID := uuid.New()
	now := a.now()
	expiresAt := now.Add(a.holdDuration)

	seats, err := a.seats.HoldSeats(ctx, coachID, holdID, now, expiresAt, pick)
	if err != nil {
		return nil, err
	}

	a.logger.WithFields(logrus.Fields{
		"hold_id":    holdID,
		"coach_id":   coachID,
		"seat_count": len(seats),
		"expires_at": expiresAt,
	}).Info("Seats held")

	return &models.Hold{
		ID:        holdID,
		CoachID:   coachID,
		Seats:     seats,
		ExpiresAt: expiresAt,
	}, nil
}

// GetHold returns an unexpired hold
func (a *SeatAllocator) GetHold(ctx context.Context, holdID uuid.UUID) (*models.Hold, error) {
	seats, err := a.seats.GetHeldSeats(ctx, holdID)
	if err != nil {
		return nil, err
	}
	if len(seats) == 0 {
		return nil, models.ErrHoldNotFound
	}

	hold := &models.Hold{ID: holdID, CoachID: seats[0].CoachID, Seats: seats}
	now := a.now()
	for _, s := range seats {
		if s.HoldExpired(now) {
			return nil, models.ErrHoldExpired
		}
		if s.HeldUntil != nil && (hold.ExpiresAt.IsZero() || s.HeldUntil.Before(hold.ExpiresAt)) {
			hold.ExpiresAt = *s.HeldUntil
		}
	}
	return hold, nil
}

// Release returns the hold's seats to vacant
func (a *SeatAllocator) Release(ctx context.Context, holdID uuid.UUID) error {
	released, err := a.seats.ReleaseHold(ctx, holdID, a.now())
	if err != nil {
		return err
	}
	if released == 0 {
		return models.ErrHoldNotFound
	}

	a.logger.WithFields(logrus.Fields{
		"hold_id":    holdID,
		"seat_count": released,
	}).Info("Hold released")
	return nil
}

// normalizeSelection trims seat numbers and rejects empty, duplicate or contradictory requests
func normalizeSelection(selection models.SeatSelection) (models.SeatSelection, error) {
	if len(selection.SeatNumbers) == 0 {
		if selection.Count <= 0 {
			return selection, models.NewValidationError("seatCount", "at least one seat must be requested")
		}
		return selection, nil
	}

	verr := &models.ValidationError{}
	seen := make(map[string]bool, len(selection.SeatNumbers))
	numbers := make([]string, 0, len(selection.SeatNumbers))
	for i, raw := range selection.SeatNumbers {
		n := strings.TrimSpace(raw)
		field := fmt.Sprintf("seatNumbers[%d]", i)
		switch {
		case n == "":
			verr.Add(field, "seat number is required")
		case seen[n]:
			verr.Add(field, fmt.Sprintf("seat %s is selected more than once", n))
		}
		seen[n] = true
		numbers = append(numbers, n)
	}
	if selection.Count > 0 && selection.Count != len(numbers) {
		verr.Add("seatCount", "seat count does not match the selected seats")
	}
	if verr.HasErrors() {
		return selection, verr
	}

	return models.SeatSelection{SeatNumbers: numbers}, nil
}

// explicitPicker accepts the named seats only if every one of them is vacant
func explicitPicker(coachID uuid.UUID, numbers []string) models.SeatPicker {
	return func(seats []models.Seat, now time.Time) ([]string, error) {
		byNumber := make(map[string]*models.Seat, len(seats))
		for i := range seats {
			byNumber[seats[i].SeatNumber] = &seats[i]
		}

		verr := &models.ValidationError{}
		var conflicts []string
		for i, n := range numbers {
			seat, ok := byNumber[n]
			if !ok {
				verr.Add(fmt.Sprintf("seatNumbers[%d]", i), fmt.Sprintf("seat %s does not exist in this coach", n))
				continue
			}
			if seat.EffectiveStatus(now) != models.SeatStatusVacant {
				conflicts = append(conflicts, n)
			}
		}
		if verr.HasErrors() {
			return nil, verr
		}
		if len(conflicts) > 0 {
			return nil, &models.SeatUnavailableError{CoachID: coachID, SeatNumbers: conflicts}
		}
		return numbers, nil
	}
}

// countPicker takes the first count vacant seats in seat order
func countPicker(coachID uuid.UUID, count int) models.SeatPicker {
	return func(seats []models.Seat, now time.Time) ([]string, error) {
		ordered := make([]models.Seat, len(seats))
		copy(ordered, seats)
		sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Position < ordered[j].Position })

		var vacant []string
		for i := range ordered {
			if ordered[i].EffectiveStatus(now) == models.SeatStatusVacant {
				vacant = append(vacant, ordered[i].SeatNumber)
			}
		}
		if len(vacant) < count {
			return nil, &models.InsufficientSeatsError{CoachID: coachID, Requested: count, Vacant: len(vacant)}
		}
		return vacant[:count], nil
	}
}
