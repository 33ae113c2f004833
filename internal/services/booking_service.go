package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/railbook/train-booking-backend/internal/models"
	"github.com/railbook/train-booking-backend/pkg/validator"
	"github.com/sirupsen/logrus"
)

const (
	defaultBookingPageSize = 50
	maxBookingPageSize     = 200
	maxPassengerAge        = 125
)

var passengerGenders = map[string]bool{
	"male":   true,
	"female": true,
	"other":  true,
}

// CreateBookingInput is a normalized booking request
type CreateBookingInput struct {
	TrainID    uuid.UUID
	CoachID    uuid.UUID
	Passengers []models.Passenger
	Selection  models.SeatSelection
	HoldID     *uuid.UUID // converts an existing hold instead of allocating
	Journey    models.JourneyDetails
	UserID     *uuid.UUID
}

// BookingService creates bookings: validate, allocate, price, identify, persist.
// Any failure after seats were held releases them before returning.
type BookingService struct {
	trains    TrainStore
	seats     SeatStore
	bookings  BookingStore
	allocator *SeatAllocator
	fares     *FareCalculator
	ids       *BookingIdentifierGenerator
	currency  string
	phone     *validator.PhoneValidator
	email     *validator.EmailValidator
	logger    *logrus.Logger
	now       func() time.Time
}

// NewBookingService creates a new BookingService
func NewBookingService(
	trains TrainStore,
	seats SeatStore,
	bookings BookingStore,
	allocator *SeatAllocator,
	fares *FareCalculator,
	ids *BookingIdentifierGenerator,
	currency string,
	logger *logrus.Logger,
) *BookingService {
	return &BookingService{
		trains:    trains,
		seats:     seats,
		bookings:  bookings,
		allocator: allocator,
		fares:     fares,
		ids:       ids,
		currency:  currency,
		phone:     validator.NewPhoneValidator(),
		email:     validator.NewEmailValidator(),
		logger:    logger,
		now:       time.Now,
	}
}

// ============================================================================
// CREATE
// ============================================================================

// CreateBooking books seats for the passengers. Passenger i gets the i-th allocated seat.
func (s *BookingService) CreateBooking(ctx context.Context, in CreateBookingInput) (*models.Booking, error) {
	requested := in.Selection.Size()

	// An existing hold fixes the coach and the seat count; reading it mutates nothing
	var hold *models.Hold
	if in.HoldID != nil {
		h, err := s.allocator.GetHold(ctx, *in.HoldID)
		if err != nil {
			return nil, err
		}
		if in.CoachID != uuid.Nil && in.CoachID != h.CoachID {
			return nil, models.NewValidationError("holdId", "hold belongs to a different coach")
		}
		in.CoachID = h.CoachID
		requested = len(h.Seats)
		hold = h
	}

	passengers, err := s.validatePassengers(in.Passengers, requested)
	if err != nil {
		return nil, err
	}

	train, err := s.trains.GetTrain(ctx, in.TrainID)
	if err != nil {
		return nil, err
	}
	coach, ok := train.FindCoach(in.CoachID)
	if !ok {
		return nil, models.NewValidationError("coachId", "coach does not belong to the selected train")
	}

	fare, err := s.fares.ComputeFare(coach, len(passengers))
	if err != nil {
		return nil, err
	}

	if hold == nil {
		hold, err = s.allocator.Allocate(ctx, coach.ID, in.Selection)
		if err != nil {
			s.logger.WithFields(logrus.Fields{
				"train_id":   train.ID,
				"coach_id":   coach.ID,
				"seat_count": requested,
			}).WithError(err).Warn("Seat allocation failed")
			return nil, err
		}
	}

	booking, err := s.persist(ctx, train, coach, hold, passengers, fare, in)
	if err != nil {
		s.releaseHold(ctx, hold.ID, err)
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"booking_id": booking.BookingID,
		"train_id":   train.ID,
		"coach_id":   coach.ID,
		"hold_id":    hold.ID,
		"seat_count": len(booking.SelectedSeats),
		"amount":     booking.TotalAmount,
	}).Info("Booking confirmed")

	return booking, nil
}

// persist stores the booking under a fresh identifier, retrying when the store reports a collision
func (s *BookingService) persist(
	ctx context.Context,
	train *models.Train,
	coach *models.Coach,
	hold *models.Hold,
	passengers []models.Passenger,
	fare Fare,
	in CreateBookingInput,
) (*models.Booking, error) {
	if len(hold.Seats) != len(passengers) {
		return nil, models.NewValidationError("passengers",
			fmt.Sprintf("%d passengers for %d held seats", len(passengers), len(hold.Seats)))
	}

	seats := make([]models.BookedSeat, len(hold.Seats))
	for i, seat := range hold.Seats {
		seats[i] = models.BookedSeat{
			CoachID:     coach.ID,
			CoachNumber: coach.CoachNumber,
			Class:       coach.Class,
			SeatNumber:  seat.SeatNumber,
			Berth:       seat.Berth,
			Price:       fare.PerSeat,
		}
		passengers[i].SeatNumber = seat.SeatNumber
	}

	journey := in.Journey
	if journey.From == "" {
		journey.From = train.Origin
	}
	if journey.To == "" {
		journey.To = train.Destination
	}

	attempts := s.ids.MaxAttempts()
	for attempt := 0; attempt < attempts; attempt++ {
		bookingID, err := s.ids.Generate(ctx)
		if err != nil {
			return nil, err
		}

		now := s.now()
		booking := &models.Booking{
			ID:            uuid.New(),
			BookingID:     bookingID,
			TrainID:       train.ID,
			Train:         train.Snapshot(),
			Journey:       journey,
			CoachID:       coach.ID,
			SelectedSeats: seats,
			Passengers:    passengers,
			FarePerSeat:   fare.PerSeat,
			TotalAmount:   fare.Total,
			Currency:      s.currency,
			Status:        models.BookingStatusConfirmed,
			UserID:        in.UserID,
			CreatedAt:     now,
		}

		err = s.bookings.CreateBooking(ctx, booking, hold.ID, now)
		switch {
		case err == nil:
			return booking, nil
		case errors.Is(err, models.ErrDuplicateBookingID):
			// Another booking took the identifier between the check and the insert
			s.logger.WithField("booking_id", bookingID).Warn("Booking identifier collision, regenerating")
			continue
		case errors.Is(err, models.ErrHoldExpired), errors.Is(err, models.ErrNotFound):
			return nil, err
		default:
			return nil, models.NewPersistenceError("create booking", err)
		}
	}
	return nil, &models.IdentifierExhaustionError{Attempts: attempts}
}

// releaseHold is the compensating action for a failed booking. It runs even if ctx was cancelled.
func (s *BookingService) releaseHold(ctx context.Context, holdID uuid.UUID, cause error) {
	released, err := s.seats.ReleaseHold(context.WithoutCancel(ctx), holdID, s.now())
	entry := s.logger.WithFields(logrus.Fields{
		"hold_id":    holdID,
		"seat_count": released,
		"cause":      cause.Error(),
	})
	if err != nil {
		entry.WithError(err).Error("Failed to release hold after booking failure")
		return
	}
	entry.Warn("Booking failed, hold released")
}

// validatePassengers checks the party before any seat is touched.
// The first passenger must carry a valid email and phone; others may omit them.
func (s *BookingService) validatePassengers(passengers []models.Passenger, requested int) ([]models.Passenger, error) {
	verr := &models.ValidationError{}

	if len(passengers) == 0 {
		verr.Add("passengers", "at least one passenger is required")
		return nil, verr
	}
	if requested <= 0 {
		verr.Add("selectedSeats", "at least one seat must be selected")
		return nil, verr
	}
	if len(passengers) != requested {
		verr.Add("passengers", fmt.Sprintf("%d passengers but %d seats selected", len(passengers), requested))
		return nil, verr
	}

	out := make([]models.Passenger, len(passengers))
	for i, p := range passengers {
		field := fmt.Sprintf("passengers[%d]", i)

		p.Name = strings.TrimSpace(p.Name)
		if p.Name == "" {
			verr.Add(field+".name", "name is required")
		}
		if p.Age < 1 || p.Age > maxPassengerAge {
			verr.Add(field+".age", fmt.Sprintf("age must be between 1 and %d", maxPassengerAge))
		}
		p.Gender = strings.ToLower(strings.TrimSpace(p.Gender))
		if !passengerGenders[p.Gender] {
			verr.Add(field+".gender", "gender must be male, female or other")
		}

		contactRequired := i == 0
		if p.Email != "" || contactRequired {
			email, err := s.email.Validate(p.Email)
			if err != nil {
				verr.Add(field+".email", err.Error())
			}
			p.Email = email
		}
		if p.Phone != "" || contactRequired {
			phone, err := s.phone.Validate(p.Phone)
			if err != nil {
				verr.Add(field+".phone", err.Error())
			}
			p.Phone = phone
		}

		p.SeatNumber = ""
		out[i] = p
	}

	if verr.HasErrors() {
		return nil, verr
	}
	return out, nil
}

// ============================================================================
// READ
// ============================================================================

// GetBooking returns a booking by its public identifier
func (s *BookingService) GetBooking(ctx context.Context, bookingID string) (*models.Booking, error) {
	bookingID = strings.ToUpper(strings.TrimSpace(bookingID))
	if bookingID == "" {
		return nil, models.ErrNotFound
	}
	return s.bookings.GetBooking(ctx, bookingID)
}

// ListBookings returns a page of bookings, newest first
func (s *BookingService) ListBookings(ctx context.Context, limit, offset int) ([]models.Booking, error) {
	if limit <= 0 {
		limit = defaultBookingPageSize
	}
	if limit > maxBookingPageSize {
		limit = maxBookingPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return s.bookings.ListBookings(ctx, limit, offset)
}

// ListPassengers flattens bookings into one row per passenger
func (s *BookingService) ListPassengers(ctx context.Context, filter models.PassengerFilter) ([]models.PassengerRow, error) {
	filter.TrainNumber = strings.TrimSpace(filter.TrainNumber)
	filter.JourneyDate = strings.TrimSpace(filter.JourneyDate)
	return s.bookings.ListPassengers(ctx, filter)
}
