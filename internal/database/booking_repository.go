package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/railbook/train-booking-backend/internal/models"
)

const bookingColumns = `id, booking_ref, train_id, train_snapshot, journey, coach_id, fare_per_seat,
	total_amount, currency, status, user_id, created_at`

// bookingRow is the bookings table shape; seats and passengers live in child tables
type bookingRow struct {
	ID          uuid.UUID             `db:"id"`
	BookingRef  string                `db:"booking_ref"`
	TrainID     uuid.UUID             `db:"train_id"`
	Train       models.TrainSnapshot  `db:"train_snapshot"`
	Journey     models.JourneyDetails `db:"journey"`
	CoachID     uuid.UUID             `db:"coach_id"`
	FarePerSeat float64               `db:"fare_per_seat"`
	TotalAmount float64               `db:"total_amount"`
	Currency    string                `db:"currency"`
	Status      string                `db:"status"`
	UserID      *uuid.UUID            `db:"user_id"`
	CreatedAt   time.Time             `db:"created_at"`
}

type bookingSeatRow struct {
	BookingID uuid.UUID `db:"booking_id"`
	SeatIndex int       `db:"seat_index"`
	models.BookedSeat
}

type passengerRow struct {
	BookingID      uuid.UUID `db:"booking_id"`
	PassengerIndex int       `db:"passenger_index"`
	Name           string    `db:"name"`
	Age            int       `db:"age"`
	Gender         string    `db:"gender"`
	Email          string    `db:"email"`
	Phone          string    `db:"phone"`
	SeatNumber     string    `db:"seat_number"`
}

// BookingRepository handles booking persistence
type BookingRepository struct {
	db *sqlx.DB
}

// NewBookingRepository creates a new booking repository
func NewBookingRepository(db *sqlx.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

// BookingIDExists checks if a booking identifier is already taken
func (r *BookingRepository) BookingIDExists(ctx context.Context, bookingID string) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM bookings WHERE booking_ref = $1)`, bookingID)
	if err != nil {
		return false, fmt.Errorf("failed to check booking identifier: %w", err)
	}
	return exists, nil
}

// CreateBooking inserts the booking with its seats and passengers and moves the hold's
// seats from held to booked, all in one transaction. If the hold no longer covers every
// seat (expired and swept, or re-allocated) nothing is written.
func (r *BookingRepository) CreateBooking(ctx context.Context, booking *models.Booking, holdID uuid.UUID, now time.Time) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	row := bookingRow{
		ID:          booking.ID,
		BookingRef:  booking.BookingID,
		TrainID:     booking.TrainID,
		Train:       booking.Train,
		Journey:     booking.Journey,
		CoachID:     booking.CoachID,
		FarePerSeat: booking.FarePerSeat,
		TotalAmount: booking.TotalAmount,
		Currency:    booking.Currency,
		Status:      string(booking.Status),
		UserID:      booking.UserID,
		CreatedAt:   booking.CreatedAt,
	}
	_, err = tx.NamedExecContext(ctx, `
		INSERT INTO bookings (`+bookingColumns+`)
		VALUES (:id, :booking_ref, :train_id, :train_snapshot, :journey, :coach_id, :fare_per_seat,
			:total_amount, :currency, :status, :user_id, :created_at)`,
		row)
	if err != nil {
		if isUniqueViolation(err, "bookings_booking_ref_key") {
			return models.ErrDuplicateBookingID
		}
		return fmt.Errorf("failed to insert booking: %w", err)
	}

	seatRows := make([]bookingSeatRow, len(booking.SelectedSeats))
	for i, s := range booking.SelectedSeats {
		seatRows[i] = bookingSeatRow{BookingID: booking.ID, SeatIndex: i, BookedSeat: s}
	}
	_, err = tx.NamedExecContext(ctx, `
		INSERT INTO booking_seats (booking_id, seat_index, coach_id, coach_number, class_type, seat_number, berth, price)
		VALUES (:booking_id, :seat_index, :coach_id, :coach_number, :class_type, :seat_number, :berth, :price)`,
		seatRows)
	if err != nil {
		if isUniqueViolation(err, "booking_seats_coach_id_seat_number_key") {
			return &models.SeatUnavailableError{CoachID: booking.CoachID, SeatNumbers: bookedSeatNumbers(booking)}
		}
		return fmt.Errorf("failed to insert booking seats: %w", err)
	}

	passengers := make([]passengerRow, len(booking.Passengers))
	for i, p := range booking.Passengers {
		passengers[i] = passengerRow{
			BookingID:      booking.ID,
			PassengerIndex: i,
			Name:           p.Name,
			Age:            p.Age,
			Gender:         p.Gender,
			Email:          p.Email,
			Phone:          p.Phone,
			SeatNumber:     p.SeatNumber,
		}
	}
	_, err = tx.NamedExecContext(ctx, `
		INSERT INTO booking_passengers (booking_id, passenger_index, name, age, gender, email, phone, seat_number)
		VALUES (:booking_id, :passenger_index, :name, :age, :gender, :email, :phone, :seat_number)`,
		passengers)
	if err != nil {
		return fmt.Errorf("failed to insert passengers: %w", err)
	}

	result, err := tx.ExecContext(ctx, `
		UPDATE seats
		SET status = 'booked', booking_ref = $1, hold_id = NULL, held_until = NULL, hold_seq = NULL, updated_at = $2
		WHERE hold_id = $3 AND status = 'held' AND held_until > $2`,
		booking.BookingID, now, holdID)
	if err != nil {
		return fmt.Errorf("failed to book seats: %w", err)
	}
	if rows, _ := result.RowsAffected(); int(rows) != len(booking.SelectedSeats) {
		return models.ErrHoldExpired
	}

	return tx.Commit()
}

// GetBooking returns a booking by its public identifier
func (r *BookingRepository) GetBooking(ctx context.Context, bookingID string) (*models.Booking, error) {
	var row bookingRow
	err := r.db.GetContext(ctx, &row, `SELECT `+bookingColumns+` FROM bookings WHERE booking_ref = $1`, bookingID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}

	bookings, err := r.attachChildren(ctx, []bookingRow{row})
	if err != nil {
		return nil, err
	}
	return &bookings[0], nil
}

// ListBookings returns bookings newest first
func (r *BookingRepository) ListBookings(ctx context.Context, limit, offset int) ([]models.Booking, error) {
	var rows []bookingRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT `+bookingColumns+`
		FROM bookings
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	if len(rows) == 0 {
		return []models.Booking{}, nil
	}
	return r.attachChildren(ctx, rows)
}

// ListPassengers flattens confirmed bookings into one row per passenger
func (r *BookingRepository) ListPassengers(ctx context.Context, filter models.PassengerFilter) ([]models.PassengerRow, error) {
	rows := []models.PassengerRow{}
	err := r.db.SelectContext(ctx, &rows, `
		SELECT b.booking_ref, p.name, p.age, p.gender, p.email, p.phone,
		       b.train_snapshot->>'trainNumber' AS train_number,
		       b.train_snapshot->>'trainName' AS train_name,
		       bs.coach_number, bs.class_type, bs.seat_number,
		       COALESCE(b.journey->>'date', '') AS journey_date,
		       COALESCE(b.journey->>'from', '') AS journey_from,
		       COALESCE(b.journey->>'to', '') AS journey_to,
		       b.created_at
		FROM booking_passengers p
		JOIN bookings b ON b.id = p.booking_id
		JOIN booking_seats bs ON bs.booking_id = p.booking_id AND bs.seat_index = p.passenger_index
		WHERE b.status = 'confirmed'
		  AND ($1 = '' OR b.train_snapshot->>'trainNumber' = $1)
		  AND ($2 = '' OR b.journey->>'date' = $2)
		ORDER BY b.created_at DESC, p.passenger_index`,
		filter.TrainNumber, filter.JourneyDate)
	if err != nil {
		return nil, fmt.Errorf("failed to list passengers: %w", err)
	}
	return rows, nil
}

func (r *BookingRepository) attachChildren(ctx context.Context, rows []bookingRow) ([]models.Booking, error) {
	ids := make([]uuid.UUID, len(rows))
	for i := range rows {
		ids[i] = rows[i].ID
	}

	query, args, err := sqlx.In(`
		SELECT booking_id, seat_index, coach_id, coach_number, class_type, seat_number, berth, price
		FROM booking_seats
		WHERE booking_id IN (?)
		ORDER BY booking_id, seat_index`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to build seat query: %w", err)
	}
	var seats []bookingSeatRow
	if err := r.db.SelectContext(ctx, &seats, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to load booking seats: %w", err)
	}

	query, args, err = sqlx.In(`
		SELECT booking_id, passenger_index, name, age, gender, email, phone, seat_number
		FROM booking_passengers
		WHERE booking_id IN (?)
		ORDER BY booking_id, passenger_index`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to build passenger query: %w", err)
	}
	var passengers []passengerRow
	if err := r.db.SelectContext(ctx, &passengers, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to load passengers: %w", err)
	}

	seatsByBooking := make(map[uuid.UUID][]models.BookedSeat)
	for _, s := range seats {
		seatsByBooking[s.BookingID] = append(seatsByBooking[s.BookingID], s.BookedSeat)
	}
	passengersByBooking := make(map[uuid.UUID][]models.Passenger)
	for _, p := range passengers {
		passengersByBooking[p.BookingID] = append(passengersByBooking[p.BookingID], models.Passenger{
			Name:       p.Name,
			Age:        p.Age,
			Gender:     p.Gender,
			Email:      p.Email,
			Phone:      p.Phone,
			SeatNumber: p.SeatNumber,
		})
	}

	bookings := make([]models.Booking, len(rows))
	for i, row := range rows {
		bookings[i] = models.Booking{
			ID:            row.ID,
			BookingID:     row.BookingRef,
			TrainID:       row.TrainID,
			Train:         row.Train,
			Journey:       row.Journey,
			CoachID:       row.CoachID,
			SelectedSeats: seatsByBooking[row.ID],
			Passengers:    passengersByBooking[row.ID],
			FarePerSeat:   row.FarePerSeat,
			TotalAmount:   row.TotalAmount,
			Currency:      row.Currency,
			Status:        models.BookingStatus(row.Status),
			UserID:        row.UserID,
			CreatedAt:     row.CreatedAt,
		}
	}
	return bookings, nil
}

func bookedSeatNumbers(booking *models.Booking) []string {
	numbers := make([]string, len(booking.SelectedSeats))
	for i, s := range booking.SelectedSeats {
		numbers[i] = s.SeatNumber
	}
	return numbers
}
