package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/railbook/train-booking-backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleBooking() *models.Booking {
	coachID := uuid.New()
	return &models.Booking{
		ID:        uuid.New(),
		BookingID: "RBK482193",
		TrainID:   uuid.New(),
		Train:     models.TrainSnapshot{Number: "12951", Name: "Mumbai Rajdhani"},
		Journey:   models.JourneyDetails{From: "Mumbai Central", To: "New Delhi", Date: "2026-11-02"},
		CoachID:   coachID,
		SelectedSeats: []models.BookedSeat{
			{CoachID: coachID, CoachNumber: "B1", Class: models.CoachClass3A, SeatNumber: "1", Price: 1450},
			{CoachID: coachID, CoachNumber: "B1", Class: models.CoachClass3A, SeatNumber: "2", Price: 1450},
		},
		Passengers: []models.Passenger{
			{Name: "Asha Rao", Age: 34, Gender: "female", Email: "asha@example.com", Phone: "9876543210", SeatNumber: "1"},
			{Name: "Ravi Rao", Age: 36, Gender: "male", SeatNumber: "2"},
		},
		FarePerSeat: 1450,
		TotalAmount: 2900,
		Currency:    "INR",
		Status:      models.BookingStatusConfirmed,
		CreatedAt:   time.Now(),
	}
}

func TestBookingRepository_BookingIDExists(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewBookingRepository(db)

	mock.ExpectQuery(`SELECT EXISTS\(SELECT 1 FROM bookings WHERE booking_ref = \$1\)`).
		WithArgs("RBK000001").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := repo.BookingIDExists(context.Background(), "RBK000001")
	require.NoError(t, err)
	assert.True(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepository_CreateBooking(t *testing.T) {
	now := time.Now()

	t.Run("Success", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewBookingRepository(db)
		booking := sampleBooking()
		holdID := uuid.New()

		mock.ExpectBegin()
		mock.ExpectExec(`INSERT INTO bookings`).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`INSERT INTO booking_seats`).WillReturnResult(sqlmock.NewResult(0, 2))
		mock.ExpectExec(`INSERT INTO booking_passengers`).WillReturnResult(sqlmock.NewResult(0, 2))
		mock.ExpectExec(`UPDATE seats\s+SET status = 'booked'`).
			WithArgs(booking.BookingID, now, holdID).
			WillReturnResult(sqlmock.NewResult(0, 2))
		mock.ExpectCommit()

		err := repo.CreateBooking(context.Background(), booking, holdID, now)
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Duplicate Identifier", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewBookingRepository(db)

		mock.ExpectBegin()
		mock.ExpectExec(`INSERT INTO bookings`).
			WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "bookings_booking_ref_key"})
		mock.ExpectRollback()

		err := repo.CreateBooking(context.Background(), sampleBooking(), uuid.New(), now)
		assert.ErrorIs(t, err, models.ErrDuplicateBookingID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Hold Lapsed", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewBookingRepository(db)

		mock.ExpectBegin()
		mock.ExpectExec(`INSERT INTO bookings`).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`INSERT INTO booking_seats`).WillReturnResult(sqlmock.NewResult(0, 2))
		mock.ExpectExec(`INSERT INTO booking_passengers`).WillReturnResult(sqlmock.NewResult(0, 2))
		mock.ExpectExec(`UPDATE seats`).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectRollback()

		err := repo.CreateBooking(context.Background(), sampleBooking(), uuid.New(), now)
		assert.ErrorIs(t, err, models.ErrHoldExpired)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Seat Already Booked", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewBookingRepository(db)
		booking := sampleBooking()

		mock.ExpectBegin()
		mock.ExpectExec(`INSERT INTO bookings`).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`INSERT INTO booking_seats`).
			WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "booking_seats_coach_id_seat_number_key"})
		mock.ExpectRollback()

		err := repo.CreateBooking(context.Background(), booking, uuid.New(), now)
		var unavailable *models.SeatUnavailableError
		require.ErrorAs(t, err, &unavailable)
		assert.Equal(t, booking.CoachID, unavailable.CoachID)
		assert.Equal(t, []string{"1", "2"}, unavailable.SeatNumbers)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Storage Failure", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewBookingRepository(db)

		mock.ExpectBegin()
		mock.ExpectExec(`INSERT INTO bookings`).WillReturnError(errors.New("connection reset"))
		mock.ExpectRollback()

		err := repo.CreateBooking(context.Background(), sampleBooking(), uuid.New(), now)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to insert booking")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestBookingRepository_GetBooking(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewBookingRepository(db)
		b := sampleBooking()

		mock.ExpectQuery(`SELECT .* FROM bookings WHERE booking_ref = \$1`).
			WithArgs(b.BookingID).
			WillReturnRows(sqlmock.NewRows([]string{
				"id", "booking_ref", "train_id", "train_snapshot", "journey", "coach_id", "fare_per_seat",
				"total_amount", "currency", "status", "user_id", "created_at",
			}).AddRow(
				b.ID.String(), b.BookingID, b.TrainID.String(),
				[]byte(`{"trainNumber":"12951","trainName":"Mumbai Rajdhani"}`),
				[]byte(`{"from":"Mumbai Central","to":"New Delhi","date":"2026-11-02"}`),
				b.CoachID.String(), 1450.0, 2900.0, "INR", "confirmed", nil, b.CreatedAt,
			))
		mock.ExpectQuery(`FROM booking_seats`).
			WillReturnRows(sqlmock.NewRows([]string{
				"booking_id", "seat_index", "coach_id", "coach_number", "class_type", "seat_number", "berth", "price",
			}).
				AddRow(b.ID.String(), 0, b.CoachID.String(), "B1", "3A", "1", "LB", 1450.0).
				AddRow(b.ID.String(), 1, b.CoachID.String(), "B1", "3A", "2", "MB", 1450.0))
		mock.ExpectQuery(`FROM booking_passengers`).
			WillReturnRows(sqlmock.NewRows([]string{
				"booking_id", "passenger_index", "name", "age", "gender", "email", "phone", "seat_number",
			}).
				AddRow(b.ID.String(), 0, "Asha Rao", 34, "female", "asha@example.com", "9876543210", "1").
				AddRow(b.ID.String(), 1, "Ravi Rao", 36, "male", "", "", "2"))

		got, err := repo.GetBooking(context.Background(), b.BookingID)
		require.NoError(t, err)
		assert.Equal(t, b.BookingID, got.BookingID)
		assert.Equal(t, "12951", got.Train.Number)
		assert.Equal(t, "2026-11-02", got.Journey.Date)
		assert.Len(t, got.SelectedSeats, 2)
		assert.Len(t, got.Passengers, 2)
		assert.Equal(t, got.SeatTotal(), got.TotalAmount)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Not Found", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewBookingRepository(db)

		mock.ExpectQuery(`SELECT .* FROM bookings`).WillReturnRows(sqlmock.NewRows([]string{"id"}))

		_, err := repo.GetBooking(context.Background(), "RBK999999")
		assert.ErrorIs(t, err, models.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestBookingRepository_ListPassengers(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewBookingRepository(db)
	now := time.Now()

	mock.ExpectQuery(`FROM booking_passengers p`).
		WithArgs("12951", "").
		WillReturnRows(sqlmock.NewRows([]string{
			"booking_ref", "name", "age", "gender", "email", "phone", "train_number", "train_name",
			"coach_number", "class_type", "seat_number", "journey_date", "journey_from", "journey_to", "created_at",
		}).AddRow("RBK482193", "Asha Rao", 34, "female", "asha@example.com", "9876543210", "12951",
			"Mumbai Rajdhani", "B1", "3A", "1", "2026-11-02", "Mumbai Central", "New Delhi", now))

	rows, err := repo.ListPassengers(context.Background(), models.PassengerFilter{TrainNumber: "12951"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "RBK482193", rows[0].BookingID)
	assert.Equal(t, models.CoachClass3A, rows[0].Class)
	assert.NoError(t, mock.ExpectationsWereMet())
}
