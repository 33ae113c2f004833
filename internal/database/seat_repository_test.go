package database

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/railbook/train-booking-backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var seatRowColumns = []string{
	"coach_id", "seat_number", "position", "berth", "is_window", "status",
	"hold_id", "held_until", "booking_ref", "updated_at",
}

func firstN(n int) models.SeatPicker {
	return func(seats []models.Seat, now time.Time) ([]string, error) {
		var numbers []string
		for _, s := range seats {
			if len(numbers) == n {
				break
			}
			if s.EffectiveStatus(now) == models.SeatStatusVacant {
				numbers = append(numbers, s.SeatNumber)
			}
		}
		return numbers, nil
	}
}

func TestSeatRepository_Availability(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewSeatRepository(db)
	coachID := uuid.New()
	now := time.Now()

	mock.ExpectQuery(`SELECT COUNT\(\*\) AS total`).
		WithArgs(coachID, now).
		WillReturnRows(sqlmock.NewRows([]string{"total", "vacant", "held", "booked"}).AddRow(72, 60, 4, 8))

	avail, err := repo.Availability(context.Background(), coachID, now)
	require.NoError(t, err)
	assert.Equal(t, models.Availability{CoachID: coachID, Total: 72, Vacant: 60, Held: 4, Booked: 8}, avail)
	assert.Equal(t, avail.Total, avail.Vacant+avail.Held+avail.Booked)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSeatRepository_UnknownCoach(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewSeatRepository(db)
	coachID := uuid.New()
	now := time.Now()

	mock.ExpectQuery(`SELECT .* FROM seats WHERE coach_id = \$1 ORDER BY position`).
		WithArgs(coachID).
		WillReturnRows(sqlmock.NewRows(seatRowColumns))
	mock.ExpectQuery(`SELECT COUNT\(\*\) AS total`).
		WithArgs(coachID, now).
		WillReturnRows(sqlmock.NewRows([]string{"total", "vacant", "held", "booked"}).AddRow(0, 0, 0, 0))

	_, err := repo.ListSeats(context.Background(), coachID)
	assert.ErrorIs(t, err, models.ErrNotFound)

	_, err = repo.Availability(context.Background(), coachID, now)
	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSeatRepository_HoldSeats(t *testing.T) {
	coachID := uuid.New()
	now := time.Now()
	expires := now.Add(10 * time.Minute)

	seatRows := func() *sqlmock.Rows {
		return sqlmock.NewRows(seatRowColumns).
			AddRow(coachID.String(), "1", 1, "LB", true, "vacant", nil, nil, nil, now).
			AddRow(coachID.String(), "2", 2, "MB", false, "vacant", nil, nil, nil, now).
			AddRow(coachID.String(), "3", 3, "UB", false, "booked", nil, nil, "RBK123456", now)
	}

	t.Run("Success", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewSeatRepository(db)
		holdID := uuid.New()

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT id FROM coaches WHERE id = \$1 FOR UPDATE`).
			WithArgs(coachID).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(coachID.String()))
		mock.ExpectQuery(`SELECT .* FROM seats WHERE coach_id = \$1 ORDER BY position`).
			WillReturnRows(seatRows())
		mock.ExpectExec(`UPDATE seats\s+SET status = 'held', hold_id = \$1, held_until = \$2, hold_seq = array_position\(\$3::text\[\]`).
			WithArgs(holdID, expires, `{"1","2"}`, now, coachID, "1", "2", now).
			WillReturnResult(sqlmock.NewResult(0, 2))
		mock.ExpectCommit()

		held, err := repo.HoldSeats(context.Background(), coachID, holdID, now, expires, firstN(2))
		require.NoError(t, err)
		require.Len(t, held, 2)
		assert.Equal(t, "1", held[0].SeatNumber)
		assert.Equal(t, "2", held[1].SeatNumber)
		assert.Equal(t, 1, held[0].HoldSeq)
		assert.Equal(t, 2, held[1].HoldSeq)
		for _, s := range held {
			assert.Equal(t, models.SeatStatusHeld, s.Status)
			assert.Equal(t, holdID, *s.HoldID)
			assert.Equal(t, expires, *s.HeldUntil)
		}
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Lost Race Rolls Back", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewSeatRepository(db)

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT id FROM coaches`).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(coachID.String()))
		mock.ExpectQuery(`SELECT .* FROM seats`).WillReturnRows(seatRows())
		mock.ExpectExec(`UPDATE seats`).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectRollback()

		held, err := repo.HoldSeats(context.Background(), coachID, uuid.New(), now, expires, firstN(2))
		assert.Nil(t, held)
		var unavailable *models.SeatUnavailableError
		require.ErrorAs(t, err, &unavailable)
		assert.Equal(t, []string{"1", "2"}, unavailable.SeatNumbers)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Picker Error Writes Nothing", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewSeatRepository(db)

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT id FROM coaches`).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(coachID.String()))
		mock.ExpectQuery(`SELECT .* FROM seats`).WillReturnRows(seatRows())
		mock.ExpectRollback()

		pick := func(seats []models.Seat, now time.Time) ([]string, error) {
			return nil, &models.InsufficientSeatsError{CoachID: coachID, Requested: 3, Vacant: 2}
		}
		_, err := repo.HoldSeats(context.Background(), coachID, uuid.New(), now, expires, pick)
		var insufficient *models.InsufficientSeatsError
		assert.ErrorAs(t, err, &insufficient)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Unknown Coach", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewSeatRepository(db)

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT id FROM coaches`).WillReturnRows(sqlmock.NewRows([]string{"id"}))
		mock.ExpectRollback()

		_, err := repo.HoldSeats(context.Background(), coachID, uuid.New(), now, expires, firstN(1))
		assert.ErrorIs(t, err, models.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestSeatRepository_GetHeldSeats(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewSeatRepository(db)
	coachID := uuid.New()
	holdID := uuid.New()
	now := time.Now()
	until := now.Add(10 * time.Minute)

	mock.ExpectQuery(`WHERE hold_id = \$1 AND status = 'held'\s+ORDER BY hold_seq, position`).
		WithArgs(holdID).
		WillReturnRows(sqlmock.NewRows(seatRowColumns).
			AddRow(coachID.String(), "3", 3, "UB", false, "held", holdID.String(), until, nil, now).
			AddRow(coachID.String(), "1", 1, "LB", true, "held", holdID.String(), until, nil, now))

	seats, err := repo.GetHeldSeats(context.Background(), holdID)
	require.NoError(t, err)
	require.Len(t, seats, 2)
	assert.Equal(t, "3", seats[0].SeatNumber)
	assert.Equal(t, "1", seats[1].SeatNumber)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSeatRepository_ReleaseHold(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewSeatRepository(db)
	holdID := uuid.New()
	now := time.Now()

	mock.ExpectExec(`UPDATE seats\s+SET status = 'vacant'`).
		WithArgs(holdID, now).
		WillReturnResult(sqlmock.NewResult(0, 3))

	released, err := repo.ReleaseHold(context.Background(), holdID, now)
	require.NoError(t, err)
	assert.Equal(t, 3, released)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSeatRepository_ReleaseExpiredHolds(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewSeatRepository(db)
	now := time.Now()

	mock.ExpectExec(`FOR UPDATE SKIP LOCKED`).
		WithArgs(now, 500).
		WillReturnResult(sqlmock.NewResult(0, 7))

	released, err := repo.ReleaseExpiredHolds(context.Background(), now, 500)
	require.NoError(t, err)
	assert.Equal(t, 7, released)
	assert.NoError(t, mock.ExpectationsWereMet())
}
