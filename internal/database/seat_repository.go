package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/railbook/train-booking-backend/internal/models"
)

const seatColumns = `coach_id, seat_number, position, berth, is_window, status, hold_id, held_until, booking_ref, updated_at`

// SeatRepository handles seat occupancy. Every status change is a conditional update,
// so a seat can only move vacant→held→booked or held→vacant.
type SeatRepository struct {
	db *sqlx.DB
}

// NewSeatRepository creates a new seat repository
func NewSeatRepository(db *sqlx.DB) *SeatRepository {
	return &SeatRepository{db: db}
}

// ListSeats returns the coach's seat map in position order, or ErrNotFound for an unknown coach
func (r *SeatRepository) ListSeats(ctx context.Context, coachID uuid.UUID) ([]models.Seat, error) {
	seats := []models.Seat{}
	err := r.db.SelectContext(ctx, &seats,
		`SELECT `+seatColumns+` FROM seats WHERE coach_id = $1 ORDER BY position`, coachID)
	if err != nil {
		return nil, fmt.Errorf("failed to list seats: %w", err)
	}
	// Every coach has at least one seat
	if len(seats) == 0 {
		return nil, models.ErrNotFound
	}
	return seats, nil
}

// Availability counts the coach's seats by effective status in a single statement,
// so the four counts always come from the same snapshot
func (r *SeatRepository) Availability(ctx context.Context, coachID uuid.UUID, now time.Time) (models.Availability, error) {
	var counts struct {
		Total  int `db:"total"`
		Vacant int `db:"vacant"`
		Held   int `db:"held"`
		Booked int `db:"booked"`
	}
	err := r.db.GetContext(ctx, &counts, `
		SELECT COUNT(*) AS total,
		       COUNT(*) FILTER (WHERE status = 'vacant' OR (status = 'held' AND held_until <= $2)) AS vacant,
		       COUNT(*) FILTER (WHERE status = 'held' AND held_until > $2) AS held,
		       COUNT(*) FILTER (WHERE status = 'booked') AS booked
		FROM seats
		WHERE coach_id = $1`,
		coachID, now)
	if err != nil {
		return models.Availability{}, fmt.Errorf("failed to count seats: %w", err)
	}
	if counts.Total == 0 {
		return models.Availability{}, models.ErrNotFound
	}

	return models.Availability{
		CoachID: coachID,
		Total:   counts.Total,
		Vacant:  counts.Vacant,
		Held:    counts.Held,
		Booked:  counts.Booked,
	}, nil
}

// HoldSeats locks the coach, lets pick choose seat numbers from the current seat map and
// moves exactly those seats to held. Nothing is written unless every picked seat is held.
func (r *SeatRepository) HoldSeats(ctx context.Context, coachID, holdID uuid.UUID, now, expiresAt time.Time, pick models.SeatPicker) ([]models.Seat, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// The coach row lock serializes allocators on the same coach
	var locked uuid.UUID
	if err := tx.GetContext(ctx, &locked, `SELECT id FROM coaches WHERE id = $1 FOR UPDATE`, coachID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to lock coach: %w", err)
	}

	var seats []models.Seat
	err = tx.SelectContext(ctx, &seats,
		`SELECT `+seatColumns+` FROM seats WHERE coach_id = $1 ORDER BY position`, coachID)
	if err != nil {
		return nil, fmt.Errorf("failed to load seats: %w", err)
	}

	numbers, err := pick(seats, now)
	if err != nil {
		return nil, err
	}
	if len(numbers) == 0 {
		return nil, &models.InvalidInputError{Message: "no seats selected"}
	}

	// hold_seq keeps the pick order so passengers pair with seats the same way on conversion
	query, args, err := sqlx.In(`
		UPDATE seats
		SET status = 'held', hold_id = ?, held_until = ?, hold_seq = array_position(?::text[], seat_number::text),
		    booking_ref = NULL, updated_at = ?
		WHERE coach_id = ?
		  AND seat_number IN (?)
		  AND (status = 'vacant' OR (status = 'held' AND held_until <= ?))`,
		holdID, expiresAt, pq.StringArray(numbers), now, coachID, numbers, now)
	if err != nil {
		return nil, fmt.Errorf("failed to build hold query: %w", err)
	}

	result, err := tx.ExecContext(ctx, tx.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to hold seats: %w", err)
	}
	if rows, _ := result.RowsAffected(); int(rows) != len(numbers) {
		return nil, &models.SeatUnavailableError{CoachID: coachID, SeatNumbers: numbers}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit hold: %w", err)
	}

	// Returned in pick order so callers can pair seats with passengers
	byNumber := make(map[string]models.Seat, len(seats))
	for _, s := range seats {
		byNumber[s.SeatNumber] = s
	}
	held := make([]models.Seat, 0, len(numbers))
	for seq, n := range numbers {
		s := byNumber[n]
		s.Status = models.SeatStatusHeld
		s.HoldID = &holdID
		s.HeldUntil = &expiresAt
		s.HoldSeq = seq + 1
		s.BookingID = nil
		s.UpdatedAt = now
		held = append(held, s)
	}
	return held, nil
}

// GetHeldSeats returns the seats still held under holdID, expired or not, in pick order
func (r *SeatRepository) GetHeldSeats(ctx context.Context, holdID uuid.UUID) ([]models.Seat, error) {
	seats := []models.Seat{}
	err := r.db.SelectContext(ctx, &seats, `
		SELECT `+seatColumns+`
		FROM seats
		WHERE hold_id = $1 AND status = 'held'
		ORDER BY hold_seq, position`,
		holdID)
	if err != nil {
		return nil, fmt.Errorf("failed to get held seats: %w", err)
	}
	return seats, nil
}

// ReleaseHold returns every seat of the hold to vacant
func (r *SeatRepository) ReleaseHold(ctx context.Context, holdID uuid.UUID, now time.Time) (int, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE seats
		SET status = 'vacant', hold_id = NULL, held_until = NULL, hold_seq = NULL, updated_at = $2
		WHERE hold_id = $1 AND status = 'held'`,
		holdID, now)
	if err != nil {
		return 0, fmt.Errorf("failed to release hold: %w", err)
	}
	rows, _ := result.RowsAffected()
	return int(rows), nil
}

// ReleaseExpiredHolds frees at most limit seats whose hold lapsed before now
func (r *SeatRepository) ReleaseExpiredHolds(ctx context.Context, now time.Time, limit int) (int, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE seats
		SET status = 'vacant', hold_id = NULL, held_until = NULL, hold_seq = NULL, updated_at = $1
		WHERE (coach_id, seat_number) IN (
			SELECT coach_id, seat_number
			FROM seats
			WHERE status = 'held' AND held_until <= $1
			ORDER BY held_until
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)`,
		now, limit)
	if err != nil {
		return 0, fmt.Errorf("failed to release expired holds: %w", err)
	}
	rows, _ := result.RowsAffected()
	return int(rows), nil
}
