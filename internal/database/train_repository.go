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

const trainColumns = `id, train_number, train_name, origin, destination, route, created_at, updated_at`

const coachColumns = `id, train_id, coach_number, class_type, total_seats, price, position`

// TrainRepository handles train, coach and seat-map persistence
type TrainRepository struct {
	db *sqlx.DB
}

// NewTrainRepository creates a new train repository
func NewTrainRepository(db *sqlx.DB) *TrainRepository {
	return &TrainRepository{db: db}
}

// CreateTrain inserts a train with its coaches and their seat maps in one transaction
func (r *TrainRepository) CreateTrain(ctx context.Context, train *models.Train, seats []models.Seat) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.NamedExecContext(ctx, `
		INSERT INTO trains (`+trainColumns+`)
		VALUES (:id, :train_number, :train_name, :origin, :destination, :route, :created_at, :updated_at)`,
		train)
	if err != nil {
		if isUniqueViolation(err, "trains_train_number_key") {
			return models.ErrDuplicateTrainNumber
		}
		return fmt.Errorf("failed to insert train: %w", err)
	}

	if err := insertCoaches(ctx, tx, train.Coaches, seats); err != nil {
		return err
	}

	return tx.Commit()
}

// UpdateTrain rewrites the train's details. When replaceCoaches is set the coaches and seat
// maps are replaced too, which is refused while any seat is booked or actively held.
func (r *TrainRepository) UpdateTrain(ctx context.Context, train *models.Train, seats []models.Seat, replaceCoaches bool, now time.Time) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.NamedExecContext(ctx, `
		UPDATE trains
		SET train_number = :train_number, train_name = :train_name, origin = :origin,
		    destination = :destination, route = :route, updated_at = :updated_at
		WHERE id = :id`,
		train)
	if err != nil {
		if isUniqueViolation(err, "trains_train_number_key") {
			return models.ErrDuplicateTrainNumber
		}
		return fmt.Errorf("failed to update train: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return models.ErrNotFound
	}

	if replaceCoaches {
		inUse, err := countActiveSeats(ctx, tx, train.ID, now)
		if err != nil {
			return err
		}
		if inUse > 0 {
			return models.ErrConflict
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM coaches WHERE train_id = $1`, train.ID); err != nil {
			return fmt.Errorf("failed to remove coaches: %w", err)
		}
		if err := insertCoaches(ctx, tx, train.Coaches, seats); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// DeleteTrain removes a train that no booking references and no passenger is holding seats on
func (r *TrainRepository) DeleteTrain(ctx context.Context, id uuid.UUID, now time.Time) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var bookings int
	if err := tx.GetContext(ctx, &bookings, `SELECT COUNT(*) FROM bookings WHERE train_id = $1`, id); err != nil {
		return fmt.Errorf("failed to count bookings: %w", err)
	}
	if bookings > 0 {
		return models.ErrConflict
	}

	inUse, err := countActiveSeats(ctx, tx, id, now)
	if err != nil {
		return err
	}
	if inUse > 0 {
		return models.ErrConflict
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM trains WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete train: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return models.ErrNotFound
	}

	return tx.Commit()
}

// GetTrain returns a train with its coaches in position order
func (r *TrainRepository) GetTrain(ctx context.Context, id uuid.UUID) (*models.Train, error) {
	return r.getTrain(ctx, `SELECT `+trainColumns+` FROM trains WHERE id = $1`, id)
}

// GetTrainByNumber returns the train with the given number
func (r *TrainRepository) GetTrainByNumber(ctx context.Context, number string) (*models.Train, error) {
	return r.getTrain(ctx, `SELECT `+trainColumns+` FROM trains WHERE train_number = $1`, number)
}

func (r *TrainRepository) getTrain(ctx context.Context, query string, arg interface{}) (*models.Train, error) {
	var train models.Train
	if err := r.db.GetContext(ctx, &train, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get train: %w", err)
	}

	coaches, err := r.ListCoaches(ctx, train.ID)
	if err != nil {
		return nil, err
	}
	train.Coaches = coaches
	return &train, nil
}

// ListTrains returns all trains ordered by number, coaches attached
func (r *TrainRepository) ListTrains(ctx context.Context) ([]models.Train, error) {
	trains := []models.Train{}
	if err := r.db.SelectContext(ctx, &trains, `SELECT `+trainColumns+` FROM trains ORDER BY train_number`); err != nil {
		return nil, fmt.Errorf("failed to list trains: %w", err)
	}
	if len(trains) == 0 {
		return trains, nil
	}

	ids := make([]uuid.UUID, len(trains))
	for i := range trains {
		ids[i] = trains[i].ID
	}

	query, args, err := sqlx.In(`SELECT `+coachColumns+` FROM coaches WHERE train_id IN (?) ORDER BY train_id, position`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to build coach query: %w", err)
	}

	var coaches []models.Coach
	if err := r.db.SelectContext(ctx, &coaches, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to list coaches: %w", err)
	}

	byTrain := make(map[uuid.UUID][]models.Coach, len(trains))
	for _, c := range coaches {
		byTrain[c.TrainID] = append(byTrain[c.TrainID], c)
	}
	for i := range trains {
		trains[i].Coaches = byTrain[trains[i].ID]
		if trains[i].Coaches == nil {
			trains[i].Coaches = []models.Coach{}
		}
	}
	return trains, nil
}

// ListCoaches returns a train's coaches in position order
func (r *TrainRepository) ListCoaches(ctx context.Context, trainID uuid.UUID) ([]models.Coach, error) {
	coaches := []models.Coach{}
	err := r.db.SelectContext(ctx, &coaches,
		`SELECT `+coachColumns+` FROM coaches WHERE train_id = $1 ORDER BY position`, trainID)
	if err != nil {
		return nil, fmt.Errorf("failed to list coaches: %w", err)
	}
	return coaches, nil
}

// GetCoach returns a single coach
func (r *TrainRepository) GetCoach(ctx context.Context, coachID uuid.UUID) (*models.Coach, error) {
	var coach models.Coach
	err := r.db.GetContext(ctx, &coach, `SELECT `+coachColumns+` FROM coaches WHERE id = $1`, coachID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get coach: %w", err)
	}
	return &coach, nil
}

func insertCoaches(ctx context.Context, tx *sqlx.Tx, coaches []models.Coach, seats []models.Seat) error {
	if len(coaches) == 0 {
		return nil
	}

	_, err := tx.NamedExecContext(ctx, `
		INSERT INTO coaches (`+coachColumns+`)
		VALUES (:id, :train_id, :coach_number, :class_type, :total_seats, :price, :position)`,
		coaches)
	if err != nil {
		return fmt.Errorf("failed to insert coaches: %w", err)
	}

	if len(seats) == 0 {
		return nil
	}
	_, err = tx.NamedExecContext(ctx, `
		INSERT INTO seats (coach_id, seat_number, position, berth, is_window, status, updated_at)
		VALUES (:coach_id, :seat_number, :position, :berth, :is_window, :status, :updated_at)`,
		seats)
	if err != nil {
		return fmt.Errorf("failed to insert seats: %w", err)
	}
	return nil
}

// countActiveSeats counts booked seats and unexpired holds on a train
func countActiveSeats(ctx context.Context, tx *sqlx.Tx, trainID uuid.UUID, now time.Time) (int, error) {
	var count int
	err := tx.GetContext(ctx, &count, `
		SELECT COUNT(*)
		FROM seats s
		JOIN coaches c ON c.id = s.coach_id
		WHERE c.train_id = $1
		  AND (s.status = 'booked' OR (s.status = 'held' AND s.held_until > $2))`,
		trainID, now)
	if err != nil {
		return 0, fmt.Errorf("failed to count seats in use: %w", err)
	}
	return count, nil
}
