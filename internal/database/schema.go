package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
)

const pgUniqueViolationCode = "23505"

// schema is applied in order; every statement is idempotent
var schema = []string{
	`CREATE TABLE IF NOT EXISTS trains (
		id UUID PRIMARY KEY,
		train_number VARCHAR(16) NOT NULL UNIQUE,
		train_name VARCHAR(120) NOT NULL,
		origin VARCHAR(120) NOT NULL,
		destination VARCHAR(120) NOT NULL,
		route JSONB NOT NULL DEFAULT '[]',
		created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS coaches (
		id UUID PRIMARY KEY,
		train_id UUID NOT NULL REFERENCES trains(id) ON DELETE CASCADE,
		coach_number VARCHAR(8) NOT NULL,
		class_type VARCHAR(4) NOT NULL CHECK (class_type IN ('1A', '2A', '3A', 'SL', 'CC', 'EC')),
		total_seats INTEGER NOT NULL CHECK (total_seats > 0),
		price NUMERIC(10,2) NOT NULL CHECK (price >= 0),
		position INTEGER NOT NULL,
		UNIQUE (train_id, coach_number)
	)`,
	`CREATE TABLE IF NOT EXISTS seats (
		coach_id UUID NOT NULL REFERENCES coaches(id) ON DELETE CASCADE,
		seat_number VARCHAR(8) NOT NULL,
		position INTEGER NOT NULL,
		berth VARCHAR(2) NOT NULL DEFAULT '',
		is_window BOOLEAN NOT NULL DEFAULT FALSE,
		status VARCHAR(8) NOT NULL DEFAULT 'vacant' CHECK (status IN ('vacant', 'held', 'booked')),
		hold_id UUID,
		held_until TIMESTAMP WITH TIME ZONE,
		hold_seq INTEGER,
		booking_ref VARCHAR(32),
		updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
		PRIMARY KEY (coach_id, seat_number),
		CHECK ((status = 'held') = (hold_id IS NOT NULL)),
		CHECK ((status = 'booked') = (booking_ref IS NOT NULL))
	)`,
	`ALTER TABLE seats ADD COLUMN IF NOT EXISTS hold_seq INTEGER`,
	`CREATE INDEX IF NOT EXISTS idx_seats_hold ON seats (hold_id) WHERE hold_id IS NOT NULL`,
	`CREATE INDEX IF NOT EXISTS idx_seats_held_until ON seats (held_until) WHERE status = 'held'`,
	`CREATE TABLE IF NOT EXISTS bookings (
		id UUID PRIMARY KEY,
		booking_ref VARCHAR(32) NOT NULL UNIQUE,
		train_id UUID NOT NULL REFERENCES trains(id) ON DELETE RESTRICT,
		train_snapshot JSONB NOT NULL,
		journey JSONB NOT NULL DEFAULT '{}',
		coach_id UUID NOT NULL,
		fare_per_seat NUMERIC(10,2) NOT NULL,
		total_amount NUMERIC(12,2) NOT NULL,
		currency VARCHAR(3) NOT NULL,
		status VARCHAR(16) NOT NULL DEFAULT 'confirmed',
		user_id UUID,
		created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS booking_seats (
		booking_id UUID NOT NULL REFERENCES bookings(id) ON DELETE CASCADE,
		seat_index INTEGER NOT NULL,
		coach_id UUID NOT NULL,
		coach_number VARCHAR(8) NOT NULL,
		class_type VARCHAR(4) NOT NULL,
		seat_number VARCHAR(8) NOT NULL,
		berth VARCHAR(2) NOT NULL DEFAULT '',
		price NUMERIC(10,2) NOT NULL,
		PRIMARY KEY (booking_id, seat_index),
		UNIQUE (coach_id, seat_number)
	)`,
	`CREATE TABLE IF NOT EXISTS booking_passengers (
		booking_id UUID NOT NULL REFERENCES bookings(id) ON DELETE CASCADE,
		passenger_index INTEGER NOT NULL,
		name VARCHAR(120) NOT NULL,
		age INTEGER NOT NULL,
		gender VARCHAR(16) NOT NULL,
		email VARCHAR(255) NOT NULL DEFAULT '',
		phone VARCHAR(16) NOT NULL DEFAULT '',
		seat_number VARCHAR(8) NOT NULL,
		PRIMARY KEY (booking_id, passenger_index)
	)`,
	`CREATE TABLE IF NOT EXISTS users (
		id UUID PRIMARY KEY,
		name VARCHAR(120) NOT NULL,
		email VARCHAR(255) NOT NULL UNIQUE,
		phone VARCHAR(16) NOT NULL DEFAULT '',
		password_hash VARCHAR(255) NOT NULL,
		roles TEXT[] NOT NULL DEFAULT '{passenger}',
		email_verified BOOLEAN NOT NULL DEFAULT FALSE,
		last_login_at TIMESTAMP WITH TIME ZONE,
		created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
	)`,
}

// Migrate creates the tables the repositories need
func Migrate(ctx context.Context, db *sqlx.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema statement %d: %w", i+1, err)
		}
	}
	return nil
}

// isUniqueViolation reports whether err is a Postgres unique-constraint violation,
// optionally on a specific constraint
func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != pgUniqueViolationCode {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}
