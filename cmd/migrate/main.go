package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/railbook/train-booking-backend/internal/config"
	"github.com/railbook/train-booking-backend/internal/database"
	"github.com/railbook/train-booking-backend/internal/models"
	"github.com/railbook/train-booking-backend/internal/services"
	"github.com/sirupsen/logrus"
)

// bookingTables are truncated by -clear-bookings, children first
var bookingTables = []string{"booking_passengers", "booking_seats", "bookings"}

func main() {
	var (
		dbURLFlag     string
		seed          bool
		clearBookings bool
	)
	flag.StringVar(&dbURLFlag, "database-url", "", "PostgreSQL connection string (overrides DATABASE_URL)")
	flag.BoolVar(&seed, "seed", false, "create the demo trains when they do not exist yet")
	flag.BoolVar(&clearBookings, "clear-bookings", false, "delete every booking and return all seats to vacant")
	flag.Parse()

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	// .env is optional; it keeps secrets off the command line
	_ = godotenv.Load()

	dbURL := dbURLFlag
	if dbURL == "" {
		dbURL = os.Getenv("DATABASE_URL")
	}
	if dbURL == "" {
		logger.Fatal("DATABASE_URL is not set and -database-url was not provided")
	}

	db, err := database.NewConnection(config.DatabaseConfig{
		URL:                dbURL,
		MaxConnections:     5,
		MaxIdleConnections: 2,
		ConnMaxLifetime:    5 * time.Minute,
	}, logger)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := database.Migrate(ctx, db.DB); err != nil {
		logger.Fatalf("Failed to apply schema: %v", err)
	}
	logger.Info("Schema is up to date")

	if clearBookings {
		for _, table := range bookingTables {
			if _, err := db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s", table)); err != nil {
				logger.Fatalf("Failed to clear %s: %v", table, err)
			}
		}
		if _, err := db.ExecContext(ctx,
			`UPDATE seats SET status = 'vacant', hold_id = NULL, held_until = NULL, hold_seq = NULL, booking_ref = NULL, updated_at = NOW()`); err != nil {
			logger.Fatalf("Failed to reset seats: %v", err)
		}
		logger.Info("Bookings cleared and seats reset")
	}

	if seed {
		trains := services.NewTrainService(database.NewTrainRepository(db.DB), logger)
		for _, input := range demoTrains() {
			train, err := trains.CreateTrain(ctx, &input)
			switch {
			case errors.Is(err, models.ErrDuplicateTrainNumber):
				logger.WithField("train_number", input.Number).Info("Demo train already present")
			case err != nil:
				logger.Fatalf("Failed to seed train %s: %v", input.Number, err)
			default:
				logger.WithFields(logrus.Fields{
					"train_number": train.Number,
					"coaches":      len(train.Coaches),
				}).Info("Demo train created")
			}
		}
	}
}

func demoTrains() []models.TrainInput {
	return []models.TrainInput{
		{
			Number:      "12951",
			Name:        "Mumbai Rajdhani",
			Origin:      "Mumbai Central",
			Destination: "New Delhi",
			Route: []models.RouteStop{
				{Name: "Mumbai Central", Departure: "17:00"},
				{Name: "Surat", Arrival: "19:43", Departure: "19:48", HaltMinutes: 5},
				{Name: "Vadodara", Arrival: "21:08", Departure: "21:18", HaltMinutes: 10},
				{Name: "Kota", Arrival: "02:55", Departure: "03:00", HaltMinutes: 5, DayOffset: 1},
				{Name: "New Delhi", Arrival: "08:32", DayOffset: 1},
			},
			Coaches: []models.CoachInput{
				{Class: models.CoachClass1A, TotalSeats: 24, Price: 4755},
				{Class: models.CoachClass2A, TotalSeats: 48, Price: 2860},
				{Class: models.CoachClass3A, TotalSeats: 64, Price: 2045},
				{Class: models.CoachClass3A, TotalSeats: 64, Price: 2045},
			},
		},
		{
			Number:      "12009",
			Name:        "Mumbai Ahmedabad Shatabdi",
			Origin:      "Mumbai Central",
			Destination: "Ahmedabad",
			Coaches: []models.CoachInput{
				{Class: models.CoachClassEC, TotalSeats: 56, Price: 1920},
				{Class: models.CoachClassCC, TotalSeats: 78, Price: 985},
				{Class: models.CoachClassCC, TotalSeats: 78, Price: 985},
			},
		},
		{
			Number:      "11077",
			Name:        "Jhelum Express",
			Origin:      "Pune",
			Destination: "Jammu Tawi",
			Coaches: []models.CoachInput{
				{Class: models.CoachClassSL, TotalSeats: 72, Price: 710},
				{Class: models.CoachClassSL, TotalSeats: 72, Price: 710},
				{Class: models.CoachClass3A, TotalSeats: 64, Price: 1905},
			},
		},
	}
}
