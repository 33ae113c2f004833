package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/railbook/train-booking-backend/internal/models"
	"github.com/sirupsen/logrus"
)

// TrainService handles admin management of trains and their coaches
type TrainService struct {
	store  TrainStore
	logger *logrus.Logger
	now    func() time.Time
}

// NewTrainService creates a new TrainService
func NewTrainService(store TrainStore, logger *logrus.Logger) *TrainService {
	return &TrainService{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// ListTrains returns every train with its coaches
func (s *TrainService) ListTrains(ctx context.Context) ([]models.Train, error) {
	return s.store.ListTrains(ctx)
}

// GetTrain returns one train with its coaches
func (s *TrainService) GetTrain(ctx context.Context, id uuid.UUID) (*models.Train, error) {
	return s.store.GetTrain(ctx, id)
}

// CreateTrain validates the input and stores the train with a generated seat map per coach
func (s *TrainService) CreateTrain(ctx context.Context, in *models.TrainInput) (*models.Train, error) {
	in.Normalize()
	if err := in.Validate(); err != nil {
		return nil, err
	}

	now := s.now()
	train := &models.Train{
		ID:          uuid.New(),
		Number:      in.Number,
		Name:        in.Name,
		Origin:      in.Origin,
		Destination: in.Destination,
		Route:       models.RouteStops(in.Route),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	coaches, seats := buildCoaches(train.ID, in.Coaches, now)
	train.Coaches = coaches

	if err := s.store.CreateTrain(ctx, train, seats); err != nil {
		if errors.Is(err, models.ErrDuplicateTrainNumber) {
			return nil, err
		}
		return nil, models.NewPersistenceError("create train", err)
	}

	s.logger.WithFields(logrus.Fields{
		"train_id":     train.ID,
		"train_number": train.Number,
		"coach_count":  len(coaches),
		"seat_count":   len(seats),
	}).Info("Train created")

	return train, nil
}

// UpdateTrain rewrites train details. Coaches are replaced only when the input lists them,
// and only while none of the train's seats is held or booked.
func (s *TrainService) UpdateTrain(ctx context.Context, id uuid.UUID, in *models.TrainInput) (*models.Train, error) {
	in.Normalize()
	if err := in.Validate(); err != nil {
		return nil, err
	}

	existing, err := s.store.GetTrain(ctx, id)
	if err != nil {
		return nil, err
	}

	now := s.now()
	train := &models.Train{
		ID:          id,
		Number:      in.Number,
		Name:        in.Name,
		Origin:      in.Origin,
		Destination: in.Destination,
		Route:       models.RouteStops(in.Route),
		Coaches:     existing.Coaches,
		CreatedAt:   existing.CreatedAt,
		UpdatedAt:   now,
	}

	replaceCoaches := len(in.Coaches) > 0
	var seats []models.Seat
	if replaceCoaches {
		train.Coaches, seats = buildCoaches(id, in.Coaches, now)
	}

	if err := s.store.UpdateTrain(ctx, train, seats, replaceCoaches, now); err != nil {
		if errors.Is(err, models.ErrDuplicateTrainNumber) ||
			errors.Is(err, models.ErrNotFound) ||
			errors.Is(err, models.ErrConflict) {
			return nil, err
		}
		return nil, models.NewPersistenceError("update train", err)
	}

	s.logger.WithFields(logrus.Fields{
		"train_id":         id,
		"train_number":     train.Number,
		"coaches_replaced": replaceCoaches,
	}).Info("Train updated")

	return train, nil
}

// DeleteTrain removes a train no booking references
func (s *TrainService) DeleteTrain(ctx context.Context, id uuid.UUID) error {
	if err := s.store.DeleteTrain(ctx, id, s.now()); err != nil {
		if errors.Is(err, models.ErrNotFound) || errors.Is(err, models.ErrConflict) {
			return err
		}
		return models.NewPersistenceError("delete train", err)
	}

	s.logger.WithField("train_id", id).Info("Train deleted")
	return nil
}
