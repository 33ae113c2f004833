package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/railbook/train-booking-backend/internal/models"
)

// ResolveRequest maps the client's booking body onto a CreateBookingInput.
// The train may be named by id or by number; seats by {coachId, seatNumber} items or a bare count.
func (s *BookingService) ResolveRequest(ctx context.Context, req *models.CreateBookingRequest, userID *uuid.UUID) (CreateBookingInput, error) {
	in := CreateBookingInput{
		Passengers: req.Passengers,
		UserID:     userID,
		Journey: models.JourneyDetails{
			From: strings.TrimSpace(req.SearchData.From),
			To:   strings.TrimSpace(req.SearchData.To),
			Date: strings.TrimSpace(req.SearchData.Date),
		},
	}

	trainID, err := s.resolveTrain(ctx, req.SelectedTrain)
	if err != nil {
		return in, err
	}
	in.TrainID = trainID

	verr := &models.ValidationError{}

	if raw := strings.TrimSpace(req.HoldID); raw != "" {
		holdID, err := uuid.Parse(raw)
		if err != nil {
			verr.Add("holdId", "hold id is not valid")
		} else {
			in.HoldID = &holdID
		}
	}

	coachRef := strings.TrimSpace(req.CoachID)
	numbers := make([]string, 0, len(req.SelectedSeats))
	for i, seat := range req.SelectedSeats {
		if seat.CoachID != "" {
			if coachRef == "" {
				coachRef = seat.CoachID
			} else if !strings.EqualFold(coachRef, seat.CoachID) {
				verr.Add(fmt.Sprintf("selectedSeats[%d].coachId", i), "all seats must be in the same coach")
			}
		}
		numbers = append(numbers, seat.SeatNumber)
	}

	switch {
	case coachRef != "":
		coachID, err := uuid.Parse(coachRef)
		if err != nil {
			verr.Add("coachId", "coach id is not valid")
		} else {
			in.CoachID = coachID
		}
	case in.HoldID == nil:
		verr.Add("coachId", "coach is required")
	}

	if verr.HasErrors() {
		return in, verr
	}

	in.Selection = models.SeatSelection{SeatNumbers: numbers, Count: req.SeatCount}
	if in.HoldID == nil && in.Selection.Size() == 0 {
		in.Selection.Count = len(req.Passengers)
	}
	return in, nil
}

// resolveTrain finds the train id from whichever identifying field the client sent
func (s *BookingService) resolveTrain(ctx context.Context, ref models.TrainRef) (uuid.UUID, error) {
	if ref.IsEmpty() {
		return uuid.Nil, models.NewValidationError("selectedTrain", "train is required")
	}
	if id, err := uuid.Parse(ref.ID); err == nil {
		return id, nil
	}
	if ref.Number == "" {
		return uuid.Nil, models.NewValidationError("selectedTrain.id", "train id is not valid")
	}

	train, err := s.trains.GetTrainByNumber(ctx, ref.Number)
	if err != nil {
		return uuid.Nil, err
	}
	return train.ID, nil
}
