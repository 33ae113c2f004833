package services

import (
	"math"

	"github.com/railbook/train-booking-backend/internal/models"
)

// Fare is the price of one seat and of the whole party
type Fare struct {
	PerSeat float64 `json:"perSeat"`
	Total   float64 `json:"total"`
}

// FareCalculator prices seats of a coach. It has no side effects.
type FareCalculator struct {
	floor float64
}

// NewFareCalculator creates a calculator that never charges less than floor per seat
func NewFareCalculator(floor float64) *FareCalculator {
	return &FareCalculator{floor: floor}
}

// ComputeFare returns max(coach price, floor) per seat and that times passengerCount.
// Zero, negative or non-finite coach prices fall back to the floor.
func (c *FareCalculator) ComputeFare(coach *models.Coach, passengerCount int) (Fare, error) {
	if passengerCount <= 0 {
		return Fare{}, &models.InvalidInputError{Message: "passenger count must be greater than zero"}
	}
	if coach == nil {
		return Fare{}, &models.InvalidInputError{Message: "coach is required"}
	}

	price := coach.Price
	if math.IsNaN(price) || math.IsInf(price, 0) {
		price = 0
	}

	perSeat := models.RoundMoney(math.Max(price, c.floor))
	return Fare{
		PerSeat: perSeat,
		Total:   models.RoundMoney(perSeat * float64(passengerCount)),
	}, nil
}
