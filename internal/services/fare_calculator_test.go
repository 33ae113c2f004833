package services

import (
	"math"
	"testing"

	"github.com/railbook/train-booking-backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFareCalculator_ComputeFare(t *testing.T) {
	calc := NewFareCalculator(134)

	tests := []struct {
		name      string
		price     float64
		count     int
		wantSeat  float64
		wantTotal float64
	}{
		{"coach price above floor", 1450, 3, 1450, 4350},
		{"coach price below floor", 100, 2, 134, 268},
		{"zero price uses floor", 0, 1, 134, 134},
		{"negative price uses floor", -50, 2, 134, 268},
		{"fractional price", 412.5, 3, 412.5, 1237.5},
		{"not a number uses floor", math.NaN(), 1, 134, 134},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fare, err := calc.ComputeFare(&models.Coach{Price: tt.price}, tt.count)
			require.NoError(t, err)
			assert.Equal(t, tt.wantSeat, fare.PerSeat)
			assert.Equal(t, tt.wantTotal, fare.Total)
		})
	}
}

func TestFareCalculator_InvalidCount(t *testing.T) {
	calc := NewFareCalculator(134)

	for _, count := range []int{0, -1} {
		_, err := calc.ComputeFare(&models.Coach{Price: 500}, count)
		var invalid *models.InvalidInputError
		assert.ErrorAs(t, err, &invalid)
	}
}

func TestFareCalculator_Idempotent(t *testing.T) {
	calc := NewFareCalculator(134)
	coach := &models.Coach{Class: models.CoachClass2A, Price: 2210.4}

	first, err := calc.ComputeFare(coach, 4)
	require.NoError(t, err)
	second, err := calc.ComputeFare(coach, 4)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 2210.4, coach.Price, "input must not be modified")
}
