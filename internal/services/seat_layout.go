package services

import (
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/railbook/train-booking-backend/internal/models"
)

// Berth cycles of one bay, by class
var berthCycles = map[models.CoachClass][]models.BerthType{
	models.CoachClass1A: {models.BerthLower, models.BerthUpper, models.BerthLower, models.BerthUpper},
	models.CoachClass2A: {
		models.BerthLower, models.BerthUpper, models.BerthLower, models.BerthUpper,
		models.BerthSideLower, models.BerthSideUpper,
	},
	models.CoachClass3A: {
		models.BerthLower, models.BerthMiddle, models.BerthUpper,
		models.BerthLower, models.BerthMiddle, models.BerthUpper,
		models.BerthSideLower, models.BerthSideUpper,
	},
	models.CoachClassSL: {
		models.BerthLower, models.BerthMiddle, models.BerthUpper,
		models.BerthLower, models.BerthMiddle, models.BerthUpper,
		models.BerthSideLower, models.BerthSideUpper,
	},
}

// Chairs per row, by class
var chairsPerRow = map[models.CoachClass]int{
	models.CoachClassCC: 5, // 3+2
	models.CoachClassEC: 4, // 2+2
}

// Coach number letter, by class
var coachPrefixes = map[models.CoachClass]string{
	models.CoachClass1A: "H",
	models.CoachClass2A: "A",
	models.CoachClass3A: "B",
	models.CoachClassSL: "S",
	models.CoachClassCC: "C",
	models.CoachClassEC: "E",
}

// buildCoaches turns coach inputs into coaches and their vacant seat maps.
// Coaches without a number get the class letter and a running index, e.g. B1, B2.
func buildCoaches(trainID uuid.UUID, inputs []models.CoachInput, now time.Time) ([]models.Coach, []models.Seat) {
	taken := make(map[string]bool, len(inputs))
	for _, in := range inputs {
		if in.CoachNumber != "" {
			taken[in.CoachNumber] = true
		}
	}

	counters := make(map[models.CoachClass]int)
	coaches := make([]models.Coach, 0, len(inputs))
	var seats []models.Seat

	for i, in := range inputs {
		number := in.CoachNumber
		for number == "" {
			counters[in.Class]++
			candidate := coachPrefixes[in.Class] + strconv.Itoa(counters[in.Class])
			if !taken[candidate] {
				number = candidate
				taken[candidate] = true
			}
		}

		coach := models.Coach{
			ID:          uuid.New(),
			TrainID:     trainID,
			CoachNumber: number,
			Class:       in.Class,
			TotalSeats:  in.TotalSeats,
			Price:       models.RoundMoney(in.Price),
			Position:    i + 1,
		}
		coaches = append(coaches, coach)
		seats = append(seats, generateSeats(coach, now)...)
	}
	return coaches, seats
}

// generateSeats lays out seats "1".."N" for a coach; all start vacant
func generateSeats(coach models.Coach, now time.Time) []models.Seat {
	seats := make([]models.Seat, coach.TotalSeats)
	cycle := berthCycles[coach.Class]
	rowWidth := chairsPerRow[coach.Class]

	for i := range seats {
		seat := models.Seat{
			CoachID:    coach.ID,
			SeatNumber: strconv.Itoa(i + 1),
			Position:   i + 1,
			Status:     models.SeatStatusVacant,
			UpdatedAt:  now,
		}

		switch {
		case len(cycle) > 0:
			seat.Berth = cycle[i%len(cycle)]
			seat.IsWindow = seat.Berth.IsLower()
		case rowWidth > 0:
			col := i % rowWidth
			seat.IsWindow = col == 0 || col == rowWidth-1
		default:
			seat.IsWindow = i%2 == 0
		}
		seats[i] = seat
	}
	return seats
}
