package handlers

import (
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/railbook/train-booking-backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type errorBody struct {
	Error       string              `json:"error"`
	Message     string              `json:"message"`
	Fields      []models.FieldError `json:"fields"`
	SeatNumbers []string            `json:"seatNumbers"`
	Requested   int                 `json:"requested"`
	Vacant      int                 `json:"vacant"`
}

func TestTrainRoutes_AdminGuard(t *testing.T) {
	api := newTestAPI(t)
	body := gin.H{"trainNumber": "22119", "trainName": "Tejas", "origin": "Mumbai CSMT", "destination": "Madgaon"}

	w := api.do(t, http.MethodPost, "/api/trains", "", body)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "MISSING_AUTH_HEADER")

	w = api.do(t, http.MethodPost, "/api/trains", api.passengerToken, body)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = api.do(t, http.MethodPost, "/api/trains", api.tteToken, body)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = api.do(t, http.MethodPost, "/api/trains", api.adminToken, body)
	assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())
}

func TestTrainRoutes_CRUD(t *testing.T) {
	api := newTestAPI(t)
	train := api.seedTrain(t)

	w := api.do(t, http.MethodGet, "/api/trains", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Trains []models.Train `json:"trains"`
		Count  int            `json:"count"`
	}
	decode(t, w, &list)
	assert.Equal(t, 1, list.Count)
	assert.Equal(t, "12951", list.Trains[0].Number)

	w = api.do(t, http.MethodGet, "/api/trains/"+train.ID.String(), "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var got models.Train
	decode(t, w, &got)
	assert.Equal(t, "Mumbai Rajdhani", got.Name)

	w = api.do(t, http.MethodGet, "/api/trains/"+train.ID.String()+"/coaches", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"coachNumber":"B1"`)

	w = api.do(t, http.MethodPut, "/api/trains/"+train.ID.String(), api.adminToken, gin.H{
		"trainNumber": "12951", "trainName": "Mumbai Rajdhani Express", "origin": "Mumbai Central", "destination": "New Delhi",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), "Mumbai Rajdhani Express")

	w = api.do(t, http.MethodDelete, "/api/trains/"+train.ID.String(), api.adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = api.do(t, http.MethodGet, "/api/trains/"+train.ID.String(), "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), CodeNotFound)
}

func TestTrainRoutes_Errors(t *testing.T) {
	api := newTestAPI(t)
	api.seedTrain(t)

	w := api.do(t, http.MethodGet, "/api/trains/not-a-uuid", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), CodeInvalidRequest)

	w = api.do(t, http.MethodPost, "/api/trains", api.adminToken, `{"trainNumber":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = api.do(t, http.MethodPost, "/api/trains", api.adminToken, gin.H{
		"trainNumber": "12951", "trainName": "Copy", "origin": "Pune", "destination": "Nagpur",
	})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), CodeDuplicateTrain)

	w = api.do(t, http.MethodPost, "/api/trains", api.adminToken, gin.H{
		"trainNumber": "12952", "trainName": "Loop", "origin": "Pune", "destination": "pune",
		"coaches": []gin.H{{"classType": "XL", "totalSeats": 4}},
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	var body errorBody
	decode(t, w, &body)
	assert.Equal(t, CodeValidation, body.Error)
	assert.NotEmpty(t, body.Fields)
}

func TestCoachRoutes_HoldLifecycle(t *testing.T) {
	api := newTestAPI(t)
	train := api.seedTrain(t)
	sleeper := train.Coaches[1].ID.String()

	w := api.do(t, http.MethodPost, "/api/coaches/"+sleeper+"/holds", "", gin.H{"seatCount": 3})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var hold models.Hold
	decode(t, w, &hold)
	assert.Equal(t, []string{"1", "2", "3"}, hold.SeatNumbers())
	assert.False(t, hold.ExpiresAt.IsZero())

	w = api.do(t, http.MethodGet, "/api/coaches/"+sleeper+"/availability", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var avail models.Availability
	decode(t, w, &avail)
	assert.Equal(t, 8, avail.Total)
	assert.Equal(t, 3, avail.Held)
	assert.Equal(t, 5, avail.Vacant)

	w = api.do(t, http.MethodGet, "/api/coaches/"+sleeper+"/seats", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var seatMap struct {
		Seats []models.Seat `json:"seats"`
	}
	decode(t, w, &seatMap)
	require.Len(t, seatMap.Seats, 8)
	assert.Equal(t, models.SeatStatusHeld, seatMap.Seats[0].Status)
	assert.Equal(t, models.SeatStatusVacant, seatMap.Seats[3].Status)

	w = api.do(t, http.MethodPost, "/api/coaches/"+sleeper+"/holds", "", gin.H{"seatNumbers": []string{"3", "4"}})
	require.Equal(t, http.StatusConflict, w.Code)
	var conflict errorBody
	decode(t, w, &conflict)
	assert.Equal(t, CodeSeatUnavailable, conflict.Error)
	assert.Equal(t, []string{"3"}, conflict.SeatNumbers)

	w = api.do(t, http.MethodPost, "/api/coaches/"+sleeper+"/holds", "", gin.H{"seatCount": 6})
	require.Equal(t, http.StatusConflict, w.Code)
	var short errorBody
	decode(t, w, &short)
	assert.Equal(t, CodeInsufficientSeats, short.Error)
	assert.Equal(t, 6, short.Requested)
	assert.Equal(t, 5, short.Vacant)

	w = api.do(t, http.MethodGet, "/api/holds/"+hold.ID.String(), "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = api.do(t, http.MethodDelete, "/api/holds/"+hold.ID.String(), "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = api.do(t, http.MethodDelete, "/api/holds/"+hold.ID.String(), "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), CodeHoldNotFound)

	w = api.do(t, http.MethodPost, "/api/coaches/"+uuid.NewString()+"/holds", "", gin.H{"seatCount": 1})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = api.do(t, http.MethodPost, "/api/coaches/"+sleeper+"/holds", "", gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), CodeValidation)
}

func TestBookingRoutes_CreateAndRead(t *testing.T) {
	api := newTestAPI(t)
	train := api.seedTrain(t)
	coach := train.Coaches[0]

	w := api.do(t, http.MethodPost, "/api/bookings", api.passengerToken, gin.H{
		"passengers": passengersJSON(2),
		"selectedSeats": []gin.H{
			{"coachId": coach.ID.String(), "seatNumber": "1"},
			{"coachId": coach.ID.String(), "seatNumber": "2"},
		},
		"selectedTrain": gin.H{"trainNumber": "12951"},
		"searchData":    gin.H{"from": "Mumbai Central", "to": "New Delhi", "date": "2026-11-20"},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created models.CreateBookingResponse
	decode(t, w, &created)
	assert.True(t, strings.HasPrefix(created.BookingID, "RBK"))
	assert.Len(t, created.BookingID, 9)
	require.NotNil(t, created.Booking)
	assert.Equal(t, created.BookingID, created.Booking.BookingID)
	assert.Equal(t, 1450.0, created.Booking.FarePerSeat)
	assert.Equal(t, 2900.0, created.Booking.TotalAmount)
	assert.Equal(t, "2026-11-20", created.Booking.Journey.Date)
	assert.NotNil(t, created.Booking.UserID)

	w = api.do(t, http.MethodGet, "/api/bookings/"+strings.ToLower(created.BookingID), "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), created.BookingID)

	w = api.do(t, http.MethodGet, "/api/bookings/RBK000000X", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	// Same seats again
	w = api.do(t, http.MethodPost, "/api/bookings", "", gin.H{
		"passengers":    passengersJSON(1),
		"selectedSeats": []gin.H{{"coachId": coach.ID.String(), "seatNumber": "2"}},
		"selectedTrain": gin.H{"id": train.ID.String()},
	})
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), CodeSeatUnavailable)
}

func TestBookingRoutes_FromHold(t *testing.T) {
	api := newTestAPI(t)
	train := api.seedTrain(t)
	sleeper := train.Coaches[1]

	w := api.do(t, http.MethodPost, fmt.Sprintf("/api/coaches/%s/holds", sleeper.ID), "", gin.H{"seatCount": 2})
	require.Equal(t, http.StatusCreated, w.Code)
	var hold models.Hold
	decode(t, w, &hold)

	w = api.do(t, http.MethodPost, "/api/bookings", "", gin.H{
		"passengers":    passengersJSON(2),
		"holdId":        hold.ID.String(),
		"selectedTrain": gin.H{"train_number": "12951"},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created models.CreateBookingResponse
	decode(t, w, &created)
	assert.Equal(t, sleeper.ID, created.Booking.CoachID)
	assert.Equal(t, 134.0, created.Booking.FarePerSeat, "sleeper price sits under the fare floor")
	assert.Equal(t, 268.0, created.Booking.TotalAmount)

	w = api.do(t, http.MethodGet, fmt.Sprintf("/api/coaches/%s/availability", sleeper.ID), "", nil)
	var avail models.Availability
	decode(t, w, &avail)
	assert.Equal(t, 2, avail.Booked)
	assert.Equal(t, 0, avail.Held)
}

func TestBookingRoutes_Validation(t *testing.T) {
	api := newTestAPI(t)
	train := api.seedTrain(t)
	coach := train.Coaches[0]

	tests := []struct {
		name string
		body interface{}
	}{
		{"No train", gin.H{"passengers": passengersJSON(1), "coachId": coach.ID.String()}},
		{"No passengers", gin.H{"coachId": coach.ID.String(), "selectedTrain": gin.H{"trainNumber": "12951"}}},
		{"Seat count mismatch", gin.H{
			"passengers":    passengersJSON(1),
			"selectedSeats": []gin.H{{"coachId": coach.ID.String(), "seatNumber": "1"}, {"coachId": coach.ID.String(), "seatNumber": "2"}},
			"selectedTrain": gin.H{"trainNumber": "12951"},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := api.do(t, http.MethodPost, "/api/bookings", "", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
			assert.Contains(t, w.Body.String(), CodeValidation)
		})
	}

	w := api.do(t, http.MethodPost, "/api/bookings", "", gin.H{
		"passengers": passengersJSON(1), "coachId": coach.ID.String(), "selectedTrain": gin.H{"trainNumber": "99999"},
	})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = api.do(t, http.MethodGet, fmt.Sprintf("/api/coaches/%s/availability", coach.ID), "", nil)
	var avail models.Availability
	decode(t, w, &avail)
	assert.Equal(t, 4, avail.Vacant, "rejected requests hold nothing")
}

func TestPassengerRoutes(t *testing.T) {
	api := newTestAPI(t)
	train := api.seedTrain(t)

	w := api.do(t, http.MethodPost, "/api/bookings", "", gin.H{
		"passengers":    passengersJSON(2),
		"coachId":       train.Coaches[0].ID.String(),
		"selectedTrain": gin.H{"trainNumber": "12951"},
		"searchData":    gin.H{"from": "Mumbai Central", "to": "New Delhi", "date": "2026-11-20"},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = api.do(t, http.MethodGet, "/api/passengers", api.passengerToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = api.do(t, http.MethodGet, "/api/passengers?trainNumber=12951", api.tteToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Passengers []models.PassengerRow `json:"passengers"`
		Count      int                   `json:"count"`
	}
	decode(t, w, &resp)
	require.Equal(t, 2, resp.Count)
	assert.Equal(t, "Mumbai Rajdhani", resp.Passengers[0].TrainName)
	assert.Equal(t, models.CoachClass3A, resp.Passengers[0].Class)
	assert.Equal(t, "2026-11-20", resp.Passengers[0].JourneyDate)

	w = api.do(t, http.MethodGet, "/api/passengers?trainNumber=00000", api.adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"count":0`)

	w = api.do(t, http.MethodGet, "/api/bookings", api.adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"count":1`)

	w = api.do(t, http.MethodGet, "/api/bookings?offset=-1", api.adminToken, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAuthRoutes(t *testing.T) {
	api := newTestAPI(t)

	w := api.do(t, http.MethodPost, "/api/auth/signup", "", gin.H{
		"name": "Asha Rao", "email": "asha@example.com", "phone": "9876543210", "password": "s3cret-pass",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var signup models.AuthResponse
	decode(t, w, &signup)
	assert.NotEmpty(t, signup.Token)

	w = api.do(t, http.MethodPost, "/api/auth/signup", "", gin.H{
		"name": "Asha Rao", "email": "asha@example.com", "password": "s3cret-pass",
	})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), CodeEmailTaken)

	w = api.do(t, http.MethodPost, "/api/auth/signup", "", gin.H{"name": "Short", "email": "short@example.com", "password": "short"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = api.do(t, http.MethodPost, "/api/auth/login", "", gin.H{"email": "asha@example.com", "password": "wrong-pass"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), CodeInvalidCredentials)

	w = api.do(t, http.MethodPost, "/api/auth/login", "", gin.H{"email": "asha@example.com", "password": "s3cret-pass"})
	require.Equal(t, http.StatusOK, w.Code)
	var login models.AuthResponse
	decode(t, w, &login)

	w = api.do(t, http.MethodGet, "/api/auth/me", login.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "asha@example.com")
	assert.NotContains(t, w.Body.String(), "password")

	w = api.do(t, http.MethodPost, "/api/auth/send-otp", "", gin.H{"email": "asha@example.com"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var sent struct {
		OTP string `json:"otp"`
	}
	decode(t, w, &sent)
	require.Len(t, sent.OTP, 6)

	w = api.do(t, http.MethodPost, "/api/auth/verify-otp", "", gin.H{"email": "asha@example.com", "otp": sent.OTP})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"emailVerified":true`)

	w = api.do(t, http.MethodPost, "/api/auth/verify-otp", "", gin.H{"email": "asha@example.com", "otp": sent.OTP})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), CodeOTPNotFound)
}

func TestAuthRoutes_OTPRateLimit(t *testing.T) {
	api := newTestAPI(t)

	for i := 0; i < 3; i++ {
		w := api.do(t, http.MethodPost, "/api/auth/send-otp", "", gin.H{"email": "ravi@example.com"})
		require.Equal(t, http.StatusOK, w.Code)
	}

	w := api.do(t, http.MethodPost, "/api/auth/send-otp", "", gin.H{"email": "ravi@example.com"})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), CodeRateLimited)
	assert.Contains(t, w.Body.String(), "retryAfter")
}

func TestSystemRoutes(t *testing.T) {
	api := newTestAPI(t)

	w := api.do(t, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"database":"healthy"`)
	assert.Contains(t, w.Body.String(), `"cache":"healthy"`)

	w = api.do(t, http.MethodPost, "/api/admin/holds/sweep", api.tteToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = api.do(t, http.MethodPost, "/api/admin/holds/sweep", api.adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"released":0`)

	w = api.do(t, http.MethodGet, "/api/admin/jobs", api.adminToken, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}
