package models

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// BookingStatus represents the lifecycle state of a booking
type BookingStatus string

const (
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusCancelled BookingStatus = "cancelled" // reserved for cancellation/refund
)

// Passenger travels on one seat of a booking
type Passenger struct {
	Name       string `json:"name"`
	Age        int    `json:"age"`
	Gender     string `json:"gender"`
	Email      string `json:"email,omitempty"`
	Phone      string `json:"phone,omitempty"`
	SeatNumber string `json:"seatNumber,omitempty"`
}

// BookedSeat is an allocated seat as recorded on a booking
type BookedSeat struct {
	CoachID     uuid.UUID  `json:"coachId" db:"coach_id"`
	CoachNumber string     `json:"coachNumber" db:"coach_number"`
	Class       CoachClass `json:"classType" db:"class_type"`
	SeatNumber  string     `json:"seatNumber" db:"seat_number"`
	Berth       BerthType  `json:"berth,omitempty" db:"berth"`
	Price       float64    `json:"price" db:"price"`
}

// JourneyDetails is the passenger's search context (from, to, date)
type JourneyDetails struct {
	From string `json:"from"`
	To   string `json:"to"`
	Date string `json:"date"`
}

func (j JourneyDetails) Value() (driver.Value, error) {
	return json.Marshal(j)
}

func (j *JourneyDetails) Scan(value interface{}) error {
	if value == nil {
		*j = JourneyDetails{}
		return nil
	}
	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return errors.New("type assertion to []byte failed for JourneyDetails")
	}
	return json.Unmarshal(raw, j)
}

// Booking is the aggregate root: len(Passengers) == len(SelectedSeats),
// TotalAmount == sum of seat prices, BookingID globally unique.
type Booking struct {
	ID            uuid.UUID      `json:"id"`
	BookingID     string         `json:"bookingId"`
	TrainID       uuid.UUID      `json:"trainId"`
	Train         TrainSnapshot  `json:"train"`
	Journey       JourneyDetails `json:"journey"`
	CoachID       uuid.UUID      `json:"coachId"`
	SelectedSeats []BookedSeat   `json:"selectedSeats"`
	Passengers    []Passenger    `json:"passengers"`
	FarePerSeat   float64        `json:"farePerSeat"`
	TotalAmount   float64        `json:"totalAmount"`
	Currency      string         `json:"currency"`
	Status        BookingStatus  `json:"status"`
	UserID        *uuid.UUID     `json:"userId,omitempty"`
	CreatedAt     time.Time      `json:"createdAt"`
}

// SeatTotal sums the prices of the selected seats
func (b *Booking) SeatTotal() float64 {
	var total float64
	for _, s := range b.SelectedSeats {
		total += s.Price
	}
	return RoundMoney(total)
}

// PassengerRow is one flattened passenger of a booking, as consumed by TTE/admin views
type PassengerRow struct {
	BookingID   string     `json:"bookingId" db:"booking_ref"`
	Name        string     `json:"name" db:"name"`
	Age         int        `json:"age" db:"age"`
	Gender      string     `json:"gender" db:"gender"`
	Email       string     `json:"email,omitempty" db:"email"`
	Phone       string     `json:"phone,omitempty" db:"phone"`
	TrainNumber string     `json:"trainNumber" db:"train_number"`
	TrainName   string     `json:"trainName" db:"train_name"`
	CoachNumber string     `json:"coachNumber" db:"coach_number"`
	Class       CoachClass `json:"classType" db:"class_type"`
	SeatNumber  string     `json:"seatNumber" db:"seat_number"`
	JourneyDate string     `json:"journeyDate" db:"journey_date"`
	From        string     `json:"from" db:"journey_from"`
	To          string     `json:"to" db:"journey_to"`
	BookedAt    time.Time  `json:"bookedAt" db:"created_at"`
}

// PassengerFilter narrows the passenger list
type PassengerFilter struct {
	TrainNumber string
	JourneyDate string
}

// RoundMoney rounds an amount to two decimal places
func RoundMoney(amount float64) float64 {
	v, _ := strconv.ParseFloat(strconv.FormatFloat(amount, 'f', 2, 64), 64)
	return v
}

// ============================================================================
// BOOKING REQUEST (ingestion adapter)
// ============================================================================

// SelectedSeat names one seat picked on the seat map
type SelectedSeat struct {
	CoachID    string `json:"coachId"`
	SeatNumber string `json:"seatNumber"`
}

// UnmarshalJSON accepts {coachId|coach_id, seatNumber|seat_number|seatNo|number}
func (s *SelectedSeat) UnmarshalJSON(data []byte) error {
	fields, err := decodeObject(data)
	if err != nil {
		return err
	}
	s.CoachID = firstString(fields, "coachId", "coach_id", "coach")
	s.SeatNumber = firstString(fields, "seatNumber", "seat_number", "seatNo", "number")
	return nil
}

// TrainRef identifies the train a booking is for. Clients have sent several shapes over time.
type TrainRef struct {
	ID     string `json:"id,omitempty"`
	Number string `json:"trainNumber,omitempty"`
	Name   string `json:"trainName,omitempty"`
}

// UnmarshalJSON normalizes id/_id/trainId, number/trainNumber/train_number and name/trainName/train_name
func (r *TrainRef) UnmarshalJSON(data []byte) error {
	fields, err := decodeObject(data)
	if err != nil {
		return err
	}
	r.ID = firstString(fields, "id", "_id", "trainId", "train_id")
	r.Number = firstString(fields, "trainNumber", "train_number", "number", "trainNo")
	r.Name = firstString(fields, "trainName", "train_name", "name")
	return nil
}

// IsEmpty reports whether no identifying field was supplied
func (r TrainRef) IsEmpty() bool {
	return r.ID == "" && r.Number == ""
}

// CreateBookingRequest is the body of POST /api/bookings
type CreateBookingRequest struct {
	Passengers    []Passenger    `json:"passengers"`
	SelectedSeats []SelectedSeat `json:"selectedSeats"`
	SeatCount     int            `json:"seatCount"`
	CoachID       string         `json:"coachId"`
	HoldID        string         `json:"holdId"`
	SelectedTrain TrainRef       `json:"selectedTrain"`
	SearchData    JourneyDetails `json:"searchData"`
}

// CreateBookingResponse is the body returned by POST /api/bookings
type CreateBookingResponse struct {
	Message   string   `json:"message"`
	BookingID string   `json:"bookingId"`
	Booking   *Booking `json:"booking"`
}

func decodeObject(data []byte) (map[string]json.RawMessage, error) {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return map[string]json.RawMessage{}, nil
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}
	return fields, nil
}

// firstString returns the first non-empty key as a string; numbers are accepted as well
func firstString(fields map[string]json.RawMessage, keys ...string) string {
	for _, key := range keys {
		raw, ok := fields[key]
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			if s = strings.TrimSpace(s); s != "" {
				return s
			}
			continue
		}
		var n json.Number
		if err := json.Unmarshal(raw, &n); err == nil && n.String() != "" {
			return n.String()
		}
	}
	return ""
}
