package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SeatStatus represents the occupancy status of a seat
type SeatStatus string

const (
	SeatStatusVacant SeatStatus = "vacant"
	SeatStatusHeld   SeatStatus = "held"
	SeatStatusBooked SeatStatus = "booked"
)

// SeatEvent names what moves a seat between statuses
type SeatEvent string

const (
	SeatEventHold    SeatEvent = "hold"
	SeatEventRelease SeatEvent = "release" // hold released or expired
	SeatEventBook    SeatEvent = "book"
	SeatEventCancel  SeatEvent = "cancel" // reserved: booking cancellation/refund
)

// seatTransitions is the full transition table. booked→vacant only happens on a cancellation.
var seatTransitions = map[SeatStatus]map[SeatEvent]SeatStatus{
	SeatStatusVacant: {SeatEventHold: SeatStatusHeld},
	SeatStatusHeld:   {SeatEventBook: SeatStatusBooked, SeatEventRelease: SeatStatusVacant},
	SeatStatusBooked: {SeatEventCancel: SeatStatusVacant},
}

// NextSeatStatus returns the status a seat moves to on event, or false if the event is not allowed
func NextSeatStatus(from SeatStatus, event SeatEvent) (SeatStatus, bool) {
	to, ok := seatTransitions[from][event]
	return to, ok
}

// BerthType is the berth position of a sleeper seat; chair-car seats have none
type BerthType string

const (
	BerthLower     BerthType = "LB"
	BerthMiddle    BerthType = "MB"
	BerthUpper     BerthType = "UB"
	BerthSideLower BerthType = "SL"
	BerthSideUpper BerthType = "SU"
	BerthNone      BerthType = ""
)

// IsLower reports whether the berth is at floor level
func (b BerthType) IsLower() bool {
	return b == BerthLower || b == BerthSideLower
}

// Seat is a single seat or berth of a coach
type Seat struct {
	CoachID    uuid.UUID  `json:"coachId" db:"coach_id"`
	SeatNumber string     `json:"seatNumber" db:"seat_number"`
	Position   int        `json:"position" db:"position"`
	Berth      BerthType  `json:"berth,omitempty" db:"berth"`
	IsWindow   bool       `json:"isWindow" db:"is_window"`
	Status     SeatStatus `json:"status" db:"status"`
	HoldID     *uuid.UUID `json:"holdId,omitempty" db:"hold_id"`
	HeldUntil  *time.Time `json:"heldUntil,omitempty" db:"held_until"`
	BookingID  *string    `json:"bookingId,omitempty" db:"booking_ref"`
	UpdatedAt  time.Time  `json:"updatedAt" db:"updated_at"`

	// HoldSeq is the seat's place in its hold's pick order, 0 when not held
	HoldSeq int `json:"-" db:"-"`
}

// EffectiveStatus is the status as of now: a hold past its expiry counts as vacant
func (s *Seat) EffectiveStatus(now time.Time) SeatStatus {
	if s.Status == SeatStatusHeld && s.HoldExpired(now) {
		return SeatStatusVacant
	}
	return s.Status
}

// HoldExpired reports whether the seat's hold has lapsed
func (s *Seat) HoldExpired(now time.Time) bool {
	return s.HeldUntil != nil && !now.Before(*s.HeldUntil)
}

// Apply moves the seat along the transition table and clears what the new status no longer
// carries. A lapsed hold may be held again as if vacant. Callers set the hold or booking fields.
func (s *Seat) Apply(event SeatEvent, now time.Time) error {
	from := s.Status
	if event == SeatEventHold {
		from = s.EffectiveStatus(now)
	}

	to, ok := NextSeatStatus(from, event)
	if !ok {
		return &SeatTransitionError{SeatNumber: s.SeatNumber, From: s.Status, Event: event}
	}

	s.Status = to
	s.UpdatedAt = now
	if to != SeatStatusHeld {
		s.HoldID = nil
		s.HeldUntil = nil
		s.HoldSeq = 0
	}
	if to != SeatStatusBooked {
		s.BookingID = nil
	}
	return nil
}

// SeatTransitionError reports an event the seat's current status does not allow
type SeatTransitionError struct {
	SeatNumber string
	From       SeatStatus
	Event      SeatEvent
}

func (e *SeatTransitionError) Error() string {
	return fmt.Sprintf("seat %s: %s not allowed while %s", e.SeatNumber, e.Event, e.From)
}

// Availability summarises a coach's seats by status. Total == Vacant + Held + Booked always.
type Availability struct {
	CoachID uuid.UUID `json:"coachId"`
	Total   int       `json:"total"`
	Vacant  int       `json:"vacant"`
	Held    int       `json:"held"`
	Booked  int       `json:"booked"`
}

// SeatSelection is either an explicit list of seat numbers or a count
type SeatSelection struct {
	SeatNumbers []string `json:"seatNumbers,omitempty"`
	Count       int      `json:"seatCount,omitempty"`
}

// IsExplicit reports whether the caller named the seats
func (s SeatSelection) IsExplicit() bool {
	return len(s.SeatNumbers) > 0
}

// Size is the number of seats requested
func (s SeatSelection) Size() int {
	if s.IsExplicit() {
		return len(s.SeatNumbers)
	}
	return s.Count
}

// SeatPicker chooses seat numbers from a coach's current seat map. It runs while the
// store holds the coach exclusively, so the seats it sees cannot change underneath it.
type SeatPicker func(seats []Seat, now time.Time) ([]string, error)

// Hold is a set of seats temporarily reserved pending booking completion
type Hold struct {
	ID        uuid.UUID `json:"holdId"`
	CoachID   uuid.UUID `json:"coachId"`
	Seats     []Seat    `json:"seats"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// SeatNumbers lists the held seat numbers in allocation order
func (h *Hold) SeatNumbers() []string {
	numbers := make([]string, len(h.Seats))
	for i, s := range h.Seats {
		numbers[i] = s.SeatNumber
	}
	return numbers
}

// HoldSeatsRequest is the body of POST /api/coaches/:coachId/holds
type HoldSeatsRequest struct {
	SeatNumbers []string `json:"seatNumbers"`
	SeatCount   int      `json:"seatCount"`
}
