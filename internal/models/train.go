package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// CoachClass is the class of service of a coach
type CoachClass string

const (
	CoachClass1A CoachClass = "1A" // First AC
	CoachClass2A CoachClass = "2A" // AC two tier
	CoachClass3A CoachClass = "3A" // AC three tier
	CoachClassSL CoachClass = "SL" // Sleeper
	CoachClassCC CoachClass = "CC" // AC chair car
	CoachClassEC CoachClass = "EC" // Executive chair car
)

// MaxCoachSeats bounds the seat map generated for one coach
const MaxCoachSeats = 200

// CoachClasses lists every supported class in display order
var CoachClasses = []CoachClass{
	CoachClass1A, CoachClass2A, CoachClass3A, CoachClassSL, CoachClassCC, CoachClassEC,
}

// IsValid reports whether c is one of the supported classes
func (c CoachClass) IsValid() bool {
	for _, known := range CoachClasses {
		if c == known {
			return true
		}
	}
	return false
}

// IsSleeper reports whether the class is laid out in berths rather than chairs
func (c CoachClass) IsSleeper() bool {
	switch c {
	case CoachClass1A, CoachClass2A, CoachClass3A, CoachClassSL:
		return true
	}
	return false
}

// RouteStop is one halt on a train's route.
// Arrival and Departure are "15:04" clock times; DayOffset counts days since the origin departure.
type RouteStop struct {
	Name        string `json:"name"`
	Arrival     string `json:"arrival,omitempty"`
	Departure   string `json:"departure,omitempty"`
	HaltMinutes int    `json:"haltMinutes"`
	DayOffset   int    `json:"dayOffset"`
}

// RouteStops is stored as a JSONB column
type RouteStops []RouteStop

func (r RouteStops) Value() (driver.Value, error) {
	if r == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(r)
}

func (r *RouteStops) Scan(value interface{}) error {
	if value == nil {
		*r = RouteStops{}
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return errors.New("type assertion to []byte failed for RouteStops")
	}
	return json.Unmarshal(bytes, r)
}

// Train identifies a physical service
type Train struct {
	ID          uuid.UUID  `json:"id" db:"id"`
	Number      string     `json:"trainNumber" db:"train_number"`
	Name        string     `json:"trainName" db:"train_name"`
	Origin      string     `json:"origin" db:"origin"`
	Destination string     `json:"destination" db:"destination"`
	Route       RouteStops `json:"route" db:"route"`
	Coaches     []Coach    `json:"coaches" db:"-"`
	CreatedAt   time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time  `json:"updatedAt" db:"updated_at"`
}

// Snapshot returns the denormalized view of the train stored on bookings
func (t *Train) Snapshot() TrainSnapshot {
	return TrainSnapshot{
		ID:          t.ID,
		Number:      t.Number,
		Name:        t.Name,
		Origin:      t.Origin,
		Destination: t.Destination,
	}
}

// FindCoach returns the coach with the given id, if it belongs to the train
func (t *Train) FindCoach(coachID uuid.UUID) (*Coach, bool) {
	for i := range t.Coaches {
		if t.Coaches[i].ID == coachID {
			return &t.Coaches[i], true
		}
	}
	return nil, false
}

// Coach is a class-of-service car within a train
type Coach struct {
	ID          uuid.UUID  `json:"id" db:"id"`
	TrainID     uuid.UUID  `json:"trainId" db:"train_id"`
	CoachNumber string     `json:"coachNumber" db:"coach_number"`
	Class       CoachClass `json:"classType" db:"class_type"`
	TotalSeats  int        `json:"totalSeats" db:"total_seats"`
	Price       float64    `json:"price" db:"price"`
	Position    int        `json:"position" db:"position"`
}

// TrainSnapshot is the train as it was when a booking was made
type TrainSnapshot struct {
	ID          uuid.UUID `json:"id"`
	Number      string    `json:"trainNumber"`
	Name        string    `json:"trainName"`
	Origin      string    `json:"origin"`
	Destination string    `json:"destination"`
}

func (s TrainSnapshot) Value() (driver.Value, error) {
	return json.Marshal(s)
}

func (s *TrainSnapshot) Scan(value interface{}) error {
	if value == nil {
		*s = TrainSnapshot{}
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return errors.New("type assertion to []byte failed for TrainSnapshot")
	}
	return json.Unmarshal(bytes, s)
}

// ============================================================================
// ADMIN REQUESTS
// ============================================================================

// CoachInput describes a coach when creating or updating a train
type CoachInput struct {
	CoachNumber string     `json:"coachNumber"`
	Class       CoachClass `json:"classType" binding:"required"`
	TotalSeats  int        `json:"totalSeats" binding:"required"`
	Price       float64    `json:"price"`
}

// TrainInput is the body of POST /api/trains and PUT /api/trains/:id
type TrainInput struct {
	Number      string       `json:"trainNumber" binding:"required"`
	Name        string       `json:"trainName" binding:"required"`
	Origin      string       `json:"origin" binding:"required"`
	Destination string       `json:"destination" binding:"required"`
	Route       []RouteStop  `json:"route"`
	Coaches     []CoachInput `json:"coaches"`
}

// Normalize trims names in place
func (in *TrainInput) Normalize() {
	in.Number = strings.TrimSpace(in.Number)
	in.Name = strings.TrimSpace(in.Name)
	in.Origin = strings.TrimSpace(in.Origin)
	in.Destination = strings.TrimSpace(in.Destination)
	for i := range in.Route {
		in.Route[i].Name = strings.TrimSpace(in.Route[i].Name)
	}
	for i := range in.Coaches {
		in.Coaches[i].CoachNumber = strings.TrimSpace(in.Coaches[i].CoachNumber)
		in.Coaches[i].Class = CoachClass(strings.ToUpper(strings.TrimSpace(string(in.Coaches[i].Class))))
	}
}

// Validate checks the train invariants: distinct endpoints, ordered route, valid coaches
func (in *TrainInput) Validate() error {
	verr := &ValidationError{}

	if in.Number == "" {
		verr.Add("trainNumber", "train number is required")
	}
	if in.Name == "" {
		verr.Add("trainName", "train name is required")
	}
	if in.Origin == "" {
		verr.Add("origin", "origin is required")
	}
	if in.Destination == "" {
		verr.Add("destination", "destination is required")
	}
	if in.Origin != "" && strings.EqualFold(in.Origin, in.Destination) {
		verr.Add("destination", "destination must differ from origin")
	}

	if len(in.Route) > 0 {
		validateRoute(in.Origin, in.Destination, in.Route, verr)
	}

	seen := make(map[string]bool)
	for i, c := range in.Coaches {
		field := fmt.Sprintf("coaches[%d]", i)
		if !c.Class.IsValid() {
			verr.Add(field+".classType", fmt.Sprintf("unknown class %q", c.Class))
		}
		switch {
		case c.TotalSeats <= 0:
			verr.Add(field+".totalSeats", "seat count must be greater than zero")
		case c.TotalSeats > MaxCoachSeats:
			verr.Add(field+".totalSeats", fmt.Sprintf("seat count must not exceed %d", MaxCoachSeats))
		}
		if c.Price < 0 {
			verr.Add(field+".price", "price must not be negative")
		}
		if c.CoachNumber != "" {
			if seen[c.CoachNumber] {
				verr.Add(field+".coachNumber", fmt.Sprintf("duplicate coach number %q", c.CoachNumber))
			}
			seen[c.CoachNumber] = true
		}
	}

	if verr.HasErrors() {
		return verr
	}
	return nil
}

// validateRoute enforces origin→destination ordering of the stops
func validateRoute(origin, destination string, route []RouteStop, verr *ValidationError) {
	if !strings.EqualFold(route[0].Name, origin) {
		verr.Add("route[0].name", "first stop must be the origin")
	}
	if !strings.EqualFold(route[len(route)-1].Name, destination) {
		verr.Add(fmt.Sprintf("route[%d].name", len(route)-1), "last stop must be the destination")
	}

	last := -1
	for i, stop := range route {
		field := fmt.Sprintf("route[%d]", i)
		if stop.Name == "" {
			verr.Add(field+".name", "stop name is required")
		}
		if stop.HaltMinutes < 0 {
			verr.Add(field+".haltMinutes", "halt must not be negative")
		}
		if stop.DayOffset < 0 {
			verr.Add(field+".dayOffset", "day offset must not be negative")
		}
		for _, t := range []struct {
			name  string
			value string
		}{{"arrival", stop.Arrival}, {"departure", stop.Departure}} {
			if t.value == "" {
				continue
			}
			minutes, ok := clockMinutes(t.value)
			if !ok {
				verr.Add(field+"."+t.name, "time must be HH:MM")
				continue
			}
			at := stop.DayOffset*24*60 + minutes
			if at < last {
				verr.Add(field+"."+t.name, "stops must be in travel order")
			}
			last = at
		}
	}
}

func clockMinutes(value string) (int, bool) {
	t, err := time.Parse("15:04", value)
	if err != nil {
		return 0, false
	}
	return t.Hour()*60 + t.Minute(), true
}
