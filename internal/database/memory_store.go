package database

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/railbook/train-booking-backend/internal/models"
)

// coachState is one coach and its seat map. mu serializes every seat mutation on the coach.
type coachState struct {
	mu    sync.Mutex
	coach models.Coach
	seats []models.Seat
}

// MemoryStore implements the train, seat, booking and user stores in memory.
// It is used when no database is configured and by tests.
//
// Lock order is always store mu before a coach mu.
type MemoryStore struct {
	mu           sync.RWMutex
	trains       map[uuid.UUID]*models.Train // coaches are kept in coachStates
	coaches      map[uuid.UUID]*coachState
	bookings     map[string]*models.Booking // bookingID -> booking
	bookingOrder []string
	users        map[uuid.UUID]*models.User
	usersByEmail map[string]uuid.UUID
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		trains:       make(map[uuid.UUID]*models.Train),
		coaches:      make(map[uuid.UUID]*coachState),
		bookings:     make(map[string]*models.Booking),
		users:        make(map[uuid.UUID]*models.User),
		usersByEmail: make(map[string]uuid.UUID),
	}
}

// PingContext always succeeds
func (s *MemoryStore) PingContext(ctx context.Context) error {
	return nil
}

// ============================================================================
// TRAINS
// ============================================================================

// CreateTrain stores a train with its coaches and seat maps
func (s *MemoryStore) CreateTrain(ctx context.Context, train *models.Train, seats []models.Seat) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.numberTaken(train.Number, train.ID) {
		return models.ErrDuplicateTrainNumber
	}

	t := *train
	t.Coaches = nil
	s.trains[train.ID] = &t
	s.addCoaches(train.Coaches, seats)
	return nil
}

// UpdateTrain rewrites the train and optionally replaces its coaches
func (s *MemoryStore) UpdateTrain(ctx context.Context, train *models.Train, seats []models.Seat, replaceCoaches bool, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.trains[train.ID]
	if !ok {
		return models.ErrNotFound
	}
	if s.numberTaken(train.Number, train.ID) {
		return models.ErrDuplicateTrainNumber
	}

	if replaceCoaches {
		if s.activeSeats(train.ID, now) > 0 {
			return models.ErrConflict
		}
		for id, cs := range s.coaches {
			if cs.coach.TrainID == train.ID {
				delete(s.coaches, id)
			}
		}
		s.addCoaches(train.Coaches, seats)
	}

	t := *train
	t.Coaches = nil
	t.CreatedAt = existing.CreatedAt
	s.trains[train.ID] = &t
	return nil
}

// DeleteTrain removes a train unless bookings or active holds reference it
func (s *MemoryStore) DeleteTrain(ctx context.Context, id uuid.UUID, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.trains[id]; !ok {
		return models.ErrNotFound
	}
	for _, b := range s.bookings {
		if b.TrainID == id {
			return models.ErrConflict
		}
	}
	if s.activeSeats(id, now) > 0 {
		return models.ErrConflict
	}

	for coachID, cs := range s.coaches {
		if cs.coach.TrainID == id {
			delete(s.coaches, coachID)
		}
	}
	delete(s.trains, id)
	return nil
}

// GetTrain returns a copy of the train with its coaches
func (s *MemoryStore) GetTrain(ctx context.Context, id uuid.UUID) (*models.Train, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.trains[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return s.withCoaches(t), nil
}

// GetTrainByNumber returns the train with the given number
func (s *MemoryStore) GetTrainByNumber(ctx context.Context, number string) (*models.Train, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, t := range s.trains {
		if t.Number == number {
			return s.withCoaches(t), nil
		}
	}
	return nil, models.ErrNotFound
}

// ListTrains returns all trains ordered by number
func (s *MemoryStore) ListTrains(ctx context.Context) ([]models.Train, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	trains := make([]models.Train, 0, len(s.trains))
	for _, t := range s.trains {
		trains = append(trains, *s.withCoaches(t))
	}
	sort.Slice(trains, func(i, j int) bool { return trains[i].Number < trains[j].Number })
	return trains, nil
}

// ListCoaches returns a train's coaches in position order
func (s *MemoryStore) ListCoaches(ctx context.Context, trainID uuid.UUID) ([]models.Coach, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.coachesOf(trainID), nil
}

// GetCoach returns a single coach
func (s *MemoryStore) GetCoach(ctx context.Context, coachID uuid.UUID) (*models.Coach, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cs, ok := s.coaches[coachID]
	if !ok {
		return nil, models.ErrNotFound
	}
	c := cs.coach
	return &c, nil
}

func (s *MemoryStore) numberTaken(number string, self uuid.UUID) bool {
	for id, t := range s.trains {
		if id != self && t.Number == number {
			return true
		}
	}
	return false
}

func (s *MemoryStore) addCoaches(coaches []models.Coach, seats []models.Seat) {
	for _, c := range coaches {
		s.coaches[c.ID] = &coachState{coach: c}
	}
	for _, seat := range seats {
		if cs, ok := s.coaches[seat.CoachID]; ok {
			cs.seats = append(cs.seats, cloneSeat(seat))
		}
	}
	for _, c := range coaches {
		cs := s.coaches[c.ID]
		sort.Slice(cs.seats, func(i, j int) bool { return cs.seats[i].Position < cs.seats[j].Position })
	}
}

func (s *MemoryStore) activeSeats(trainID uuid.UUID, now time.Time) int {
	count := 0
	for _, cs := range s.coaches {
		if cs.coach.TrainID != trainID {
			continue
		}
		cs.mu.Lock()
		for i := range cs.seats {
			if st := cs.seats[i].EffectiveStatus(now); st != models.SeatStatusVacant {
				count++
			}
		}
		cs.mu.Unlock()
	}
	return count
}

func (s *MemoryStore) coachesOf(trainID uuid.UUID) []models.Coach {
	coaches := []models.Coach{}
	for _, cs := range s.coaches {
		if cs.coach.TrainID == trainID {
			coaches = append(coaches, cs.coach)
		}
	}
	sort.Slice(coaches, func(i, j int) bool { return coaches[i].Position < coaches[j].Position })
	return coaches
}

func (s *MemoryStore) withCoaches(t *models.Train) *models.Train {
	train := *t
	train.Route = append(models.RouteStops(nil), t.Route...)
	train.Coaches = s.coachesOf(t.ID)
	return &train
}

// ============================================================================
// SEATS
// ============================================================================

func (s *MemoryStore) coachState(coachID uuid.UUID) (*coachState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cs, ok := s.coaches[coachID]
	if !ok {
		return nil, models.ErrNotFound
	}
	return cs, nil
}

// snapshotCoaches returns every coach state; callers lock each one individually
func (s *MemoryStore) snapshotCoaches() []*coachState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	states := make([]*coachState, 0, len(s.coaches))
	for _, cs := range s.coaches {
		states = append(states, cs)
	}
	return states
}

// ListSeats returns the coach's seat map in position order
func (s *MemoryStore) ListSeats(ctx context.Context, coachID uuid.UUID) ([]models.Seat, error) {
	cs, err := s.coachState(coachID)
	if err != nil {
		return nil, err
	}

	cs.mu.Lock()
	defer cs.mu.Unlock()
	return cloneSeats(cs.seats), nil
}

// Availability counts the coach's seats by effective status under the coach lock
func (s *MemoryStore) Availability(ctx context.Context, coachID uuid.UUID, now time.Time) (models.Availability, error) {
	avail := models.Availability{CoachID: coachID}

	cs, err := s.coachState(coachID)
	if err != nil {
		return avail, err
	}

	cs.mu.Lock()
	defer cs.mu.Unlock()

	for i := range cs.seats {
		avail.Total++
		switch cs.seats[i].EffectiveStatus(now) {
		case models.SeatStatusVacant:
			avail.Vacant++
		case models.SeatStatusHeld:
			avail.Held++
		case models.SeatStatusBooked:
			avail.Booked++
		}
	}
	return avail, nil
}

// HoldSeats runs pick under the coach lock and holds exactly the picked seats
func (s *MemoryStore) HoldSeats(ctx context.Context, coachID, holdID uuid.UUID, now, expiresAt time.Time, pick models.SeatPicker) ([]models.Seat, error) {
	cs, err := s.coachState(coachID)
	if err != nil {
		return nil, err
	}

	cs.mu.Lock()
	defer cs.mu.Unlock()

	numbers, err := pick(cloneSeats(cs.seats), now)
	if err != nil {
		return nil, err
	}
	if len(numbers) == 0 {
		return nil, &models.InvalidInputError{Message: "no seats selected"}
	}

	index := make(map[string]int, len(cs.seats))
	for i := range cs.seats {
		index[cs.seats[i].SeatNumber] = i
	}

	// Same guard as the conditional UPDATE in Postgres: all or nothing
	var conflicts []string
	for _, n := range numbers {
		i, ok := index[n]
		if !ok || cs.seats[i].EffectiveStatus(now) != models.SeatStatusVacant {
			conflicts = append(conflicts, n)
		}
	}
	if len(conflicts) > 0 {
		return nil, &models.SeatUnavailableError{CoachID: coachID, SeatNumbers: conflicts}
	}

	// Every picked seat is vacant, so no transition below can fail
	held := make([]models.Seat, 0, len(numbers))
	for seq, n := range numbers {
		seat := &cs.seats[index[n]]
		if err := seat.Apply(models.SeatEventHold, now); err != nil {
			return nil, err
		}
		id, until := holdID, expiresAt
		seat.HoldID = &id
		seat.HeldUntil = &until
		seat.HoldSeq = seq + 1
		held = append(held, cloneSeat(*seat))
	}
	return held, nil
}

// GetHeldSeats returns the seats still held under holdID in the order they were picked
func (s *MemoryStore) GetHeldSeats(ctx context.Context, holdID uuid.UUID) ([]models.Seat, error) {
	seats := []models.Seat{}
	for _, cs := range s.snapshotCoaches() {
		cs.mu.Lock()
		for i := range cs.seats {
			if isHeldBy(&cs.seats[i], holdID) {
				seats = append(seats, cloneSeat(cs.seats[i]))
			}
		}
		cs.mu.Unlock()
	}
	sort.Slice(seats, func(i, j int) bool {
		if seats[i].HoldSeq != seats[j].HoldSeq {
			return seats[i].HoldSeq < seats[j].HoldSeq
		}
		return seats[i].Position < seats[j].Position
	})
	return seats, nil
}

// ReleaseHold returns every seat of the hold to vacant
func (s *MemoryStore) ReleaseHold(ctx context.Context, holdID uuid.UUID, now time.Time) (int, error) {
	released := 0
	for _, cs := range s.snapshotCoaches() {
		cs.mu.Lock()
		for i := range cs.seats {
			if isHeldBy(&cs.seats[i], holdID) && cs.seats[i].Apply(models.SeatEventRelease, now) == nil {
				released++
			}
		}
		cs.mu.Unlock()
	}
	return released, nil
}

// ReleaseExpiredHolds frees at most limit seats whose hold lapsed before now
func (s *MemoryStore) ReleaseExpiredHolds(ctx context.Context, now time.Time, limit int) (int, error) {
	released := 0
	for _, cs := range s.snapshotCoaches() {
		cs.mu.Lock()
		for i := range cs.seats {
			if released >= limit {
				break
			}
			seat := &cs.seats[i]
			if seat.Status == models.SeatStatusHeld && seat.HoldExpired(now) && seat.Apply(models.SeatEventRelease, now) == nil {
				released++
			}
		}
		cs.mu.Unlock()
		if released >= limit {
			break
		}
	}
	return released, nil
}

func isHeldBy(seat *models.Seat, holdID uuid.UUID) bool {
	return seat.Status == models.SeatStatusHeld && seat.HoldID != nil && *seat.HoldID == holdID
}

// ============================================================================
// BOOKINGS
// ============================================================================

// BookingIDExists checks if a booking identifier is already taken
func (s *MemoryStore) BookingIDExists(ctx context.Context, bookingID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.bookings[bookingID]
	return ok, nil
}

// CreateBooking stores the booking and books the hold's seats atomically
func (s *MemoryStore) CreateBooking(ctx context.Context, booking *models.Booking, holdID uuid.UUID, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.bookings[booking.BookingID]; ok {
		return models.ErrDuplicateBookingID
	}

	cs, ok := s.coaches[booking.CoachID]
	if !ok {
		return models.ErrNotFound
	}

	cs.mu.Lock()
	defer cs.mu.Unlock()

	var held []int
	for i := range cs.seats {
		if isHeldBy(&cs.seats[i], holdID) && !cs.seats[i].HoldExpired(now) {
			held = append(held, i)
		}
	}
	if len(held) != len(booking.SelectedSeats) {
		return models.ErrHoldExpired
	}

	for _, i := range held {
		seat := &cs.seats[i]
		if err := seat.Apply(models.SeatEventBook, now); err != nil {
			return err
		}
		ref := booking.BookingID
		seat.BookingID = &ref
	}

	b := cloneBooking(booking)
	s.bookings[b.BookingID] = b
	s.bookingOrder = append(s.bookingOrder, b.BookingID)
	return nil
}

// GetBooking returns a booking by its public identifier
func (s *MemoryStore) GetBooking(ctx context.Context, bookingID string) (*models.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.bookings[bookingID]
	if !ok {
		return nil, models.ErrNotFound
	}
	return cloneBooking(b), nil
}

// ListBookings returns bookings newest first
func (s *MemoryStore) ListBookings(ctx context.Context, limit, offset int) ([]models.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bookings := []models.Booking{}
	for i := len(s.bookingOrder) - 1 - offset; i >= 0 && len(bookings) < limit; i-- {
		bookings = append(bookings, *cloneBooking(s.bookings[s.bookingOrder[i]]))
	}
	return bookings, nil
}

// ListPassengers flattens confirmed bookings into one row per passenger
func (s *MemoryStore) ListPassengers(ctx context.Context, filter models.PassengerFilter) ([]models.PassengerRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows := []models.PassengerRow{}
	for i := len(s.bookingOrder) - 1; i >= 0; i-- {
		b := s.bookings[s.bookingOrder[i]]
		if b.Status != models.BookingStatusConfirmed {
			continue
		}
		if filter.TrainNumber != "" && b.Train.Number != filter.TrainNumber {
			continue
		}
		if filter.JourneyDate != "" && b.Journey.Date != filter.JourneyDate {
			continue
		}
		for j, p := range b.Passengers {
			seat := b.SelectedSeats[j]
			rows = append(rows, models.PassengerRow{
				BookingID:   b.BookingID,
				Name:        p.Name,
				Age:         p.Age,
				Gender:      p.Gender,
				Email:       p.Email,
				Phone:       p.Phone,
				TrainNumber: b.Train.Number,
				TrainName:   b.Train.Name,
				CoachNumber: seat.CoachNumber,
				Class:       seat.Class,
				SeatNumber:  seat.SeatNumber,
				JourneyDate: b.Journey.Date,
				From:        b.Journey.From,
				To:          b.Journey.To,
				BookedAt:    b.CreatedAt,
			})
		}
	}
	return rows, nil
}

// ============================================================================
// USERS
// ============================================================================

// CreateUser stores a new account
func (s *MemoryStore) CreateUser(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user.Email = strings.ToLower(user.Email)
	if _, ok := s.usersByEmail[user.Email]; ok {
		return models.ErrEmailTaken
	}
	u := *user
	u.Roles = append([]string(nil), user.Roles...)
	s.users[u.ID] = &u
	s.usersByEmail[u.Email] = u.ID
	return nil
}

// GetUserByEmail retrieves a user by email address
func (s *MemoryStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.usersByEmail[strings.ToLower(email)]
	if !ok {
		return nil, models.ErrNotFound
	}
	u := *s.users[id]
	return &u, nil
}

// GetUserByID retrieves a user by ID
func (s *MemoryStore) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	u := *user
	return &u, nil
}

// UpdateLastLogin updates the last login timestamp
func (s *MemoryStore) UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if user, ok := s.users[id]; ok {
		user.LastLoginAt = &at
		user.UpdatedAt = at
	}
	return nil
}

// MarkEmailVerified records a successful OTP verification
func (s *MemoryStore) MarkEmailVerified(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[id]
	if !ok {
		return models.ErrNotFound
	}
	user.EmailVerified = true
	return nil
}

// ============================================================================
// COPY HELPERS
// ============================================================================

func cloneSeat(seat models.Seat) models.Seat {
	if seat.HoldID != nil {
		id := *seat.HoldID
		seat.HoldID = &id
	}
	if seat.HeldUntil != nil {
		until := *seat.HeldUntil
		seat.HeldUntil = &until
	}
	if seat.BookingID != nil {
		ref := *seat.BookingID
		seat.BookingID = &ref
	}
	return seat
}

func cloneSeats(seats []models.Seat) []models.Seat {
	out := make([]models.Seat, len(seats))
	for i := range seats {
		out[i] = cloneSeat(seats[i])
	}
	return out
}

func cloneBooking(b *models.Booking) *models.Booking {
	c := *b
	c.SelectedSeats = append([]models.BookedSeat(nil), b.SelectedSeats...)
	c.Passengers = append([]models.Passenger(nil), b.Passengers...)
	return &c
}
