package services

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/railbook/train-booking-backend/internal/models"
)

// BookingIdentifierGenerator issues PNR-like booking references: a fixed prefix
// followed by random digits, e.g. RBK482193. Every candidate is checked against the store.
type BookingIdentifierGenerator struct {
	store       BookingIDChecker
	prefix      string
	digits      int
	maxAttempts int
	draw        func(digits int) (string, error)
}

// NewBookingIdentifierGenerator creates a generator that gives up after maxAttempts collisions
func NewBookingIdentifierGenerator(store BookingIDChecker, prefix string, digits, maxAttempts int) *BookingIdentifierGenerator {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &BookingIdentifierGenerator{
		store:       store,
		prefix:      prefix,
		digits:      digits,
		maxAttempts: maxAttempts,
		draw:        randomDigits,
	}
}

// MaxAttempts returns the retry bound
func (g *BookingIdentifierGenerator) MaxAttempts() int {
	return g.maxAttempts
}

// Generate returns an identifier not yet used by any booking
func (g *BookingIdentifierGenerator) Generate(ctx context.Context) (string, error) {
	for attempt := 0; attempt < g.maxAttempts; attempt++ {
		suffix, err := g.draw(g.digits)
		if err != nil {
			return "", fmt.Errorf("failed to generate booking identifier: %w", err)
		}
		candidate := g.prefix + suffix

		exists, err := g.store.BookingIDExists(ctx, candidate)
		if err != nil {
			return "", models.NewPersistenceError("check booking identifier", err)
		}
		if !exists {
			return candidate, nil
		}
	}
	return "", &models.IdentifierExhaustionError{Attempts: g.maxAttempts}
}

// randomDigits returns a zero-padded random decimal string of the given length
func randomDigits(digits int) (string, error) {
	limit := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(digits)), nil)
	n, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", digits, n.Int64()), nil
}
