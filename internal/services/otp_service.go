package services

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/railbook/train-booking-backend/internal/cache"
	"github.com/railbook/train-booking-backend/internal/config"
	"github.com/railbook/train-booking-backend/internal/models"
)

// otpRecord is the pending code for one email
type otpRecord struct {
	Code      string    `json:"code"`
	Attempts  int       `json:"attempts"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// OTPService issues and checks one-time codes. Codes live in the TTL store and vanish on expiry.
type OTPService struct {
	store cache.Store
	cfg   config.OTPConfig
	now   func() time.Time
}

// NewOTPService creates a new OTP service
func NewOTPService(store cache.Store, cfg config.OTPConfig) *OTPService {
	if cfg.Length <= 0 {
		cfg.Length = 6
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.Expiry <= 0 {
		cfg.Expiry = 5 * time.Minute
	}
	return &OTPService{
		store: store,
		cfg:   cfg,
		now:   time.Now,
	}
}

// GenerateOTP replaces any pending code for the email with a fresh one
func (s *OTPService) GenerateOTP(ctx context.Context, email string) (string, time.Time, error) {
	code, err := generateRandomOTP(s.cfg.Length)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to generate OTP: %w", err)
	}

	record := otpRecord{Code: code, ExpiresAt: s.now().Add(s.cfg.Expiry)}
	if err := s.save(ctx, email, record, s.cfg.Expiry); err != nil {
		return "", time.Time{}, fmt.Errorf("failed to store OTP: %w", err)
	}
	return code, record.ExpiresAt, nil
}

// ValidateOTP checks the code. A correct code is consumed; wrong codes count towards the attempt limit.
func (s *OTPService) ValidateOTP(ctx context.Context, email, code string) error {
	record, err := s.load(ctx, email)
	if err != nil {
		return err
	}

	if record.Attempts >= s.cfg.MaxAttempts {
		return models.ErrOTPAttemptsExceeded
	}

	if subtle.ConstantTimeCompare([]byte(record.Code), []byte(strings.TrimSpace(code))) != 1 {
		record.Attempts++
		if err := s.save(ctx, email, *record, cache.KeepTTL); err != nil {
			if errors.Is(err, cache.ErrMiss) {
				return models.ErrOTPNotFound
			}
			return fmt.Errorf("failed to record OTP attempt: %w", err)
		}
		if record.Attempts >= s.cfg.MaxAttempts {
			return models.ErrOTPAttemptsExceeded
		}
		return models.ErrOTPInvalid
	}

	if err := s.InvalidateOTP(ctx, email); err != nil {
		return err
	}
	return nil
}

// InvalidateOTP drops any pending code for the email
func (s *OTPService) InvalidateOTP(ctx context.Context, email string) error {
	if err := s.store.Delete(ctx, otpKey(email)); err != nil {
		return fmt.Errorf("failed to invalidate OTP: %w", err)
	}
	return nil
}

// GetRemainingAttempts returns the number of remaining validation attempts
func (s *OTPService) GetRemainingAttempts(ctx context.Context, email string) (int, error) {
	record, err := s.load(ctx, email)
	if err != nil {
		return 0, err
	}

	remaining := s.cfg.MaxAttempts - record.Attempts
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

func (s *OTPService) load(ctx context.Context, email string) (*otpRecord, error) {
	raw, err := s.store.Get(ctx, otpKey(email))
	if err != nil {
		if errors.Is(err, cache.ErrMiss) {
			return nil, models.ErrOTPNotFound
		}
		return nil, fmt.Errorf("failed to get OTP record: %w", err)
	}

	var record otpRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, fmt.Errorf("failed to decode OTP record: %w", err)
	}
	if !s.now().Before(record.ExpiresAt) {
		return nil, models.ErrOTPNotFound
	}
	return &record, nil
}

func (s *OTPService) save(ctx context.Context, email string, record otpRecord, ttl time.Duration) error {
	raw, err := json.Marshal(record)
	if err != nil {
		return err
	}
	return s.store.Set(ctx, otpKey(email), raw, ttl)
}

func otpKey(email string) string {
	return "otp:" + strings.ToLower(strings.TrimSpace(email))
}

// generateRandomOTP generates a random numeric code of the given length
func generateRandomOTP(length int) (string, error) {
	digits := make([]byte, length)
	for i := range digits {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", err
		}
		digits[i] = byte('0' + n.Int64())
	}
	return string(digits), nil
}
