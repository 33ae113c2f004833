package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/railbook/train-booking-backend/internal/cache"
)

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	MaxEmailRequests int           // Max OTP requests per email
	EmailWindow      time.Duration // Time window for email rate limit
	MaxIPRequests    int           // Max OTP requests per IP
	IPWindow         time.Duration // Time window for IP rate limit
}

// DefaultRateLimitConfig returns the default rate limit configuration
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		MaxEmailRequests: 3,                // 3 requests
		EmailWindow:      10 * time.Minute, // per 10 minutes
		MaxIPRequests:    10,               // 10 requests
		IPWindow:         1 * time.Hour,    // per hour
	}
}

// RateLimitError represents a rate limit exceeded error
type RateLimitError struct {
	Message    string
	RetryAfter time.Time
	Type       string // "email" or "ip"
}

func (e *RateLimitError) Error() string {
	return e.Message
}

// requestWindow counts requests since Start; the entry expires with the window
type requestWindow struct {
	Count int       `json:"count"`
	Start time.Time `json:"start"`
}

// RateLimitService throttles OTP requests per email and per client IP using the TTL store
type RateLimitService struct {
	store  cache.Store
	config RateLimitConfig
	now    func() time.Time
}

// NewRateLimitService creates a new rate limit service
func NewRateLimitService(store cache.Store, config RateLimitConfig) *RateLimitService {
	return &RateLimitService{
		store:  store,
		config: config,
		now:    time.Now,
	}
}

// CheckOTPRateLimit checks if an email or IP has exceeded rate limits
func (s *RateLimitService) CheckOTPRateLimit(ctx context.Context, email, ip string) error {
	if email != "" {
		w, err := s.window(ctx, "email", email)
		if err != nil {
			return fmt.Errorf("failed to check email rate limit: %w", err)
		}
		if w.Count >= s.config.MaxEmailRequests {
			retryAfter := w.Start.Add(s.config.EmailWindow)
			return &RateLimitError{
				Message:    fmt.Sprintf("Too many OTP requests for this email. Please try again after %s", retryAfter.Format("15:04:05")),
				RetryAfter: retryAfter,
				Type:       "email",
			}
		}
	}

	if ip != "" {
		w, err := s.window(ctx, "ip", ip)
		if err != nil {
			return fmt.Errorf("failed to check IP rate limit: %w", err)
		}
		if w.Count >= s.config.MaxIPRequests {
			retryAfter := w.Start.Add(s.config.IPWindow)
			return &RateLimitError{
				Message:    fmt.Sprintf("Too many OTP requests from this IP address. Please try again after %s", retryAfter.Format("15:04:05")),
				RetryAfter: retryAfter,
				Type:       "ip",
			}
		}
	}

	return nil
}

// RecordOTPRequest counts one OTP request against the email and the IP
func (s *RateLimitService) RecordOTPRequest(ctx context.Context, email, ip string) error {
	if email != "" {
		if err := s.increment(ctx, "email", email, s.config.EmailWindow); err != nil {
			return fmt.Errorf("failed to record email request: %w", err)
		}
	}
	if ip != "" {
		if err := s.increment(ctx, "ip", ip, s.config.IPWindow); err != nil {
			return fmt.Errorf("failed to record IP request: %w", err)
		}
	}
	return nil
}

// GetRemainingRequests returns how many OTP requests the email has left in the current window
func (s *RateLimitService) GetRemainingRequests(ctx context.Context, email string) (int, error) {
	w, err := s.window(ctx, "email", email)
	if err != nil {
		return 0, err
	}
	remaining := s.config.MaxEmailRequests - w.Count
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

func (s *RateLimitService) window(ctx context.Context, kind, subject string) (requestWindow, error) {
	raw, err := s.store.Get(ctx, rateLimitKey(kind, subject))
	if err != nil {
		if errors.Is(err, cache.ErrMiss) {
			return requestWindow{}, nil
		}
		return requestWindow{}, err
	}

	var w requestWindow
	if err := json.Unmarshal(raw, &w); err != nil {
		return requestWindow{}, err
	}
	return w, nil
}

// increment bumps the counter; a new window starts when the previous entry expired
func (s *RateLimitService) increment(ctx context.Context, kind, subject string, window time.Duration) error {
	w, err := s.window(ctx, kind, subject)
	if err != nil {
		return err
	}

	ttl := cache.KeepTTL
	if w.Count == 0 {
		w.Start = s.now()
		ttl = window
	}
	w.Count++

	raw, err := json.Marshal(w)
	if err != nil {
		return err
	}

	err = s.store.Set(ctx, rateLimitKey(kind, subject), raw, ttl)
	if errors.Is(err, cache.ErrMiss) {
		// The window closed between the read and the write
		w = requestWindow{Count: 1, Start: s.now()}
		if raw, err = json.Marshal(w); err != nil {
			return err
		}
		err = s.store.Set(ctx, rateLimitKey(kind, subject), raw, window)
	}
	return err
}

func rateLimitKey(kind, subject string) string {
	return "ratelimit:otp:" + kind + ":" + strings.ToLower(strings.TrimSpace(subject))
}
