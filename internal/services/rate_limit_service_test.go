package services

import (
	"context"
	"testing"
	"time"

	"github.com/railbook/train-booking-backend/internal/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRateLimiter(clock *fakeClock) *RateLimitService {
	store := cache.NewMemoryStore().WithClock(clock.Now)
	svc := NewRateLimitService(store, DefaultRateLimitConfig())
	svc.now = clock.Now
	return svc
}

func TestDefaultRateLimitConfig(t *testing.T) {
	config := DefaultRateLimitConfig()

	assert.Equal(t, 3, config.MaxEmailRequests)
	assert.Equal(t, 10*time.Minute, config.EmailWindow)
	assert.Equal(t, 10, config.MaxIPRequests)
	assert.Equal(t, 1*time.Hour, config.IPWindow)
}

func TestCheckOTPRateLimit_Email(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	service := newTestRateLimiter(clock)

	for i := 0; i < 3; i++ {
		require.NoError(t, service.CheckOTPRateLimit(ctx, "asha@example.com", ""))
		require.NoError(t, service.RecordOTPRequest(ctx, "asha@example.com", ""))
	}

	err := service.CheckOTPRateLimit(ctx, "asha@example.com", "")
	var rateLimitErr *RateLimitError
	require.ErrorAs(t, err, &rateLimitErr)
	assert.Equal(t, "email", rateLimitErr.Type)
	assert.Equal(t, clock.Now().Add(10*time.Minute), rateLimitErr.RetryAfter)
	assert.Contains(t, rateLimitErr.Error(), "Too many OTP requests for this email")

	remaining, err := service.GetRemainingRequests(ctx, "asha@example.com")
	require.NoError(t, err)
	assert.Equal(t, 0, remaining)

	// Another email is unaffected
	assert.NoError(t, service.CheckOTPRateLimit(ctx, "ravi@example.com", ""))

	// The window closes with the entry
	clock.Advance(10 * time.Minute)
	assert.NoError(t, service.CheckOTPRateLimit(ctx, "asha@example.com", ""))
}

func TestCheckOTPRateLimit_IP(t *testing.T) {
	ctx := context.Background()
	service := newTestRateLimiter(newFakeClock())

	for i := 0; i < 10; i++ {
		require.NoError(t, service.RecordOTPRequest(ctx, "", "192.168.1.1"))
	}

	err := service.CheckOTPRateLimit(ctx, "new@example.com", "192.168.1.1")
	var rateLimitErr *RateLimitError
	require.ErrorAs(t, err, &rateLimitErr)
	assert.Equal(t, "ip", rateLimitErr.Type)

	assert.NoError(t, service.CheckOTPRateLimit(ctx, "new@example.com", "10.0.0.1"))
}

func TestRateLimitError_Error(t *testing.T) {
	err := &RateLimitError{Message: "Test error message", RetryAfter: time.Now(), Type: "email"}
	assert.Equal(t, "Test error message", err.Error())
}
