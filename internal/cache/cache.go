// Package cache provides the time-bounded key-value store used for short-lived state such as OTP codes.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrMiss is returned when a key is absent or has expired
var ErrMiss = errors.New("cache: key not found")

// KeepTTL overwrites a value without touching its remaining lifetime
const KeepTTL time.Duration = -1

// Store is a key-value store whose entries expire
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
}
