package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Roles recognised by the API
const (
	RolePassenger = "passenger"
	RoleAdmin     = "admin"
	RoleTTE       = "tte"
)

// User represents an account in the system
type User struct {
	ID            uuid.UUID      `json:"id" db:"id"`
	Name          string         `json:"name" db:"name"`
	Email         string         `json:"email" db:"email"`
	Phone         string         `json:"phone,omitempty" db:"phone"`
	PasswordHash  string         `json:"-" db:"password_hash"` // Never expose in JSON
	Roles         pq.StringArray `json:"roles" db:"roles"`
	EmailVerified bool           `json:"emailVerified" db:"email_verified"`
	LastLoginAt   *time.Time     `json:"lastLoginAt,omitempty" db:"last_login_at"`
	CreatedAt     time.Time      `json:"createdAt" db:"created_at"`
	UpdatedAt     time.Time      `json:"updatedAt" db:"updated_at"`
}

// HasRole reports whether the user holds role
func (u *User) HasRole(role string) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// SignupRequest is the body of POST /api/auth/signup
type SignupRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required"`
	Phone    string `json:"phone"`
	Password string `json:"password" binding:"required,min=8"`
}

// LoginRequest is the body of POST /api/auth/login
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// SendOTPRequest is the body of POST /api/auth/send-otp
type SendOTPRequest struct {
	Email string `json:"email" binding:"required"`
}

// VerifyOTPRequest is the body of POST /api/auth/verify-otp
type VerifyOTPRequest struct {
	Email string `json:"email" binding:"required"`
	OTP   string `json:"otp" binding:"required"`
}

// AuthResponse is returned by signup, login and verify-otp
type AuthResponse struct {
	Token     string `json:"token"`
	ExpiresIn int64  `json:"expiresIn"`
	User      *User  `json:"user"`
}
