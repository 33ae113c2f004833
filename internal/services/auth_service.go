package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/railbook/train-booking-backend/internal/config"
	"github.com/railbook/train-booking-backend/internal/models"
	"github.com/railbook/train-booking-backend/pkg/jwt"
	"github.com/railbook/train-booking-backend/pkg/validator"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

// SendOTPResult tells the caller when the code expires. Code is only set in dev mode.
type SendOTPResult struct {
	ExpiresAt         time.Time
	Code              string
	RemainingRequests int
}

// AuthService handles signup, password login and email OTP verification
type AuthService struct {
	users      UserStore
	jwtService *jwt.Service
	otp        *OTPService
	limiter    *RateLimitService
	cfg        config.AuthConfig
	devOTP     bool
	email      *validator.EmailValidator
	phone      *validator.PhoneValidator
	logger     *logrus.Logger
	now        func() time.Time
}

// NewAuthService creates a new auth service
func NewAuthService(
	users UserStore,
	jwtService *jwt.Service,
	otp *OTPService,
	limiter *RateLimitService,
	cfg config.AuthConfig,
	otpMode string,
	logger *logrus.Logger,
) *AuthService {
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	return &AuthService{
		users:      users,
		jwtService: jwtService,
		otp:        otp,
		limiter:    limiter,
		cfg:        cfg,
		devOTP:     otpMode == "dev",
		email:      validator.NewEmailValidator(),
		phone:      validator.NewPhoneValidator(),
		logger:     logger,
		now:        time.Now,
	}
}

// Signup creates a passenger account and signs it in.
// Emails listed in ADMIN_EMAILS or TTE_EMAILS also receive those roles.
func (s *AuthService) Signup(ctx context.Context, req *models.SignupRequest) (*models.AuthResponse, error) {
	verr := &models.ValidationError{}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		verr.Add("name", "name is required")
	}
	email, err := s.email.Validate(req.Email)
	if err != nil {
		verr.Add("email", err.Error())
	}
	phone := ""
	if req.Phone != "" {
		if phone, err = s.phone.Validate(req.Phone); err != nil {
			verr.Add("phone", err.Error())
		}
	}
	if len(req.Password) < 8 {
		verr.Add("password", "password must be at least 8 characters")
	}
	if verr.HasErrors() {
		return nil, verr
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cfg.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := s.now()
	user := &models.User{
		ID:           uuid.New(),
		Name:         name,
		Email:        email,
		Phone:        phone,
		PasswordHash: string(hash),
		Roles:        s.rolesFor(email),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, models.ErrEmailTaken) {
			return nil, err
		}
		return nil, models.NewPersistenceError("create user", err)
	}

	s.logger.WithFields(logrus.Fields{
		"user_id": user.ID,
		"roles":   strings.Join(user.Roles, ","),
	}).Info("User signed up")

	return s.issue(user)
}

// Login checks the password and returns a token
func (s *AuthService) Login(ctx context.Context, req *models.LoginRequest) (*models.AuthResponse, error) {
	user, err := s.users.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrInvalidCredentials
		}
		return nil, models.NewPersistenceError("get user", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, models.ErrInvalidCredentials
	}

	s.touchLastLogin(ctx, user)
	return s.issue(user)
}

// SendOTP issues a code for the email, subject to per-email and per-IP limits
func (s *AuthService) SendOTP(ctx context.Context, rawEmail, clientIP string) (*SendOTPResult, error) {
	email, err := s.email.Validate(rawEmail)
	if err != nil {
		return nil, models.NewValidationError("email", err.Error())
	}

	if s.limiter != nil {
		if err := s.limiter.CheckOTPRateLimit(ctx, email, clientIP); err != nil {
			return nil, err
		}
	}

	code, expiresAt, err := s.otp.GenerateOTP(ctx, email)
	if err != nil {
		return nil, err
	}

	result := &SendOTPResult{ExpiresAt: expiresAt, RemainingRequests: -1}
	if s.limiter != nil {
		if err := s.limiter.RecordOTPRequest(ctx, email, clientIP); err != nil {
			s.logger.WithError(err).Warn("Failed to record OTP request")
		} else if remaining, err := s.limiter.GetRemainingRequests(ctx, email); err == nil {
			result.RemainingRequests = remaining
		}
	}

	if s.devOTP {
		result.Code = code
		s.logger.WithField("email", email).Debug("OTP issued in dev mode")
	}
	return result, nil
}

// VerifyOTP consumes the code, marks the account's email as verified and signs it in
func (s *AuthService) VerifyOTP(ctx context.Context, req *models.VerifyOTPRequest) (*models.AuthResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if err := s.otp.ValidateOTP(ctx, email, req.OTP); err != nil {
		if errors.Is(err, models.ErrOTPInvalid) {
			if remaining, rerr := s.otp.GetRemainingAttempts(ctx, email); rerr == nil {
				s.logger.WithFields(logrus.Fields{
					"email":              email,
					"remaining_attempts": remaining,
				}).Warn("Invalid OTP submitted")
			}
		}
		return nil, err
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrInvalidCredentials
		}
		return nil, models.NewPersistenceError("get user", err)
	}

	if !user.EmailVerified {
		if err := s.users.MarkEmailVerified(ctx, user.ID); err != nil {
			return nil, models.NewPersistenceError("verify email", err)
		}
		user.EmailVerified = true
	}

	s.touchLastLogin(ctx, user)
	return s.issue(user)
}

// GetProfile returns the account behind a token
func (s *AuthService) GetProfile(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	return s.users.GetUserByID(ctx, userID)
}

func (s *AuthService) issue(user *models.User) (*models.AuthResponse, error) {
	token, err := s.jwtService.GenerateAccessToken(user.ID, user.Email, user.Roles)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}
	return &models.AuthResponse{
		Token:     token,
		ExpiresIn: int64(s.jwtService.AccessTokenExpiry().Seconds()),
		User:      user,
	}, nil
}

func (s *AuthService) touchLastLogin(ctx context.Context, user *models.User) {
	now := s.now()
	if err := s.users.UpdateLastLogin(ctx, user.ID, now); err != nil {
		// Log error but don't fail the login
		s.logger.WithError(err).WithField("user_id", user.ID).Warn("Failed to update last login")
		return
	}
	user.LastLoginAt = &now
}

func (s *AuthService) rolesFor(email string) []string {
	roles := []string{models.RolePassenger}
	if containsFold(s.cfg.AdminEmails, email) {
		roles = append(roles, models.RoleAdmin)
	}
	if containsFold(s.cfg.TTEEmails, email) {
		roles = append(roles, models.RoleTTE)
	}
	return roles
}

func containsFold(list []string, value string) bool {
	for _, item := range list {
		if strings.EqualFold(strings.TrimSpace(item), value) {
			return true
		}
	}
	return false
}
