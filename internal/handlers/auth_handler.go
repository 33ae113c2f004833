package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/railbook/train-booking-backend/internal/middleware"
	"github.com/railbook/train-booking-backend/internal/models"
	"github.com/railbook/train-booking-backend/internal/services"
	"github.com/railbook/train-booking-backend/internal/utils"
	"github.com/sirupsen/logrus"
)

// AuthHandler handles account and session endpoints
type AuthHandler struct {
	auth   *services.AuthService
	logger *logrus.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(auth *services.AuthService, logger *logrus.Logger) *AuthHandler {
	return &AuthHandler{
		auth:   auth,
		logger: logger,
	}
}

// Signup handles POST /api/auth/signup
func (h *AuthHandler) Signup(c *gin.Context) {
	var req models.SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid signup payload", err)
		return
	}

	resp, err := h.auth.Signup(c.Request.Context(), &req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// Login handles POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid login payload", err)
		return
	}

	resp, err := h.auth.Login(c.Request.Context(), &req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// SendOTP handles POST /api/auth/send-otp
func (h *AuthHandler) SendOTP(c *gin.Context) {
	var req models.SendOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid OTP request", err)
		return
	}

	result, err := h.auth.SendOTP(c.Request.Context(), req.Email, utils.ClientIP(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	body := gin.H{
		"message":   "OTP sent successfully",
		"expiresAt": result.ExpiresAt.UTC().Format(time.RFC3339),
	}
	if result.RemainingRequests >= 0 {
		body["remainingRequests"] = result.RemainingRequests
	}
	if result.Code != "" {
		body["otp"] = result.Code
	}
	c.JSON(http.StatusOK, body)
}

// VerifyOTP handles POST /api/auth/verify-otp
func (h *AuthHandler) VerifyOTP(c *gin.Context) {
	var req models.VerifyOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid OTP verification payload", err)
		return
	}

	resp, err := h.auth.VerifyOTP(c.Request.Context(), &req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// GetProfile handles GET /api/auth/me
func (h *AuthHandler) GetProfile(c *gin.Context) {
	userCtx := middleware.MustGetUserContext(c)

	user, err := h.auth.GetProfile(c.Request.Context(), userCtx.UserID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, user)
}
