package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/railbook/train-booking-backend/internal/models"
	"github.com/railbook/train-booking-backend/internal/services"
	"github.com/sirupsen/logrus"
)

// Error codes carried in the "error" field of every failure body
const (
	CodeValidation         = "VALIDATION_ERROR"
	CodeInvalidInput       = "INVALID_INPUT"
	CodeInvalidRequest     = "INVALID_REQUEST"
	CodeNotFound           = "NOT_FOUND"
	CodeHoldNotFound       = "HOLD_NOT_FOUND"
	CodeHoldExpired        = "HOLD_EXPIRED"
	CodeSeatUnavailable    = "SEAT_UNAVAILABLE"
	CodeInsufficientSeats  = "INSUFFICIENT_SEATS"
	CodeConflict           = "CONFLICT"
	CodeDuplicateTrain     = "DUPLICATE_TRAIN_NUMBER"
	CodeEmailTaken         = "EMAIL_TAKEN"
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeOTPNotFound        = "OTP_NOT_FOUND"
	CodeOTPInvalid         = "OTP_INVALID"
	CodeOTPAttempts        = "OTP_ATTEMPTS_EXCEEDED"
	CodeRateLimited        = "RATE_LIMIT_EXCEEDED"
	CodeIDExhausted        = "BOOKING_ID_EXHAUSTED"
	CodeInternal           = "INTERNAL_ERROR"
)

const retryMessage = "Something went wrong while saving your request. Please try again."

// respondError writes err as JSON with the status its type maps to.
// Server-side failures are logged with the cause and answered generically.
func respondError(c *gin.Context, logger *logrus.Logger, err error) {
	status, body := mapError(err)

	entry := logger.WithFields(logrus.Fields{
		"path":   c.Request.URL.Path,
		"status": status,
		"code":   body["error"],
	}).WithError(err)
	if status >= http.StatusInternalServerError {
		entry.Error("Request failed")
	} else {
		entry.Debug("Request rejected")
	}

	_ = c.Error(err)
	c.JSON(status, body)
}

func mapError(err error) (int, gin.H) {
	var (
		validation   *models.ValidationError
		invalidInput *models.InvalidInputError
		unavailable  *models.SeatUnavailableError
		transition   *models.SeatTransitionError
		insufficient *models.InsufficientSeatsError
		exhausted    *models.IdentifierExhaustionError
		rateLimited  *services.RateLimitError
	)

	switch {
	case errors.As(err, &validation):
		return http.StatusBadRequest, gin.H{
			"error":   CodeValidation,
			"message": validation.Error(),
			"fields":  validation.Fields,
		}
	case errors.As(err, &invalidInput):
		return http.StatusBadRequest, gin.H{"error": CodeInvalidInput, "message": invalidInput.Message}
	case errors.As(err, &unavailable):
		return http.StatusConflict, gin.H{
			"error":       CodeSeatUnavailable,
			"message":     "Some of the selected seats are no longer available",
			"coachId":     unavailable.CoachID,
			"seatNumbers": unavailable.SeatNumbers,
		}
	case errors.As(err, &transition):
		return http.StatusConflict, gin.H{"error": CodeConflict, "message": transition.Error()}
	case errors.As(err, &insufficient):
		return http.StatusConflict, gin.H{
			"error":     CodeInsufficientSeats,
			"message":   "Not enough vacant seats in this coach",
			"coachId":   insufficient.CoachID,
			"requested": insufficient.Requested,
			"vacant":    insufficient.Vacant,
		}
	case errors.As(err, &rateLimited):
		return http.StatusTooManyRequests, gin.H{
			"error":      CodeRateLimited,
			"message":    rateLimited.Message,
			"retryAfter": rateLimited.RetryAfter.UTC().Format(time.RFC3339),
			"limitType":  rateLimited.Type,
		}
	case errors.As(err, &exhausted):
		return http.StatusInternalServerError, gin.H{"error": CodeIDExhausted, "message": retryMessage}
	case errors.Is(err, models.ErrHoldNotFound):
		return http.StatusNotFound, gin.H{"error": CodeHoldNotFound, "message": "Seat hold not found"}
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound, gin.H{"error": CodeNotFound, "message": "Resource not found"}
	case errors.Is(err, models.ErrHoldExpired):
		return http.StatusConflict, gin.H{"error": CodeHoldExpired, "message": "Your seat hold has expired. Please select seats again."}
	case errors.Is(err, models.ErrDuplicateTrainNumber):
		return http.StatusConflict, gin.H{"error": CodeDuplicateTrain, "message": "A train with this number already exists"}
	case errors.Is(err, models.ErrConflict):
		return http.StatusConflict, gin.H{"error": CodeConflict, "message": "The resource is referenced by held or booked seats"}
	case errors.Is(err, models.ErrEmailTaken):
		return http.StatusConflict, gin.H{"error": CodeEmailTaken, "message": "An account with this email already exists"}
	case errors.Is(err, models.ErrInvalidCredentials):
		return http.StatusUnauthorized, gin.H{"error": CodeInvalidCredentials, "message": "Invalid email or password"}
	case errors.Is(err, models.ErrOTPNotFound):
		return http.StatusUnauthorized, gin.H{"error": CodeOTPNotFound, "message": "No pending OTP for this email or it has expired"}
	case errors.Is(err, models.ErrOTPInvalid):
		return http.StatusUnauthorized, gin.H{"error": CodeOTPInvalid, "message": "Invalid OTP code"}
	case errors.Is(err, models.ErrOTPAttemptsExceeded):
		return http.StatusUnauthorized, gin.H{"error": CodeOTPAttempts, "message": "Maximum OTP attempts exceeded. Request a new code."}
	default:
		return http.StatusInternalServerError, gin.H{"error": CodeInternal, "message": retryMessage}
	}
}

// badRequest answers a body or path parameter that could not be parsed
func badRequest(c *gin.Context, message string, err error) {
	body := gin.H{"error": CodeInvalidRequest, "message": message}
	if err != nil {
		body["details"] = err.Error()
	}
	c.JSON(http.StatusBadRequest, body)
}
