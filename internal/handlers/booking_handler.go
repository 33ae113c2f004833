package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/railbook/train-booking-backend/internal/middleware"
	"github.com/railbook/train-booking-backend/internal/models"
	"github.com/railbook/train-booking-backend/internal/services"
	"github.com/sirupsen/logrus"
)

// BookingHandler serves booking creation and the booking read views
type BookingHandler struct {
	bookings *services.BookingService
	logger   *logrus.Logger
}

// NewBookingHandler creates a new booking handler
func NewBookingHandler(bookings *services.BookingService, logger *logrus.Logger) *BookingHandler {
	return &BookingHandler{
		bookings: bookings,
		logger:   logger,
	}
}

// CreateBooking handles POST /api/bookings
//
// The body carries passengers, selectedSeats (or seatCount), selectedTrain,
// searchData and an optional holdId. A signed-in caller owns the booking.
func (h *BookingHandler) CreateBooking(c *gin.Context) {
	var req models.CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid booking payload", err)
		return
	}

	var userID *uuid.UUID
	if userCtx, ok := middleware.GetUserContext(c); ok {
		userID = &userCtx.UserID
	}

	ctx := c.Request.Context()
	input, err := h.bookings.ResolveRequest(ctx, &req, userID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	booking, err := h.bookings.CreateBooking(ctx, input)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, models.CreateBookingResponse{
		Message:   "Booking confirmed",
		BookingID: booking.BookingID,
		Booking:   booking,
	})
}

// GetBooking handles GET /api/bookings/:bookingId
func (h *BookingHandler) GetBooking(c *gin.Context) {
	booking, err := h.bookings.GetBooking(c.Request.Context(), c.Param("bookingId"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, booking)
}

// ListBookings handles GET /api/bookings (admin, tte)
func (h *BookingHandler) ListBookings(c *gin.Context) {
	limit, err := queryInt(c, "limit", 0)
	if err != nil {
		badRequest(c, "limit must be a number", nil)
		return
	}
	offset, err := queryInt(c, "offset", 0)
	if err != nil || offset < 0 {
		badRequest(c, "offset must be a non-negative number", nil)
		return
	}

	bookings, err := h.bookings.ListBookings(c.Request.Context(), limit, offset)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"bookings": bookings,
		"count":    len(bookings),
		"offset":   offset,
	})
}

// ListPassengers handles GET /api/passengers (admin, tte)
func (h *BookingHandler) ListPassengers(c *gin.Context) {
	filter := models.PassengerFilter{
		TrainNumber: c.Query("trainNumber"),
		JourneyDate: c.Query("journeyDate"),
	}

	rows, err := h.bookings.ListPassengers(c.Request.Context(), filter)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"passengers": rows,
		"count":      len(rows),
	})
}

func queryInt(c *gin.Context, key string, fallback int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}
