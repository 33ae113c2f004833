package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/railbook/train-booking-backend/internal/models"
	"github.com/railbook/train-booking-backend/internal/services"
	"github.com/sirupsen/logrus"
)

// CoachHandler serves seat maps, availability and seat holds
type CoachHandler struct {
	inventory *services.CoachInventory
	allocator *services.SeatAllocator
	logger    *logrus.Logger
}

// NewCoachHandler creates a new coach handler
func NewCoachHandler(inventory *services.CoachInventory, allocator *services.SeatAllocator, logger *logrus.Logger) *CoachHandler {
	return &CoachHandler{
		inventory: inventory,
		allocator: allocator,
		logger:    logger,
	}
}

// GetAvailability handles GET /api/coaches/:coachId/availability
func (h *CoachHandler) GetAvailability(c *gin.Context) {
	coachID, ok := parseUUIDParam(c, "coachId")
	if !ok {
		return
	}

	availability, err := h.inventory.GetAvailability(c.Request.Context(), coachID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, availability)
}

// GetSeatMap handles GET /api/coaches/:coachId/seats
func (h *CoachHandler) GetSeatMap(c *gin.Context) {
	coachID, ok := parseUUIDParam(c, "coachId")
	if !ok {
		return
	}

	seats, err := h.inventory.SeatMap(c.Request.Context(), coachID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"coachId": coachID,
		"seats":   seats,
	})
}

// CreateHold handles POST /api/coaches/:coachId/holds
func (h *CoachHandler) CreateHold(c *gin.Context) {
	coachID, ok := parseUUIDParam(c, "coachId")
	if !ok {
		return
	}

	var req models.HoldSeatsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid hold payload", err)
		return
	}

	hold, err := h.allocator.Allocate(c.Request.Context(), coachID, models.SeatSelection{
		SeatNumbers: req.SeatNumbers,
		Count:       req.SeatCount,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, hold)
}

// GetHold handles GET /api/holds/:holdId
func (h *CoachHandler) GetHold(c *gin.Context) {
	holdID, ok := parseUUIDParam(c, "holdId")
	if !ok {
		return
	}

	hold, err := h.allocator.GetHold(c.Request.Context(), holdID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, hold)
}

// ReleaseHold handles DELETE /api/holds/:holdId
func (h *CoachHandler) ReleaseHold(c *gin.Context) {
	holdID, ok := parseUUIDParam(c, "holdId")
	if !ok {
		return
	}

	if err := h.allocator.Release(c.Request.Context(), holdID); err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Seat hold released",
		"holdId":  holdID,
	})
}
