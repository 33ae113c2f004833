package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/railbook/train-booking-backend/internal/models"
	"github.com/railbook/train-booking-backend/internal/services"
	"github.com/sirupsen/logrus"
)

// TrainHandler serves the train catalogue and its admin maintenance routes
type TrainHandler struct {
	trains    *services.TrainService
	inventory *services.CoachInventory
	logger    *logrus.Logger
}

// NewTrainHandler creates a new train handler
func NewTrainHandler(trains *services.TrainService, inventory *services.CoachInventory, logger *logrus.Logger) *TrainHandler {
	return &TrainHandler{
		trains:    trains,
		inventory: inventory,
		logger:    logger,
	}
}

// ListTrains handles GET /api/trains
func (h *TrainHandler) ListTrains(c *gin.Context) {
	trains, err := h.trains.ListTrains(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"trains": trains,
		"count":  len(trains),
	})
}

// GetTrain handles GET /api/trains/:id
func (h *TrainHandler) GetTrain(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	train, err := h.trains.GetTrain(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, train)
}

// ListCoaches handles GET /api/trains/:id/coaches
func (h *TrainHandler) ListCoaches(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	coaches, err := h.inventory.ListCoaches(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"trainId": id,
		"coaches": coaches,
	})
}

// CreateTrain handles POST /api/trains (admin)
func (h *TrainHandler) CreateTrain(c *gin.Context) {
	var req models.TrainInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid train payload", err)
		return
	}

	train, err := h.trains.CreateTrain(c.Request.Context(), &req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Train created successfully",
		"train":   train,
	})
}

// UpdateTrain handles PUT /api/trains/:id (admin)
func (h *TrainHandler) UpdateTrain(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	var req models.TrainInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid train payload", err)
		return
	}

	train, err := h.trains.UpdateTrain(c.Request.Context(), id, &req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Train updated successfully",
		"train":   train,
	})
}

// DeleteTrain handles DELETE /api/trains/:id (admin)
func (h *TrainHandler) DeleteTrain(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	if err := h.trains.DeleteTrain(c.Request.Context(), id); err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Train deleted successfully"})
}

func parseUUIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		badRequest(c, "Invalid "+name+": must be a UUID", nil)
		return uuid.Nil, false
	}
	return id, true
}
