package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/railbook/train-booking-backend/internal/services"
	"github.com/sirupsen/logrus"
)

// HealthCheck pings one backing component
type HealthCheck struct {
	Name string
	Ping func(ctx context.Context) error
}

// SystemHandler serves health and operations endpoints
type SystemHandler struct {
	version string
	checks  []HealthCheck
	cron    *services.CronService
	logger  *logrus.Logger
}

// NewSystemHandler creates a new system handler
func NewSystemHandler(version string, checks []HealthCheck, cron *services.CronService, logger *logrus.Logger) *SystemHandler {
	return &SystemHandler{
		version: version,
		checks:  checks,
		cron:    cron,
		logger:  logger,
	}
}

// Health handles GET /health
func (h *SystemHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	status := http.StatusOK
	body := gin.H{
		"status":    "healthy",
		"version":   h.version,
		"timestamp": time.Now().Unix(),
	}

	for _, check := range h.checks {
		if err := check.Ping(ctx); err != nil {
			h.logger.WithError(err).WithField("component", check.Name).Error("Health check failed")
			body[check.Name] = "unhealthy"
			body["status"] = "unhealthy"
			status = http.StatusServiceUnavailable
			continue
		}
		body[check.Name] = "healthy"
	}

	c.JSON(status, body)
}

// SweepHolds handles POST /api/admin/holds/sweep (admin)
func (h *SystemHandler) SweepHolds(c *gin.Context) {
	result, err := h.cron.RunHoldSweepNow(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":     "Hold sweep completed",
		"released":    result.Released,
		"batches":     result.Batches,
		"duration_ms": result.Duration.Milliseconds(),
	})
}

// JobStatus handles GET /api/admin/jobs (admin)
func (h *SystemHandler) JobStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.cron.GetJobStatus())
}
