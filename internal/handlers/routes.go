package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/railbook/train-booking-backend/internal/middleware"
	"github.com/railbook/train-booking-backend/internal/models"
	"github.com/railbook/train-booking-backend/pkg/jwt"
	"github.com/sirupsen/logrus"
)

// Handlers groups every handler the API mounts
type Handlers struct {
	Trains   *TrainHandler
	Coaches  *CoachHandler
	Bookings *BookingHandler
	Auth     *AuthHandler
	System   *SystemHandler
}

// RegisterRoutes mounts the API on router
func RegisterRoutes(router *gin.Engine, h Handlers, jwtService *jwt.Service, logger *logrus.Logger) {
	requireAuth := middleware.AuthMiddleware(jwtService, logger)
	optionalAuth := middleware.OptionalAuth(jwtService, logger)
	adminOnly := middleware.RequireRole(models.RoleAdmin)
	staffOnly := middleware.RequireRole(models.RoleAdmin, models.RoleTTE)

	router.GET("/health", h.System.Health)

	api := router.Group("/api")

	auth := api.Group("/auth")
	{
		auth.POST("/signup", h.Auth.Signup)
		auth.POST("/login", h.Auth.Login)
		auth.POST("/send-otp", h.Auth.SendOTP)
		auth.POST("/verify-otp", h.Auth.VerifyOTP)
		auth.GET("/me", requireAuth, h.Auth.GetProfile)
	}

	trains := api.Group("/trains")
	{
		trains.GET("", h.Trains.ListTrains)
		trains.GET("/:id", h.Trains.GetTrain)
		trains.GET("/:id/coaches", h.Trains.ListCoaches)
		trains.POST("", requireAuth, adminOnly, h.Trains.CreateTrain)
		trains.PUT("/:id", requireAuth, adminOnly, h.Trains.UpdateTrain)
		trains.DELETE("/:id", requireAuth, adminOnly, h.Trains.DeleteTrain)
	}

	coaches := api.Group("/coaches/:coachId")
	{
		coaches.GET("/availability", h.Coaches.GetAvailability)
		coaches.GET("/seats", h.Coaches.GetSeatMap)
		coaches.POST("/holds", h.Coaches.CreateHold)
	}

	holds := api.Group("/holds")
	{
		holds.GET("/:holdId", h.Coaches.GetHold)
		holds.DELETE("/:holdId", h.Coaches.ReleaseHold)
	}

	bookings := api.Group("/bookings")
	{
		bookings.POST("", optionalAuth, h.Bookings.CreateBooking)
		bookings.GET("", requireAuth, staffOnly, h.Bookings.ListBookings)
		bookings.GET("/:bookingId", h.Bookings.GetBooking)
	}

	api.GET("/passengers", requireAuth, staffOnly, h.Bookings.ListPassengers)

	admin := api.Group("/admin", requireAuth, adminOnly)
	{
		admin.POST("/holds/sweep", h.System.SweepHolds)
		admin.GET("/jobs", h.System.JobStatus)
	}
}
