package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/railbook/train-booking-backend/internal/cache"
	"github.com/railbook/train-booking-backend/internal/config"
	"github.com/railbook/train-booking-backend/internal/database"
	"github.com/railbook/train-booking-backend/internal/handlers"
	"github.com/railbook/train-booking-backend/internal/middleware"
	"github.com/railbook/train-booking-backend/internal/services"
	"github.com/railbook/train-booking-backend/pkg/jwt"
	"github.com/sirupsen/logrus"
)

var (
	version   = "1.0.0"
	buildTime = "unknown"
)

// stores is the persistence the services run on: Postgres when a DATABASE_URL
// is configured, otherwise one in-memory store behind every interface
type stores struct {
	trains   services.TrainStore
	seats    services.SeatStore
	bookings services.BookingStore
	users    services.UserStore
	ping     func(ctx context.Context) error
	close    func() error
}

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	logger.Info("Starting Railbook train booking backend")
	logger.Infof("Version: %s, Build Time: %s", version, buildTime)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	logLevel, err := logrus.ParseLevel(cfg.Server.LogLevel)
	if err != nil {
		logger.Warn("Invalid log level, using INFO")
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	ctx := context.Background()

	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("Failed to open storage: %v", err)
	}
	defer st.close()

	kv, closeKV, err := openCache(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer closeKV()

	// Services
	logger.Info("Initializing services...")
	jwtService := jwt.NewService(cfg.JWT.Secret, cfg.JWT.AccessTokenExpiry)

	trainService := services.NewTrainService(st.trains, logger)
	inventory := services.NewCoachInventory(st.trains, st.seats)
	allocator := services.NewSeatAllocator(st.trains, st.seats, cfg.Booking.HoldDuration, logger)
	fares := services.NewFareCalculator(cfg.Booking.FareFloor)
	ids := services.NewBookingIdentifierGenerator(st.bookings, cfg.Booking.IDPrefix, cfg.Booking.IDDigits, cfg.Booking.IDMaxAttempts)
	bookingService := services.NewBookingService(st.trains, st.seats, st.bookings, allocator, fares, ids, cfg.Booking.Currency, logger)

	otpService := services.NewOTPService(kv, cfg.OTP)
	rateLimitService := services.NewRateLimitService(kv, services.DefaultRateLimitConfig())
	authService := services.NewAuthService(st.users, jwtService, otpService, rateLimitService, cfg.Auth, cfg.OTP.Mode, logger)

	sweeper := services.NewHoldExpiryService(st.seats, cfg.Booking.HoldSweepBatchSize, logger)
	cronService := services.NewCronService(sweeper, cfg.Booking.HoldSweepSchedule, logger)
	if err := cronService.Start(); err != nil {
		logger.Fatalf("Failed to start cron service: %v", err)
	}
	logger.WithField("schedule", cfg.Booking.HoldSweepSchedule).Info("Cron service started - hold expiry sweep enabled")

	// Router
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(logger))
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORS.AllowedOrigins,
		AllowMethods:     cfg.CORS.AllowedMethods,
		AllowHeaders:     cfg.CORS.AllowedHeaders,
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	handlers.RegisterRoutes(router, handlers.Handlers{
		Trains:   handlers.NewTrainHandler(trainService, inventory, logger),
		Coaches:  handlers.NewCoachHandler(inventory, allocator, logger),
		Bookings: handlers.NewBookingHandler(bookingService, logger),
		Auth:     handlers.NewAuthHandler(authService, logger),
		System: handlers.NewSystemHandler(version, []handlers.HealthCheck{
			{Name: "database", Ping: st.ping},
			{Name: "cache", Ping: kv.Ping},
		}, cronService, logger),
	}, jwtService, logger)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Infof("Server starting on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	logger.Info("Stopping cron service...")
	cronService.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
	}

	logger.Info("Server exited successfully")
}

func openStores(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (*stores, error) {
	if cfg.Database.URL == "" {
		logger.Warn("DATABASE_URL not set, using in-memory storage; data is lost on restart")
		mem := database.NewMemoryStore()
		return &stores{
			trains:   mem,
			seats:    mem,
			bookings: mem,
			users:    mem,
			ping:     mem.PingContext,
			close:    func() error { return nil },
		}, nil
	}

	db, err := database.NewConnection(cfg.Database, logger)
	if err != nil {
		return nil, err
	}
	logger.Info("Database connection established")

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(ctx, db.DB); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply schema: %w", err)
		}
		logger.Info("Database schema applied")
	}

	return &stores{
		trains:   database.NewTrainRepository(db.DB),
		seats:    database.NewSeatRepository(db.DB),
		bookings: database.NewBookingRepository(db.DB),
		users:    database.NewUserRepository(db.DB),
		ping:     db.PingContext,
		close:    db.Close,
	}, nil
}

func openCache(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (cache.Store, func() error, error) {
	if cfg.Redis.Addr == "" {
		logger.Warn("REDIS_ADDR not set, OTP and rate-limit state kept in process memory")
		return cache.NewMemoryStore(), func() error { return nil }, nil
	}

	store, err := cache.NewRedisStore(ctx, cfg.Redis, "railbook:")
	if err != nil {
		return nil, nil, err
	}
	logger.WithField("addr", cfg.Redis.Addr).Info("Redis connection established")
	return store, store.Close, nil
}
