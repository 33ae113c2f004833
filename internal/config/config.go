package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	Server ServerConfig

	// Database configuration
	Database DatabaseConfig

	// Redis configuration (OTP store)
	Redis RedisConfig

	// JWT configuration
	JWT JWTConfig

	// OTP configuration
	OTP OTPConfig

	// CORS configuration
	CORS CORSConfig

	// Booking core configuration
	Booking BookingConfig

	// Auth role bootstrap configuration
	Auth AuthConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port        string
	Environment string // development, staging, production
	LogLevel    string // debug, info, warn, error
}

// DatabaseConfig holds database-related configuration.
// An empty URL runs the server on the in-memory store.
type DatabaseConfig struct {
	URL                string
	MaxConnections     int
	MaxIdleConnections int
	ConnMaxLifetime    time.Duration
	AutoMigrate        bool
}

// RedisConfig holds the OTP store connection. An empty Addr selects the in-memory store.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// JWTConfig holds JWT-related configuration
type JWTConfig struct {
	Secret            string
	AccessTokenExpiry time.Duration
}

// OTPConfig holds OTP-related configuration
type OTPConfig struct {
	Length      int
	Expiry      time.Duration
	MaxAttempts int
	Mode        string // "dev" returns the code in the response, "production" only delivers it
}

// CORSConfig holds CORS-related configuration
type CORSConfig struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
}

// BookingConfig holds the fare, hold and identifier settings of the booking core
type BookingConfig struct {
	FareFloor          float64
	Currency           string
	HoldDuration       time.Duration
	IDPrefix           string
	IDDigits           int
	IDMaxAttempts      int
	HoldSweepSchedule  string
	HoldSweepBatchSize int
}

// AuthConfig lists accounts that receive elevated roles at signup
type AuthConfig struct {
	AdminEmails []string
	TTEEmails   []string
	BcryptCost  int
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (for local development)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	config := &Config{
		Server: ServerConfig{
			Port:        getEnv("PORT", "8080"),
			Environment: getEnv("ENVIRONMENT", "development"),
			LogLevel:    getEnv("LOG_LEVEL", "info"),
		},
		Database: DatabaseConfig{
			URL:                getEnv("DATABASE_URL", ""),
			MaxConnections:     getEnvAsInt("DATABASE_MAX_CONNECTIONS", 10),
			MaxIdleConnections: getEnvAsInt("DATABASE_MAX_IDLE_CONNECTIONS", 5),
			ConnMaxLifetime:    time.Duration(getEnvAsInt("DATABASE_CONN_MAX_LIFETIME", 300)) * time.Second,
			AutoMigrate:        getEnvAsBool("DATABASE_AUTO_MIGRATE", true),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		JWT: JWTConfig{
			Secret:            getEnv("JWT_SECRET", ""),
			AccessTokenExpiry: time.Duration(getEnvAsInt("JWT_ACCESS_TOKEN_EXPIRY", 3600)) * time.Second,
		},
		OTP: OTPConfig{
			Length:      getEnvAsInt("OTP_LENGTH", 6),
			Expiry:      time.Duration(getEnvAsInt("OTP_EXPIRY_MINUTES", 5)) * time.Minute,
			MaxAttempts: getEnvAsInt("OTP_MAX_ATTEMPTS", 3),
			Mode:        getEnv("OTP_MODE", "dev"),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvAsSlice("CORS_ALLOWED_ORIGINS", []string{"*"}),
			AllowedMethods: getEnvAsSlice("CORS_ALLOWED_METHODS", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
			AllowedHeaders: getEnvAsSlice("CORS_ALLOWED_HEADERS", []string{"Content-Type", "Authorization"}),
		},
		Booking: BookingConfig{
			FareFloor:          getEnvAsFloat("BOOKING_FARE_FLOOR", 134),
			Currency:           getEnv("BOOKING_CURRENCY", "INR"),
			HoldDuration:       getEnvAsDuration("BOOKING_HOLD_DURATION", 10*time.Minute),
			IDPrefix:           getEnv("BOOKING_ID_PREFIX", "RBK"),
			IDDigits:           getEnvAsInt("BOOKING_ID_DIGITS", 6),
			IDMaxAttempts:      getEnvAsInt("BOOKING_ID_MAX_ATTEMPTS", 10),
			HoldSweepSchedule:  getEnv("HOLD_SWEEP_SCHEDULE", "@every 30s"),
			HoldSweepBatchSize: getEnvAsInt("HOLD_SWEEP_BATCH", 500),
		},
		Auth: AuthConfig{
			AdminEmails: getEnvAsSlice("ADMIN_EMAILS", nil),
			TTEEmails:   getEnvAsSlice("TTE_EMAILS", nil),
			BcryptCost:  getEnvAsInt("BCRYPT_COST", 12),
		},
	}

	// Validate required configuration
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Environment == "production" {
		if c.JWT.Secret == "" {
			return fmt.Errorf("JWT_SECRET is required in production")
		}
		if c.Database.URL == "" {
			return fmt.Errorf("DATABASE_URL is required in production")
		}
	}

	if c.Booking.FareFloor < 0 {
		return fmt.Errorf("BOOKING_FARE_FLOOR must not be negative")
	}
	if c.Booking.HoldDuration <= 0 {
		return fmt.Errorf("BOOKING_HOLD_DURATION must be positive")
	}
	if c.Booking.IDMaxAttempts < 1 {
		return fmt.Errorf("BOOKING_ID_MAX_ATTEMPTS must be at least 1")
	}
	if c.Booking.IDDigits < 4 {
		return fmt.Errorf("BOOKING_ID_DIGITS must be at least 4")
	}
	if c.Booking.IDDigits > 18 {
		return fmt.Errorf("BOOKING_ID_DIGITS must be at most 18")
	}

	if c.OTP.Mode != "dev" && c.OTP.Mode != "production" {
		return fmt.Errorf("invalid OTP mode: %s (must be 'dev' or 'production')", c.OTP.Mode)
	}

	return nil
}

// IsProduction reports whether the server runs with production settings
func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

// Helper functions to get environment variables

func getEnv(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("Invalid integer value for %s, using default: %d", key, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		log.Printf("Invalid number for %s, using default: %g", key, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		log.Printf("Invalid boolean value for %s, using default: %t", key, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		log.Printf("Invalid duration for %s, using default: %s", key, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var result []string
	for _, v := range strings.Split(valueStr, ",") {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	if len(result) == 0 {
		return defaultValue
	}
	return result
}
