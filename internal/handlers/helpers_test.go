package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/railbook/train-booking-backend/internal/cache"
	"github.com/railbook/train-booking-backend/internal/config"
	"github.com/railbook/train-booking-backend/internal/database"
	"github.com/railbook/train-booking-backend/internal/models"
	"github.com/railbook/train-booking-backend/internal/services"
	"github.com/railbook/train-booking-backend/pkg/jwt"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// testAPI is the full router over in-memory stores
type testAPI struct {
	router *gin.Engine
	store  *database.MemoryStore
	jwt    *jwt.Service

	adminToken     string
	tteToken       string
	passengerToken string
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	store := database.NewMemoryStore()
	kv := cache.NewMemoryStore()
	jwtService := jwt.NewService("handler-test-secret-key-0123456789", time.Hour)

	trains := services.NewTrainService(store, logger)
	inventory := services.NewCoachInventory(store, store)
	allocator := services.NewSeatAllocator(store, store, 10*time.Minute, logger)
	ids := services.NewBookingIdentifierGenerator(store, "RBK", 6, 10)
	bookings := services.NewBookingService(store, store, store, allocator, services.NewFareCalculator(134), ids, "INR", logger)
	sweeper := services.NewHoldExpiryService(store, 100, logger)
	cronService := services.NewCronService(sweeper, "@every 1m", logger)

	otp := services.NewOTPService(kv, config.OTPConfig{Length: 6, Expiry: 5 * time.Minute, MaxAttempts: 3, Mode: "dev"})
	limiter := services.NewRateLimitService(kv, services.DefaultRateLimitConfig())
	auth := services.NewAuthService(store, jwtService, otp, limiter, config.AuthConfig{
		AdminEmails: []string{"ops@railbook.in"},
		BcryptCost:  bcrypt.MinCost,
	}, "dev", logger)

	router := gin.New()
	RegisterRoutes(router, Handlers{
		Trains:   NewTrainHandler(trains, inventory, logger),
		Coaches:  NewCoachHandler(inventory, allocator, logger),
		Bookings: NewBookingHandler(bookings, logger),
		Auth:     NewAuthHandler(auth, logger),
		System: NewSystemHandler("test", []HealthCheck{
			{Name: "database", Ping: store.PingContext},
			{Name: "cache", Ping: kv.Ping},
		}, cronService, logger),
	}, jwtService, logger)

	api := &testAPI{router: router, store: store, jwt: jwtService}
	api.adminToken = api.token(t, models.RolePassenger, models.RoleAdmin)
	api.tteToken = api.token(t, models.RolePassenger, models.RoleTTE)
	api.passengerToken = api.token(t, models.RolePassenger)
	return api
}

func (a *testAPI) token(t *testing.T, roles ...string) string {
	t.Helper()
	token, err := a.jwt.GenerateAccessToken(uuid.New(), "user@example.com", roles)
	require.NoError(t, err)
	return token
}

// do sends a request with an optional JSON body and bearer token
func (a *testAPI) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		switch b := body.(type) {
		case string:
			reader = bytes.NewBufferString(b)
		default:
			payload, err := json.Marshal(body)
			require.NoError(t, err)
			reader = bytes.NewBuffer(payload)
		}
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

// decode unmarshals the response body into out
func decode(t *testing.T, w *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), out), w.Body.String())
}

// seedTrain creates the Mumbai Rajdhani with a four-seat 3A coach and an eight-seat sleeper
func (a *testAPI) seedTrain(t *testing.T) *models.Train {
	t.Helper()

	w := a.do(t, http.MethodPost, "/api/trains", a.adminToken, gin.H{
		"trainNumber": "12951",
		"trainName":   "Mumbai Rajdhani",
		"origin":      "Mumbai Central",
		"destination": "New Delhi",
		"coaches": []gin.H{
			{"classType": "3A", "totalSeats": 4, "price": 1450},
			{"classType": "SL", "totalSeats": 8, "price": 100},
		},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp struct {
		Train models.Train `json:"train"`
	}
	decode(t, w, &resp)
	require.Len(t, resp.Train.Coaches, 2)
	return &resp.Train
}

func passengersJSON(n int) []gin.H {
	out := make([]gin.H, 0, n)
	for i := 0; i < n; i++ {
		p := gin.H{"name": "Passenger " + string(rune('A'+i)), "age": 30 + i, "gender": "female"}
		if i == 0 {
			p["email"] = "asha@example.com"
			p["phone"] = "9876543210"
		}
		out = append(out, p)
	}
	return out
}
