package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/railbook/train-booking-backend/pkg/jwt"
	"github.com/sirupsen/logrus"
)

// UserContextKey is the key used to store user information in Gin context
const UserContextKey = "user"

// UserContext represents the authenticated user's information
type UserContext struct {
	UserID uuid.UUID `json:"user_id"`
	Email  string    `json:"email"`
	Roles  []string  `json:"roles"`
}

// HasRole reports whether the user carries any of roles
func (u UserContext) HasRole(roles ...string) bool {
	for _, want := range roles {
		for _, have := range u.Roles {
			if have == want {
				return true
			}
		}
	}
	return false
}

// AuthMiddleware rejects requests without a valid bearer access token
func AuthMiddleware(jwtService *jwt.Service, logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		userCtx, failure := authenticate(c, jwtService)
		if failure != nil {
			logger.WithFields(logrus.Fields{
				"path": c.Request.URL.Path,
				"ip":   c.ClientIP(),
				"code": failure.code,
			}).Warn("Authentication failed")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   failure.code,
				"message": failure.message,
			})
			return
		}

		c.Set(UserContextKey, *userCtx)
		c.Next()
	}
}

// OptionalAuth attaches the user context when a valid token is presented and
// lets anonymous requests through untouched. A bad token is still rejected.
func OptionalAuth(jwtService *jwt.Service, logger *logrus.Logger) gin.HandlerFunc {
	strict := AuthMiddleware(jwtService, logger)
	return func(c *gin.Context) {
		if c.GetHeader("Authorization") == "" {
			c.Next()
			return
		}
		strict(c)
	}
}

type authFailure struct {
	code    string
	message string
}

func authenticate(c *gin.Context, jwtService *jwt.Service) (*UserContext, *authFailure) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return nil, &authFailure{"MISSING_AUTH_HEADER", "Authorization header is required"}
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return nil, &authFailure{"INVALID_AUTH_FORMAT", "Invalid authorization header format. Expected: Bearer <token>"}
	}

	tokenString := strings.TrimSpace(parts[1])
	if tokenString == "" {
		return nil, &authFailure{"INVALID_AUTH_FORMAT", "Token cannot be empty"}
	}

	claims, err := jwtService.ValidateAccessToken(tokenString)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, &authFailure{"TOKEN_EXPIRED", "Access token has expired. Please log in again."}
		}
		return nil, &authFailure{"INVALID_TOKEN", "Invalid access token"}
	}

	return &UserContext{
		UserID: claims.UserID,
		Email:  claims.Email,
		Roles:  claims.Roles,
	}, nil
}

// RequireRole creates a middleware that checks if user has required role
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userCtx, exists := GetUserContext(c)
		if !exists {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "MISSING_USER_CONTEXT",
				"message": "User context not found. Auth middleware may not be applied.",
			})
			return
		}

		if !userCtx.HasRole(roles...) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":   "INSUFFICIENT_PERMISSIONS",
				"message": "You don't have permission to access this resource",
			})
			return
		}

		c.Next()
	}
}

// GetUserContext retrieves the user context from Gin context
func GetUserContext(c *gin.Context) (UserContext, bool) {
	value, exists := c.Get(UserContextKey)
	if !exists {
		return UserContext{}, false
	}

	userCtx, ok := value.(UserContext)
	if !ok {
		return UserContext{}, false
	}

	return userCtx, true
}

// MustGetUserContext retrieves the user context or panics (use only after AuthMiddleware)
func MustGetUserContext(c *gin.Context) UserContext {
	userCtx, exists := GetUserContext(c)
	if !exists {
		panic("user context not found - ensure AuthMiddleware is applied")
	}
	return userCtx
}
