package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"society-service/internal/services"
)

// Context keys set by AuthMiddleware
const (
	ContextUserID    = "user_id"
	ContextUserRole  = "user_role"
	ContextSocietyID = "society_id"
	ContextPhone     = "user_phone"
)

// AuthMiddleware validates JWT tokens and extracts user information
func AuthMiddleware(jwtService *services.JWTService, logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			logger.Warn("Missing authorization header")
			c.JSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"message": "Authorization header is required",
			})
			c.Abort()
			return
		}

		tokenParts := strings.Split(authHeader, " ")
		if len(tokenParts) != 2 || tokenParts[0] != "Bearer" {
			logger.Warn("Invalid authorization header format")
			c.JSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"message": "Authorization header must be in format: Bearer <token>",
			})
			c.Abort()
			return
		}

		claims, err := jwtService.ValidateAccessToken(tokenParts[1])
		if err != nil {
			logger.WithError(err).Warn("Invalid or expired token")
			c.JSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"message": "Invalid or expired token",
			})
			c.Abort()
			return
		}

		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextUserRole, claims.Role)
		c.Set(ContextSocietyID, claims.SocietyID)
		c.Set(ContextPhone, claims.Phone)

		c.Next()
	}
}

// RequireAnyRole checks that the authenticated user holds one of the
// given roles
func RequireAnyRole(logger *logrus.Logger, requiredRoles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := c.GetString(ContextUserRole)
		for _, required := range requiredRoles {
			if role == required {
				c.Next()
				return
			}
		}

		logger.WithFields(logrus.Fields{
			"user_role":      role,
			"required_roles": requiredRoles,
		}).Warn("Insufficient permissions")
		c.JSON(http.StatusForbidden, gin.H{
			"success": false,
			"message": fmt.Sprintf("Required one of roles: %v", requiredRoles),
		})
		c.Abort()
	}
}

// UserID reads the authenticated user id from the gin context
func UserID(c *gin.Context) uint {
	if v, ok := c.Get(ContextUserID); ok {
		if id, ok := v.(uint); ok {
			return id
		}
	}
	return 0
}

// SocietyID reads the authenticated user's society id from the gin
// context. Zero means the user has not joined one.
func SocietyID(c *gin.Context) uint {
	if v, ok := c.Get(ContextSocietyID); ok {
		if id, ok := v.(uint); ok {
			return id
		}
	}
	return 0
}
