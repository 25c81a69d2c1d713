package middleware

import (
	"net/http"
	"strings"

	"github.com/bisonbooks/backend/internal/utils"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Context keys set by AuthMiddleware
const (
	ContextUserID  = "user_id"
	ContextEmail   = "email"
	ContextIsAdmin = "is_admin"
)

// AuthMiddleware verifies JWT tokens and adds user info to context
func AuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := extractToken(c)

		if tokenString == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization token required"})
			c.Abort()
			return
		}

		claims, err := utils.ValidateToken(tokenString, secret)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			c.Abort()
			return
		}

		// Set user info in context
		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextEmail, claims.Email)
		c.Set(ContextIsAdmin, claims.IsAdmin)

		c.Next()
	}
}

// CurrentUserID returns the authenticated user's id, or uuid.Nil
func CurrentUserID(c *gin.Context) uuid.UUID {
	value, exists := c.Get(ContextUserID)
	if !exists {
		return uuid.Nil
	}
	userID, ok := value.(uuid.UUID)
	if !ok {
		return uuid.Nil
	}
	return userID
}

// CurrentEmail returns the authenticated user's email
func CurrentEmail(c *gin.Context) string {
	return c.GetString(ContextEmail)
}

// extractToken gets the token from a "Bearer <token>" Authorization header
func extractToken(c *gin.Context) string {
	parts := strings.Split(c.GetHeader("Authorization"), " ")
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
