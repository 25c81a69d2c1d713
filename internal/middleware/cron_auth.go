package middleware

import (
	"net/http"

	"github.com/bisonbooks/backend/internal/utils"
	"github.com/gin-gonic/gin"
)

// CronAuth admits requests carrying the shared scheduler secret as a bearer
// token. With no secret configured every request is refused.
func CronAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractToken(c)
		if token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			c.Abort()
			return
		}

		if secret == "" || !utils.SecureCompare(token, secret) {
			utils.Logger.WithField("ip", c.ClientIP()).Warn("Rejected cron request with invalid token")
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			c.Abort()
			return
		}

		c.Next()
	}
}
