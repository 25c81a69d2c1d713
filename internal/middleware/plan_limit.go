package middleware

import (
	"context"
	"net/http"

	"github.com/bisonbooks/backend/internal/billing"
	"github.com/bisonbooks/backend/internal/models"
	"github.com/bisonbooks/backend/internal/utils"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// UsageChecker counts a user's resources and evaluates their plan limit
type UsageChecker interface {
	CheckUsage(ctx context.Context, userID uuid.UUID, kind models.ResourceKind) (billing.LimitResult, error)
}

// RequirePlanLimit stops resource creation once the caller's plan quota for
// kind is used up
func RequirePlanLimit(checker UsageChecker, kind models.ResourceKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := CurrentUserID(c)
		if userID == uuid.Nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
			c.Abort()
			return
		}

		result, err := checker.CheckUsage(c.Request.Context(), userID, kind)
		if err != nil {
			utils.Logger.WithError(err).WithFields(logrus.Fields{
				"user_id":  userID,
				"resource": kind,
			}).Error("Failed to check plan limit")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to check plan limit"})
			c.Abort()
			return
		}

		if !result.Allowed {
			c.JSON(http.StatusPaymentRequired, gin.H{
				"error": result.Message,
				"limit": result,
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
