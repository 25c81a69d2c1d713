package handlers

import (
	"net/http"

	"github.com/bisonbooks/backend/internal/billing"
	"github.com/bisonbooks/backend/internal/utils"
	"github.com/gin-gonic/gin"
)

// CronHandler serves endpoints called by the external scheduler
type CronHandler struct {
	billing *billing.Service
}

// NewCronHandler creates a new cron handler
func NewCronHandler(billingService *billing.Service) *CronHandler {
	return &CronHandler{
		billing: billingService,
	}
}

// CheckSubscriptions downgrades every lapsed subscription
func (h *CronHandler) CheckSubscriptions(c *gin.Context) {
	result, err := h.billing.CheckExpiredSubscriptions(c.Request.Context())
	if err != nil {
		utils.Logger.WithError(err).Error("Scheduled subscription check failed")
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "Failed to check subscriptions",
		})
		return
	}

	c.JSON(http.StatusOK, result)
}
