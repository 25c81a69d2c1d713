package routes

import (
	"github.com/bisonbooks/backend/internal/handlers"
	"github.com/bisonbooks/backend/internal/middleware"
	"github.com/gin-gonic/gin"
)

// RegisterCronRoutes registers endpoints for the external scheduler
func RegisterCronRoutes(api *gin.RouterGroup, deps Dependencies) {
	cronHandler := handlers.NewCronHandler(deps.Billing)

	cronGroup := api.Group("/cron")
	cronGroup.Use(middleware.CronAuth(deps.CronSecret))
	{
		cronGroup.POST("/check-subscriptions", cronHandler.CheckSubscriptions)
	}
}

// RegisterWebhookRoutes registers payment provider webhooks. They are
// authenticated by signature, not by session.
func RegisterWebhookRoutes(router *gin.Engine, deps Dependencies) {
	webhookHandler := handlers.NewWebhookHandler(deps.Billing, deps.Paystack)

	webhookGroup := router.Group("/webhooks")
	{
		webhookGroup.POST("/paystack", webhookHandler.PaystackWebhook)
	}
}
