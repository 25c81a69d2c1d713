package routes

import (
	"net/http"
	"time"

	"github.com/bisonbooks/backend/internal/billing"
	"github.com/bisonbooks/backend/internal/handlers"
	"github.com/bisonbooks/backend/internal/middleware"
	"github.com/bisonbooks/backend/internal/models"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Dependencies are the collaborators the route table wires into handlers
type Dependencies struct {
	DB          *gorm.DB
	Billing     *billing.Service
	Paystack    handlers.WebhookParser
	JWTSecret   string
	CronSecret  string
	RateLimiter *middleware.RateLimiter
}

// SetupRoutes registers every route of the API
func SetupRoutes(router *gin.Engine, deps Dependencies) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	})

	api := router.Group("/api")
	if deps.RateLimiter != nil {
		api.Use(deps.RateLimiter.IPRateLimiterMiddleware())
	}

	RegisterSubscriptionRoutes(api, deps)
	RegisterResourceRoutes(api, deps)
	RegisterCronRoutes(api, deps)
	RegisterWebhookRoutes(router, deps)
}

// RegisterSubscriptionRoutes registers plan, subscription and usage routes
func RegisterSubscriptionRoutes(api *gin.RouterGroup, deps Dependencies) {
	subscriptionHandler := handlers.NewSubscriptionHandler(deps.Billing)

	// Public plan catalogue
	api.GET("/plans", subscriptionHandler.ListPlans)

	subscriptionGroup := api.Group("/subscription")
	subscriptionGroup.Use(middleware.AuthMiddleware(deps.JWTSecret))
	{
		subscriptionGroup.GET("", subscriptionHandler.GetSubscription)
		subscriptionGroup.POST("", subscriptionHandler.InitializeSubscription)
		subscriptionGroup.POST("/verify", subscriptionHandler.VerifySubscription)
		subscriptionGroup.POST("/cancel", subscriptionHandler.CancelSubscription)
		subscriptionGroup.POST("/status", subscriptionHandler.CheckStatus)
		subscriptionGroup.GET("/invoices", subscriptionHandler.ListInvoices)
	}

	authenticated := api.Group("")
	authenticated.Use(middleware.AuthMiddleware(deps.JWTSecret))
	{
		authenticated.GET("/limits/:resource", subscriptionHandler.GetLimit)
		authenticated.GET("/usage", subscriptionHandler.GetUsage)
	}
}

// RegisterResourceRoutes registers the metered resource routes. Creation is
// refused once the caller's plan quota is used up.
func RegisterResourceRoutes(api *gin.RouterGroup, deps Dependencies) {
	resourceHandler := handlers.NewResourceHandler(deps.DB)
	limit := func(kind models.ResourceKind) gin.HandlerFunc {
		return middleware.RequirePlanLimit(deps.Billing, kind)
	}

	resources := api.Group("")
	resources.Use(middleware.AuthMiddleware(deps.JWTSecret))
	{
		resources.GET("/businesses", resourceHandler.ListBusinesses)
		resources.POST("/businesses", limit(models.ResourceBusinesses), resourceHandler.CreateBusiness)

		resources.GET("/clients", resourceHandler.ListClients)
		resources.POST("/clients", limit(models.ResourceClients), resourceHandler.CreateClient)

		resources.GET("/invoices", resourceHandler.ListInvoices)
		resources.POST("/invoices", limit(models.ResourceInvoicesPerMonth), resourceHandler.CreateInvoice)

		resources.GET("/estimates", resourceHandler.ListEstimates)
		resources.POST("/estimates", limit(models.ResourceEstimates), resourceHandler.CreateEstimate)

		resources.GET("/receipts", resourceHandler.ListReceipts)
		resources.POST("/receipts", limit(models.ResourceReceipts), resourceHandler.CreateReceipt)

		resources.GET("/expenses", resourceHandler.ListExpenses)
		resources.POST("/expenses", limit(models.ResourceExpenses), resourceHandler.CreateExpense)
	}
}
