package handlers

import (
	"net/http"

	"github.com/bisonbooks/backend/internal/billing"
	"github.com/bisonbooks/backend/internal/middleware"
	"github.com/bisonbooks/backend/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// SubscriptionHandler handles plan and subscription requests
type SubscriptionHandler struct {
	billing *billing.Service
}

// NewSubscriptionHandler creates a new subscription handler
func NewSubscriptionHandler(billingService *billing.Service) *SubscriptionHandler {
	return &SubscriptionHandler{
		billing: billingService,
	}
}

// InitializeSubscriptionRequest represents a request to move to a plan
type InitializeSubscriptionRequest struct {
	PlanID   uuid.UUID              `json:"plan_id"`
	Interval models.BillingInterval `json:"interval"`
}

// VerifySubscriptionRequest represents a request to confirm a checkout
type VerifySubscriptionRequest struct {
	Reference      string    `json:"reference" binding:"required"`
	SubscriptionID uuid.UUID `json:"subscription_id"`
}

// ListPlans returns the plans users can subscribe to
func (h *SubscriptionHandler) ListPlans(c *gin.Context) {
	plans, err := h.billing.ListPlans(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"plans": plans})
}

// GetSubscription returns the caller's subscription and plan
func (h *SubscriptionHandler) GetSubscription(c *gin.Context) {
	res := h.billing.Resolve(c.Request.Context(), middleware.CurrentUserID(c))
	c.JSON(http.StatusOK, res)
}

// InitializeSubscription starts a move to another plan
func (h *SubscriptionHandler) InitializeSubscription(c *gin.Context) {
	var req InitializeSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.PlanID == uuid.Nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "plan_id is required"})
		return
	}

	user := billing.Identity{
		UserID: middleware.CurrentUserID(c),
		Email:  middleware.CurrentEmail(c),
	}

	result, err := h.billing.InitializeSubscription(c.Request.Context(), user, req.PlanID, req.Interval)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// VerifySubscription confirms a checkout for one of the caller's subscriptions
func (h *SubscriptionHandler) VerifySubscription(c *gin.Context) {
	var req VerifySubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.SubscriptionID == uuid.Nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "subscription_id is required"})
		return
	}

	ctx := c.Request.Context()
	sub, err := h.billing.GetSubscription(ctx, req.SubscriptionID)
	if err != nil {
		respondError(c, err)
		return
	}
	if sub.UserID != middleware.CurrentUserID(c) {
		respondError(c, billing.ErrSubscriptionNotFound)
		return
	}

	result, err := h.billing.VerifySubscriptionPayment(ctx, req.Reference, req.SubscriptionID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// CancelSubscription schedules the caller's subscription to end with its period
func (h *SubscriptionHandler) CancelSubscription(c *gin.Context) {
	sub, err := h.billing.CancelSubscription(c.Request.Context(), middleware.CurrentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"subscription": sub,
	})
}

// CheckStatus downgrades the caller's subscription if it has lapsed
func (h *SubscriptionHandler) CheckStatus(c *gin.Context) {
	result, err := h.billing.CheckUserSubscriptionStatus(c.Request.Context(), middleware.CurrentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// ListInvoices returns the caller's subscription payments
func (h *SubscriptionHandler) ListInvoices(c *gin.Context) {
	invoices, err := h.billing.ListInvoices(c.Request.Context(), middleware.CurrentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"invoices": invoices})
}

// GetLimit reports how much of one resource the caller may still create
func (h *SubscriptionHandler) GetLimit(c *gin.Context) {
	kind := models.ResourceKind(c.Param("resource"))

	result, err := h.billing.CheckUsage(c.Request.Context(), middleware.CurrentUserID(c), kind)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetUsage reports every resource limit for the caller
func (h *SubscriptionHandler) GetUsage(c *gin.Context) {
	usage, err := h.billing.Usage(c.Request.Context(), middleware.CurrentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"usage": usage})
}
