package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/bisonbooks/backend/internal/billing"
	"github.com/bisonbooks/backend/internal/models"
	"github.com/bisonbooks/backend/internal/utils"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// PaystackChargeSuccess is the event sent when a checkout is paid
const PaystackChargeSuccess = "charge.success"

// maxWebhookBody bounds the webhook payload we are willing to read
const maxWebhookBody = 1 << 20

// WebhookParser authenticates and decodes provider webhooks
type WebhookParser interface {
	VerifyWebhookSignature(body []byte, signature string) bool
	ParseWebhook(body []byte) (string, *models.PaymentVerification, error)
}

// WebhookHandler handles webhooks from payment providers
type WebhookHandler struct {
	billing  *billing.Service
	paystack WebhookParser
}

// NewWebhookHandler creates a new webhook handler
func NewWebhookHandler(billingService *billing.Service, paystack WebhookParser) *WebhookHandler {
	return &WebhookHandler{
		billing:  billingService,
		paystack: paystack,
	}
}

// PaystackWebhook activates subscriptions paid through Paystack checkout
func (h *WebhookHandler) PaystackWebhook(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid payload"})
		return
	}

	if !h.paystack.VerifyWebhookSignature(body, c.GetHeader("X-Paystack-Signature")) {
		utils.Logger.WithField("ip", c.ClientIP()).Warn("Rejected Paystack webhook with invalid signature")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid signature"})
		return
	}

	event, payment, err := h.paystack.ParseWebhook(body)
	if err != nil && event != "" && event != PaystackChargeSuccess {
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid payload"})
		return
	}

	logger := utils.Logger.WithFields(logrus.Fields{
		"event":     event,
		"reference": payment.Reference,
	})

	if event != PaystackChargeSuccess || payment.Metadata.SubscriptionID == uuid.Nil {
		logger.Debug("Ignoring Paystack webhook")
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}

	_, err = h.billing.VerifySubscriptionPayment(c.Request.Context(), payment.Reference, payment.Metadata.SubscriptionID)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"status": "processed"})
	case errors.Is(err, billing.ErrSubscriptionNotFound),
		errors.Is(err, billing.ErrPaymentNotSuccessful),
		errors.Is(err, billing.ErrReferenceMismatch):
		// retrying will not change the outcome
		logger.WithError(err).Warn("Paystack webhook could not be applied")
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
	default:
		logger.WithError(err).Error("Failed to process Paystack webhook")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process webhook"})
	}
}
