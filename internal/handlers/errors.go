package handlers

import (
	"errors"
	"net/http"

	"github.com/bisonbooks/backend/internal/billing"
	"github.com/bisonbooks/backend/internal/utils"
	"github.com/gin-gonic/gin"
)

// statusFor maps billing errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, billing.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, billing.ErrPlanNotFound), errors.Is(err, billing.ErrSubscriptionNotFound):
		return http.StatusNotFound
	case errors.Is(err, billing.ErrActiveSubscription):
		return http.StatusConflict
	case errors.Is(err, billing.ErrInvalidInterval), errors.Is(err, billing.ErrInvalidResource),
		errors.Is(err, billing.ErrEmailRequired), errors.Is(err, billing.ErrReferenceMismatch):
		return http.StatusBadRequest
	case errors.Is(err, billing.ErrPaymentNotSuccessful):
		return http.StatusPaymentRequired
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes err as a JSON error body. Unexpected errors are logged
// and hidden from the client.
func respondError(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		utils.Logger.WithError(err).WithField("path", c.FullPath()).Error("Request failed")
		c.JSON(status, gin.H{"error": "Internal server error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
