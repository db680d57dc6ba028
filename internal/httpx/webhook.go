package httpx

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/you/charter-booking/internal/domain"
)

// signatureHeader carries the provider's payload signature. The fake
// provider reuses the same header so the route is provider-agnostic.
const signatureHeader = "Stripe-Signature"

// processTimeout bounds webhook handling: the provider wants a timely
// acknowledgment, and a timed-out delivery will simply be redelivered.
const processTimeout = 15 * time.Second

func (a *API) handleWebhook(c *gin.Context) {
	payload, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot read body"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), processTimeout)
	defer cancel()

	if err := a.webhooks.Process(ctx, payload, c.GetHeader(signatureHeader)); err != nil {
		var se *domain.SignatureError
		if errors.As(err, &se) {
			log.Printf("[webhook] rejected unsigned delivery: %v", err)
			c.JSON(http.StatusUnauthorized, gin.H{"error": "signature verification failed"})
			return
		}
		// anything else: tell the provider to redeliver
		log.Printf("[webhook] processing error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "processing failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"received": true})
}
