// internal/interfaces/http/handlers/checkout.go
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/your-org/marketplace-backend/internal/config"
	"github.com/your-org/marketplace-backend/internal/domain/checkout"
	"github.com/your-org/marketplace-backend/internal/domain/payment"
	redisstore "github.com/your-org/marketplace-backend/internal/infrastructure/database/redis"
)

// IdempotencyHeader names the client-chosen key that makes POST /checkout replayable
const IdempotencyHeader = "Idempotency-Key"

// CheckoutHandler handles checkout endpoints
type CheckoutHandler struct {
	checkoutService *checkout.Service
	idempotency     *redisstore.IdempotencyStore
	errors          errorResponder
	log             logrus.FieldLogger
}

// NewCheckoutHandler creates a new checkout handler. idempotency may be nil.
func NewCheckoutHandler(checkoutService *checkout.Service, idempotency *redisstore.IdempotencyStore, cfg *config.Config, log logrus.FieldLogger) *CheckoutHandler {
	return &CheckoutHandler{
		checkoutService: checkoutService,
		idempotency:     idempotency,
		errors:          errorResponder{config: cfg, log: log},
		log:             log,
	}
}

// CreateCheckout handles POST /checkout
func (h *CheckoutHandler) CreateCheckout(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	key := strings.TrimSpace(c.GetHeader(IdempotencyHeader))
	if len(key) > 255 {
		badRequest(c, "Idempotency-Key must be at most 255 characters", nil)
		return
	}
	if key != "" && h.idempotency != nil {
		stored, err := h.idempotency.Begin(ctx, userID, key)
		switch {
		case errors.Is(err, redisstore.ErrRequestInProgress):
			h.errors.respond(c, err, "")
			return
		case err != nil:
			h.log.WithError(err).Warn("Idempotency store unavailable, continuing without it")
			key = ""
		case stored != nil:
			c.Header("Idempotent-Replayed", "true")
			c.Data(stored.Status, "application/json; charset=utf-8", stored.Body)
			return
		}
	} else {
		key = ""
	}

	result, err := h.checkoutService.Checkout(ctx, userID)
	if err != nil {
		if key != "" {
			if relErr := h.idempotency.Release(ctx, userID, key); relErr != nil {
				h.log.WithError(relErr).Warn("Failed to release idempotency key")
			}
		}
		h.errors.respond(c, err, "Failed to start checkout")
		return
	}

	body, err := json.Marshal(gin.H{
		"message": "Checkout session created",
		"data":    result,
	})
	if err != nil {
		h.errors.respond(c, err, "Failed to encode checkout response")
		return
	}

	if key != "" {
		stored := redisstore.StoredResponse{Status: http.StatusCreated, Body: body}
		if err := h.idempotency.Complete(ctx, userID, key, stored); err != nil {
			h.log.WithError(err).Warn("Failed to store idempotent response")
		}
	}

	c.Data(http.StatusCreated, "application/json; charset=utf-8", body)
}

// Success handles GET /checkout/success?session_id=...
// Without a session id the user's most recent pending payment is resolved.
func (h *CheckoutHandler) Success(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	record, err := h.checkoutService.Resolve(c.Request.Context(), userID, c.Query("session_id"))
	if err != nil {
		h.errors.respond(c, err, "Failed to confirm payment")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": resolveMessage(record.Status),
		"data":    record,
	})
}

// Cancel handles GET /checkout/cancel?session_id=...
func (h *CheckoutHandler) Cancel(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	record, err := h.checkoutService.Cancel(c.Request.Context(), userID, c.Query("session_id"))
	if err != nil {
		h.errors.respond(c, err, "Failed to cancel checkout")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": resolveMessage(record.Status),
		"data":    record,
	})
}

func resolveMessage(status payment.Status) string {
	switch status {
	case payment.StatusSucceeded:
		return "Payment completed successfully"
	case payment.StatusCanceled:
		return "Checkout canceled, your cart has been kept"
	case payment.StatusFailed:
		return "Payment was not completed"
	}
	return "Payment is still being processed"
}
