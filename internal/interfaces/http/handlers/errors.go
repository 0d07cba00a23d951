package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/your-org/marketplace-backend/internal/config"
	"github.com/your-org/marketplace-backend/internal/domain/cart"
	"github.com/your-org/marketplace-backend/internal/domain/catalog"
	"github.com/your-org/marketplace-backend/internal/domain/checkout"
	"github.com/your-org/marketplace-backend/internal/domain/payment"
	"github.com/your-org/marketplace-backend/internal/domain/purchasable"
	"github.com/your-org/marketplace-backend/internal/domain/wishlist"
	redisstore "github.com/your-org/marketplace-backend/internal/infrastructure/database/redis"
	"github.com/your-org/marketplace-backend/internal/interfaces/http/middleware"
)

const paymentFailedMessage = "payment could not be processed, please try again"

// errorResponder turns domain errors into JSON error bodies
type errorResponder struct {
	config *config.Config
	log    logrus.FieldLogger
}

// statusFor maps an error to its HTTP status and public message
func statusFor(err error) (int, string) {
	var rejected *payment.ProviderRejectedError

	switch {
	case errors.Is(err, cart.ErrInvalidQuantity):
		return http.StatusBadRequest, cart.ErrInvalidQuantity.Error()
	case errors.Is(err, purchasable.ErrUnknownKind):
		return http.StatusBadRequest, "Unknown item kind"
	case errors.Is(err, catalog.ErrInvalidInput):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, checkout.ErrEmptyCart):
		return http.StatusBadRequest, "Your cart is empty"
	case errors.Is(err, checkout.ErrZeroTotal):
		return http.StatusBadRequest, "Cart total must be greater than zero"
	case errors.Is(err, payment.ErrInvalidSignature):
		return http.StatusBadRequest, "Invalid webhook signature"
	case errors.Is(err, catalog.ErrForbidden):
		return http.StatusForbidden, "You are not allowed to modify this item"
	case errors.Is(err, purchasable.ErrNotFound):
		return http.StatusNotFound, "Item not found"
	case errors.Is(err, wishlist.ErrNotInWishlist):
		return http.StatusNotFound, "Item is not in your wishlist"
	case errors.Is(err, payment.ErrNotFound):
		return http.StatusNotFound, "Payment not found"
	case errors.Is(err, redisstore.ErrRequestInProgress):
		return http.StatusConflict, "A checkout with this idempotency key is already in progress"
	case errors.As(err, &rejected):
		return http.StatusPaymentRequired, paymentFailedMessage
	case errors.Is(err, payment.ErrProviderUnavailable):
		return http.StatusServiceUnavailable, "Payment provider is temporarily unavailable, please try again"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "Request timeout"
	}
	return http.StatusInternalServerError, ""
}

// respond writes err. fallback is the public message for unexpected errors.
func (r *errorResponder) respond(c *gin.Context, err error, fallback string) {
	status, message := statusFor(err)
	if message == "" {
		message = fallback
	}

	entry := r.log.WithFields(logrus.Fields{
		"request_id": c.GetString("request_id"),
		"status":     status,
	}).WithError(err)
	if userID, ok := middleware.GetUserIDFromContext(c); ok {
		entry = entry.WithField("user_id", userID)
	}
	if status >= http.StatusInternalServerError || status == http.StatusPaymentRequired {
		entry.Error(message)
	} else {
		entry.Debug(message)
	}

	body := gin.H{"error": message}
	if r.config.ExposeErrorDetails() {
		body["details"] = err.Error()
	}
	if status == http.StatusServiceUnavailable {
		c.Header("Retry-After", "5")
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, body)
}

// badRequest reports a malformed request
func badRequest(c *gin.Context, message string, err error) {
	body := gin.H{"error": message}
	if err != nil {
		body["details"] = err.Error()
	}
	c.AbortWithStatusJSON(http.StatusBadRequest, body)
}

// currentUser returns the authenticated user or aborts with 401
func currentUser(c *gin.Context) (uuid.UUID, bool) {
	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
	}
	return userID, ok
}

// refFromPath reads :kind and :id
func refFromPath(c *gin.Context) (purchasable.Ref, bool) {
	ref, err := purchasable.NewRef(c.Param("kind"), c.Param("id"))
	if err != nil {
		if errors.Is(err, purchasable.ErrUnknownKind) {
			badRequest(c, "Unknown item kind", nil)
		} else {
			badRequest(c, "Invalid item ID", nil)
		}
		return purchasable.Ref{}, false
	}
	return ref, true
}

// idFromPath reads a uuid path parameter
func idFromPath(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		badRequest(c, "Invalid ID", nil)
		return uuid.Nil, false
	}
	return id, true
}
