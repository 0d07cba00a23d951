package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/your-org/marketplace-backend/internal/config"
	"github.com/your-org/marketplace-backend/internal/domain/checkout"
	"github.com/your-org/marketplace-backend/internal/domain/payment"
)

// WebhookParser verifies and decodes a provider webhook delivery
type WebhookParser interface {
	ParseWebhook(payload []byte, signature string) (*payment.SessionEvent, error)
}

// WebhookHandler receives provider notifications
type WebhookHandler struct {
	checkoutService *checkout.Service
	parser          WebhookParser
	errors          errorResponder
	log             logrus.FieldLogger
}

// NewWebhookHandler creates a new webhook handler
func NewWebhookHandler(checkoutService *checkout.Service, parser WebhookParser, cfg *config.Config, log logrus.FieldLogger) *WebhookHandler {
	return &WebhookHandler{
		checkoutService: checkoutService,
		parser:          parser,
		errors:          errorResponder{config: cfg, log: log},
		log:             log,
	}
}

// StripeWebhook handles POST /webhooks/stripe
func (h *WebhookHandler) StripeWebhook(c *gin.Context) {
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		badRequest(c, "Failed to read request body", nil)
		return
	}

	event, err := h.parser.ParseWebhook(payload, c.GetHeader("Stripe-Signature"))
	if err != nil {
		h.errors.respond(c, err, "Invalid webhook")
		return
	}
	if event == nil {
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}

	record, err := h.checkoutService.HandleSessionEvent(c.Request.Context(), event)
	if err != nil {
		// A non-2xx response makes the provider redeliver.
		h.errors.respond(c, err, "Failed to process webhook")
		return
	}

	fields := logrus.Fields{"event_id": event.ID, "type": event.Type}
	if record != nil {
		fields["payment_id"] = record.ID
		fields["status"] = record.Status
	}
	h.log.WithFields(fields).Info("Webhook processed")

	c.JSON(http.StatusOK, gin.H{"received": true})
}
