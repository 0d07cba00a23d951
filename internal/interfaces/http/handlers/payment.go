// internal/interfaces/http/handlers/payment.go
package handlers

import (
	"bytes"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/your-org/marketplace-backend/internal/config"
	"github.com/your-org/marketplace-backend/internal/domain/checkout"
	"github.com/your-org/marketplace-backend/internal/domain/payment"
)

// PaymentHandler serves the user's payment history and receipts
type PaymentHandler struct {
	checkoutService *checkout.Service
	receipts        ReceiptRenderer
	errors          errorResponder
}

// ReceiptRenderer renders a succeeded payment as a PDF
type ReceiptRenderer interface {
	GenerateReceipt(record *payment.Record) (*bytes.Buffer, error)
}

// NewPaymentHandler creates a new payment handler
func NewPaymentHandler(checkoutService *checkout.Service, receipts ReceiptRenderer, cfg *config.Config, log logrus.FieldLogger) *PaymentHandler {
	return &PaymentHandler{
		checkoutService: checkoutService,
		receipts:        receipts,
		errors:          errorResponder{config: cfg, log: log},
	}
}

// ListPayments handles GET /payments?limit=
func (h *PaymentHandler) ListPayments(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var query struct {
		Limit int `form:"limit,default=20" binding:"min=1,max=100"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		badRequest(c, "Invalid query parameters", err)
		return
	}

	records, err := h.checkoutService.Payments(c.Request.Context(), userID, query.Limit)
	if err != nil {
		h.errors.respond(c, err, "Failed to retrieve payments")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Payments retrieved successfully",
		"data":    records,
	})
}

// GetPayment handles GET /payments/:id
func (h *PaymentHandler) GetPayment(c *gin.Context) {
	record, ok := h.ownedPayment(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": record})
}

// DownloadReceipt handles GET /payments/:id/receipt
func (h *PaymentHandler) DownloadReceipt(c *gin.Context) {
	record, ok := h.ownedPayment(c)
	if !ok {
		return
	}
	if record.Status != payment.StatusSucceeded {
		c.JSON(http.StatusConflict, gin.H{"error": "Receipts are only available for completed payments"})
		return
	}

	pdf, err := h.receipts.GenerateReceipt(record)
	if err != nil {
		h.errors.respond(c, err, "Failed to generate receipt")
		return
	}

	filename := "receipt-" + record.ID.String()[:8] + ".pdf"
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, "application/pdf", pdf.Bytes())
}

func (h *PaymentHandler) ownedPayment(c *gin.Context) (*payment.Record, bool) {
	userID, ok := currentUser(c)
	if !ok {
		return nil, false
	}
	id, ok := idFromPath(c, "id")
	if !ok {
		return nil, false
	}

	record, err := h.checkoutService.Payment(c.Request.Context(), userID, id)
	if err != nil {
		h.errors.respond(c, err, "Failed to retrieve payment")
		return nil, false
	}
	return record, true
}
