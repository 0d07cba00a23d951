package checkout

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/your-org/marketplace-backend/internal/domain/payment"
)

// Payment lifecycle event types
const (
	EventPaymentCreated   = "payment.created"
	EventPaymentSucceeded = "payment.succeeded"
	EventPaymentFailed    = "payment.failed"
	EventPaymentCanceled  = "payment.canceled"
)

// PaymentEvent is published whenever a payment record is created or closed
type PaymentEvent struct {
	ID         uuid.UUID       `json:"id"`
	Type       string          `json:"type"`
	PaymentID  uuid.UUID       `json:"payment_id"`
	UserID     uuid.UUID       `json:"user_id"`
	SessionID  string          `json:"session_id"`
	Status     payment.Status  `json:"status"`
	Amount     decimal.Decimal `json:"amount"`
	Currency   string          `json:"currency"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// NewPaymentEvent snapshots record into an event
func NewPaymentEvent(eventType string, record *payment.Record, at time.Time) PaymentEvent {
	return PaymentEvent{
		ID:         uuid.New(),
		Type:       eventType,
		PaymentID:  record.ID,
		UserID:     record.UserID,
		SessionID:  record.ExternalSessionID,
		Status:     record.Status,
		Amount:     record.Amount,
		Currency:   record.Currency,
		OccurredAt: at.UTC(),
	}
}

// EventPublisher delivers payment events to other services
type EventPublisher interface {
	Publish(ctx context.Context, event PaymentEvent) error
}

// Recorder receives checkout outcome counts
type Recorder interface {
	CheckoutFinished(outcome string)
	PaymentTransitioned(status payment.Status)
}

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, PaymentEvent) error { return nil }

type noopRecorder struct{}

func (noopRecorder) CheckoutFinished(string)            {}
func (noopRecorder) PaymentTransitioned(payment.Status) {}
