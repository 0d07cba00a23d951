package payment

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrProviderUnavailable means the provider could not be reached or failed on its side. Retryable.
	ErrProviderUnavailable = errors.New("payment provider unavailable")
	// ErrNotFound is returned when no payment record matches
	ErrNotFound = errors.New("payment record not found")
	// ErrInvalidTransition is returned when a record is asked to leave a terminal state
	ErrInvalidTransition = errors.New("invalid payment status transition")
	// ErrInvalidSignature is returned for webhook payloads that fail verification
	ErrInvalidSignature = errors.New("invalid webhook signature")
)

// ProviderRejectedError carries the provider's reason for refusing a request
type ProviderRejectedError struct {
	Reason string
}

func (e *ProviderRejectedError) Error() string {
	return fmt.Sprintf("payment provider rejected request: %s", e.Reason)
}

// Provider is the external checkout-session API
type Provider interface {
	CreateSession(ctx context.Context, req *SessionRequest) (*Session, error)
	RetrieveSession(ctx context.Context, id string) (*SessionStatus, error)
	ExpireSession(ctx context.Context, id string) error
}

// SessionLineItem is one line of a checkout session, priced in minor units
type SessionLineItem struct {
	Name        string
	Description string
	ImageURL    string
	UnitAmount  int64
	Quantity    int64
}

// SessionRequest describes a checkout session to create
type SessionRequest struct {
	Currency        string
	LineItems       []SessionLineItem
	SuccessURL      string
	CancelURL       string
	ExpiresAt       time.Time
	ClientReference string
	Metadata        map[string]string
}

// Session is a created checkout session
type Session struct {
	ID            string
	URL           string
	PaymentIntent string
	ExpiresAt     time.Time
}

// Provider-reported payment and session states
const (
	PaymentStatusPaid              = "paid"
	PaymentStatusUnpaid            = "unpaid"
	PaymentStatusNoPaymentRequired = "no_payment_required"

	SessionStateOpen     = "open"
	SessionStateComplete = "complete"
	SessionStateExpired  = "expired"
)

// SessionStatus is the provider's authoritative view of a session
type SessionStatus struct {
	ID            string
	PaymentStatus string
	Status        string
	PaymentIntent string
}

// Paid reports whether the customer owes nothing more
func (s *SessionStatus) Paid() bool {
	return s.PaymentStatus == PaymentStatusPaid || s.PaymentStatus == PaymentStatusNoPaymentRequired
}

// Expired reports whether the session can no longer be paid
func (s *SessionStatus) Expired() bool {
	return s.Status == SessionStateExpired
}

// SessionEvent is a verified provider notification about a session
type SessionEvent struct {
	ID      string
	Type    string
	Session SessionStatus
}

// Webhook event types the service reacts to
const (
	EventSessionCompleted = "checkout.session.completed"
	EventSessionExpired   = "checkout.session.expired"
	EventAsyncSucceeded   = "checkout.session.async_payment_succeeded"
	EventAsyncFailed      = "checkout.session.async_payment_failed"
)
