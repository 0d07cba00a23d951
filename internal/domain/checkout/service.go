// internal/domain/checkout/service.go
package checkout

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/your-org/marketplace-backend/internal/config"
	"github.com/your-org/marketplace-backend/internal/domain/cart"
	"github.com/your-org/marketplace-backend/internal/domain/payment"
	"github.com/your-org/marketplace-backend/internal/domain/purchasable"
	"gorm.io/gorm"
)

var (
	// ErrEmptyCart is returned when checking out a cart with no entries
	ErrEmptyCart = errors.New("cart is empty")
	// ErrZeroTotal is returned when the priced cart sums to zero or less
	ErrZeroTotal = errors.New("cart total must be greater than zero")
)

// cleanupTimeout bounds provider calls made after the request context is gone
const cleanupTimeout = 10 * time.Second

// Service orchestrates checkout sessions and their resolution
type Service struct {
	db        *gorm.DB
	config    config.CheckoutConfig
	carts     *cart.Service
	registry  *purchasable.Registry
	payments  *payment.Repository
	provider  payment.Provider
	publisher EventPublisher
	recorder  Recorder
	log       logrus.FieldLogger
	now       func() time.Time
}

// Option configures optional collaborators
type Option func(*Service)

// WithPublisher sends payment lifecycle events to p
func WithPublisher(p EventPublisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithRecorder reports checkout outcomes to r
func WithRecorder(r Recorder) Option {
	return func(s *Service) { s.recorder = r }
}

// NewService creates a new checkout service
func NewService(
	db *gorm.DB,
	cfg *config.Config,
	carts *cart.Service,
	registry *purchasable.Registry,
	provider payment.Provider,
	log logrus.FieldLogger,
	opts ...Option,
) *Service {
	s := &Service{
		db:        db,
		config:    cfg.Checkout,
		carts:     carts,
		registry:  registry,
		payments:  payment.NewRepository(db),
		provider:  provider,
		publisher: noopPublisher{},
		recorder:  noopRecorder{},
		log:       log,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Result is a started checkout
type Result struct {
	Payment     *payment.Record `json:"payment"`
	SessionID   string          `json:"session_id"`
	CheckoutURL string          `json:"checkout_url"`
	StaleCount  int             `json:"stale_count,omitempty"`
}

// quote is a priced cart snapshot
type quote struct {
	lines []cart.Line
	total decimal.Decimal
	stale int
}

// Checkout prices the user's cart, opens a provider session and records it as pending.
// Nothing is persisted unless the provider accepted the session.
func (s *Service) Checkout(ctx context.Context, userID uuid.UUID) (*Result, error) {
	q, err := s.buildQuote(ctx, userID)
	if err != nil {
		s.recorder.CheckoutFinished(outcomeOf(err))
		return nil, err
	}

	paymentID := uuid.New()
	now := s.now().UTC()
	req := &payment.SessionRequest{
		Currency:        s.config.Currency,
		LineItems:       make([]payment.SessionLineItem, 0, len(q.lines)),
		SuccessURL:      s.config.SuccessURL,
		CancelURL:       s.config.CancelURL,
		ExpiresAt:       now.Add(s.config.SessionTTL),
		ClientReference: userID.String(),
		Metadata: map[string]string{
			"user_id":     userID.String(),
			"payment_id":  paymentID.String(),
			"entry_count": strconv.Itoa(len(q.lines)),
			"cart_digest": cartDigest(q.lines),
		},
	}
	for _, line := range q.lines {
		req.LineItems = append(req.LineItems, sessionLineItem(line))
	}

	logger := s.log.WithFields(logrus.Fields{
		"user_id":    userID,
		"payment_id": paymentID,
	})

	sess, err := s.provider.CreateSession(ctx, req)
	if err != nil {
		logger.WithError(err).Error("Failed to create checkout session")
		s.recorder.CheckoutFinished(outcomeOf(err))
		return nil, fmt.Errorf("failed to create checkout session: %w", err)
	}

	expiresAt := sess.ExpiresAt
	if expiresAt.IsZero() {
		expiresAt = req.ExpiresAt
	}

	record := &payment.Record{
		ID:                paymentID,
		UserID:            userID,
		ExternalSessionID: sess.ID,
		Amount:            q.total,
		Currency:          s.config.Currency,
		Status:            payment.StatusPending,
		CheckoutURL:       sess.URL,
		ExpiresAt:         expiresAt,
		LineItems:         make([]payment.LineItem, 0, len(q.lines)),
	}
	if sess.PaymentIntent != "" {
		record.ExternalPaymentIntent = &sess.PaymentIntent
	}
	for i, line := range q.lines {
		record.LineItems = append(record.LineItems, recordLineItem(line, i))
	}

	if err := s.payments.Create(ctx, record); err != nil {
		logger.WithField("session_id", sess.ID).WithError(err).Error("Failed to persist payment record, expiring session")
		s.expireOrphan(ctx, sess.ID)
		s.recorder.CheckoutFinished("error")
		return nil, err
	}

	logger.WithFields(logrus.Fields{
		"session_id": sess.ID,
		"amount":     q.total.StringFixed(2),
		"lines":      len(q.lines),
	}).Info("Checkout session created")

	s.recorder.CheckoutFinished("created")
	s.publish(ctx, EventPaymentCreated, record)

	return &Result{
		Payment:     record,
		SessionID:   sess.ID,
		CheckoutURL: sess.URL,
		StaleCount:  q.stale,
	}, nil
}

func (s *Service) buildQuote(ctx context.Context, userID uuid.UUID) (*quote, error) {
	entries, err := s.carts.Entries(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, ErrEmptyCart
	}

	q := &quote{
		lines: make([]cart.Line, 0, len(entries)),
		total: decimal.Zero,
	}
	for i := range entries {
		entry := &entries[i]
		item, err := s.registry.Resolve(ctx, entry.Ref())
		if err != nil {
			if errors.Is(err, purchasable.ErrNotFound) || errors.Is(err, purchasable.ErrUnknownKind) {
				s.log.WithFields(logrus.Fields{
					"user_id":  userID,
					"entry_id": entry.ID,
					"kind":     entry.ItemKind,
					"item_id":  entry.ItemID,
				}).WithError(err).Warn("Skipping stale cart entry at checkout")
				q.stale++
				continue
			}
			return nil, fmt.Errorf("failed to resolve cart item: %w", err)
		}

		line := cart.NewLine(entry, item)
		q.lines = append(q.lines, line)
		q.total = q.total.Add(line.LineTotal)
	}

	q.total = q.total.Round(2)
	if !q.total.IsPositive() {
		return nil, ErrZeroTotal
	}
	return q, nil
}

func (s *Service) expireOrphan(ctx context.Context, sessionID string) {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()
	if err := s.provider.ExpireSession(cctx, sessionID); err != nil {
		s.log.WithField("session_id", sessionID).WithError(err).Warn("Failed to expire orphaned checkout session")
	}
}

// Resolve reconciles a pending record with the provider. With an empty sessionID the
// user's most recent pending record is used. Terminal records are returned unchanged.
func (s *Service) Resolve(ctx context.Context, userID uuid.UUID, sessionID string) (*payment.Record, error) {
	record, err := s.recordFor(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	if record.Status.IsTerminal() {
		return record, nil
	}

	status, err := s.provider.RetrieveSession(ctx, record.ExternalSessionID)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"payment_id": record.ID,
			"session_id": record.ExternalSessionID,
		}).WithError(err).Warn("Payment left pending, provider lookup failed")
		return nil, fmt.Errorf("failed to retrieve checkout session: %w", err)
	}

	switch {
	case status.Paid():
		return s.succeed(ctx, record, status.PaymentIntent)
	case status.Expired():
		return s.close(ctx, record, payment.StatusFailed, "checkout session expired")
	default:
		return record, nil
	}
}

// Cancel closes a pending checkout on the user's request. The provider is asked first so a
// session paid in another tab still succeeds. The cart is never cleared here.
func (s *Service) Cancel(ctx context.Context, userID uuid.UUID, sessionID string) (*payment.Record, error) {
	record, err := s.recordFor(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	if record.Status.IsTerminal() {
		return record, nil
	}

	logger := s.log.WithFields(logrus.Fields{
		"payment_id": record.ID,
		"session_id": record.ExternalSessionID,
	})

	status, err := s.provider.RetrieveSession(ctx, record.ExternalSessionID)
	if err != nil {
		logger.WithError(err).Warn("Cancel deferred, provider lookup failed")
		return nil, fmt.Errorf("failed to retrieve checkout session: %w", err)
	}
	if status.Paid() {
		logger.Info("Cancel requested for a paid session, completing instead")
		return s.succeed(ctx, record, status.PaymentIntent)
	}

	if !status.Expired() {
		if expireErr := s.provider.ExpireSession(ctx, record.ExternalSessionID); expireErr != nil {
			var rejected *payment.ProviderRejectedError
			if !errors.As(expireErr, &rejected) {
				logger.WithError(expireErr).Warn("Cancel deferred, could not expire session")
				return nil, fmt.Errorf("failed to expire checkout session: %w", expireErr)
			}

			// The session left the open state between the two calls.
			status, err = s.provider.RetrieveSession(ctx, record.ExternalSessionID)
			if err != nil {
				return nil, fmt.Errorf("failed to retrieve checkout session: %w", err)
			}
			if status.Paid() {
				return s.succeed(ctx, record, status.PaymentIntent)
			}
			if !status.Expired() {
				logger.WithError(expireErr).Warn("Cancel deferred, session still open")
				return nil, fmt.Errorf("failed to expire checkout session: %w", expireErr)
			}
		}
	}

	return s.close(ctx, record, payment.StatusCanceled, "canceled by user")
}

// HandleSessionEvent applies a verified provider notification. Unknown sessions are ignored.
func (s *Service) HandleSessionEvent(ctx context.Context, event *payment.SessionEvent) (*payment.Record, error) {
	record, err := s.payments.FindBySession(ctx, event.Session.ID)
	if err != nil {
		if errors.Is(err, payment.ErrNotFound) {
			s.log.WithFields(logrus.Fields{
				"event_id":   event.ID,
				"session_id": event.Session.ID,
			}).Warn("Webhook for unknown checkout session")
			return nil, nil
		}
		return nil, err
	}
	if record.Status.IsTerminal() {
		return record, nil
	}

	switch event.Type {
	case payment.EventSessionCompleted, payment.EventAsyncSucceeded:
		if event.Session.Paid() {
			return s.succeed(ctx, record, event.Session.PaymentIntent)
		}
		// Delayed payment methods complete the session before funds arrive.
		return record, nil
	case payment.EventSessionExpired:
		return s.close(ctx, record, payment.StatusFailed, "checkout session expired")
	case payment.EventAsyncFailed:
		return s.close(ctx, record, payment.StatusFailed, "asynchronous payment failed")
	}
	return record, nil
}

// Payments lists the user's payment records
func (s *Service) Payments(ctx context.Context, userID uuid.UUID, limit int) ([]payment.Record, error) {
	return s.payments.ListByUser(ctx, userID, limit)
}

// Payment returns one of the user's payment records with its line items
func (s *Service) Payment(ctx context.Context, userID, id uuid.UUID) (*payment.Record, error) {
	return s.payments.FindForUser(ctx, userID, id)
}

func (s *Service) recordFor(ctx context.Context, userID uuid.UUID, sessionID string) (*payment.Record, error) {
	if sessionID == "" {
		return s.payments.LatestPending(ctx, userID)
	}
	record, err := s.payments.FindBySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if record.UserID != userID {
		return nil, payment.ErrNotFound
	}
	return record, nil
}

// succeed marks the record paid and consumes the cart in one transaction.
// Only the caller whose update moved the record clears the cart.
func (s *Service) succeed(ctx context.Context, record *payment.Record, paymentIntent string) (*payment.Record, error) {
	var moved bool
	var cleared int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		moved, err = s.payments.WithTx(tx).MarkSucceeded(ctx, record.ID, paymentIntent)
		if err != nil || !moved {
			return err
		}
		cleared, err = s.carts.Store().WithTx(tx).DeleteByUser(ctx, record.UserID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to complete payment: %w", err)
	}

	updated, err := s.payments.FindByID(ctx, record.ID)
	if err != nil {
		return nil, err
	}
	if moved {
		s.log.WithFields(logrus.Fields{
			"payment_id":     record.ID,
			"user_id":        record.UserID,
			"session_id":     record.ExternalSessionID,
			"cart_cleared":   cleared,
			"payment_intent": paymentIntent,
		}).Info("Payment succeeded")
		s.recorder.PaymentTransitioned(payment.StatusSucceeded)
		s.publish(ctx, EventPaymentSucceeded, updated)
	}
	return updated, nil
}

func (s *Service) close(ctx context.Context, record *payment.Record, status payment.Status, reason string) (*payment.Record, error) {
	moved, err := s.payments.MarkClosed(ctx, record.ID, status, reason)
	if err != nil {
		return nil, err
	}

	updated, err := s.payments.FindByID(ctx, record.ID)
	if err != nil {
		return nil, err
	}
	if moved {
		s.log.WithFields(logrus.Fields{
			"payment_id": record.ID,
			"user_id":    record.UserID,
			"session_id": record.ExternalSessionID,
			"status":     status,
		}).Info("Payment closed")
		s.recorder.PaymentTransitioned(status)
		eventType := EventPaymentFailed
		if status == payment.StatusCanceled {
			eventType = EventPaymentCanceled
		}
		s.publish(ctx, eventType, updated)
	}
	return updated, nil
}

func (s *Service) publish(ctx context.Context, eventType string, record *payment.Record) {
	event := NewPaymentEvent(eventType, record, s.now())
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.log.WithFields(logrus.Fields{
			"payment_id": record.ID,
			"event":      eventType,
		}).WithError(err).Warn("Failed to publish payment event")
	}
}

func outcomeOf(err error) string {
	var rejected *payment.ProviderRejectedError
	switch {
	case errors.Is(err, ErrEmptyCart):
		return "empty_cart"
	case errors.Is(err, ErrZeroTotal):
		return "zero_total"
	case errors.Is(err, payment.ErrProviderUnavailable):
		return "provider_unavailable"
	case errors.As(err, &rejected):
		return "provider_rejected"
	}
	return "error"
}
