// internal/domain/payment/stripe_provider.go
package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"
	"github.com/your-org/marketplace-backend/internal/config"
)

// Stripe only accepts session expiry between 30 minutes and 24 hours out
const (
	stripeMinSessionTTL = 30 * time.Minute
	stripeMaxSessionTTL = 24 * time.Hour
)

// StripeProvider implements Provider on Stripe Checkout
type StripeProvider struct {
	api           *client.API
	webhookSecret string
	log           logrus.FieldLogger
}

// NewStripeProvider creates a Stripe-backed provider
func NewStripeProvider(cfg *config.Config, log logrus.FieldLogger) *StripeProvider {
	httpClient := &http.Client{Timeout: cfg.External.Stripe.Timeout}
	return newStripeProvider(cfg.External.Stripe.SecretKey, cfg.External.Stripe.WebhookSecret, stripe.NewBackends(httpClient), log)
}

func newStripeProvider(secretKey, webhookSecret string, backends *stripe.Backends, log logrus.FieldLogger) *StripeProvider {
	return &StripeProvider{
		api:           client.New(secretKey, backends),
		webhookSecret: webhookSecret,
		log:           log,
	}
}

// CreateSession creates a one-off payment Checkout Session
func (p *StripeProvider) CreateSession(ctx context.Context, req *SessionRequest) (*Session, error) {
	params := buildSessionParams(req, time.Now())
	params.Context = ctx

	sess, err := p.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, p.mapError("create checkout session", err)
	}

	out := &Session{
		ID:        sess.ID,
		URL:       sess.URL,
		ExpiresAt: time.Unix(sess.ExpiresAt, 0).UTC(),
	}
	if sess.PaymentIntent != nil {
		out.PaymentIntent = sess.PaymentIntent.ID
	}
	return out, nil
}

// RetrieveSession fetches the current session state from Stripe
func (p *StripeProvider) RetrieveSession(ctx context.Context, id string) (*SessionStatus, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx

	sess, err := p.api.CheckoutSessions.Get(id, params)
	if err != nil {
		return nil, p.mapError("retrieve checkout session", err)
	}
	return sessionStatusOf(sess), nil
}

// ExpireSession closes an open session so it can no longer be paid
func (p *StripeProvider) ExpireSession(ctx context.Context, id string) error {
	params := &stripe.CheckoutSessionExpireParams{}
	params.Context = ctx

	if _, err := p.api.CheckoutSessions.Expire(id, params); err != nil {
		return p.mapError("expire checkout session", err)
	}
	return nil
}

// ParseWebhook verifies a webhook delivery and extracts the session it is about.
// Events for other objects return a nil event and no error.
func (p *StripeProvider) ParseWebhook(payload []byte, signature string) (*SessionEvent, error) {
	if p.webhookSecret == "" {
		return nil, fmt.Errorf("%w: webhook secret not configured", ErrInvalidSignature)
	}

	event, err := webhook.ConstructEventWithOptions(payload, signature, p.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	switch string(event.Type) {
	case EventSessionCompleted, EventSessionExpired, EventAsyncSucceeded, EventAsyncFailed:
	default:
		return nil, nil
	}

	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		return nil, fmt.Errorf("failed to decode checkout session: %w", err)
	}

	return &SessionEvent{
		ID:      event.ID,
		Type:    string(event.Type),
		Session: *sessionStatusOf(&sess),
	}, nil
}

func (p *StripeProvider) mapError(op string, err error) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		fields := logrus.Fields{
			"operation":   op,
			"http_status": stripeErr.HTTPStatusCode,
			"type":        stripeErr.Type,
			"code":        stripeErr.Code,
			"request_id":  stripeErr.RequestID,
		}
		if stripeErr.HTTPStatusCode >= http.StatusInternalServerError || stripeErr.HTTPStatusCode == http.StatusTooManyRequests {
			p.log.WithFields(fields).WithError(err).Warn("Stripe unavailable")
			return fmt.Errorf("%s: %w", op, ErrProviderUnavailable)
		}
		p.log.WithFields(fields).WithError(err).Warn("Stripe rejected request")
		return &ProviderRejectedError{Reason: stripeErr.Msg}
	}

	p.log.WithField("operation", op).WithError(err).Warn("Stripe request failed")
	return fmt.Errorf("%s: %v: %w", op, err, ErrProviderUnavailable)
}

func buildSessionParams(req *SessionRequest, now time.Time) *stripe.CheckoutSessionParams {
	lineItems := make([]*stripe.CheckoutSessionLineItemParams, 0, len(req.LineItems))
	for _, item := range req.LineItems {
		product := &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
			Name: stripe.String(item.Name),
		}
		if item.Description != "" {
			product.Description = stripe.String(item.Description)
		}
		if item.ImageURL != "" {
			product.Images = []*string{stripe.String(item.ImageURL)}
		}

		lineItems = append(lineItems, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:    stripe.String(req.Currency),
				UnitAmount:  stripe.Int64(item.UnitAmount),
				ProductData: product,
			},
			Quantity: stripe.Int64(item.Quantity),
		})
	}

	params := &stripe.CheckoutSessionParams{
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		PaymentMethodTypes: []*string{stripe.String("card")},
		LineItems:          lineItems,
		SuccessURL:         stripe.String(req.SuccessURL),
		CancelURL:          stripe.String(req.CancelURL),
		ExpiresAt:          stripe.Int64(clampExpiry(req.ExpiresAt, now).Unix()),
	}
	if req.ClientReference != "" {
		params.ClientReferenceID = stripe.String(req.ClientReference)
	}
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}
	return params
}

// clampExpiry keeps expiresAt inside the window Stripe accepts
func clampExpiry(expiresAt, now time.Time) time.Time {
	// one extra minute covers clock skew and request latency
	lower := now.Add(stripeMinSessionTTL + time.Minute)
	upper := now.Add(stripeMaxSessionTTL - time.Minute)
	if expiresAt.Before(lower) {
		return lower
	}
	if expiresAt.After(upper) {
		return upper
	}
	return expiresAt
}

func sessionStatusOf(sess *stripe.CheckoutSession) *SessionStatus {
	status := &SessionStatus{
		ID:            sess.ID,
		PaymentStatus: string(sess.PaymentStatus),
		Status:        string(sess.Status),
	}
	if sess.PaymentIntent != nil {
		status.PaymentIntent = sess.PaymentIntent.ID
	}
	return status
}
