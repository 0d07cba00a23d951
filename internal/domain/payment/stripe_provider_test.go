package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76"
	"github.com/your-org/marketplace-backend/internal/testutil"
)

func newTestStripe(t *testing.T, handler http.HandlerFunc) *StripeProvider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return stripeAt(srv.URL, "whsec_test")
}

func stripeAt(url, secret string) *StripeProvider {
	backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		URL:               stripe.String(url),
		MaxNetworkRetries: stripe.Int64(0),
		LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelNull},
	})
	backends := &stripe.Backends{API: backend, Connect: backend, Uploads: backend}
	return newStripeProvider("sk_test_123", secret, backends, testutil.NewLogger())
}

func TestStripeCreateSession(t *testing.T) {
	var form map[string]string
	provider := newTestStripe(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/checkout/sessions", r.URL.Path)
		require.NoError(t, r.ParseForm())
		form = make(map[string]string)
		for k := range r.PostForm {
			form[k] = r.PostForm.Get(k)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"cs_test_1","object":"checkout.session","url":"https://checkout.stripe.com/c/pay/cs_test_1","payment_status":"unpaid","status":"open","expires_at":1893456000}`)
	})

	sess, err := provider.CreateSession(context.Background(), &SessionRequest{
		Currency: "usd",
		LineItems: []SessionLineItem{
			{Name: "Logo design", UnitAmount: 2000, Quantity: 2, ImageURL: "https://cdn.example.com/logo.png"},
			{Name: "Mentorship: Go", Description: "Mentorship session", UnitAmount: 4500, Quantity: 1},
		},
		SuccessURL:      "https://app.example.com/success",
		CancelURL:       "https://app.example.com/cancel",
		ExpiresAt:       time.Now().Add(time.Hour),
		ClientReference: "user-1",
		Metadata:        map[string]string{"cart_digest": "abc"},
	})
	require.NoError(t, err)

	assert.Equal(t, "cs_test_1", sess.ID)
	assert.Equal(t, "https://checkout.stripe.com/c/pay/cs_test_1", sess.URL)
	assert.Equal(t, int64(1893456000), sess.ExpiresAt.Unix())

	assert.Equal(t, "payment", form["mode"])
	assert.Equal(t, "2000", form["line_items[0][price_data][unit_amount]"])
	assert.Equal(t, "2", form["line_items[0][quantity]"])
	assert.Equal(t, "https://cdn.example.com/logo.png", form["line_items[0][price_data][product_data][images][0]"])
	assert.Equal(t, "4500", form["line_items[1][price_data][unit_amount]"])
	assert.Equal(t, "usd", form["line_items[1][price_data][currency]"])
	assert.Equal(t, "user-1", form["client_reference_id"])
	assert.Equal(t, "abc", form["metadata[cart_digest]"])
}

func TestStripeErrorMapping(t *testing.T) {
	t.Run("client error is a rejection", func(t *testing.T) {
		provider := newTestStripe(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, `{"error":{"type":"invalid_request_error","message":"Invalid currency: xyz"}}`)
		})

		_, err := provider.RetrieveSession(context.Background(), "cs_test_1")
		var rejected *ProviderRejectedError
		require.True(t, errors.As(err, &rejected), "got %v", err)
		assert.Equal(t, "Invalid currency: xyz", rejected.Reason)
	})

	t.Run("server error is unavailable", func(t *testing.T) {
		provider := newTestStripe(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			fmt.Fprint(w, `{"error":{"type":"api_error","message":"try later"}}`)
		})

		err := provider.ExpireSession(context.Background(), "cs_test_1")
		assert.ErrorIs(t, err, ErrProviderUnavailable)
	})

	t.Run("network error is unavailable", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()

		_, err := stripeAt(url, "").RetrieveSession(context.Background(), "cs_test_1")
		assert.ErrorIs(t, err, ErrProviderUnavailable)
	})
}

func TestStripeRetrieveSession(t *testing.T) {
	provider := newTestStripe(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/checkout/sessions/cs_test_9", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"cs_test_9","object":"checkout.session","payment_status":"paid","status":"complete","payment_intent":"pi_42"}`)
	})

	status, err := provider.RetrieveSession(context.Background(), "cs_test_9")
	require.NoError(t, err)
	assert.True(t, status.Paid())
	assert.False(t, status.Expired())
	assert.Equal(t, "pi_42", status.PaymentIntent)
}

func TestClampExpiry(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, now.Add(31*time.Minute), clampExpiry(now.Add(5*time.Minute), now))
	assert.Equal(t, now.Add(2*time.Hour), clampExpiry(now.Add(2*time.Hour), now))
	assert.Equal(t, now.Add(24*time.Hour-time.Minute), clampExpiry(now.Add(48*time.Hour), now))
}

func signPayload(secret string, payload []byte, ts time.Time) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", ts.Unix(), payload)
	return fmt.Sprintf("t=%d,v1=%s", ts.Unix(), hex.EncodeToString(mac.Sum(nil)))
}

func TestParseWebhook(t *testing.T) {
	provider := stripeAt("http://127.0.0.1:1", "whsec_test")
	payload := []byte(`{"id":"evt_1","object":"event","api_version":"2023-10-16","type":"checkout.session.completed","data":{"object":{"id":"cs_test_1","object":"checkout.session","payment_status":"paid","status":"complete","payment_intent":"pi_7"}}}`)

	event, err := provider.ParseWebhook(payload, signPayload("whsec_test", payload, time.Now()))
	require.NoError(t, err)
	require.NotNil(t, event)
	assert.Equal(t, EventSessionCompleted, event.Type)
	assert.Equal(t, "cs_test_1", event.Session.ID)
	assert.Equal(t, "pi_7", event.Session.PaymentIntent)
	assert.True(t, event.Session.Paid())

	_, err = provider.ParseWebhook(payload, signPayload("whsec_wrong", payload, time.Now()))
	assert.ErrorIs(t, err, ErrInvalidSignature)

	other := []byte(`{"id":"evt_2","object":"event","api_version":"2023-10-16","type":"customer.created","data":{"object":{"id":"cus_1","object":"customer"}}}`)
	event, err = provider.ParseWebhook(other, signPayload("whsec_test", other, time.Now()))
	require.NoError(t, err)
	assert.Nil(t, event)
}
