package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/your-org/marketplace-backend/internal/app"
	"github.com/your-org/marketplace-backend/internal/config"
	"github.com/your-org/marketplace-backend/internal/domain/checkout"
	"github.com/your-org/marketplace-backend/internal/domain/payment"
	"github.com/your-org/marketplace-backend/internal/infrastructure/database/postgres"
	redisstore "github.com/your-org/marketplace-backend/internal/infrastructure/database/redis"
	"github.com/your-org/marketplace-backend/internal/pkg/auth"
	"github.com/your-org/marketplace-backend/internal/pkg/metrics"
	"github.com/your-org/marketplace-backend/internal/testutil"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubProvider struct {
	mu          sync.Mutex
	seq         int
	sessions    map[string]*payment.SessionStatus
	createErr   error
	createCalls int
}

func (p *stubProvider) CreateSession(_ context.Context, req *payment.SessionRequest) (*payment.Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.createCalls++
	if p.createErr != nil {
		return nil, p.createErr
	}
	p.seq++
	id := fmt.Sprintf("cs_http_%d", p.seq)
	p.sessions[id] = &payment.SessionStatus{ID: id, PaymentStatus: payment.PaymentStatusUnpaid, Status: payment.SessionStateOpen}
	return &payment.Session{ID: id, URL: "https://pay.example.com/" + id, ExpiresAt: req.ExpiresAt}, nil
}

func (p *stubProvider) RetrieveSession(_ context.Context, id string) (*payment.SessionStatus, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	sess, ok := p.sessions[id]
	if !ok {
		return nil, &payment.ProviderRejectedError{Reason: "No such checkout.session"}
	}
	copied := *sess
	return &copied, nil
}

func (p *stubProvider) ExpireSession(_ context.Context, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sessions[id].Status = payment.SessionStateExpired
	return nil
}

func (p *stubProvider) pay(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sessions[id].PaymentStatus = payment.PaymentStatusPaid
	p.sessions[id].Status = payment.SessionStateComplete
	p.sessions[id].PaymentIntent = "pi_" + id
}

type stubReceipts struct{}

func (stubReceipts) GenerateReceipt(record *payment.Record) (*bytes.Buffer, error) {
	return bytes.NewBufferString("%PDF-1.4 " + record.ID.String()), nil
}

type stubWebhooks struct {
	event *payment.SessionEvent
	err   error
}

func (s *stubWebhooks) ParseWebhook(_ []byte, signature string) (*payment.SessionEvent, error) {
	if signature == "" {
		return nil, payment.ErrInvalidSignature
	}
	return s.event, s.err
}

type testServer struct {
	t         *testing.T
	handler   http.Handler
	provider  *stubProvider
	webhooks  *stubWebhooks
	jwt       *auth.JWTManager
	metrics   *metrics.Metrics
	buyer     uuid.UUID
	buyerTok  string
	sellerTok string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	cfg := &config.Config{
		App: config.AppConfig{Name: "Marketplace", Environment: "test"},
		JWT: config.JWTConfig{
			Secret:            "http-test-secret-that-is-long-enough",
			Issuer:            "marketplace-test",
			AccessTokenExpiry: time.Hour,
		},
		Checkout: config.CheckoutConfig{
			Currency:       "usd",
			SessionTTL:     time.Hour,
			SuccessURL:     "https://app.example.com/checkout/success",
			CancelURL:      "https://app.example.com/checkout/cancel",
			IdempotencyTTL: time.Hour,
		},
		Catalog: config.CatalogConfig{MentorshipRatePerMinute: decimal.RequireFromString("2.50")},
		Server:  config.ServerConfig{RequestTimeout: 5 * time.Second},
	}

	db := testutil.NewDB(t, postgres.Models()...)
	log := testutil.NewLogger()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	provider := &stubProvider{sessions: make(map[string]*payment.SessionStatus)}
	webhooks := &stubWebhooks{}
	m := metrics.New()

	container := app.NewContainer(cfg, log, db, provider, checkout.WithRecorder(m))
	h := container.Handlers(cfg, log, app.HTTPDeps{
		Idempotency: redisstore.NewIdempotencyStore(rdb, cfg.Checkout.IdempotencyTTL),
		Receipts:    stubReceipts{},
		Webhooks:    webhooks,
	})

	jwtManager := auth.NewJWTManager(cfg)
	server := NewServer(cfg, log, Deps{
		DB:          db,
		RedisClient: rdb,
		Metrics:     m,
		JWT:         jwtManager,
		Handlers:    h,
	})

	ts := &testServer{
		t:        t,
		handler:  server.Handler(),
		provider: provider,
		webhooks: webhooks,
		jwt:      jwtManager,
		metrics:  m,
		buyer:    uuid.New(),
	}
	var err error
	ts.buyerTok, err = jwtManager.GenerateAccessToken(ts.buyer, "buyer@example.com", []auth.Role{auth.RoleClient})
	require.NoError(t, err)
	ts.sellerTok, err = jwtManager.GenerateAccessToken(uuid.New(), "seller@example.com", []auth.Role{auth.RoleFreelancer})
	require.NoError(t, err)
	return ts
}

func (ts *testServer) do(method, path, token string, body interface{}, headers ...string) *httptest.ResponseRecorder {
	ts.t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(ts.t, err)
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

// seedCart lists a 20.00 service and an 18 minute mentorship, then adds 2 + 1 to the buyer's cart
func (ts *testServer) seedCart() (serviceID, mentorshipID string) {
	t := ts.t

	rec := ts.do(http.MethodPost, "/api/v1/services", ts.sellerTok, gin.H{"title": "Logo design", "price": "20.00"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	serviceID = decode(t, rec)["data"].(map[string]interface{})["id"].(string)

	rec = ts.do(http.MethodPost, "/api/v1/mentorships", ts.sellerTok, gin.H{
		"topic":            "Go",
		"start_time":       time.Now().Add(48 * time.Hour).UTC().Format(time.RFC3339),
		"duration_minutes": 18,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	mentorshipID = decode(t, rec)["data"].(map[string]interface{})["id"].(string)

	rec = ts.do(http.MethodPost, "/api/v1/cart/items", ts.buyerTok, gin.H{"kind": "service", "item_id": serviceID, "quantity": 2})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = ts.do(http.MethodPost, "/api/v1/cart/items", ts.buyerTok, gin.H{"kind": "mentorship_session", "item_id": mentorshipID})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return serviceID, mentorshipID
}

func TestCheckoutFlow(t *testing.T) {
	ts := newTestServer(t)
	ts.seedCart()

	rec := ts.do(http.MethodGet, "/api/v1/cart", ts.buyerTok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	totals := decode(t, rec)["data"].(map[string]interface{})["totals"].(map[string]interface{})
	assert.Equal(t, "85", totals["sub_total"])
	assert.EqualValues(t, 3, totals["total_quantity"])

	rec = ts.do(http.MethodPost, "/api/v1/checkout", ts.buyerTok, nil, "Idempotency-Key", "order-1")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	first := rec.Body.String()
	data := decode(t, rec)["data"].(map[string]interface{})
	sessionID := data["session_id"].(string)
	assert.Equal(t, "https://pay.example.com/"+sessionID, data["checkout_url"])

	rec = ts.do(http.MethodPost, "/api/v1/checkout", ts.buyerTok, nil, "Idempotency-Key", "order-1")
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "true", rec.Header().Get("Idempotent-Replayed"))
	assert.Equal(t, first, rec.Body.String())
	assert.Equal(t, 1, ts.provider.createCalls)

	// Not paid yet: the record stays pending and the cart is kept
	rec = ts.do(http.MethodGet, "/api/v1/checkout/success?session_id="+sessionID, ts.buyerTok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "pending", decode(t, rec)["data"].(map[string]interface{})["status"])

	ts.provider.pay(sessionID)
	rec = ts.do(http.MethodGet, "/api/v1/checkout/success?session_id="+sessionID, ts.buyerTok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	record := decode(t, rec)["data"].(map[string]interface{})
	assert.Equal(t, "succeeded", record["status"])
	paymentID := record["id"].(string)

	rec = ts.do(http.MethodGet, "/api/v1/cart/count", ts.buyerTok, nil)
	assert.EqualValues(t, 0, decode(t, rec)["data"].(map[string]interface{})["count"])

	rec = ts.do(http.MethodGet, "/api/v1/payments", ts.buyerTok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode(t, rec)["data"], 1)

	rec = ts.do(http.MethodGet, "/api/v1/payments/"+paymentID+"/receipt", ts.buyerTok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), paymentID)

	otherTok, err := ts.jwt.GenerateAccessToken(uuid.New(), "other@example.com", []auth.Role{auth.RoleClient})
	require.NoError(t, err)
	rec = ts.do(http.MethodGet, "/api/v1/payments/"+paymentID, otherTok, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCheckoutErrorMapping(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodPost, "/api/v1/checkout", ts.buyerTok, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	ts.seedCart()

	ts.provider.createErr = fmt.Errorf("stripe: %w", payment.ErrProviderUnavailable)
	rec = ts.do(http.MethodPost, "/api/v1/checkout", ts.buyerTok, nil, "Idempotency-Key", "retry-me")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	ts.provider.createErr = &payment.ProviderRejectedError{Reason: "Invalid currency"}
	rec = ts.do(http.MethodPost, "/api/v1/checkout", ts.buyerTok, nil, "Idempotency-Key", "retry-me")
	assert.Equal(t, http.StatusPaymentRequired, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "payment could not be processed, please try again", body["error"])
	assert.NotContains(t, body, "details")

	// The failed attempts released the key
	ts.provider.createErr = nil
	rec = ts.do(http.MethodPost, "/api/v1/checkout", ts.buyerTok, nil, "Idempotency-Key", "retry-me")
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestCancelKeepsCart(t *testing.T) {
	ts := newTestServer(t)
	ts.seedCart()

	rec := ts.do(http.MethodPost, "/api/v1/checkout", ts.buyerTok, nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = ts.do(http.MethodGet, "/api/v1/checkout/cancel", ts.buyerTok, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "canceled", decode(t, rec)["data"].(map[string]interface{})["status"])

	rec = ts.do(http.MethodGet, "/api/v1/cart/count", ts.buyerTok, nil)
	assert.EqualValues(t, 3, decode(t, rec)["data"].(map[string]interface{})["count"])
}

func TestCartValidation(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name string
		body gin.H
		want int
	}{
		{"unknown kind", gin.H{"kind": "course", "item_id": uuid.NewString()}, http.StatusBadRequest},
		{"bad id", gin.H{"kind": "service", "item_id": "abc"}, http.StatusBadRequest},
		{"negative quantity", gin.H{"kind": "service", "item_id": uuid.NewString(), "quantity": -1}, http.StatusBadRequest},
		{"missing item", gin.H{"kind": "service", "item_id": uuid.NewString()}, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(http.MethodPost, "/api/v1/cart/items", ts.buyerTok, tt.body)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}

	rec := ts.do(http.MethodGet, "/api/v1/cart", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ts.do(http.MethodDelete, "/api/v1/cart/items/course/"+uuid.NewString(), ts.buyerTok, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWishlistAndDeletionCleanup(t *testing.T) {
	ts := newTestServer(t)
	serviceID, _ := ts.seedCart()

	rec := ts.do(http.MethodPost, "/api/v1/wishlist/items", ts.buyerTok, gin.H{"kind": "services", "item_id": serviceID})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = ts.do(http.MethodPost, "/api/v1/wishlist/items/service/"+serviceID+"/move-to-cart", ts.buyerTok, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.EqualValues(t, 3, decode(t, rec)["data"].(map[string]interface{})["quantity"])

	rec = ts.do(http.MethodPost, "/api/v1/wishlist/items/service/"+serviceID+"/move-to-cart", ts.buyerTok, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(http.MethodDelete, "/api/v1/services/"+serviceID, ts.buyerTok, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = ts.do(http.MethodDelete, "/api/v1/services/"+serviceID, ts.sellerTok, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = ts.do(http.MethodGet, "/api/v1/cart", ts.buyerTok, nil)
	items := decode(t, rec)["data"].(map[string]interface{})["items"].([]interface{})
	require.Len(t, items, 1)
	assert.Equal(t, "mentorship_session", items[0].(map[string]interface{})["kind"])
}

func TestStripeWebhook(t *testing.T) {
	ts := newTestServer(t)
	ts.seedCart()

	rec := ts.do(http.MethodPost, "/api/v1/checkout", ts.buyerTok, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	sessionID := decode(t, rec)["data"].(map[string]interface{})["session_id"].(string)

	rec = ts.do(http.MethodPost, "/api/v1/webhooks/stripe", "", gin.H{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	ts.webhooks.event = &payment.SessionEvent{
		ID:   "evt_1",
		Type: payment.EventSessionCompleted,
		Session: payment.SessionStatus{
			ID:            sessionID,
			PaymentStatus: payment.PaymentStatusPaid,
			Status:        payment.SessionStateComplete,
			PaymentIntent: "pi_1",
		},
	}
	rec = ts.do(http.MethodPost, "/api/v1/webhooks/stripe", "", gin.H{}, "Stripe-Signature", "t=1,v1=abc")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = ts.do(http.MethodGet, "/api/v1/cart/count", ts.buyerTok, nil)
	assert.EqualValues(t, 0, decode(t, rec)["data"].(map[string]interface{})["count"])

	ts.webhooks.event = nil
	ts.webhooks.err = errors.New("boom")
	rec = ts.do(http.MethodPost, "/api/v1/webhooks/stripe", "", gin.H{}, "Stripe-Signature", "t=1,v1=abc")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", decode(t, rec)["status"])

	rec = ts.do(http.MethodGet, "/ready", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	ts.do(http.MethodPost, "/api/v1/checkout", ts.buyerTok, nil)

	rec = ts.do(http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `outcome="empty_cart"`)
	assert.Contains(t, rec.Body.String(), `route="/api/v1/checkout"`)
}
