package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/your-org/marketplace-backend/internal/config"
	"github.com/your-org/marketplace-backend/internal/domain/cart"
	"github.com/your-org/marketplace-backend/internal/domain/catalog"
	"github.com/your-org/marketplace-backend/internal/domain/checkout"
	"github.com/your-org/marketplace-backend/internal/domain/payment"
	"github.com/your-org/marketplace-backend/internal/domain/purchasable"
	"github.com/your-org/marketplace-backend/internal/domain/wishlist"
	redisstore "github.com/your-org/marketplace-backend/internal/infrastructure/database/redis"
	"github.com/your-org/marketplace-backend/internal/testutil"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"invalid quantity", cart.ErrInvalidQuantity, http.StatusBadRequest},
		{"unknown kind", fmt.Errorf("%w: %q", purchasable.ErrUnknownKind, "course"), http.StatusBadRequest},
		{"catalog validation", fmt.Errorf("%w: price must be positive", catalog.ErrInvalidInput), http.StatusBadRequest},
		{"empty cart", checkout.ErrEmptyCart, http.StatusBadRequest},
		{"zero total", checkout.ErrZeroTotal, http.StatusBadRequest},
		{"bad signature", payment.ErrInvalidSignature, http.StatusBadRequest},
		{"not owner", catalog.ErrForbidden, http.StatusForbidden},
		{"missing item", fmt.Errorf("resolve: %w", purchasable.ErrNotFound), http.StatusNotFound},
		{"not wishlisted", wishlist.ErrNotInWishlist, http.StatusNotFound},
		{"missing payment", payment.ErrNotFound, http.StatusNotFound},
		{"key in flight", redisstore.ErrRequestInProgress, http.StatusConflict},
		{"rejected", fmt.Errorf("create: %w", &payment.ProviderRejectedError{Reason: "card_declined"}), http.StatusPaymentRequired},
		{"provider down", fmt.Errorf("create: %w", payment.ErrProviderUnavailable), http.StatusServiceUnavailable},
		{"deadline", context.DeadlineExceeded, http.StatusGatewayTimeout},
		{"unexpected", errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _ := statusFor(tt.err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRespondHidesDetailsUnlessDebug(t *testing.T) {
	gin.SetMode(gin.TestMode)

	for _, debug := range []bool{false, true} {
		t.Run(fmt.Sprintf("debug=%v", debug), func(t *testing.T) {
			r := errorResponder{
				config: &config.Config{App: config.AppConfig{Environment: "development", Debug: debug}},
				log:    testutil.NewLogger(),
			}

			rec := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(rec)
			c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

			r.respond(c, errors.New("pq: relation missing"), "Failed to retrieve cart")

			require.Equal(t, http.StatusInternalServerError, rec.Code)
			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, "Failed to retrieve cart", body["error"])
			if debug {
				assert.Equal(t, "pq: relation missing", body["details"])
			} else {
				assert.NotContains(t, body, "details")
			}
		})
	}
}
