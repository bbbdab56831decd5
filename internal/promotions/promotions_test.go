package promotions

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"restaurant-pos/internal/jsonclient"
	"restaurant-pos/internal/models"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(jsonclient.New(srv.URL, time.Second))
}

func TestClient_Validate(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req validateRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		switch req.Code {
		case "TEN":
			_ = json.NewEncoder(w).Encode(map[string]interface{}{"valid": true, "percent": "10"})
		case "FLAT50":
			_ = json.NewEncoder(w).Encode(map[string]interface{}{"valid": true, "amount": "50"})
		default:
			_ = json.NewEncoder(w).Encode(map[string]interface{}{"valid": false, "reason": "unknown coupon"})
		}
	})
	ctx := context.Background()

	coupon, err := c.Validate(ctx, "TEN", decimal.NewFromInt(500))
	require.NoError(t, err)
	d := coupon.Discount()
	assert.Equal(t, models.DiscountCoupon, d.Kind)
	assert.True(t, d.Percent.Equal(decimal.NewFromInt(10)))

	coupon, err = c.Validate(ctx, " FLAT50 ", decimal.NewFromInt(500))
	require.NoError(t, err)
	assert.Equal(t, "FLAT50", coupon.Code)
	assert.True(t, coupon.Amount.Equal(decimal.NewFromInt(50)))

	_, err = c.Validate(ctx, "NOPE", decimal.NewFromInt(500))
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = c.Validate(ctx, "", decimal.NewFromInt(500))
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestClient_ServiceDown(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := c.Validate(context.Background(), "TEN", decimal.NewFromInt(100))
	assert.ErrorIs(t, err, models.ErrExternalService)
	assert.ErrorIs(t, c.Release(context.Background(), "TEN", "ORD_1"), models.ErrExternalService)
}
