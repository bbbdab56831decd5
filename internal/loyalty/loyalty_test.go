package loyalty

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

func TestClient_BalanceAndRedeem(t *testing.T) {
	var (
		redeemed redeemRequest
		reversed string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/customers/c-1/balance":
			_ = json.NewEncoder(w).Encode(map[string]interface{}{"points": 120, "redeem_rate": "0.1", "point_value": "1"})
		case r.Method == http.MethodPost && r.URL.Path == "/customers/c-1/redemptions":
			_ = json.NewDecoder(r.Body).Decode(&redeemed)
			w.WriteHeader(http.StatusCreated)
		case r.Method == http.MethodDelete && r.URL.Path == "/customers/c-1/redemptions/ORD_1":
			reversed = "ORD_1"
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := NewClient(jsonclient.New(srv.URL, time.Second))
	ctx := context.Background()

	b, err := c.Balance(ctx, "c-1")
	require.NoError(t, err)
	assert.Equal(t, int64(120), b.Points)
	assert.True(t, b.RedeemRate.Equal(decimal.RequireFromString("0.1")))
	assert.Equal(t, "c-1", b.CustomerID)

	require.NoError(t, c.Redeem(ctx, "c-1", 47, "ORD_1"))
	assert.Equal(t, int64(47), redeemed.Points)
	assert.Equal(t, "ORD_1", redeemed.OrderNumber)

	require.NoError(t, c.Reverse(ctx, "c-1", "ORD_1"))
	assert.Equal(t, "ORD_1", reversed)

	_, err = c.Balance(ctx, "c-2")
	assert.ErrorIs(t, err, models.ErrNotFound)

	_, err = c.Balance(ctx, "")
	assert.ErrorIs(t, err, models.ErrValidation)
}
