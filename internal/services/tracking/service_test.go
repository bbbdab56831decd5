package tracking

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"restaurant-pos/internal/logger"
	"restaurant-pos/internal/models"
	"restaurant-pos/internal/store"
)

var at = time.Date(2026, 3, 14, 19, 30, 0, 0, time.UTC)

func seed(t *testing.T) *store.Memory {
	t.Helper()
	mem := store.NewMemory()
	ctx := context.Background()
	require.NoError(t, mem.Atomic(ctx, func(tx store.Tx) error {
		if err := tx.SaveOrder(ctx, &models.Order{
			Number:        "ORD_20260314_001",
			TicketNumber:  "KOT_20260314_001",
			Status:        models.StatusPreparing,
			PayableAmount: decimal.RequireFromString("588"),
			CreatedAt:     at,
		}); err != nil {
			return err
		}
		if err := tx.SaveTicket(ctx, &models.KitchenTicket{
			Number:      "KOT_20260314_001",
			OrderNumber: "ORD_20260314_001",
			Status:      models.TicketPreparing,
			CreatedAt:   at,
		}); err != nil {
			return err
		}
		for i, status := range []models.OrderStatus{models.StatusPending, models.StatusPreparing} {
			if err := tx.AppendStatusLog(ctx, store.StatusLogEntry{
				OrderNumber: "ORD_20260314_001",
				Status:      string(status),
				ChangedBy:   "waiter:w1",
				ChangedAt:   at.Add(time.Duration(i) * time.Minute),
			}); err != nil {
				return err
			}
		}
		return nil
	}))
	return mem
}

func TestGetOrderStatus(t *testing.T) {
	svc := NewService(seed(t), logger.NewNop())

	status, err := svc.GetOrderStatus(context.Background(), "ORD_20260314_001", "req")
	require.NoError(t, err)
	assert.Equal(t, "preparing", status.CurrentStatus)
	assert.Equal(t, models.TicketPreparing, status.TicketStatus)
	assert.True(t, status.PayableAmount.Equal(decimal.RequireFromString("588")))

	_, err = svc.GetOrderStatus(context.Background(), "ORD_20260314_404", "req")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestGetOrderHistory(t *testing.T) {
	svc := NewService(seed(t), logger.NewNop())

	history, err := svc.GetOrderHistory(context.Background(), "ORD_20260314_001", "req")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "pending", history[0].Status)
	assert.Equal(t, "preparing", history[1].Status)

	_, err = svc.GetOrderHistory(context.Background(), "ORD_20260314_404", "req")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestHandler_History(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewHandler(NewService(seed(t), logger.NewNop()), logger.NewNop()).Register(r)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/orders/ORD_20260314_001/history", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var history []store.StatusLogEntry
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &history))
	assert.Len(t, history, 2)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/orders/ORD_20260314_404/history", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
