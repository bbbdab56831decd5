package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"restaurant-pos/internal/config"
)

func TestRedis_JSONRoundTrip(t *testing.T) {
	addr := os.Getenv("POS_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("POS_TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()
	r := NewRedis(config.RedisConfig{Addr: addr, PoolSize: 2})
	defer r.Close()
	require.NoError(t, r.Ping(ctx))

	key := "test:" + uuid.NewString()
	type payload struct {
		Name string `json:"name"`
	}

	var got payload
	assert.ErrorIs(t, r.GetJSON(ctx, key, &got), ErrMiss)

	require.NoError(t, r.SetJSON(ctx, key, payload{Name: "Paneer Tikka"}, time.Minute))
	require.NoError(t, r.GetJSON(ctx, key, &got))
	assert.Equal(t, "Paneer Tikka", got.Name)

	require.NoError(t, r.Del(ctx, key))
	assert.ErrorIs(t, r.GetJSON(ctx, key, &got), ErrMiss)
}
