package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache_Redis(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	defer rdb.Close()

	c := NewCache(rdb, "test:"+t.Name()+":")

	var got []float32
	assert.ErrorIs(t, c.Get(ctx, "vec", &got), ErrMiss)

	require.NoError(t, c.Set(ctx, "vec", []float32{0.5, -1}, time.Minute))
	require.NoError(t, c.Get(ctx, "vec", &got))
	assert.Equal(t, []float32{0.5, -1}, got)

	require.NoError(t, c.Delete(ctx, "vec"))
	assert.ErrorIs(t, c.Get(ctx, "vec", &got), ErrMiss)
}
