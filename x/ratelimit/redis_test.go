package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/meowerlab/meower/internal/testutil"
)

func TestRedisStore(t *testing.T) {
	if testing.Short() {
		t.Skip("requires docker")
	}

	ctx := context.Background()
	rdb, cleanup := testutil.CreateRDB()
	defer cleanup()

	store := NewRedisStore(rdb, "test:ratelimit:", time.Second, 1)

	decision, err := store.Allow(ctx, "10.0.0.1")
	assert.NoError(t, err)
	assert.True(t, decision.Allowed)

	decision, err = store.Allow(ctx, "10.0.0.1")
	assert.NoError(t, err)
	assert.False(t, decision.Allowed)
	assert.Greater(t, decision.RetryAfter, time.Duration(0))
	assert.LessOrEqual(t, decision.RetryAfter, time.Second)

	decision, err = store.Allow(ctx, "10.0.0.2")
	assert.NoError(t, err)
	assert.True(t, decision.Allowed)

	ttl, err := rdb.PTTL(ctx, "test:ratelimit:10.0.0.1").Result()
	assert.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))

	time.Sleep(1100 * time.Millisecond)

	decision, err = store.Allow(ctx, "10.0.0.1")
	assert.NoError(t, err)
	assert.True(t, decision.Allowed)
}
