package redis

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/desain-gratis/attachment/repository/limiter"
)

func Test_combine(t *testing.T) {
	assert.Equal(t, "policy|uploads|1.2.3.4", combine("policy", "uploads|1.2.3.4"))
}

// Runs against a real server when ATTACHMENT_TEST_REDIS is set, eg. "localhost:6379"
func TestAllow_Redis(t *testing.T) {
	addr := os.Getenv("ATTACHMENT_TEST_REDIS")
	if addr == "" {
		t.Skip("ATTACHMENT_TEST_REDIS is not set")
	}

	ctx := context.Background()
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()

	userID := "limiter-test-" + time.Now().Format("150405.000000")
	h := New(client)
	limit := limiter.Limit{Max: 2, Window: time.Minute}

	for i, want := range []bool{true, true, false} {
		ok, err := limiter.Allow(ctx, h, limit, userID, "k")
		require.Nil(t, err)
		assert.Equal(t, want, ok, "request %d", i+1)
	}

	counter, remaining, err := h.Get(ctx, userID, "k")
	require.Nil(t, err)
	assert.Equal(t, 3, counter)
	assert.Greater(t, remaining, time.Duration(0))
}
