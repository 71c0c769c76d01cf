package session

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()

	ctx := context.Background()
	store := NewRedis(client, "test:session:")
	s := Session{ID: "abc", Email: "a@b.com", InstructorID: 7, BackendToken: "tok", CreatedAt: epoch, ExpiresAt: epoch.Add(time.Hour)}
	require.NoError(t, store.Save(ctx, s, time.Minute))

	got, err := store.Get(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, s.InstructorID, got.InstructorID)
	assert.Equal(t, s.BackendToken, got.BackendToken)
	assert.True(t, s.ExpiresAt.Equal(got.ExpiresAt))

	ttl, err := client.TTL(ctx, "test:session:abc").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))

	require.NoError(t, store.Delete(ctx, "abc"))
	_, err = store.Get(ctx, "abc")
	assert.ErrorIs(t, err, ErrNotFound)
}
