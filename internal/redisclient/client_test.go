package redisclient

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	return New(rdb), mr
}

func TestSessionRoundTrip(t *testing.T) {
	c, mr := newTestClient(t)
	ctx := context.Background()

	err := c.SaveSession(ctx, "abc", map[string]interface{}{"user_id": 7, "name": "Ana"}, time.Hour)
	require.NoError(t, err)

	fields, err := c.LoadSession(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, "7", fields["user_id"])
	assert.Equal(t, "Ana", fields["name"])
	assert.Equal(t, time.Hour, mr.TTL("session:abc"))

	require.NoError(t, c.DeleteSessionFields(ctx, "abc", "name"))
	fields, err = c.LoadSession(ctx, "abc")
	require.NoError(t, err)
	assert.NotContains(t, fields, "name")

	mr.FastForward(2 * time.Hour)
	fields, err = c.LoadSession(ctx, "abc")
	require.NoError(t, err)
	assert.Nil(t, fields)
}

func TestDeleteSession(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, c.SaveSession(ctx, "s1", map[string]interface{}{"user_id": 1}, time.Hour))
	require.NoError(t, c.DeleteSession(ctx, "s1"))

	fields, err := c.LoadSession(ctx, "s1")
	require.NoError(t, err)
	assert.Nil(t, fields)
}

func TestIdempotencyKey(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	exists, err := c.CheckIdempotencyKey(ctx, "payment-verify:42")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, c.SetIdempotencyKey(ctx, "payment-verify:42", "paid", time.Minute))

	exists, err = c.CheckIdempotencyKey(ctx, "payment-verify:42")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestLockIsExclusiveAndOwned(t *testing.T) {
	c, mr := newTestClient(t)
	ctx := context.Background()

	token, err := c.AcquireLock(ctx, "order:42", time.Minute)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	second, err := c.AcquireLock(ctx, "order:42", time.Minute)
	require.NoError(t, err)
	assert.Empty(t, second)

	require.NoError(t, c.ReleaseLock(ctx, "order:42", "someone-else"))
	assert.True(t, mr.Exists("lock:order:42"))

	require.NoError(t, c.ReleaseLock(ctx, "order:42", token))
	assert.False(t, mr.Exists("lock:order:42"))
}

func TestCache(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	_, ok, err := c.CacheGet(ctx, "reco:home:1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.CacheSet(ctx, "reco:home:1", []byte(`[1,2]`), time.Minute))
	value, ok, err := c.CacheGet(ctx, "reco:home:1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `[1,2]`, string(value))

	require.NoError(t, c.CacheDelete(ctx, "reco:home:1"))
	_, ok, err = c.CacheGet(ctx, "reco:home:1")
	require.NoError(t, err)
	assert.False(t, ok)
}
