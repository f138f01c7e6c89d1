package idempotency

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exerciseStore(t *testing.T, s Store, expire func(time.Duration)) {
	t.Helper()
	ctx := context.Background()

	resp, err := s.Claim(ctx, "org-1:k1")
	require.NoError(t, err)
	assert.Nil(t, resp)

	_, err = s.Claim(ctx, "org-1:k1")
	assert.ErrorIs(t, err, ErrInProgress)

	require.NoError(t, s.Complete(ctx, "org-1:k1", Response{StatusCode: 201, Body: []byte(`{"appointmentId":"a1"}`)}))
	resp, err = s.Claim(ctx, "org-1:k1")
	require.NoError(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, 201, resp.StatusCode)
	assert.JSONEq(t, `{"appointmentId":"a1"}`, string(resp.Body))

	resp, err = s.Claim(ctx, "org-1:k2")
	require.NoError(t, err)
	assert.Nil(t, resp)
	require.NoError(t, s.Release(ctx, "org-1:k2"))
	resp, err = s.Claim(ctx, "org-1:k2")
	require.NoError(t, err)
	assert.Nil(t, resp, "released keys can be claimed again")

	_, err = s.Claim(ctx, "org-1:k3")
	require.NoError(t, err)
	expire(PendingTTL + time.Second)
	resp, err = s.Claim(ctx, "org-1:k3")
	require.NoError(t, err)
	assert.Nil(t, resp, "abandoned claims stop blocking after PendingTTL")

	expire(2 * time.Hour)
	resp, err = s.Claim(ctx, "org-1:k1")
	require.NoError(t, err)
	assert.Nil(t, resp, "expired responses are not replayed")
}

func TestRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	s := NewRedisStore(rdb, time.Hour, "test:idem:")
	exerciseStore(t, s, mr.FastForward)

	ttl := mr.TTL("test:idem:org-1:k2")
	assert.Equal(t, time.Duration(0), ttl, "k2 expired with the fast-forward")
	assert.True(t, mr.Exists("test:idem:org-1:k1"))
}

func TestRedisStorePendingClaimUsesShortTTL(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	s := NewRedisStore(rdb, 24*time.Hour, "test:idem:")
	ctx := context.Background()
	_, err := s.Claim(ctx, "org-1:k")
	require.NoError(t, err)
	assert.Equal(t, PendingTTL, mr.TTL("test:idem:org-1:k"))

	require.NoError(t, s.Complete(ctx, "org-1:k", Response{StatusCode: 201, Body: []byte(`{}`)}))
	assert.Equal(t, 24*time.Hour, mr.TTL("test:idem:org-1:k"))
}

func TestRedisStoreUnavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })
	mr.Close()

	_, err := NewRedisStore(rdb, time.Hour, "").Claim(context.Background(), "k")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrInProgress)
}

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore(time.Hour)
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	exerciseStore(t, s, func(d time.Duration) { now = now.Add(d) })
}
