package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := NewRedisClient(context.Background(), mr.Addr(), "")
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestNewRedisClient_RequiresAddr(t *testing.T) {
	_, err := NewRedisClient(context.Background(), " ", "")
	assert.Error(t, err)
}

func TestRedisRevoker(t *testing.T) {
	mr, client := newRedis(t)
	r := NewRedisRevoker(client)
	ctx := context.Background()

	require.NoError(t, r.Revoke(ctx, "jti-1", time.Now().Add(time.Minute)))
	revoked, err := r.Revoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)
	assert.True(t, mr.Exists("revoked:jti-1"))

	mr.FastForward(2 * time.Minute)
	revoked, err = r.Revoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, r.Revoke(ctx, "jti-2", time.Now().Add(-time.Second)))
	assert.False(t, mr.Exists("revoked:jti-2"))
}

func TestRedisRevoker_ReportsOutage(t *testing.T) {
	mr, client := newRedis(t)
	r := NewRedisRevoker(client)
	mr.Close()

	_, err := r.Revoked(context.Background(), "jti-1")
	assert.Error(t, err)
}

func TestMemoryRevoker_Expires(t *testing.T) {
	r := NewMemoryRevoker()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, r.Revoke(ctx, "jti", now.Add(time.Hour)))
	revoked, _ := r.Revoked(ctx, "jti")
	assert.True(t, revoked)

	now = now.Add(2 * time.Hour)
	revoked, _ = r.Revoked(ctx, "jti")
	assert.False(t, revoked)
}

func TestRedisDrafts(t *testing.T) {
	mr, client := newRedis(t)
	d := NewRedisDrafts(client, time.Hour)
	ctx := context.Background()

	_, err := d.Get(ctx, "draft:u:site-log")
	assert.ErrorIs(t, err, ErrMiss)

	require.NoError(t, d.Put(ctx, "draft:u:site-log", []byte(`{"blockName":"B"}`)))
	got, err := d.Get(ctx, "draft:u:site-log")
	require.NoError(t, err)
	assert.JSONEq(t, `{"blockName":"B"}`, string(got))
	assert.Equal(t, time.Hour, mr.TTL("draft:u:site-log"))

	require.NoError(t, d.Delete(ctx, "draft:u:site-log"))
	_, err = d.Get(ctx, "draft:u:site-log")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestMemoryDrafts_Expire(t *testing.T) {
	d := NewMemoryDrafts(time.Minute)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	d.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, d.Put(ctx, "k", []byte(`{}`)))
	_, err := d.Get(ctx, "k")
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	_, err = d.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrMiss)
}
