package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	srv := miniredis.RunT(t)
	r, err := NewRedis(context.Background(), RedisConfig{Addr: srv.Addr(), Prefix: "breakscan:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return r, srv
}

func TestRedis_GetMissing(t *testing.T) {
	r, _ := newTestRedis(t)

	v, ok, err := r.Get(context.Background(), "universe:sp500")
	require.NoError(t, err, "a missing key is not an error")
	assert.False(t, ok)
	assert.Nil(t, v)
}

func TestRedis_SetPrefixesKeyAndTTL(t *testing.T) {
	ctx := context.Background()
	r, srv := newTestRedis(t)

	require.NoError(t, r.Set(ctx, "universe:sp500", []byte("AAPL\nMSFT"), 24*time.Hour))

	raw, err := srv.Get("breakscan:universe:sp500")
	require.NoError(t, err)
	assert.Equal(t, "AAPL\nMSFT", raw)
	assert.Equal(t, 24*time.Hour, srv.TTL("breakscan:universe:sp500"))
	assert.False(t, srv.Exists("universe:sp500"))

	got, ok, err := r.Get(ctx, "universe:sp500")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "AAPL\nMSFT", string(got))

	srv.FastForward(24 * time.Hour)
	_, ok, err = r.Get(ctx, "universe:sp500")
	require.NoError(t, err)
	assert.False(t, ok, "expired entry is a miss")
}

func TestRedis_SetWithoutExpiry(t *testing.T) {
	ctx := context.Background()
	r, srv := newTestRedis(t)

	require.NoError(t, r.Set(ctx, "k", []byte("v"), 0))
	require.NoError(t, r.Set(ctx, "neg", []byte("v"), -time.Minute))
	require.NoError(t, r.Set(ctx, "ms", []byte("v"), 1500*time.Millisecond))

	assert.Zero(t, srv.TTL("breakscan:k"))
	assert.Zero(t, srv.TTL("breakscan:neg"))
	assert.True(t, srv.Exists("breakscan:neg"))
	assert.Equal(t, 1500*time.Millisecond, srv.TTL("breakscan:ms"))
}

func TestRedis_ServerErrors(t *testing.T) {
	ctx := context.Background()
	r, srv := newTestRedis(t)
	require.NoError(t, srv.Set("breakscan:k", "v"))
	srv.SetError("OOM command not allowed when used memory > 'maxmemory'")

	_, ok, err := r.Get(ctx, "k")
	require.Error(t, err)
	assert.False(t, ok)
	assert.Contains(t, err.Error(), "redis get k")

	err = r.Set(ctx, "k", []byte("v"), time.Minute)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis set k")
}

func TestNewRedis_Unreachable(t *testing.T) {
	srv := miniredis.RunT(t)
	addr := srv.Addr()
	srv.Close()

	_, err := NewRedis(context.Background(), RedisConfig{Addr: addr})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis ping")
}
