package redisstore

import (
	"context"
	"testing"
	"time"

	"github.com/Zhima-Mochi/stock-ledger/internal/domain/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenStore_ConsumeOnce(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestRedis(t)
	s := NewTokenStore(client, nil)
	key := token.Key{Scene: "checkout", UserID: "u1"}

	require.NoError(t, s.Put(ctx, key, "abc", 0))
	assert.Equal(t, token.DefaultTTL, mr.TTL("token:checkout:u1"))

	res, err := s.Consume(ctx, key, "abc")
	require.NoError(t, err)
	assert.Equal(t, token.Valid, res)

	res, err = s.Consume(ctx, key, "abc")
	require.NoError(t, err)
	assert.Equal(t, token.NotFoundOrExpired, res)
}

func TestTokenStore_MismatchKeepsToken(t *testing.T) {
	ctx := context.Background()
	_, client := newTestRedis(t)
	s := NewTokenStore(client, nil)
	key := token.Key{Scene: "checkout", UserID: "u1", BizID: "o1"}
	require.NoError(t, s.Put(ctx, key, "abc", time.Minute))

	res, err := s.Consume(ctx, key, "zzz")
	require.NoError(t, err)
	assert.Equal(t, token.Mismatch, res)

	res, err = s.Consume(ctx, key, "abc")
	require.NoError(t, err)
	assert.Equal(t, token.Valid, res)
}

func TestTokenStore_ScenesAreIsolated(t *testing.T) {
	ctx := context.Background()
	_, client := newTestRedis(t)
	s := NewTokenStore(client, nil)
	require.NoError(t, s.Put(ctx, token.Key{Scene: "checkout", UserID: "u1"}, "abc", time.Minute))

	res, err := s.Consume(ctx, token.Key{Scene: "refund", UserID: "u1"}, "abc")
	require.NoError(t, err)
	assert.Equal(t, token.NotFoundOrExpired, res)

	res, err = s.Consume(ctx, token.Key{Scene: "checkout", UserID: "u1", BizID: "x"}, "abc")
	require.NoError(t, err)
	assert.Equal(t, token.NotFoundOrExpired, res)
}

func TestTokenStore_Expiry(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestRedis(t)
	s := NewTokenStore(client, nil)
	key := token.Key{Scene: "checkout", UserID: "u1"}
	require.NoError(t, s.Put(ctx, key, "abc", 5*time.Second))

	mr.FastForward(6 * time.Second)
	res, err := s.Consume(ctx, key, "abc")
	require.NoError(t, err)
	assert.Equal(t, token.NotFoundOrExpired, res)
}

func TestTokenStore_Delete(t *testing.T) {
	ctx := context.Background()
	_, client := newTestRedis(t)
	s := NewTokenStore(client, nil)
	key := token.Key{Scene: "checkout", UserID: "u1"}
	require.NoError(t, s.Put(ctx, key, "abc", time.Minute))

	ok, err := s.Delete(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Delete(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)
}
