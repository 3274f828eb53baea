package token

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	domain "github.com/Zhima-Mochi/stock-ledger/internal/domain/token"
	"github.com/Zhima-Mochi/stock-ledger/internal/infrastructure/id"
	"github.com/Zhima-Mochi/stock-ledger/internal/infrastructure/redisstore"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newGuard(t *testing.T) (*Guard, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewGuard(redisstore.NewTokenStore(client, nil), id.NewUUIDGenerator(), 0, nil), mr
}

func TestGuard_GenerateThenConsumeOnce(t *testing.T) {
	ctx := context.Background()
	g, mr := newGuard(t)
	key := domain.Key{Scene: "checkout", UserID: "u1"}

	issued, err := g.Generate(ctx, key)
	require.NoError(t, err)
	assert.Len(t, issued.Token, 32)
	assert.Equal(t, domain.DefaultTTL, issued.TTL)
	assert.Equal(t, domain.DefaultTTL, mr.TTL("token:checkout:u1"))

	res, err := g.ValidateAndConsume(ctx, key, issued.Token)
	require.NoError(t, err)
	assert.Equal(t, domain.Valid, res)

	res, err = g.ValidateAndConsume(ctx, key, issued.Token)
	require.NoError(t, err)
	assert.Equal(t, domain.NotFoundOrExpired, res)
}

func TestGuard_RegenerateInvalidatesPrevious(t *testing.T) {
	ctx := context.Background()
	g, _ := newGuard(t)
	key := domain.Key{Scene: "checkout", UserID: "u1", BizID: "o1"}

	first, err := g.Generate(ctx, key)
	require.NoError(t, err)
	second, err := g.Generate(ctx, key)
	require.NoError(t, err)

	res, err := g.ValidateAndConsume(ctx, key, first.Token)
	require.NoError(t, err)
	assert.Equal(t, domain.Mismatch, res)

	res, err = g.ValidateAndConsume(ctx, key, second.Token)
	require.NoError(t, err)
	assert.Equal(t, domain.Valid, res)
}

func TestGuard_ConcurrentSubmitsOnlyOneWins(t *testing.T) {
	ctx := context.Background()
	g, _ := newGuard(t)
	key := domain.Key{Scene: "checkout", UserID: "u1"}
	issued, err := g.Generate(ctx, key)
	require.NoError(t, err)

	var (
		wg    sync.WaitGroup
		valid atomic.Int32
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if res, err := g.ValidateAndConsume(ctx, key, issued.Token); err == nil && res == domain.Valid {
				valid.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), valid.Load())
}

func TestGuard_ExpiredToken(t *testing.T) {
	ctx := context.Background()
	g, mr := newGuard(t)
	key := domain.Key{Scene: "checkout", UserID: "u1"}
	issued, err := g.Generate(ctx, key)
	require.NoError(t, err)

	mr.FastForward(domain.DefaultTTL + time.Second)
	res, err := g.ValidateAndConsume(ctx, key, issued.Token)
	require.NoError(t, err)
	assert.Equal(t, domain.NotFoundOrExpired, res)
}

func TestGuard_InvalidKey(t *testing.T) {
	ctx := context.Background()
	g, _ := newGuard(t)

	_, err := g.Generate(ctx, domain.Key{Scene: "checkout"})
	assert.ErrorIs(t, err, domain.ErrInvalidKey)
	_, err = g.ValidateAndConsume(ctx, domain.Key{UserID: "u1"}, "x")
	assert.ErrorIs(t, err, domain.ErrInvalidKey)
	_, err = g.Delete(ctx, domain.Key{})
	assert.ErrorIs(t, err, domain.ErrInvalidKey)
}

func TestGuard_Delete(t *testing.T) {
	ctx := context.Background()
	g, _ := newGuard(t)
	key := domain.Key{Scene: "checkout", UserID: "u1"}
	issued, err := g.Generate(ctx, key)
	require.NoError(t, err)

	ok, err := g.Delete(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)

	res, err := g.ValidateAndConsume(ctx, key, issued.Token)
	require.NoError(t, err)
	assert.Equal(t, domain.NotFoundOrExpired, res)
}

type mockStore struct{ mock.Mock }

func (m *mockStore) Put(ctx context.Context, key domain.Key, value string, ttl time.Duration) error {
	return m.Called(ctx, key, value, ttl).Error(0)
}

func (m *mockStore) Consume(ctx context.Context, key domain.Key, presented string) (domain.Result, error) {
	args := m.Called(ctx, key, presented)
	return args.Get(0).(domain.Result), args.Error(1)
}

func (m *mockStore) Delete(ctx context.Context, key domain.Key) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}

func TestGuard_StoreFailureIsSystemError(t *testing.T) {
	store := new(mockStore)
	g := NewGuard(store, id.NewUUIDGenerator(), time.Minute, nil)
	key := domain.Key{Scene: "checkout", UserID: "u1"}
	store.On("Consume", mock.Anything, key, "abc").Return(domain.Result(0), errors.New("conn reset"))
	store.On("Put", mock.Anything, key, mock.Anything, time.Minute).Return(errors.New("conn reset"))

	_, err := g.ValidateAndConsume(context.Background(), key, "abc")
	assert.ErrorIs(t, err, domain.ErrSystem)

	_, err = g.Generate(context.Background(), key)
	assert.ErrorIs(t, err, domain.ErrSystem)
}
