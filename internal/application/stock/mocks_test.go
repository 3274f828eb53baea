package stock

import (
	"context"
	"time"

	domoutbox "github.com/Zhima-Mochi/stock-ledger/internal/domain/outbox"
	domain "github.com/Zhima-Mochi/stock-ledger/internal/domain/stock"
	"github.com/stretchr/testify/mock"
)

type mockLedger struct{ mock.Mock }

func (m *mockLedger) SetStock(ctx context.Context, productID string, quantity int64) error {
	return m.Called(ctx, productID, quantity).Error(0)
}

func (m *mockLedger) Stock(ctx context.Context, productID string) (int64, bool, error) {
	args := m.Called(ctx, productID)
	return args.Get(0).(int64), args.Bool(1), args.Error(2)
}

func (m *mockLedger) Deduct(ctx context.Context, rec *domain.Record, ttl time.Duration) (domain.DeductResult, error) {
	args := m.Called(ctx, rec, ttl)
	return args.Get(0).(domain.DeductResult), args.Error(1)
}

type mockRecords struct{ mock.Mock }

func (m *mockRecords) Get(ctx context.Context, productID, recordID string) (*domain.Record, error) {
	args := m.Called(ctx, productID, recordID)
	rec, _ := args.Get(0).(*domain.Record)
	return rec, args.Error(1)
}

func (m *mockRecords) ListIDs(ctx context.Context, productID string) ([]string, error) {
	args := m.Called(ctx, productID)
	ids, _ := args.Get(0).([]string)
	return ids, args.Error(1)
}

func (m *mockRecords) BatchDelete(ctx context.Context, productID string, recordIDs []string) (int, error) {
	args := m.Called(ctx, productID, recordIDs)
	return args.Int(0), args.Error(1)
}

func (m *mockRecords) SetExpiry(ctx context.Context, productID string, ttl time.Duration) (int, error) {
	args := m.Called(ctx, productID, ttl)
	return args.Int(0), args.Error(1)
}

func (m *mockRecords) PruneIndex(ctx context.Context, productID string) (int, bool, error) {
	args := m.Called(ctx, productID)
	return args.Int(0), args.Bool(1), args.Error(2)
}

func (m *mockRecords) IndexedProducts(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	ids, _ := args.Get(0).([]string)
	return ids, args.Error(1)
}

type mockPublisher struct{ mock.Mock }

func (m *mockPublisher) Publish(ctx context.Context, e domoutbox.Event) error {
	return m.Called(ctx, e).Error(0)
}

type fixedIDs string

func (f fixedIDs) NewID() string { return string(f) }
