package workerpresentation

import (
	"context"
	"testing"
	"time"

	domoutbox "github.com/Zhima-Mochi/stock-ledger/internal/domain/outbox"
	domain "github.com/Zhima-Mochi/stock-ledger/internal/domain/stock"
	"github.com/Zhima-Mochi/stock-ledger/internal/observability/logctx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type fakeSubscriber struct {
	handlers map[string]domoutbox.Handler
}

func (f *fakeSubscriber) Subscribe(name string, h domoutbox.Handler) {
	if f.handlers == nil {
		f.handlers = make(map[string]domoutbox.Handler)
	}
	f.handlers[name] = h
}

type mockPersister struct{ mock.Mock }

func (m *mockPersister) PersistOne(ctx context.Context, productID, recordID string) {
	m.Called(ctx, productID, recordID)
}

type otherEvent struct{}

func (otherEvent) EventName() string { return "stock.record_created" }

func TestArchiver_PersistsCreatedRecords(t *testing.T) {
	sub := &fakeSubscriber{}
	p := new(mockPersister)
	p.On("PersistOne", mock.MatchedBy(func(ctx context.Context) bool {
		return logctx.From(ctx) != nil
	}), "p1", "r1").Return()

	NewArchiver(sub, p, nil).Start()
	h, ok := sub.handlers["stock.record_created"]
	require.True(t, ok)

	err := h(context.Background(), domain.RecordCreatedEvent{ProductID: "p1", RecordID: "r1", Amount: 1, OccurredAt: time.Now()})
	require.NoError(t, err)
	p.AssertExpectations(t)
}

func TestArchiver_IgnoresForeignPayloads(t *testing.T) {
	sub := &fakeSubscriber{}
	p := new(mockPersister)
	NewArchiver(sub, p, nil).Start()

	assert.NoError(t, sub.handlers["stock.record_created"](context.Background(), otherEvent{}))
	p.AssertNotCalled(t, "PersistOne", mock.Anything, mock.Anything, mock.Anything)
}

func TestArchiver_StartWithoutPersisterIsNoop(t *testing.T) {
	sub := &fakeSubscriber{}
	NewArchiver(sub, nil, nil).Start()
	assert.Empty(t, sub.handlers)
}
