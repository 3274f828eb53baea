package workerpresentation

import (
	"context"

	domoutbox "github.com/Zhima-Mochi/stock-ledger/internal/domain/outbox"
	domain "github.com/Zhima-Mochi/stock-ledger/internal/domain/stock"
	"github.com/Zhima-Mochi/stock-ledger/internal/observability"
)

const componentArchiver = "record_archiver"

// RecordPersister is the part of the reconciliation pipeline the archiver drives.
type RecordPersister interface {
	PersistOne(ctx context.Context, productID, recordID string)
}

// Archiver copies each newly created record into the durable store, off the deduction path.
type Archiver struct {
	subscriber domoutbox.Subscriber
	persister  RecordPersister
	log        observability.Logger
}

func NewArchiver(subscriber domoutbox.Subscriber, persister RecordPersister, tel observability.Observability) *Archiver {
	logger, _, _ := observability.Resolve(tel)
	return &Archiver{
		subscriber: subscriber,
		persister:  persister,
		log:        logger.With(observability.F("component", componentArchiver)),
	}
}

func (a *Archiver) Start() {
	if a.subscriber == nil || a.persister == nil {
		return
	}
	a.subscriber.Subscribe(domain.RecordCreatedEvent{}.EventName(), a.handleRecordCreated)
}

func (a *Archiver) handleRecordCreated(ctx context.Context, e domoutbox.Event) error {
	evt, ok := e.(domain.RecordCreatedEvent)
	if !ok {
		a.log.Warn("event_type_unexpected", observability.F("event", e.EventName()))
		return nil
	}

	ctx = WithEventContext(ctx, a.log, map[string]string{
		"event_id":   evt.RecordID,
		"event":      e.EventName(),
		"product_id": evt.ProductID,
	})
	a.persister.PersistOne(ctx, evt.ProductID, evt.RecordID)
	return nil
}
