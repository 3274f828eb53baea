package stock

import "time"

// RecordCreatedEvent is emitted after a successful deduction so the record can be archived off the hot path.
type RecordCreatedEvent struct {
	ProductID  string
	RecordID   string
	Amount     int64
	OccurredAt time.Time
}

func (RecordCreatedEvent) EventName() string { return "stock.record_created" }

func NewRecordCreatedEvent(productID, recordID string, amount int64) RecordCreatedEvent {
	return RecordCreatedEvent{
		ProductID:  productID,
		RecordID:   recordID,
		Amount:     amount,
		OccurredAt: time.Now().UTC(),
	}
}
