package stock

import (
	"context"
	"time"
)

// Ledger owns the per-product counter and the atomic decrement.
type Ledger interface {
	SetStock(ctx context.Context, productID string, quantity int64) error
	Stock(ctx context.Context, productID string) (int64, bool, error)
	Deduct(ctx context.Context, rec *Record, ttl time.Duration) (DeductResult, error)
}

// RecordStore owns the fast-store copies of records and the per-product index.
type RecordStore interface {
	Get(ctx context.Context, productID, recordID string) (*Record, error)
	ListIDs(ctx context.Context, productID string) ([]string, error)
	BatchDelete(ctx context.Context, productID string, recordIDs []string) (int, error)
	SetExpiry(ctx context.Context, productID string, ttl time.Duration) (int, error)
	PruneIndex(ctx context.Context, productID string) (removed int, dropped bool, err error)
	IndexedProducts(ctx context.Context) ([]string, error)
}

// Archive is the durable system of record for reconciled history.
type Archive interface {
	Insert(ctx context.Context, rec *Record) error
	InsertBatch(ctx context.Context, recs []*Record) (int, error)
	MarkCompleted(ctx context.Context, recordIDs []string, at time.Time) (int, error)
	MarkReconciled(ctx context.Context, recordIDs []string, at time.Time) (int, error)
	PurgeReconciledBefore(ctx context.Context, cutoff time.Time) (int, error)
	ListByStatus(ctx context.Context, productID string, status Status) ([]*Record, error)
	ListByTimeRange(ctx context.Context, productID string, from, to time.Time) ([]*Record, error)
}
