package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Zhima-Mochi/stock-ledger/internal/domain/stock"
)

// Archive is an in-process stock.Archive. It backs local runs without a database and the pipeline tests.
type Archive struct {
	mu      sync.RWMutex
	records map[string]*stock.Record
}

var _ stock.Archive = (*Archive)(nil)

func NewArchive() *Archive {
	return &Archive{records: make(map[string]*stock.Record)}
}

func (a *Archive) Insert(ctx context.Context, rec *stock.Record) error {
	_, err := a.InsertBatch(ctx, []*stock.Record{rec})
	return err
}

// InsertBatch stores the records that are not archived yet and returns how many were new.
func (a *Archive) InsertBatch(ctx context.Context, recs []*stock.Record) (int, error) {
	_ = ctx
	a.mu.Lock()
	defer a.mu.Unlock()

	inserted := 0
	for _, rec := range recs {
		if rec == nil || rec.RecordID == "" {
			continue
		}
		if _, exists := a.records[rec.RecordID]; exists {
			continue
		}
		a.records[rec.RecordID] = cloneRecord(rec)
		inserted++
	}
	return inserted, nil
}

func (a *Archive) MarkCompleted(ctx context.Context, recordIDs []string, at time.Time) (int, error) {
	_ = ctx
	return a.transition(recordIDs, stock.StatusCompleted, at), nil
}

func (a *Archive) MarkReconciled(ctx context.Context, recordIDs []string, at time.Time) (int, error) {
	_ = ctx
	return a.transition(recordIDs, stock.StatusReconciled, at), nil
}

func (a *Archive) transition(ids []string, to stock.Status, at time.Time) int {
	a.mu.Lock()
	defer a.mu.Unlock()

	at = at.UTC()
	n := 0
	for _, id := range ids {
		rec, ok := a.records[id]
		if !ok || !stock.CanTransition(rec.Status, to) {
			continue
		}
		rec.Status = to
		rec.UpdateTime = &at
		if to == stock.StatusReconciled {
			rec.ReconcileTime = &at
		}
		n++
	}
	return n
}

func (a *Archive) PurgeReconciledBefore(ctx context.Context, cutoff time.Time) (int, error) {
	_ = ctx
	a.mu.Lock()
	defer a.mu.Unlock()

	n := 0
	for id, rec := range a.records {
		if rec.Status == stock.StatusReconciled && rec.ReconcileTime != nil && rec.ReconcileTime.Before(cutoff) {
			delete(a.records, id)
			n++
		}
	}
	return n, nil
}

func (a *Archive) ListByStatus(ctx context.Context, productID string, status stock.Status) ([]*stock.Record, error) {
	_ = ctx
	return a.filter(func(rec *stock.Record) bool {
		return rec.ProductID == productID && rec.Status == status
	}), nil
}

func (a *Archive) ListByTimeRange(ctx context.Context, productID string, from, to time.Time) ([]*stock.Record, error) {
	_ = ctx
	return a.filter(func(rec *stock.Record) bool {
		return rec.ProductID == productID && !rec.CreateTime.Before(from) && !rec.CreateTime.After(to)
	}), nil
}

func (a *Archive) filter(keep func(*stock.Record) bool) []*stock.Record {
	a.mu.RLock()
	defer a.mu.RUnlock()

	var out []*stock.Record
	for _, rec := range a.records {
		if keep(rec) {
			out = append(out, cloneRecord(rec))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreateTime.Equal(out[j].CreateTime) {
			return out[i].RecordID < out[j].RecordID
		}
		return out[i].CreateTime.Before(out[j].CreateTime)
	})
	return out
}

func cloneRecord(rec *stock.Record) *stock.Record {
	if rec == nil {
		return nil
	}
	clone := *rec
	if rec.BeforeStock != nil {
		v := *rec.BeforeStock
		clone.BeforeStock = &v
	}
	if rec.AfterStock != nil {
		v := *rec.AfterStock
		clone.AfterStock = &v
	}
	if rec.UpdateTime != nil {
		v := *rec.UpdateTime
		clone.UpdateTime = &v
	}
	if rec.ReconcileTime != nil {
		v := *rec.ReconcileTime
		clone.ReconcileTime = &v
	}
	return &clone
}
