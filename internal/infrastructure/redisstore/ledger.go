package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/Zhima-Mochi/stock-ledger/internal/domain/stock"
	"github.com/Zhima-Mochi/stock-ledger/internal/observability"
	"github.com/redis/go-redis/v9"
)

// Ledger is the fast-store implementation of stock.Ledger.
type Ledger struct {
	client redis.UniversalClient
	peer   observability.PeerRecorder
}

var _ stock.Ledger = (*Ledger)(nil)

func NewLedger(client redis.UniversalClient, tel observability.Observability) *Ledger {
	return &Ledger{client: client, peer: observability.NewPeerRecorder(tel, peerRedis)}
}

func (l *Ledger) SetStock(ctx context.Context, productID string, quantity int64) (err error) {
	if quantity < 0 {
		return stock.ErrInvalidQuantity
	}
	defer l.peer.Done("set_stock", time.Now(), &err)

	if err = l.client.Set(ctx, StockKey(productID), quantity, 0).Err(); err != nil {
		return fmt.Errorf("redisstore: set stock: %w", err)
	}
	return nil
}

// Stock returns the counter value and whether it is configured at all.
func (l *Ledger) Stock(ctx context.Context, productID string) (_ int64, _ bool, err error) {
	start := time.Now()
	raw, err := l.client.Get(ctx, StockKey(productID)).Result()
	if errors.Is(err, redis.Nil) {
		l.peer.Observe("get_stock", start, nil)
		return 0, false, nil
	}
	l.peer.Observe("get_stock", start, err)
	if err != nil {
		return 0, false, fmt.Errorf("redisstore: get stock: %w", err)
	}

	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("redisstore: parse stock %q: %w", raw, err)
	}
	return n, true, nil
}

// Deduct runs the decrement script. Every failure to obtain a recognised result code wraps stock.ErrSystem;
// in that case the deduction may or may not have been applied.
func (l *Ledger) Deduct(ctx context.Context, rec *stock.Record, ttl time.Duration) (_ stock.DeductResult, err error) {
	if rec == nil {
		return 0, fmt.Errorf("%w: %w", stock.ErrSystem, stock.ErrInvalidRecord)
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return 0, fmt.Errorf("%w: encode record: %w", stock.ErrSystem, err)
	}

	keys := []string{
		StockKey(rec.ProductID),
		RecordKey(rec.ProductID, rec.RecordID),
		RecordIndexKey(rec.ProductID),
	}

	start := time.Now()
	code, err := deductScript.Run(ctx, l.client, keys,
		rec.Amount,
		rec.RecordID,
		string(payload),
		ttlSeconds(ttl, stock.DefaultRecordTTL),
	).Int64()
	l.peer.Observe("deduct_script", start, err)
	if err != nil {
		return 0, fmt.Errorf("%w: deduct script: %w", stock.ErrSystem, err)
	}

	switch code {
	case deductSuccess:
		return stock.DeductSucceeded, nil
	case deductNoStock:
		return stock.DeductProductNotFound, nil
	case deductInsufficient:
		return stock.DeductInsufficientStock, nil
	case deductInvalidAmount:
		return stock.DeductInvalidAmount, nil
	case deductRecordExists:
		return 0, fmt.Errorf("%w: %w", stock.ErrSystem, stock.ErrDuplicateRecord)
	default:
		return 0, fmt.Errorf("%w: unrecognized deduct result %d", stock.ErrSystem, code)
	}
}
