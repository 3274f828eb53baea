package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Zhima-Mochi/stock-ledger/internal/domain/stock"
	"github.com/Zhima-Mochi/stock-ledger/internal/observability"
	"github.com/redis/go-redis/v9"
)

const scanBatch = 200

// RecordStore is the fast-store implementation of stock.RecordStore.
type RecordStore struct {
	client redis.UniversalClient
	peer   observability.PeerRecorder
}

var _ stock.RecordStore = (*RecordStore)(nil)

func NewRecordStore(client redis.UniversalClient, tel observability.Observability) *RecordStore {
	return &RecordStore{client: client, peer: observability.NewPeerRecorder(tel, peerRedis)}
}

// Get returns nil without error when the record is absent or already expired.
func (s *RecordStore) Get(ctx context.Context, productID, recordID string) (*stock.Record, error) {
	start := time.Now()
	raw, err := s.client.Get(ctx, RecordKey(productID, recordID)).Bytes()
	if errors.Is(err, redis.Nil) {
		s.peer.Observe("get_record", start, nil)
		return nil, nil
	}
	s.peer.Observe("get_record", start, err)
	if err != nil {
		return nil, fmt.Errorf("redisstore: get record: %w", err)
	}

	var rec stock.Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("redisstore: decode record %s: %w", recordID, err)
	}
	return &rec, nil
}

// ListIDs returns the index membership. Members may point at records that have already expired.
func (s *RecordStore) ListIDs(ctx context.Context, productID string) (_ []string, err error) {
	defer s.peer.Done("list_record_ids", time.Now(), &err)

	ids, err := s.client.SMembers(ctx, RecordIndexKey(productID)).Result()
	if err != nil {
		return nil, fmt.Errorf("redisstore: list record ids: %w", err)
	}
	return ids, nil
}

// BatchDelete removes the given records and their index entries. Only records that actually
// existed are counted.
func (s *RecordStore) BatchDelete(ctx context.Context, productID string, recordIDs []string) (_ int, err error) {
	if len(recordIDs) == 0 {
		return 0, nil
	}
	defer s.peer.Done("batch_delete_records", time.Now(), &err)

	args := make([]any, 0, len(recordIDs)+1)
	args = append(args, RecordKeyPrefix(productID))
	for _, id := range recordIDs {
		args = append(args, id)
	}

	n, err := batchDeleteScript.Run(ctx, s.client, []string{RecordIndexKey(productID)}, args...).Int64()
	if err != nil {
		return 0, fmt.Errorf("redisstore: batch delete records: %w", err)
	}
	return int(n), nil
}

// SetExpiry resets the TTL of every live record of the product and of the index itself.
func (s *RecordStore) SetExpiry(ctx context.Context, productID string, ttl time.Duration) (_ int, err error) {
	defer s.peer.Done("set_records_expiry", time.Now(), &err)

	n, err := setExpiryScript.Run(ctx, s.client, []string{RecordIndexKey(productID)},
		RecordKeyPrefix(productID),
		ttlSeconds(ttl, stock.OfflineRecordTTL),
	).Int64()
	if err != nil {
		return 0, fmt.Errorf("redisstore: set records expiry: %w", err)
	}
	return int(n), nil
}

// PruneIndex drops index members whose record key is gone and deletes the index once it is empty.
func (s *RecordStore) PruneIndex(ctx context.Context, productID string) (removed int, dropped bool, err error) {
	defer s.peer.Done("prune_record_index", time.Now(), &err)

	res, err := pruneIndexScript.Run(ctx, s.client, []string{RecordIndexKey(productID)},
		RecordKeyPrefix(productID),
	).Int64Slice()
	if err != nil {
		return 0, false, fmt.Errorf("redisstore: prune record index: %w", err)
	}
	if len(res) != 2 {
		return 0, false, fmt.Errorf("redisstore: prune record index: unexpected reply %v", res)
	}
	return int(res[0]), res[1] == 1, nil
}

// IndexedProducts lists the products that currently own a record index.
func (s *RecordStore) IndexedProducts(ctx context.Context) (_ []string, err error) {
	defer s.peer.Done("scan_record_indexes", time.Now(), &err)

	var (
		products []string
		cursor   uint64
	)
	for {
		var keys []string
		keys, cursor, err = s.client.Scan(ctx, cursor, recordIndexKeyPrefix+"*", scanBatch).Result()
		if err != nil {
			return nil, fmt.Errorf("redisstore: scan record indexes: %w", err)
		}
		for _, k := range keys {
			products = append(products, strings.TrimPrefix(k, recordIndexKeyPrefix))
		}
		if cursor == 0 {
			return products, nil
		}
	}
}
