package redisstore

import (
	"context"
	"fmt"
	"time"

	"github.com/Zhima-Mochi/stock-ledger/internal/domain/token"
	"github.com/Zhima-Mochi/stock-ledger/internal/observability"
	"github.com/redis/go-redis/v9"
)

// TokenStore is the fast-store implementation of token.Store.
type TokenStore struct {
	client redis.UniversalClient
	peer   observability.PeerRecorder
}

var _ token.Store = (*TokenStore)(nil)

func NewTokenStore(client redis.UniversalClient, tel observability.Observability) *TokenStore {
	return &TokenStore{client: client, peer: observability.NewPeerRecorder(tel, peerRedis)}
}

// Put stores value under key, replacing any live token for the same key.
func (s *TokenStore) Put(ctx context.Context, key token.Key, value string, ttl time.Duration) (err error) {
	defer s.peer.Done("put_token", time.Now(), &err)

	if err = s.client.Set(ctx, TokenKey(key), value, time.Duration(ttlSeconds(ttl, token.DefaultTTL))*time.Second).Err(); err != nil {
		return fmt.Errorf("redisstore: put token: %w", err)
	}
	return nil
}

// Consume compares and deletes in one step. A mismatch leaves the stored token in place.
func (s *TokenStore) Consume(ctx context.Context, key token.Key, presented string) (_ token.Result, err error) {
	start := time.Now()
	code, err := validateTokenScript.Run(ctx, s.client, []string{TokenKey(key)}, presented).Int64()
	s.peer.Observe("validate_token_script", start, err)
	if err != nil {
		return 0, fmt.Errorf("%w: validate script: %w", token.ErrSystem, err)
	}

	switch code {
	case tokenValid:
		return token.Valid, nil
	case tokenAbsent:
		return token.NotFoundOrExpired, nil
	case tokenMismatch:
		return token.Mismatch, nil
	default:
		return 0, fmt.Errorf("%w: unrecognized validate result %d", token.ErrSystem, code)
	}
}

func (s *TokenStore) Delete(ctx context.Context, key token.Key) (_ bool, err error) {
	defer s.peer.Done("delete_token", time.Now(), &err)

	n, err := s.client.Del(ctx, TokenKey(key)).Result()
	if err != nil {
		return false, fmt.Errorf("redisstore: delete token: %w", err)
	}
	return n > 0, nil
}
