package token

import (
	"context"
	"time"
)

// Store keeps at most one live token per Key.
type Store interface {
	Put(ctx context.Context, key Key, value string, ttl time.Duration) error
	Consume(ctx context.Context, key Key, presented string) (Result, error)
	Delete(ctx context.Context, key Key) (bool, error)
}
