package cache

import (
	"context"
	"time"
)

// Provider is the raw byte store behind the cache. Get reports a miss with
// (nil, false, nil); errors are reserved for transport/backend failures.
type Provider interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, key string) error
	Close() error
}
