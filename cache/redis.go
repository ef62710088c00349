package cache

import (
	"context"
	"errors"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// ErrNilClient is returned when constructing a Redis provider without a client.
var ErrNilClient = errors.New("cache: nil redis client")

// RedisProvider stores cache entries in Redis with per-key expiry.
type RedisProvider struct {
	rdb         *goredis.Client
	closeClient bool
}

var _ Provider = (*RedisProvider)(nil)

// NewRedisProvider wraps client. Set closeClient only when the provider
// exclusively owns the client.
func NewRedisProvider(client *goredis.Client, closeClient bool) (*RedisProvider, error) {
	if client == nil {
		return nil, ErrNilClient
	}
	return &RedisProvider{rdb: client, closeClient: closeClient}, nil
}

func (p *RedisProvider) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := p.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, false, nil // miss
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func (p *RedisProvider) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	return p.rdb.Set(ctx, key, value, ttl).Err()
}

func (p *RedisProvider) Del(ctx context.Context, key string) error {
	return p.rdb.Del(ctx, key).Err()
}

// Close releases the underlying client only when this provider owns it.
func (p *RedisProvider) Close() error {
	if p.closeClient {
		if err := p.rdb.Close(); err != nil && !errors.Is(err, goredis.ErrClosed) {
			return err
		}
	}
	return nil
}
