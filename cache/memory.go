package cache

import (
	"context"
	"time"

	"github.com/dgraph-io/ristretto"
)

// MemoryProvider is an in-process provider backed by ristretto, for
// development and single-node deployments without Redis.
type MemoryProvider struct {
	cache *ristretto.Cache
}

var _ Provider = (*MemoryProvider)(nil)

// NewMemoryProvider sizes the cache for the small catalog workloads this
// service serves.
func NewMemoryProvider() (*MemoryProvider, error) {
	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 1e5,
		MaxCost:     64 << 20, // 64 MiB of cached payloads
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &MemoryProvider{cache: c}, nil
}

func (p *MemoryProvider) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := p.cache.Get(key)
	if !ok {
		return nil, false, nil
	}
	b, ok := v.([]byte)
	if !ok {
		p.cache.Del(key)
		return nil, false, nil
	}
	return b, true, nil
}

func (p *MemoryProvider) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	p.cache.SetWithTTL(key, value, int64(len(value)), ttl)
	// ristretto admits writes asynchronously; Wait makes the entry visible
	// to the next Get, which the read-through contract expects.
	p.cache.Wait()
	return nil
}

func (p *MemoryProvider) Del(_ context.Context, key string) error {
	p.cache.Del(key)
	return nil
}

func (p *MemoryProvider) Close() error {
	p.cache.Close()
	return nil
}
