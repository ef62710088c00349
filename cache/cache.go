// Package cache is a read-through cache for list/search results, keyed by
// the raw query string, with ETag-style conditional revalidation. Entries
// expire after a fixed TTL and are never invalidated when the underlying
// records change: bounded staleness is the documented trade-off for a
// catalog that changes rarely relative to read volume.
package cache

import (
	"context"
	"time"

	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"
)

// DefaultTTL is the fixed expiry for cache entries, and the upper bound on
// how stale a cached result can be after a catalog write.
const DefaultTTL = time.Hour

// keyAll is the sentinel for the unfiltered query.
const keyAll = "all"

const keyPrefix = "books"

// envelope is what actually lives in the provider, msgpack-encoded.
type envelope struct {
	Payload  []byte `msgpack:"payload"`
	ETag     string `msgpack:"etag"`
	CachedAt int64  `msgpack:"cached_at"`
}

// Result is the outcome of a cache read or write. When Hit is false the
// caller must compute the value from the store and Save it. NotModified
// means the caller's validator matched and no body needs to be sent.
type Result struct {
	Hit         bool
	NotModified bool
	Payload     []byte
	ETag        string
}

// Cache is constructed once at startup and injected wherever read paths
// need it; there is no package-level instance.
type Cache struct {
	provider Provider
	ttl      time.Duration
	log      *zap.Logger
}

// New wraps provider. A non-positive ttl falls back to DefaultTTL.
func New(provider Provider, ttl time.Duration, log *zap.Logger) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Cache{provider: provider, ttl: ttl, log: log}
}

// Key derives the cache key from the request's query parameter. The empty
// query maps to a fixed sentinel.
func Key(query string) string {
	if query == "" {
		return keyAll
	}
	return query
}

// Close releases the provider.
func (c *Cache) Close() error {
	return c.provider.Close()
}

// Checked looks key up. On a hit with a validator equal to the stored ETag
// it signals NotModified and omits the payload; on a plain hit it returns
// the payload and its ETag. A corrupt entry is dropped and reported as a
// miss so the caller recomputes it.
func (c *Cache) Checked(ctx context.Context, key, validator string) (Result, error) {
	raw, ok, err := c.provider.Get(ctx, storageKey(key))
	if err != nil {
		return Result{}, err
	}
	if !ok {
		return Result{}, nil
	}

	var env envelope
	if err := msgpack.Unmarshal(raw, &env); err != nil {
		// self-heal corrupt entries
		_ = c.provider.Del(ctx, storageKey(key))
		c.log.Warn("dropped corrupt cache entry", zap.String("key", key), zap.Error(err))
		return Result{}, nil
	}

	if validator != "" && validator == env.ETag {
		return Result{Hit: true, NotModified: true, ETag: env.ETag}, nil
	}
	return Result{Hit: true, Payload: env.Payload, ETag: env.ETag}, nil
}

// Save serializes value, fingerprints it and stores the envelope under key
// with the fixed TTL. The write is best effort: a provider failure is logged
// and the computed payload still returned, so a cache outage degrades to
// uncached reads instead of failing requests.
func (c *Cache) Save(ctx context.Context, key string, value interface{}) (Result, error) {
	payload, err := json.Marshal(value)
	if err != nil {
		return Result{}, err
	}
	etag, err := Fingerprint(payload)
	if err != nil {
		return Result{}, err
	}

	encoded, err := msgpack.Marshal(envelope{
		Payload:  payload,
		ETag:     etag,
		CachedAt: time.Now().Unix(),
	})
	if err != nil {
		return Result{}, err
	}

	if err := c.provider.Set(ctx, storageKey(key), encoded, c.ttl); err != nil {
		c.log.Warn("cache write failed", zap.String("key", key), zap.Error(err))
	}
	return Result{Hit: true, Payload: payload, ETag: etag}, nil
}

func storageKey(key string) string {
	return keyPrefix + ":" + key
}
