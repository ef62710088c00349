package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const blacklistKeyPrefix = "bl"

// Blacklist records revoked access tokens in Redis until they would have
// expired anyway. Logout writes here; Authorize consults it.
type Blacklist struct {
	redis *redis.Client
}

// NewBlacklist wraps the given client. The client is shared and not closed
// by the blacklist.
func NewBlacklist(client *redis.Client) *Blacklist {
	return &Blacklist{redis: client}
}

func blacklistKey(token string) string {
	return blacklistKeyPrefix + ":" + token
}

// Revoke marks token as unusable for ttl. Non-positive ttls mean the token
// is already expired and nothing needs to be stored.
func (b *Blacklist) Revoke(ctx context.Context, token string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if err := b.redis.Set(ctx, blacklistKey(token), "revoked", ttl).Err(); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

// IsRevoked reports whether token has been blacklisted.
func (b *Blacklist) IsRevoked(ctx context.Context, token string) (bool, error) {
	err := b.redis.Get(ctx, blacklistKey(token)).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("blacklist lookup: %w", err)
	}
	return true, nil
}
