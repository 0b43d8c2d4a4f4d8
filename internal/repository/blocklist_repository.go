package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const blocklistKeyPrefix = "auth:blocklist:"

// BlocklistRepository records revoked access token jtis in Redis. Entries
// carry a TTL equal to the token's remaining lifetime: once the token would
// fail the expiry check anyway, the entry is garbage.
type BlocklistRepository struct {
	client *redis.Client
}

// NewBlocklistRepository constructs a blocklist repository.
func NewBlocklistRepository(client *redis.Client) *BlocklistRepository {
	return &BlocklistRepository{client: client}
}

// Add records a revoked jti. Duplicate adds are a no-op.
func (r *BlocklistRepository) Add(ctx context.Context, jti string, ttl time.Duration) error {
	if ttl <= 0 {
		// Token already past its expiry; nothing to record.
		return nil
	}
	if err := r.client.Set(ctx, blocklistKeyPrefix+jti, 1, ttl).Err(); err != nil {
		return fmt.Errorf("blocklist add %s: %w", jti, err)
	}
	return nil
}

// Contains reports whether the jti has been revoked. Invoked on every
// authenticated request, so it stays a single point lookup.
func (r *BlocklistRepository) Contains(ctx context.Context, jti string) (bool, error) {
	n, err := r.client.Exists(ctx, blocklistKeyPrefix+jti).Result()
	if err != nil {
		return false, fmt.Errorf("blocklist lookup %s: %w", jti, err)
	}
	return n > 0, nil
}
