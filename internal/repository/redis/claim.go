// Package redis holds the Redis-backed claim store settlement uses to keep
// wallet credits at-most-once.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "loyalty:credit:"

// claimTTL bounds how long a claim survives. A crash between claiming and
// persisting the row blocks re-crediting until the TTL lapses, at which
// point the payment service's idempotency key is the remaining guard.
const claimTTL = 24 * time.Hour

// ClaimStore implements service.CreditClaimer using Redis SET NX.
type ClaimStore struct {
	client *redis.Client
}

// NewClaimStore creates a new Redis-backed claim store.
func NewClaimStore(client *redis.Client) *ClaimStore {
	return &ClaimStore{client: client}
}

// Claim takes an exclusive claim on a credit key. Returns false when some
// other run already holds it.
func (s *ClaimStore) Claim(ctx context.Context, key string) (bool, error) {
	ok, err := s.client.SetNX(ctx, keyPrefix+key, "1", claimTTL).Result()
	if err != nil {
		return false, fmt.Errorf("redis claim %s: %w", key, err)
	}
	return ok, nil
}

// Release gives a claim back after a failed credit so the next run can
// retry.
func (s *ClaimStore) Release(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, keyPrefix+key).Err(); err != nil {
		return fmt.Errorf("redis release %s: %w", key, err)
	}
	return nil
}
