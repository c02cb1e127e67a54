// Package cache holds the list-view cache. Slots are keyed by
// (entity type, owner id): the per-type-only key of an earlier design
// let one user's filtered rows surface in another user's list and is
// deliberately not reproduced.
package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/skypost/mailing-service/internal/metrics"
)

// DefaultTTL is how long a cached list stays valid when the owner does
// not write in between.
const DefaultTTL = 1800 * time.Second

// AllOwners is the owner segment used for moderator list views, which
// are not filtered to a single owner.
const AllOwners = "all"

type Cache interface {
	// Get returns the stored bytes and whether the key was present.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Key builds the slot name for one entity type and one owner.
func Key(entity, ownerID string) string {
	return "list:" + entity + ":" + ownerID
}

// FetchList reads a list through the cache: on a hit the backing store
// is not touched, on a miss load runs and its result fills the slot.
// Cache backend failures degrade to a miss; they never fail the read.
func FetchList[T any](ctx context.Context, c Cache, key string, ttl time.Duration, load func(context.Context) ([]T, error)) ([]T, error) {
	if raw, ok, err := c.Get(ctx, key); err == nil && ok {
		var items []T
		if err := json.Unmarshal(raw, &items); err == nil {
			metrics.CacheOps.WithLabelValues("hit").Inc()
			return items, nil
		}
	}
	metrics.CacheOps.WithLabelValues("miss").Inc()
	items, err := load(ctx)
	if err != nil {
		return nil, err
	}
	if raw, err := json.Marshal(items); err == nil {
		_ = c.Set(ctx, key, raw, ttl)
	}
	return items, nil
}

// RefillList recomputes a slot after a write so the next list read by
// the same owner is served from cache. Failures are swallowed: the
// write already happened and a stale-free miss is the worst case.
func RefillList[T any](ctx context.Context, c Cache, key string, ttl time.Duration, load func(context.Context) ([]T, error)) {
	items, err := load(ctx)
	if err != nil {
		_ = c.Delete(ctx, key)
		return
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return
	}
	if err := c.Set(ctx, key, raw, ttl); err == nil {
		metrics.CacheOps.WithLabelValues("refill").Inc()
	}
}
