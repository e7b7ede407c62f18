package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/resumeforge/backend/internal/models"

	fiberlog "github.com/gofiber/fiber/v2/log"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

const defaultBalanceTTL = 30 * time.Second

// BalanceCache holds read-side snapshots of user balances in Redis. Balance
// reads are lock-free and allowed to be stale; every ledger mutation
// invalidates the snapshot, and the TTL bounds staleness if an invalidation
// is lost. A nil *BalanceCache is valid and passes reads straight through.
type BalanceCache struct {
	rdb   *redis.Client
	ttl   time.Duration
	group singleflight.Group
}

func NewBalanceCache(rdb *redis.Client, ttl time.Duration) *BalanceCache {
	if ttl <= 0 {
		ttl = defaultBalanceTTL
	}
	return &BalanceCache{rdb: rdb, ttl: ttl}
}

// Get returns the cached snapshot for userID, or loads and caches a fresh
// one. Concurrent misses for the same user collapse into a single load.
func (c *BalanceCache) Get(ctx context.Context, userID string, load func(context.Context) (*models.UserCredit, error)) (*models.UserCredit, error) {
	if c == nil || c.rdb == nil {
		return load(ctx)
	}

	key := balanceKey(userID)
	if data, err := c.rdb.Get(ctx, key).Bytes(); err == nil {
		var credit models.UserCredit
		if err := json.Unmarshal(data, &credit); err == nil {
			return &credit, nil
		}
		fiberlog.Warnf("BalanceCache: dropping corrupt snapshot for %s", userID)
		c.Invalidate(ctx, userID)
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		credit, err := load(ctx)
		if err != nil {
			return nil, err
		}
		if data, err := json.Marshal(credit); err == nil {
			if err := c.rdb.Set(ctx, key, data, c.ttl).Err(); err != nil {
				fiberlog.Debugf("BalanceCache: failed to store snapshot for %s: %v", userID, err)
			}
		}
		return credit, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*models.UserCredit), nil
}

// Invalidate drops the snapshot for userID. Called after every mutation.
func (c *BalanceCache) Invalidate(ctx context.Context, userID string) {
	if c == nil || c.rdb == nil {
		return
	}
	if err := c.rdb.Del(ctx, balanceKey(userID)).Err(); err != nil {
		fiberlog.Warnf("BalanceCache: failed to invalidate snapshot for %s: %v", userID, err)
	}
}

func balanceKey(userID string) string {
	return "credits:balance:" + userID
}
