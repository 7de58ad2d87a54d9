// Package cache implements the Redis read layer for link resolution: a TTL'd
// metadata snapshot per code and an independent click counter with no TTL.
// The split matters: a snapshot may be stale for up to its TTL, but the
// counter is append-only and must never be re-seeded from stale data.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/encurtaweb/encurtador/internal/models"
)

const (
	snapshotKeyPrefix = "shortlink:"
	clicksKeyPrefix   = "shortlink-clicks:"

	defaultSnapshotTTL = 60 * time.Second
	defaultOpTimeout   = 250 * time.Millisecond
)

// LinkCache wraps a Redis client with the two key families used on the
// redirect hot path. Every call applies a short per-operation timeout on top
// of the caller's context so a slow cache cannot stall a redirect.
type LinkCache struct {
	client    *redis.Client
	ttl       time.Duration
	opTimeout time.Duration
	log       *zap.Logger
}

// NewLinkCache creates a LinkCache. Zero values for ttl and opTimeout select
// the defaults (60s snapshots, 250ms per operation).
func NewLinkCache(client *redis.Client, ttl, opTimeout time.Duration, log *zap.Logger) *LinkCache {
	if ttl <= 0 {
		ttl = defaultSnapshotTTL
	}
	if opTimeout <= 0 {
		opTimeout = defaultOpTimeout
	}
	return &LinkCache{client: client, ttl: ttl, opTimeout: opTimeout, log: log}
}

func (c *LinkCache) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, c.opTimeout)
}

// GetSnapshot returns the cached metadata snapshot for a code, or (nil, nil)
// on a cache miss. An unreadable entry is treated as a miss so the next
// store read refreshes it.
func (c *LinkCache) GetSnapshot(ctx context.Context, code string) (*models.LinkSnapshot, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	data, err := c.client.Get(ctx, snapshotKeyPrefix+code).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot for %q: %w", code, err)
	}

	var snap models.LinkSnapshot
	if err := json.Unmarshal([]byte(data), &snap); err != nil {
		c.log.Warn("Discarding unreadable link snapshot", zap.String("code", code), zap.Error(err))
		return nil, nil
	}
	return &snap, nil
}

// SetSnapshot stores the metadata snapshot under the configured TTL.
func (c *LinkCache) SetSnapshot(ctx context.Context, snap *models.LinkSnapshot) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot for %q: %w", snap.Code, err)
	}
	if err := c.client.Set(ctx, snapshotKeyPrefix+snap.Code, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write snapshot for %q: %w", snap.Code, err)
	}
	return nil
}

// GetClicks returns the live click counter for a code. The second return
// value reports whether the counter exists; an absent counter is not an
// error, the caller falls back to the durable count.
func (c *LinkCache) GetClicks(ctx context.Context, code string) (int64, bool, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	clicks, err := c.client.Get(ctx, clicksKeyPrefix+code).Int64()
	if err == redis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to read click counter for %q: %w", code, err)
	}
	return clicks, true, nil
}

// IncrClicks atomically increments the click counter for a code and returns
// the resulting value. The key is created at 1 if absent. This must stay a
// single INCR: a read-modify-write pair would let concurrent redirects race
// past the quota boundary.
func (c *LinkCache) IncrClicks(ctx context.Context, code string) (int64, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	clicks, err := c.client.Incr(ctx, clicksKeyPrefix+code).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to increment click counter for %q: %w", code, err)
	}
	return clicks, nil
}
