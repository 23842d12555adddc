package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/oraclebot/internal/domain"
)

// sampleTTL keeps stale observations from lingering after a metric stops
// being fetched.
const sampleTTL = 24 * time.Hour

// SampleCache implements domain.SampleCache using Redis hashes. Each metric's
// latest observation is stored at key "sample:{metric}" with fields "value"
// and "ts" (Unix nanoseconds).
type SampleCache struct {
	rdb *redis.Client
}

// NewSampleCache creates a SampleCache backed by the given Client.
func NewSampleCache(c *Client) *SampleCache {
	return &SampleCache{rdb: c.Underlying()}
}

func sampleKey(metric string) string {
	return "sample:" + metric
}

// SetLatest stores the most recent observation for a metric.
func (sc *SampleCache) SetLatest(ctx context.Context, metric string, value float64, ts time.Time) error {
	key := sampleKey(metric)
	fields := map[string]interface{}{
		"value": strconv.FormatFloat(value, 'f', -1, 64),
		"ts":    strconv.FormatInt(ts.UnixNano(), 10),
	}

	pipe := sc.rdb.TxPipeline()
	pipe.HSet(ctx, key, fields)
	pipe.Expire(ctx, key, sampleTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set sample %s: %w", metric, err)
	}
	return nil
}

// GetLatest retrieves the most recent observation for a metric. It returns
// domain.ErrNotFound when no observation has been recorded.
func (sc *SampleCache) GetLatest(ctx context.Context, metric string) (float64, time.Time, error) {
	vals, err := sc.rdb.HGetAll(ctx, sampleKey(metric)).Result()
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("redis: get sample %s: %w", metric, err)
	}
	if len(vals) == 0 {
		return 0, time.Time{}, domain.ErrNotFound
	}

	value, err := strconv.ParseFloat(vals["value"], 64)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("redis: parse sample value for %s: %w", metric, err)
	}
	nanos, err := strconv.ParseInt(vals["ts"], 10, 64)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("redis: parse sample ts for %s: %w", metric, err)
	}
	return value, time.Unix(0, nanos), nil
}

// Compile-time interface check.
var _ domain.SampleCache = (*SampleCache)(nil)
