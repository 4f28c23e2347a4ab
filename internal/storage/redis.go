package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// SnapshotCache keeps best-effort job snapshots in Redis so status queries
// survive a process restart. When Redis is unreachable the cache degrades to
// a no-op and the in-memory job store remains the single source of truth.
type SnapshotCache struct {
	log    *slog.Logger
	client *redis.Client
	ttl    time.Duration
}

func NewSnapshotCache(ctx context.Context, log *slog.Logger, addr string, ttl time.Duration) *SnapshotCache {
	if log == nil {
		log = slog.Default()
	}
	cache := &SnapshotCache{log: log, ttl: ttl}
	if addr == "" {
		return cache
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		log.Warn("redis not available, job snapshots stay in memory only", "addr", addr, "err", err)
		_ = client.Close()
		return cache
	}
	log.Info("redis snapshot cache connected", "addr", addr)
	cache.client = client
	return cache
}

func (c *SnapshotCache) enabled() bool {
	return c != nil && c.client != nil
}

func jobKey(jobID string) string {
	return fmt.Sprintf("job:%s", jobID)
}

// SaveJob caches a job snapshot with TTL.
func (c *SnapshotCache) SaveJob(ctx context.Context, jobID string, snapshot any) error {
	if !c.enabled() {
		return nil
	}
	data, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, jobKey(jobID), data, c.ttl).Err()
}

// LoadJob reads a cached snapshot into dest. Reports false when absent.
func (c *SnapshotCache) LoadJob(ctx context.Context, jobID string, dest any) (bool, error) {
	if !c.enabled() {
		return false, nil
	}
	data, err := c.client.Get(ctx, jobKey(jobID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return false, err
	}
	return true, nil
}

// DeleteJob drops a cached snapshot.
func (c *SnapshotCache) DeleteJob(ctx context.Context, jobID string) error {
	if !c.enabled() {
		return nil
	}
	return c.client.Del(ctx, jobKey(jobID)).Err()
}

// Ping reports cache connectivity for health checks.
func (c *SnapshotCache) Ping(ctx context.Context) error {
	if !c.enabled() {
		return fmt.Errorf("redis not configured")
	}
	return c.client.Ping(ctx).Err()
}

func (c *SnapshotCache) Close() {
	if c.enabled() {
		_ = c.client.Close()
	}
}
