package storage

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/go-redis/redis/v8"

	"github.com/smartpotsystem/smartpot/internal/model/entities"
)

// EventCounterStore holds the per-device alert-kind counters. Increments are
// monotonic and never negative; only a successful daily rollup resets them.
// Increment is not idempotent: a redelivered alert double-counts.
type EventCounterStore interface {
	Increment(ctx context.Context, deviceID string, kind entities.AlertKind) error
	Snapshot(ctx context.Context, deviceID string) (map[entities.AlertKind]int64, error)
	Devices(ctx context.Context) ([]string, error)
	Reset(ctx context.Context, deviceIDs []string) error
}

const (
	counterKeyPrefix = "events:"
	counterSetKey    = "events:devices"
)

// RedisCounterStore is the EventCounterStore over a Redis hash per device.
// Every increment is persisted on the spot; daily volume is bounded by sensor
// count times alert rate, so per-event writes are acceptable.
type RedisCounterStore struct {
	client *redis.Client
}

func NewRedisCounterStore(client *redis.Client) *RedisCounterStore {
	return &RedisCounterStore{client: client}
}

func (s *RedisCounterStore) Increment(ctx context.Context, deviceID string, kind entities.AlertKind) error {
	pipe := s.client.TxPipeline()
	pipe.HIncrBy(ctx, counterKeyPrefix+deviceID, string(kind), 1)
	pipe.SAdd(ctx, counterSetKey, deviceID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("increment %s/%s: %w", deviceID, kind, err)
	}
	return nil
}

func (s *RedisCounterStore) Snapshot(ctx context.Context, deviceID string) (map[entities.AlertKind]int64, error) {
	m, err := s.client.HGetAll(ctx, counterKeyPrefix+deviceID).Result()
	if err != nil {
		return nil, fmt.Errorf("snapshot counters for %s: %w", deviceID, err)
	}
	out := make(map[entities.AlertKind]int64, len(m))
	for k, v := range m {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("counter %s/%s: %w", deviceID, k, err)
		}
		out[entities.AlertKind(k)] = n
	}
	return out, nil
}

func (s *RedisCounterStore) Devices(ctx context.Context) ([]string, error) {
	ids, err := s.client.SMembers(ctx, counterSetKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list counter devices: %w", err)
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *RedisCounterStore) Reset(ctx context.Context, deviceIDs []string) error {
	if len(deviceIDs) == 0 {
		return nil
	}
	pipe := s.client.TxPipeline()
	for _, id := range deviceIDs {
		pipe.Del(ctx, counterKeyPrefix+id)
		pipe.SRem(ctx, counterSetKey, id)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("reset counters: %w", err)
	}
	return nil
}
