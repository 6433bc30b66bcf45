package storage

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/smartpotsystem/smartpot/internal/model/entities"
	"github.com/smartpotsystem/smartpot/internal/model/messages"
)

// DeviceStateStore keeps the single live row per device: latest reading plus
// last-irrigation timestamp. Overwritten on every accepted reading and after
// every confirmed irrigation; last write wins.
type DeviceStateStore interface {
	PutLatestReading(ctx context.Context, r messages.SensorReading) error
	SetLastIrrigation(ctx context.Context, deviceID string, at time.Time) error
	// LastIrrigation returns ok=false when the device has never been irrigated.
	LastIrrigation(ctx context.Context, deviceID string) (time.Time, bool, error)
	Get(ctx context.Context, deviceID string) (entities.DeviceState, bool, error)
	All(ctx context.Context) ([]entities.DeviceState, error)
}

const (
	deviceKeyPrefix = "device:"
	deviceSetKey    = "devices"
)

// RedisStateStore is the DeviceStateStore over a Redis hash per device plus a
// registry set for enumeration.
type RedisStateStore struct {
	client *redis.Client
}

func NewRedisStateStore(client *redis.Client) *RedisStateStore {
	return &RedisStateStore{client: client}
}

func (s *RedisStateStore) PutLatestReading(ctx context.Context, r messages.SensorReading) error {
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, deviceKeyPrefix+r.DeviceID, map[string]interface{}{
		"measure_date":  r.Timestamp,
		"temperature":   string(r.Temperature),
		"humidity":      string(r.Humidity),
		"soil_moisture": string(r.SoilMoisture),
	})
	pipe.SAdd(ctx, deviceSetKey, r.DeviceID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("upsert state for %s: %w", r.DeviceID, err)
	}
	return nil
}

func (s *RedisStateStore) SetLastIrrigation(ctx context.Context, deviceID string, at time.Time) error {
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, deviceKeyPrefix+deviceID, "last_irrigation", at.Format(messages.TimeLayout))
	pipe.SAdd(ctx, deviceSetKey, deviceID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("set last_irrigation for %s: %w", deviceID, err)
	}
	return nil
}

func (s *RedisStateStore) LastIrrigation(ctx context.Context, deviceID string) (time.Time, bool, error) {
	v, err := s.client.HGet(ctx, deviceKeyPrefix+deviceID, "last_irrigation").Result()
	if err == redis.Nil {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("get last_irrigation for %s: %w", deviceID, err)
	}
	t, err := time.ParseInLocation(messages.TimeLayout, v, time.Local)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("stored last_irrigation for %s: %w", deviceID, err)
	}
	return t, true, nil
}

func (s *RedisStateStore) Get(ctx context.Context, deviceID string) (entities.DeviceState, bool, error) {
	m, err := s.client.HGetAll(ctx, deviceKeyPrefix+deviceID).Result()
	if err != nil {
		return entities.DeviceState{}, false, fmt.Errorf("get state for %s: %w", deviceID, err)
	}
	if len(m) == 0 {
		return entities.DeviceState{}, false, nil
	}
	return entities.DeviceState{
		DeviceID:       deviceID,
		Temperature:    m["temperature"],
		Humidity:       m["humidity"],
		SoilMoisture:   m["soil_moisture"],
		MeasuredAt:     m["measure_date"],
		LastIrrigation: m["last_irrigation"],
	}, true, nil
}

func (s *RedisStateStore) All(ctx context.Context) ([]entities.DeviceState, error) {
	ids, err := s.client.SMembers(ctx, deviceSetKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	sort.Strings(ids)

	out := make([]entities.DeviceState, 0, len(ids))
	for _, id := range ids {
		st, ok, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, st)
		}
	}
	return out, nil
}
