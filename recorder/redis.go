// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package recorder

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisTTL expires the cached value of sensors that stop publishing.
const DefaultRedisTTL = 24 * time.Hour

// RedisClient is the subset of *redis.Client the recorder uses.
type RedisClient interface {
	Set(
		ctx context.Context,
		key string,
		value any,
		expiration time.Duration,
	) *redis.StatusCmd
	Ping(ctx context.Context) *redis.StatusCmd
}

// Redis keeps the last published payload of every sensor under
// sensor:last:{id}.
type Redis struct {
	client RedisClient
	ttl    time.Duration
}

// NewRedis returns a recorder writing through client. A non-positive ttl
// uses DefaultRedisTTL.
func NewRedis(client RedisClient, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = DefaultRedisTTL
	}
	return &Redis{client: client, ttl: ttl}
}

func (*Redis) Name() string { return "redis" }

// Key returns the cache key for a sensor.
func (*Redis) Key(sensorID string) string {
	return "sensor:last:" + sensorID
}

func (r *Redis) Record(ctx context.Context, e Entry) error {
	if err := r.client.Set(ctx, r.Key(e.SensorID), e.Payload, r.ttl).Err(); err != nil {
		return &RecordError{Recorder: "redis", SensorID: e.SensorID, wrapped: err}
	}
	return nil
}

func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
