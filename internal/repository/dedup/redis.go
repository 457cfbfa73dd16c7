package dedup

import (
	"context"
	"e2e_transport/internal/service/redis"
	"time"
)

// Redis shares the seen set between processes with SET NX.
type Redis struct {
	rdb    *redis.RedisService
	window time.Duration
}

func NewRedis(rdb *redis.RedisService, window time.Duration) *Redis {
	return &Redis{rdb: rdb, window: window}
}

func (r *Redis) RecordMessageTimestamp(ctx context.Context, ts int64) (bool, error) {
	return r.rdb.SetNX(ctx, key(ts), 1, r.window)
}

func (r *Redis) Close() error {
	return nil
}
