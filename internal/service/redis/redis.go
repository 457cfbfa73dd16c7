package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Nil is returned by Get and LIndex for missing keys.
const Nil = redis.Nil

type (
	// Commands is the part of redis.Cmdable the services use. *redis.Client
	// satisfies it.
	Commands interface {
		RPush(ctx context.Context, key string, values ...any) *redis.IntCmd
		LRange(ctx context.Context, key string, start, stop int64) *redis.StringSliceCmd
		LTrim(ctx context.Context, key string, start, stop int64) *redis.StatusCmd
		Del(ctx context.Context, keys ...string) *redis.IntCmd
		Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
		SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd
		Get(ctx context.Context, key string) *redis.StringCmd
		Incr(ctx context.Context, key string) *redis.IntCmd
		Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
	}

	RedisService struct {
		rdb Commands
	}
)

func NewRedis(rdb Commands) *RedisService {
	return &RedisService{
		rdb: rdb,
	}
}

func NewClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

func (r *RedisService) RPush(ctx context.Context, key string, value ...any) error {
	return r.rdb.RPush(ctx, key, value...).Err()
}

// RPushExpire appends and pushes the key's expiry out to ttl.
func (r *RedisService) RPushExpire(ctx context.Context, key string, ttl time.Duration, value ...any) error {
	if err := r.rdb.RPush(ctx, key, value...).Err(); err != nil {
		return err
	}
	return r.rdb.Expire(ctx, key, ttl).Err()
}

func (r *RedisService) LRange(ctx context.Context, key string) ([]string, error) {
	return r.rdb.LRange(ctx, key, 0, -1).Result()
}

// LRangeFrom returns the list from index start on.
func (r *RedisService) LRangeFrom(ctx context.Context, key string, start int64) ([]string, error) {
	return r.rdb.LRange(ctx, key, start, -1).Result()
}

// LTrimTail keeps only the last n elements.
func (r *RedisService) LTrimTail(ctx context.Context, key string, n int64) error {
	return r.rdb.LTrim(ctx, key, -n, -1).Err()
}

func (r *RedisService) Del(ctx context.Context, key string) error {
	return r.rdb.Del(ctx, key).Err()
}

func (r *RedisService) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	return r.rdb.Set(ctx, key, value, ttl).Err()
}

// SetNX reports whether key was newly set.
func (r *RedisService) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	return r.rdb.SetNX(ctx, key, value, ttl).Result()
}

func (r *RedisService) Get(ctx context.Context, key string) (string, error) {
	return r.rdb.Get(ctx, key).Result()
}

func (r *RedisService) Incr(ctx context.Context, key string) (int64, error) {
	return r.rdb.Incr(ctx, key).Result()
}
