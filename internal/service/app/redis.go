package app

import (
	"context"
	"e2e_transport/internal/service/redis"
	"errors"
	"fmt"
	"strconv"
)

// Poll cursors live in redis so a restarted client resumes where it stopped.

func cursorKey(self, source string) string {
	return fmt.Sprintf("cursor:%s:%s", self, source)
}

func SaveCursor(ctx context.Context, rdb *redis.RedisService, self, source, cursor string) error {
	return rdb.Set(ctx, cursorKey(self, source), cursor, 0)
}

// GetCursor returns "" when source was never polled.
func GetCursor(ctx context.Context, rdb *redis.RedisService, self, source string) (string, error) {
	v, err := rdb.Get(ctx, cursorKey(self, source))
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return v, nil
}

func SaveSeqCursor(ctx context.Context, rdb *redis.RedisService, self, source string, seq int64) error {
	return SaveCursor(ctx, rdb, self, source, strconv.FormatInt(seq, 10))
}

func GetSeqCursor(ctx context.Context, rdb *redis.RedisService, self, source string) (int64, error) {
	v, err := GetCursor(ctx, rdb, self, source)
	if err != nil || v == "" {
		return 0, err
	}
	return strconv.ParseInt(v, 10, 64)
}
