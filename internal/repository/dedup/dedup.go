// Package dedup remembers message timestamps already seen so a message is
// accepted at most once. Every backend checks and inserts atomically.
package dedup

import (
	"context"
	"e2e_transport/internal/service/redis"
	"fmt"
	"time"
)

const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendBadger = "badger"
)

type (
	Store interface {
		// RecordMessageTimestamp returns false when ts was already recorded.
		RecordMessageTimestamp(ctx context.Context, ts int64) (bool, error)
		Close() error
	}

	Config struct {
		Backend string `yaml:"backend"`
		// Window is how long a timestamp is remembered. Zero keeps it forever.
		Window     time.Duration `yaml:"window"`
		Capacity   int           `yaml:"capacity"`
		BadgerPath string        `yaml:"badger_path"`
	}
)

// Open builds the configured backend. rdb is only used by the redis backend.
func Open(cfg Config, rdb *redis.RedisService) (Store, error) {
	switch cfg.Backend {
	case "", BackendMemory:
		return NewMemory(cfg.Capacity, cfg.Window), nil
	case BackendRedis:
		if rdb == nil {
			return nil, fmt.Errorf("dedup: redis backend without a redis client")
		}
		return NewRedis(rdb, cfg.Window), nil
	case BackendBadger:
		return OpenBadger(cfg.BadgerPath, cfg.Window)
	}
	return nil, fmt.Errorf("dedup: unknown backend %q", cfg.Backend)
}

func key(ts int64) string {
	return fmt.Sprintf("dedup:%d", ts)
}
