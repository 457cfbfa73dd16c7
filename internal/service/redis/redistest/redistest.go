// Package redistest provides an in-memory stand-in for the redis commands
// used by the services, for tests that cannot reach a server.
package redistest

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

type Fake struct {
	mu      sync.Mutex
	strings map[string]string
	lists   map[string][]string
	ttls    map[string]time.Duration
}

func New() *Fake {
	return &Fake{
		strings: make(map[string]string),
		lists:   make(map[string][]string),
		ttls:    make(map[string]time.Duration),
	}
}

// TTL returns the last expiry set on key.
func (f *Fake) TTL(key string) time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ttls[key]
}

func (f *Fake) RPush(_ context.Context, key string, values ...any) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, v := range values {
		f.lists[key] = append(f.lists[key], toString(v))
	}
	return redis.NewIntResult(int64(len(f.lists[key])), nil)
}

func (f *Fake) LRange(_ context.Context, key string, start, stop int64) *redis.StringSliceCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	l := f.lists[key]
	from, to := bounds(int64(len(l)), start, stop)
	if from >= to {
		return redis.NewStringSliceResult([]string{}, nil)
	}
	return redis.NewStringSliceResult(append([]string(nil), l[from:to]...), nil)
}

func (f *Fake) LTrim(_ context.Context, key string, start, stop int64) *redis.StatusCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	l := f.lists[key]
	from, to := bounds(int64(len(l)), start, stop)
	if from >= to {
		delete(f.lists, key)
	} else {
		f.lists[key] = append([]string(nil), l[from:to]...)
	}
	return redis.NewStatusResult("OK", nil)
}

func (f *Fake) Del(_ context.Context, keys ...string) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, k := range keys {
		if _, ok := f.strings[k]; ok {
			n++
		}
		if _, ok := f.lists[k]; ok {
			n++
		}
		delete(f.strings, k)
		delete(f.lists, k)
		delete(f.ttls, k)
	}
	return redis.NewIntResult(n, nil)
}

func (f *Fake) Set(_ context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.strings[key] = toString(value)
	f.ttls[key] = expiration
	return redis.NewStatusResult("OK", nil)
}

func (f *Fake) SetNX(_ context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.strings[key]; ok {
		return redis.NewBoolResult(false, nil)
	}
	f.strings[key] = toString(value)
	f.ttls[key] = expiration
	return redis.NewBoolResult(true, nil)
}

func (f *Fake) Get(_ context.Context, key string) *redis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.strings[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *Fake) Incr(_ context.Context, key string) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, _ := strconv.ParseInt(f.strings[key], 10, 64)
	n++
	f.strings[key] = strconv.FormatInt(n, 10)
	return redis.NewIntResult(n, nil)
}

func (f *Fake) Expire(_ context.Context, key string, expiration time.Duration) *redis.BoolCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, s := f.strings[key]
	_, l := f.lists[key]
	if !s && !l {
		return redis.NewBoolResult(false, nil)
	}
	f.ttls[key] = expiration
	return redis.NewBoolResult(true, nil)
}

// bounds converts redis inclusive, possibly negative, indices into a slice range.
func bounds(n, start, stop int64) (int64, int64) {
	if start < 0 {
		start += n
	}
	if stop < 0 {
		stop += n
	}
	if start < 0 {
		start = 0
	}
	if stop >= n {
		stop = n - 1
	}
	return start, stop + 1
}

func toString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case []byte:
		return string(x)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	}
	return ""
}
