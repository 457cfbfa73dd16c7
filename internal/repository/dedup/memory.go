package dedup

import (
	"context"
	"sync"
	"time"
)

// DefaultCapacity bounds the memory backend when no capacity is configured.
const DefaultCapacity = 100_000

// Memory keeps the most recent timestamps in process. The oldest entry is
// forgotten once capacity is reached, and entries older than window no
// longer count as seen.
type Memory struct {
	mu       sync.Mutex
	seen     map[int64]time.Time
	order    []int64
	next     int
	capacity int
	window   time.Duration
	now      func() time.Time
}

func NewMemory(capacity int, window time.Duration) *Memory {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Memory{
		seen:     make(map[int64]time.Time, capacity),
		order:    make([]int64, 0, capacity),
		capacity: capacity,
		window:   window,
		now:      time.Now,
	}
}

func (m *Memory) RecordMessageTimestamp(_ context.Context, ts int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if at, ok := m.seen[ts]; ok {
		if m.window <= 0 || now.Sub(at) < m.window {
			return false, nil
		}
		// expired: ts keeps its ring slot and is recorded again
		m.seen[ts] = now
		return true, nil
	}
	if len(m.order) < m.capacity {
		m.order = append(m.order, ts)
	} else {
		delete(m.seen, m.order[m.next])
		m.order[m.next] = ts
		m.next = (m.next + 1) % m.capacity
	}
	m.seen[ts] = now
	return true, nil
}

func (m *Memory) Close() error {
	return nil
}
