package clock

import (
	"sync/atomic"
	"time"
)

type (
	// Clock yields milliseconds since epoch.
	Clock interface {
		NowMillis() int64
	}

	// NetworkClock corrects the local wall clock by the offset reported by
	// storage nodes, so that sent timestamps agree with the swarm's view of time.
	NetworkClock struct {
		offsetMillis atomic.Int64
		now          func() time.Time
	}

	// Fixed is a Clock frozen at a single instant.
	Fixed int64
)

func NewNetworkClock() *NetworkClock {
	return &NetworkClock{now: time.Now}
}

func (c *NetworkClock) NowMillis() int64 {
	return c.now().UnixMilli() + c.offsetMillis.Load()
}

// ObserveNodeTime records a node-reported timestamp and updates the offset.
func (c *NetworkClock) ObserveNodeTime(nodeMillis int64) {
	c.offsetMillis.Store(nodeMillis - c.now().UnixMilli())
}

func (c *NetworkClock) Offset() time.Duration {
	return time.Duration(c.offsetMillis.Load()) * time.Millisecond
}

func (f Fixed) NowMillis() int64 {
	return int64(f)
}
