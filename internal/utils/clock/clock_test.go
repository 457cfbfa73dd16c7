package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNetworkClockAppliesOffset(t *testing.T) {
	base := time.UnixMilli(1_000_000)
	c := &NetworkClock{now: func() time.Time { return base }}
	assert.EqualValues(t, 1_000_000, c.NowMillis())

	c.ObserveNodeTime(1_005_000)
	assert.EqualValues(t, 1_005_000, c.NowMillis())
	assert.Equal(t, 5*time.Second, c.Offset())
}
