package task

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSpawnerRunsAndSwallowsErrors(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := NewSpawner(ctx)
	cancel()

	var ran atomic.Int32
	s.Go("ok", func(ctx context.Context) error {
		assert.NoError(t, ctx.Err())
		ran.Add(1)
		return nil
	})
	s.Go("fails", func(context.Context) error {
		ran.Add(1)
		return errors.New("boom")
	})
	s.Go("panics", func(context.Context) error {
		ran.Add(1)
		panic("bad")
	})
	s.Wait()

	assert.EqualValues(t, 3, ran.Load())
}
