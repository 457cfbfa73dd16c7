package task

import (
	"context"
	"sync"

	"e2e_transport/internal/utils/log"

	"go.uber.org/zap"
)

// Spawner runs detached background work. Spawned tasks are never awaited by
// the caller and their errors only reach the log, so nothing may depend on
// their ordering or completion.
type Spawner struct {
	ctx context.Context
	wg  sync.WaitGroup
}

func NewSpawner(ctx context.Context) *Spawner {
	return &Spawner{ctx: context.WithoutCancel(ctx)}
}

func (s *Spawner) Go(name string, fn func(ctx context.Context) error) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				log.Error("background task panicked", zap.String("task", name), zap.Any("panic", r))
			}
		}()

		if err := fn(s.ctx); err != nil {
			log.Error("background task failed", zap.String("task", name), zap.Error(err))
		}
	}()
}

// Wait blocks until every task spawned so far has returned. Production code
// never calls it; tests and shutdown paths do.
func (s *Spawner) Wait() {
	s.wg.Wait()
}
