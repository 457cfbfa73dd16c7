package receiver

import (
	"context"
	"e2e_transport/internal/model"
	"e2e_transport/internal/protocol/codec"
	"e2e_transport/internal/protocol/groupauth"
	"e2e_transport/internal/utils/log"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// batchConcurrency bounds how many conversations of one batch run at once.
const batchConcurrency = 8

// ErrPanicked wraps a panic recovered while applying one message. The message
// is dropped.
var ErrPanicked = errors.New("message processing panicked")

// ProcessBatch applies a batch of parsed swarm messages. Messages of one
// conversation are applied in order; conversations run concurrently. A failing
// or panicking message never stops its siblings. The messages worth retrying are returned.
func (p *Processor) ProcessBatch(ctx context.Context, name string, msgs []*model.Message) []*model.Message {
	var (
		order  []model.Address
		byAddr = make(map[string][]*model.Message)
	)
	for _, m := range msgs {
		addr := p.ThreadAddress(m)
		key := addr.String()
		if _, ok := byAddr[key]; !ok {
			order = append(order, addr)
		}
		byAddr[key] = append(byAddr[key], m)
	}

	var (
		mu     sync.Mutex
		failed []*model.Message
	)
	_ = p.StartProcessing(ctx, name, func(pc *Context) error {
		var g errgroup.Group
		g.SetLimit(batchConcurrency)
		for _, addr := range order {
			conversation := byAddr[addr.String()]
			g.Go(func() error {
				for _, m := range conversation {
					err := p.processRecovered(ctx, pc, addr, m)
					if err == nil {
						continue
					}
					if !Retryable(err) {
						log.Warn("message failed permanently", zap.String("batch", name), zap.String("address", addr.String()), zap.Error(err))
						continue
					}
					log.Error("message failed", zap.String("batch", name), zap.String("address", addr.String()), zap.Error(err))
					mu.Lock()
					failed = append(failed, m)
					mu.Unlock()
				}
				return nil
			})
		}
		return g.Wait()
	})
	return failed
}

func (p *Processor) processRecovered(ctx context.Context, pc *Context, addr model.Address, m *model.Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrPanicked, r)
		}
	}()
	return p.ProcessMessage(ctx, pc, addr, m)
}

// Retryable reports whether processing a message again could succeed.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	return !codec.IsNonRetryable(err) &&
		!errors.Is(err, groupauth.ErrSignatureVerificationFailed) &&
		!errors.Is(err, ErrPanicked)
}
