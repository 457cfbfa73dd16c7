package sender

import (
	"context"
	"e2e_transport/internal/model"
	"e2e_transport/internal/utils/log"

	"go.uber.org/zap"
)

type storeAttempt struct {
	index int
	res   *model.StoreResult
	err   error
}

// race stores msg in every namespace at once and returns the first success.
// Losing attempts keep running and their results are dropped; stores are
// idempotent on the node so nothing is cancelled. When every attempt fails the
// error of the first namespace in dispatch order is returned.
func (s *Sender) race(ctx context.Context, msg *model.SnodeMessage, namespaces []int, auth *model.SwarmAuth) (*model.StoreResult, error) {
	results := make(chan storeAttempt, len(namespaces))
	for i, ns := range namespaces {
		go func(i, ns int) {
			res, err := s.Swarm.Store(ctx, msg, ns, auth)
			results <- storeAttempt{index: i, res: res, err: err}
		}(i, ns)
	}

	errs := make([]error, len(namespaces))
	for range namespaces {
		a := <-results
		if a.err == nil {
			return a.res, nil
		}
		log.Debug("namespace store failed", zap.Int("namespace", namespaces[a.index]), zap.Error(a.err))
		errs[a.index] = a.err
	}
	return nil, errs[0]
}
