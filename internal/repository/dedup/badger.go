package dedup

import (
	"context"
	"e2e_transport/internal/utils/log"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"
)

// Badger persists the seen set on local disk. An empty path keeps it in memory.
type Badger struct {
	db     *badger.DB
	window time.Duration
}

func OpenBadger(path string, window time.Duration) (*Badger, error) {
	opts := badger.DefaultOptions(path).WithLogger(badgerLogger{log.Logger().Sugar()})
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &Badger{db: db, window: window}, nil
}

func (b *Badger) RecordMessageTimestamp(ctx context.Context, ts int64) (bool, error) {
	k := []byte(key(ts))
	for {
		var recorded bool
		err := b.db.Update(func(txn *badger.Txn) error {
			_, err := txn.Get(k)
			if err == nil {
				return nil
			}
			if !errors.Is(err, badger.ErrKeyNotFound) {
				return err
			}
			e := badger.NewEntry(k, []byte{1})
			if b.window > 0 {
				e = e.WithTTL(b.window)
			}
			recorded = true
			return txn.SetEntry(e)
		})
		// a concurrent writer committed the same key first
		if errors.Is(err, badger.ErrConflict) {
			if ctx.Err() != nil {
				return false, ctx.Err()
			}
			continue
		}
		if err != nil {
			return false, err
		}
		return recorded, nil
	}
}

func (b *Badger) Close() error {
	return b.db.Close()
}

type badgerLogger struct {
	*zap.SugaredLogger
}

func (l badgerLogger) Warningf(format string, args ...any) {
	l.Warnf(format, args...)
}
