package sender

import (
	"context"
	"e2e_transport/internal/model"
	"e2e_transport/internal/utils/log"

	"go.uber.org/zap"
)

// handleSuccess records a delivered message. communityPostedAt is the server's
// timestamp for community sends and -1 otherwise.
func (s *Sender) handleSuccess(ctx context.Context, m *model.Message, dest model.Destination, isSync bool, communityPostedAt int64) {
	// Our own message polled back from the swarm must be dropped as a duplicate.
	s.recordTimestamp(ctx, m.SentTimestamp)

	if m.ID != 0 {
		if _, visible := m.Body.(*model.VisibleMessage); visible && communityPostedAt != -1 {
			s.recordTimestamp(ctx, communityPostedAt)
			m.SentTimestamp = communityPostedAt
		}
		if m.ServerHash != "" {
			logIfErr("set server hash", s.Storage.SetServerHash(ctx, m.ID, m.ServerHash))
		}
		logIfErr("clear error", s.Storage.ClearError(ctx, m.ID))

		if og, ok := dest.(model.OpenGroup); ok && m.OpenGroupServerMessageID != 0 {
			threadID, found, err := s.Storage.GetThreadID(ctx, model.CommunityAddress(og.Server, og.Room).String())
			if err == nil && found && threadID >= 0 {
				logIfErr("set community server id", s.Storage.SetOpenGroupServerMessageID(ctx, m.ID, m.OpenGroupServerMessageID, threadID))
			}
		}
		logIfErr("mark sent", s.Storage.MarkSent(ctx, m.ID))
		logIfErr("update sent timestamp", s.Storage.UpdateSentTimestamp(ctx, m.ID, m.SentTimestamp))
	}

	contact, ok := dest.(model.Contact)
	if !ok || isSync {
		return
	}
	if _, den := m.Body.(*model.DataExtractionNotification); den {
		return
	}
	s.syncToSelf(ctx, m, contact)
}

// syncToSelf sends a copy of m to our own swarm so other devices see it. The
// copy is not awaited and its failure is only logged.
func (s *Sender) syncToSelf(ctx context.Context, m *model.Message, contact model.Contact) {
	cp := *m
	switch cp.Body.(type) {
	case *model.VisibleMessage, *model.ExpirationTimerUpdate:
		cp.SyncTarget = contact.PublicKey
	}
	cp.ServerHash = ""
	if cp.ID != 0 {
		logIfErr("mark syncing", s.Storage.MarkSyncing(ctx, cp.ID))
	}

	self := model.Contact{PublicKey: s.User.AccountID().Hex()}
	s.Spawner.Go("sync message", func(ctx context.Context) error {
		return s.Send(ctx, &cp, self, true)
	})
}

func (s *Sender) handleFailure(ctx context.Context, m *model.Message, cause error, isSync bool) {
	if m.ID == 0 {
		return
	}
	deleted, err := s.Storage.IsDeleted(ctx, m.ID)
	if err != nil {
		log.Warn("check deleted before marking failure", zap.Int64("id", m.ID), zap.Error(err))
	}
	if deleted {
		return
	}
	if isSync {
		logIfErr("mark sync failed", s.Storage.MarkSyncFailed(ctx, m.ID, cause))
		return
	}
	logIfErr("mark sent failed", s.Storage.MarkSentFailed(ctx, m.ID, cause))
}

func (s *Sender) recordTimestamp(ctx context.Context, ts int64) {
	if _, err := s.Dedup.RecordMessageTimestamp(ctx, ts); err != nil {
		log.Warn("record sent timestamp", zap.Int64("timestamp", ts), zap.Error(err))
	}
}

func logIfErr(op string, err error) {
	if err != nil {
		log.Error("send bookkeeping failed", zap.String("op", op), zap.Error(err))
	}
}
