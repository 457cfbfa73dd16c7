package app

import (
	"context"
	"e2e_transport/internal/model"
	"e2e_transport/internal/protocol/codec"
	"e2e_transport/internal/service/receiver"
	"e2e_transport/internal/utils/log"
	"encoding/base64"
	"errors"
	"time"

	"go.uber.org/zap"
)

type parseFunc func(ctx context.Context, data []byte, hash string) (*model.Message, error)

func (c *App) subscribe(ctx context.Context) {
	ch, err := c.net.Subscribe(ctx, c.self)
	if err != nil {
		log.Warn("subscribe failed, falling back to polling", zap.Error(err))
		return
	}
	for range ch {
		select {
		case c.wake <- struct{}{}:
		default:
		}
	}
}

func (c *App) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(c.Config.Node.PollInterval)
	defer ticker.Stop()

	for {
		c.pollOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-c.wake:
		}
	}
}

func (c *App) pollOnce(ctx context.Context) {
	batch := c.retry
	c.retry = nil

	msgs, err := c.pollSwarm(ctx, c.self, model.NamespaceDefault, "swarm", c.codec.ParseOneOnOne)
	c.logPoll("swarm", err)
	batch = append(batch, msgs...)

	if groups, err := c.Accounts.Groups(ctx); err != nil {
		c.logPoll("groups", err)
	} else {
		for _, g := range groups {
			groupID := g.ID
			parse := func(ctx context.Context, data []byte, hash string) (*model.Message, error) {
				return c.codec.ParseGroupMessage(ctx, groupID, data, hash)
			}
			msgs, err := c.pollSwarm(ctx, groupID, model.NamespaceClosedGroupMessages, "group:"+groupID, parse)
			c.logPoll("group", err)
			batch = append(batch, msgs...)
		}
	}

	if legacy, err := c.Accounts.LegacyGroups(ctx); err != nil {
		c.logPoll("legacy groups", err)
	} else {
		for _, g := range legacy {
			msgs, err := c.pollSwarm(ctx, g.PublicKey, model.NamespaceUnauthenticatedClosedGroup, "legacy:"+g.PublicKey, c.codec.ParseLegacyGroupMessage)
			c.logPoll("legacy group", err)
			batch = append(batch, msgs...)
		}
	}

	if len(batch) > 0 {
		c.retry = c.receiver.ProcessBatch(ctx, "swarm poll", batch)
	}

	c.logPoll("community", c.pollCommunity(ctx))
}

func (c *App) logPoll(source string, err error) {
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Warn("poll failed", zap.String("source", source), zap.Error(err))
	}
}

// pollSwarm retrieves new messages for pubkey and parses them. The cursor
// advances past every retrieved message, parsed or not.
func (c *App) pollSwarm(ctx context.Context, pubkey string, namespace int, source string, parse parseFunc) ([]*model.Message, error) {
	last, err := GetCursor(ctx, c.Redis, c.self, source)
	if err != nil {
		return nil, err
	}
	retrieved, err := c.net.Retrieve(ctx, pubkey, namespace, last)
	if err != nil {
		return nil, err
	}
	if len(retrieved) == 0 {
		return nil, nil
	}

	msgs := parseRetrieved(ctx, retrieved, parse, c.Clock.NowMillis())
	return msgs, SaveCursor(ctx, c.Redis, c.self, source, retrieved[len(retrieved)-1].Hash)
}

// parseRetrieved decodes and parses swarm messages, dropping the ones that
// fail. Duplicates are expected: our own sends echo back.
func parseRetrieved(ctx context.Context, retrieved []*model.RetrievedMessage, parse parseFunc, now int64) []*model.Message {
	msgs := make([]*model.Message, 0, len(retrieved))
	for _, r := range retrieved {
		data, err := base64.StdEncoding.DecodeString(r.Data)
		if err != nil {
			log.Warn("undecodable swarm message", zap.String("hash", r.Hash), zap.Error(err))
			continue
		}
		m, err := parse(ctx, data, r.Hash)
		switch {
		case errors.Is(err, codec.ErrDuplicateMessage):
			log.Debug("duplicate swarm message", zap.String("hash", r.Hash))
			continue
		case err != nil:
			log.Warn("dropping swarm message", zap.String("hash", r.Hash), zap.Error(err))
			continue
		}
		if m.ReceivedTimestamp == 0 {
			m.ReceivedTimestamp = now
		}
		msgs = append(msgs, m)
	}
	return msgs
}

func (c *App) pollCommunity(ctx context.Context) error {
	server, room := c.net.Host(), c.Config.Node.Room
	source := "room:" + room

	since, err := GetSeqCursor(ctx, c.Redis, c.self, source)
	if err != nil {
		return err
	}
	posts, err := c.net.RoomMessages(ctx, server, room, since)
	if err != nil {
		return err
	}
	inSince, err := GetSeqCursor(ctx, c.Redis, c.self, "inbox")
	if err != nil {
		return err
	}
	inbox, err := c.net.Inbox(ctx, server, inSince)
	if err != nil {
		return err
	}
	outSince, err := GetSeqCursor(ctx, c.Redis, c.self, "outbox")
	if err != nil {
		return err
	}
	outbox, err := c.net.Outbox(ctx, server, outSince)
	if err != nil {
		return err
	}
	if len(posts)+len(inbox)+len(outbox) == 0 {
		return nil
	}

	_ = c.receiver.StartProcessing(ctx, "community poll", func(pc *receiver.Context) error {
		for _, post := range posts {
			if err := c.receiver.ProcessCommunityMessage(ctx, pc, server, room, post); err != nil && !errors.Is(err, codec.ErrDuplicateMessage) {
				log.Warn("community post failed", zap.Int64("id", post.ID), zap.Error(err))
			}
			since = max(since, post.Seqno)
		}
		for _, dm := range inbox {
			if err := c.receiver.ProcessCommunityInboxMessage(ctx, pc, server, dm); err != nil {
				log.Warn("inbox message failed", zap.Int64("id", dm.ID), zap.Error(err))
			}
			inSince = max(inSince, dm.ID)
		}
		for _, dm := range outbox {
			if err := c.receiver.ProcessCommunityOutboxMessage(ctx, pc, server, dm); err != nil {
				log.Warn("outbox message failed", zap.Int64("id", dm.ID), zap.Error(err))
			}
			outSince = max(outSince, dm.ID)
		}
		return nil
	})

	return errors.Join(
		SaveSeqCursor(ctx, c.Redis, c.self, source, since),
		SaveSeqCursor(ctx, c.Redis, c.self, "inbox", inSince),
		SaveSeqCursor(ctx, c.Redis, c.self, "outbox", outSince),
	)
}
