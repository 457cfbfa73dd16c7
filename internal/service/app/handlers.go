package app

import (
	"context"
	"e2e_transport/internal/model"
	"e2e_transport/internal/repository/message"
	"e2e_transport/internal/utils/log"
	"fmt"

	"go.uber.org/zap"
)

// The App is the receive pipeline's sink for side effects: it persists them
// and reports them on the console.

func (c *App) UpdateNotification(ctx context.Context, threadID int64) {
	if threadID == 0 {
		return
	}
	t, err := c.Messages.Thread(ctx, threadID)
	if err != nil || t == nil {
		return
	}
	if t.Unread > 0 {
		c.printf("(%d unread in %s)\n", t.Unread, t.Address)
	}
}

func (c *App) ProcessReadReceipts(ctx context.Context, sender string, timestamps []int64, received int64) error {
	threadID, ok, err := c.Messages.GetThreadID(ctx, model.StandardAddress(sender).String())
	if err != nil || !ok {
		return err
	}
	return c.Messages.MarkReadByTimestamps(ctx, threadID, timestamps)
}

func (c *App) Started(threadID int64, sender string) {
	c.printf("%s is typing...\n", sender)
}

func (c *App) Stopped(threadID int64, sender string) {}

func (c *App) HandleExpirationTimerUpdate(ctx context.Context, threadID int64, m *model.Message) error {
	u, ok := m.Body.(*model.ExpirationTimerUpdate)
	if !ok {
		return fmt.Errorf("not an expiration timer update: %s", m.Kind())
	}
	if err := c.Messages.SetExpiryMode(ctx, threadID, u.Mode); err != nil {
		return err
	}
	c.printf("%s set disappearing messages to %s\n", m.Sender, u.Mode.Duration)
	return nil
}

func (c *App) HandleRequestResponse(ctx context.Context, m *model.Message) error {
	r, ok := m.Body.(*model.MessageRequestResponse)
	if !ok {
		return fmt.Errorf("not a message request response: %s", m.Kind())
	}
	if m.Profile != nil {
		if err := c.Accounts.UpdateProfile(ctx, m.Sender, m.Profile); err != nil {
			log.Warn("update sender profile", zap.String("sender", m.Sender), zap.Error(err))
		}
	}
	return c.Accounts.Approve(ctx, m.Sender, r.Approved)
}

func (c *App) HandleVisible(ctx context.Context, threadID int64, addr model.Address, m *model.Message) (int64, error) {
	v, ok := m.Body.(*model.VisibleMessage)
	if !ok {
		return 0, fmt.Errorf("not a visible message: %s", m.Kind())
	}
	if m.Profile != nil && !m.IsSenderSelf {
		if err := c.Accounts.UpdateProfile(ctx, m.Sender, m.Profile); err != nil {
			log.Warn("update sender profile", zap.String("sender", m.Sender), zap.Error(err))
		}
	}

	if v.Reaction != nil {
		return c.handleReaction(ctx, m, v.Reaction)
	}

	id, err := c.Messages.Insert(ctx, &message.Document{
		ThreadID:          threadID,
		ThreadAddress:     addr,
		Author:            m.Sender,
		Timestamp:         m.SentTimestamp,
		ReceivedTimestamp: m.ReceivedTimestamp,
		Kind:              m.Kind().String(),
		Body:              v.Text,
		ServerHash:        m.ServerHash,
		OpenGroupServerID: m.OpenGroupServerMessageID,
		Outgoing:          m.IsSenderSelf,
		Read:              m.IsSenderSelf,
		Status:            message.StatusReceived,
	})
	if err != nil {
		return 0, err
	}

	author := m.Sender
	if m.IsSenderSelf {
		author = "you"
	}
	c.printf("[%s] %s: %s\n", addr, author, v.Text)
	return id, nil
}

func (c *App) handleReaction(ctx context.Context, m *model.Message, r *model.Reaction) (int64, error) {
	target, err := c.Messages.MessageByTimestamp(ctx, r.Timestamp, r.Author)
	if err != nil || target == nil {
		return 0, err
	}
	if !r.React {
		log.Debug("reaction removal is not tracked", zap.Int64("message", target.ID))
		return target.ID, nil
	}
	err = c.Messages.AddReactions(ctx, map[int64][]model.ReactionRecord{
		target.ID: {{
			MessageID:    target.ID,
			Author:       m.Sender,
			Emoji:        r.Emoji,
			Count:        1,
			DateSent:     m.SentTimestamp,
			DateReceived: m.ReceivedTimestamp,
		}},
	}, false)
	if err != nil {
		return 0, err
	}
	c.printf("%s reacted %s\n", m.Sender, r.Emoji)
	return target.ID, nil
}
