package receiver

import (
	"context"
	"e2e_transport/internal/model"
	"e2e_transport/internal/utils/log"
	"fmt"

	"go.uber.org/zap"
)

// handleUnsend deletes the message an UnsendRequest points at and returns its
// id, or 0 when the request is not authorized or the target is unknown.
func (p *Processor) handleUnsend(ctx context.Context, m *model.Message, u *model.UnsendRequest) (int64, error) {
	allowed := m.Sender == u.Author || u.Author == p.self
	if !allowed {
		admin, err := p.isLegacyGroupAdmin(ctx, m)
		if err != nil {
			return 0, err
		}
		allowed = admin
	}
	if !allowed {
		log.Debug("ignoring unauthorized unsend request", zap.String("sender", m.Sender), zap.String("author", u.Author))
		return 0, nil
	}

	target, err := p.Messages.MessageByTimestamp(ctx, u.Timestamp, u.Author)
	if err != nil {
		return 0, fmt.Errorf("find unsent message: %w", err)
	}
	if target == nil {
		return 0, nil
	}

	if target.IsOneOnOne(p.self) && target.ServerHash != "" {
		hash := target.ServerHash
		p.Spawner.Go("unsend remote delete", func(ctx context.Context) error {
			return p.Remote.DeleteMessages(ctx, p.self, []string{hash})
		})
	}

	if target.IsNoteToSelf(p.self) {
		err = p.Messages.DeleteMessage(ctx, target.ID)
	} else {
		err = p.Messages.MarkMessageDeleted(ctx, target.ID, model.DeletedGloballyText)
	}
	if err != nil {
		return 0, fmt.Errorf("delete unsent message: %w", err)
	}

	if err := p.Messages.DeleteReactions(ctx, target.ID); err != nil {
		return 0, fmt.Errorf("delete reactions: %w", err)
	}
	if !target.Outgoing {
		p.Notifier.UpdateNotification(ctx, 0)
	}
	return target.ID, nil
}

func (p *Processor) isLegacyGroupAdmin(ctx context.Context, m *model.Message) (bool, error) {
	if m.GroupPublicKey == "" {
		return false, nil
	}
	if id, err := model.ParseAccountID(m.GroupPublicKey); err == nil && id.Prefix == model.PrefixGroup {
		return false, nil
	}
	g, err := p.Contacts.LegacyGroup(ctx, m.GroupPublicKey)
	if err != nil {
		return false, fmt.Errorf("load legacy group: %w", err)
	}
	return g != nil && g.IsAdmin(m.Sender), nil
}
