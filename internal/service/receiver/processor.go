// Package receiver applies parsed inbound messages to local state. Work for a
// single conversation is serialized; different conversations run in parallel.
package receiver

import (
	"context"
	"e2e_transport/internal/model"
	"e2e_transport/internal/utils/clock"
	"e2e_transport/internal/utils/lockmap"
	"e2e_transport/internal/utils/log"
	"e2e_transport/internal/utils/task"
	"fmt"

	"go.uber.org/zap"
)

type (
	Threads interface {
		GetThreadID(ctx context.Context, address string) (int64, bool, error)
		GetOrCreateThreadID(ctx context.Context, address model.Address) (int64, error)
		LastSeen(ctx context.Context, threadID int64) (int64, error)
		MarkConversationAsRead(ctx context.Context, threadID, lastSeen int64) error
		UpdateThread(ctx context.Context, threadID int64) error
	}

	Messages interface {
		// MessageByTimestamp returns (nil, nil) when no such message is stored.
		MessageByTimestamp(ctx context.Context, timestamp int64, author string) (*model.MessageRecord, error)
		MessageIDByServerID(ctx context.Context, threadID, serverID int64) (int64, bool, error)
		DeleteMessage(ctx context.Context, id int64) error
		MarkMessageDeleted(ctx context.Context, id int64, placeholder string) error
		DeleteReactions(ctx context.Context, messageID int64) error
		AddReactions(ctx context.Context, reactions map[int64][]model.ReactionRecord, replaceAll bool) error
		InsertDataExtractionNotification(ctx context.Context, threadID int64, m *model.Message) error
	}

	Contacts interface {
		Recipient(ctx context.Context, addr model.Address) (*model.Recipient, error)
		// ContactConfigTimestamp is when the contact list was last changed.
		ContactConfigTimestamp(ctx context.Context) (int64, error)
		LegacyGroup(ctx context.Context, publicKey string) (*model.LegacyGroup, error)
	}

	Communities interface {
		ServerPublicKey(ctx context.Context, server string) (string, error)
	}

	Parser interface {
		ParseCommunityMessage(ctx context.Context, post *model.CommunityMessage, blindedIDs []model.AccountID) (*model.Message, error)
		ParseCommunityDirectMessage(ctx context.Context, dm *model.CommunityDirectMessage, serverPublicKey string, blindedIDs []model.AccountID) (*model.Message, error)
	}

	GroupControl interface {
		Handle(ctx context.Context, m *model.Message, groupID string) error
	}

	// Notifier refreshes notifications. Thread id 0 refreshes every thread.
	Notifier interface {
		UpdateNotification(ctx context.Context, threadID int64)
	}

	ReadReceipts interface {
		ProcessReadReceipts(ctx context.Context, sender string, timestamps []int64, received int64) error
	}

	Typing interface {
		Started(threadID int64, sender string)
		Stopped(threadID int64, sender string)
	}

	ExpiryTimers interface {
		HandleExpirationTimerUpdate(ctx context.Context, threadID int64, m *model.Message) error
	}

	RequestResponses interface {
		HandleRequestResponse(ctx context.Context, m *model.Message) error
	}

	// VisibleHandler persists a visible message with its attachments,
	// profile and mentions, and returns the stored message id.
	VisibleHandler interface {
		HandleVisible(ctx context.Context, threadID int64, addr model.Address, m *model.Message) (int64, error)
	}

	RemoteDeleter interface {
		DeleteMessages(ctx context.Context, owner string, hashes []string) error
	}

	Deps struct {
		User         *model.UserKeyPair
		Threads      Threads
		Messages     Messages
		Contacts     Contacts
		Communities  Communities
		Parser       Parser
		Groups       GroupControl
		Notifier     Notifier
		ReadReceipts ReadReceipts
		Typing       Typing
		Expiry       ExpiryTimers
		Requests     RequestResponses
		Visible      VisibleHandler
		Remote       RemoteDeleter
		// Calls receives call signaling messages. A full queue drops the message.
		Calls   chan<- *model.Message
		Clock   clock.Clock
		Spawner *task.Spawner
	}

	Processor struct {
		Deps
		self  string
		locks *lockmap.LockMap
	}
)

func New(d Deps) *Processor {
	return &Processor{
		Deps:  d,
		self:  d.User.AccountID().Hex(),
		locks: lockmap.New(),
	}
}

// StartProcessing runs fn with a fresh Context. Thread, notification and
// deferred reaction updates for everything fn touched run afterwards, even
// when fn fails. A panic in fn still runs them before it propagates.
func (p *Processor) StartProcessing(ctx context.Context, name string, fn func(pc *Context) error) error {
	pc := p.newContext()
	defer p.finish(ctx, name, pc)
	return fn(pc)
}

func (p *Processor) finish(ctx context.Context, name string, pc *Context) {
	ctx = context.WithoutCancel(ctx)
	maxOutgoing := pc.MaxOutgoingTimestamp()

	for _, threadID := range pc.ThreadIDs() {
		if maxOutgoing > 0 {
			lastSeen, err := p.Threads.LastSeen(ctx, threadID)
			if err != nil {
				log.Warn("read last seen", zap.String("batch", name), zap.Int64("thread", threadID), zap.Error(err))
			} else if maxOutgoing > lastSeen {
				logIfErr(name, "mark conversation read", p.Threads.MarkConversationAsRead(ctx, threadID, maxOutgoing))
			}
		}
		logIfErr(name, "update thread", p.Threads.UpdateThread(ctx, threadID))
		p.Notifier.UpdateNotification(ctx, threadID)
	}

	if reactions := pc.takeReactions(); len(reactions) > 0 {
		logIfErr(name, "add community reactions", p.Messages.AddReactions(ctx, reactions, true))
	}
}

// ThreadAddress is the conversation a parsed swarm message belongs to.
func (p *Processor) ThreadAddress(m *model.Message) model.Address {
	if m.GroupPublicKey != "" {
		if id, err := model.ParseAccountID(m.GroupPublicKey); err == nil && id.Prefix == model.PrefixGroup {
			return model.GroupAddress(m.GroupPublicKey)
		}
		return model.LegacyGroupAddress(m.GroupPublicKey)
	}
	if m.IsSenderSelf {
		if target := m.SenderOrSync(); target != m.Sender {
			return model.StandardAddress(target)
		}
		return model.StandardAddress(p.self)
	}
	return model.StandardAddress(m.Sender)
}

// ProcessSwarmMessage applies m to the conversation it was polled for.
func (p *Processor) ProcessSwarmMessage(ctx context.Context, pc *Context, m *model.Message) error {
	return p.ProcessMessage(ctx, pc, p.ThreadAddress(m), m)
}

// ProcessMessage applies m to the conversation at addr while holding that
// conversation's lock.
func (p *Processor) ProcessMessage(ctx context.Context, pc *Context, addr model.Address, m *model.Message) (err error) {
	p.locks.WithLock(addr.String(), func() {
		err = p.process(ctx, pc, addr, m)
	})
	return err
}

func (p *Processor) process(ctx context.Context, pc *Context, addr model.Address, m *model.Message) error {
	if addr.Kind == model.AddressStandard {
		drop, err := p.hiddenContact(ctx, pc, addr, m.SentTimestamp)
		if err != nil {
			return err
		}
		if drop {
			log.Debug("dropping message from hidden contact", zap.String("address", addr.String()))
			return nil
		}
	}

	threadID, ok, err := p.resolveThread(ctx, pc, addr, m)
	if err != nil {
		return err
	}
	if !ok {
		log.Debug("dropping message for missing thread", zap.String("address", addr.String()), zap.Stringer("kind", m.Kind()))
		return nil
	}
	m.ThreadID = threadID

	switch b := m.Body.(type) {
	case *model.ReadReceipt:
		return p.ReadReceipts.ProcessReadReceipts(ctx, m.Sender, b.Timestamps, m.ReceivedTimestamp)

	case *model.TypingIndicator:
		if b.Started {
			p.Typing.Started(threadID, m.Sender)
		} else {
			p.Typing.Stopped(threadID, m.Sender)
		}
		return nil

	case *model.GroupUpdated:
		groupID := ""
		if addr.Kind == model.AddressGroup {
			groupID = addr.ID
		}
		return p.Groups.Handle(ctx, m, groupID)

	case *model.ExpirationTimerUpdate:
		if !addr.IsOneOnOne() {
			log.Debug("ignoring expiration timer update", zap.String("address", addr.String()))
			return nil
		}
		return p.Expiry.HandleExpirationTimerUpdate(ctx, threadID, m)

	case *model.DataExtractionNotification:
		if m.GroupPublicKey != "" {
			return nil
		}
		return p.Messages.InsertDataExtractionNotification(ctx, threadID, m)

	case *model.UnsendRequest:
		_, err := p.handleUnsend(ctx, m, b)
		return err

	case *model.MessageRequestResponse:
		return p.Requests.HandleRequestResponse(ctx, m)

	case *model.VisibleMessage:
		if m.IsSenderSelf {
			pc.observeOutgoing(m.SentTimestamp)
		}
		_, err := p.Visible.HandleVisible(ctx, threadID, addr, m)
		return err

	case *model.CallMessage:
		if p.Calls == nil {
			return nil
		}
		select {
		case p.Calls <- m:
		default:
			log.Warn("call queue full, dropping call message", zap.String("call", b.CallID))
		}
		return nil
	}
	return fmt.Errorf("unhandled message kind %s", m.Kind())
}

// hiddenContact reports whether a message from a hidden contact predates the
// contact list change that hid them.
func (p *Processor) hiddenContact(ctx context.Context, pc *Context, addr model.Address, sent int64) (bool, error) {
	if sent == 0 {
		return false, nil
	}
	r, err := pc.Recipient(ctx, addr)
	if err != nil {
		return false, err
	}
	if r == nil || !r.Hidden {
		return false, nil
	}
	ts, err := pc.ContactConfigTimestamp(ctx)
	if err != nil {
		return false, err
	}
	return sent < ts, nil
}

func (p *Processor) resolveThread(ctx context.Context, pc *Context, addr model.Address, m *model.Message) (int64, bool, error) {
	if id, ok := pc.ThreadID(addr); ok {
		return id, true, nil
	}

	switch m.Body.(type) {
	case *model.VisibleMessage, *model.GroupUpdated:
		id, err := p.Threads.GetOrCreateThreadID(ctx, addr)
		if err != nil {
			return 0, false, fmt.Errorf("create thread: %w", err)
		}
		pc.setThreadID(addr, id)
		return id, true, nil
	}

	id, ok, err := p.Threads.GetThreadID(ctx, addr.String())
	if err != nil || !ok {
		return 0, false, err
	}
	pc.setThreadID(addr, id)
	return id, true, nil
}

func logIfErr(batch, what string, err error) {
	if err != nil {
		log.Error(what, zap.String("batch", batch), zap.Error(err))
	}
}
