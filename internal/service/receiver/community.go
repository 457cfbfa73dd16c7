package receiver

import (
	"context"
	"e2e_transport/internal/model"
	"e2e_transport/internal/protocol/codec"
	"errors"
	"fmt"
	"sort"
)

// MaxReactors is how many reactors per emoji a room poll asks the server for.
const MaxReactors = 5

// ProcessCommunityMessage applies one room post. Posts come back from the
// server again whenever their reactions change, so reactions are collected
// even when the post itself was already seen.
func (p *Processor) ProcessCommunityMessage(ctx context.Context, pc *Context, server, room string, post *model.CommunityMessage) error {
	addr := model.CommunityAddress(server, room)
	blinded, err := pc.BlindedIDs(ctx, server)
	if err != nil {
		return err
	}

	if post.Deleted {
		return p.deleteCommunityPost(ctx, pc, addr, post.ID)
	}

	m, err := p.Parser.ParseCommunityMessage(ctx, post, blinded)
	switch {
	case errors.Is(err, codec.ErrDuplicateMessage):
	case err != nil:
		return err
	case m != nil:
		if err := p.ProcessMessage(ctx, pc, addr, m); err != nil {
			return err
		}
	}

	return p.collectReactions(ctx, pc, addr, post, blinded)
}

// ProcessCommunityInboxMessage applies a blinded direct message sent to us.
func (p *Processor) ProcessCommunityInboxMessage(ctx context.Context, pc *Context, server string, dm *model.CommunityDirectMessage) error {
	return p.processDirect(ctx, pc, server, dm, dm.Sender)
}

// ProcessCommunityOutboxMessage applies our own copy of a blinded direct
// message we sent from another device.
func (p *Processor) ProcessCommunityOutboxMessage(ctx context.Context, pc *Context, server string, dm *model.CommunityDirectMessage) error {
	return p.processDirect(ctx, pc, server, dm, dm.Recipient)
}

func (p *Processor) processDirect(ctx context.Context, pc *Context, server string, dm *model.CommunityDirectMessage, partner string) error {
	serverPub, err := p.Communities.ServerPublicKey(ctx, server)
	if err != nil {
		return fmt.Errorf("no public key for community %s: %w", server, err)
	}
	blinded, err := pc.BlindedIDs(ctx, server)
	if err != nil {
		return err
	}
	m, err := p.Parser.ParseCommunityDirectMessage(ctx, dm, serverPub, blinded)
	if err != nil {
		return err
	}
	return p.ProcessMessage(ctx, pc, model.CommunityBlindedAddress(server, partner), m)
}

func (p *Processor) deleteCommunityPost(ctx context.Context, pc *Context, addr model.Address, serverID int64) error {
	threadID, ok, err := p.resolveThread(ctx, pc, addr, &model.Message{})
	if err != nil || !ok {
		return err
	}
	id, found, err := p.Messages.MessageIDByServerID(ctx, threadID, serverID)
	if err != nil || !found {
		return err
	}
	return p.Messages.DeleteMessage(ctx, id)
}

func (p *Processor) collectReactions(ctx context.Context, pc *Context, addr model.Address, post *model.CommunityMessage, blinded []model.AccountID) error {
	threadID, ok := pc.ThreadID(addr)
	if !ok {
		var err error
		if threadID, ok, err = p.Threads.GetThreadID(ctx, addr.String()); err != nil || !ok {
			return err
		}
		pc.setThreadID(addr, threadID)
	}
	messageID, found, err := p.Messages.MessageIDByServerID(ctx, threadID, post.ID)
	if err != nil || !found {
		return err
	}

	self := make([]string, 0, len(blinded)+1)
	self = append(self, p.self)
	for _, id := range blinded {
		self = append(self, id.Hex())
	}
	sent := int64(post.Posted * 1000)
	pc.deferReactions(messageID, ReactionRecords(messageID, post.ID, post.Reactions, self, sent, p.Clock.NowMillis()))
	return nil
}

// ReactionRecords flattens a post's reaction summary into at most MaxReactors
// records per emoji. selfIDs[0] is the id our own reaction is stored under;
// the remaining entries are aliases of ours to leave out of the others. The
// first record of each emoji carries the count of the other reactors.
func ReactionRecords(messageID, serverID int64, reactions map[string]model.CommunityReaction, selfIDs []string, sent, received int64) []model.ReactionRecord {
	emojis := make([]string, 0, len(reactions))
	for e := range reactions {
		emojis = append(emojis, e)
	}
	sort.Slice(emojis, func(i, j int) bool {
		ri, rj := reactions[emojis[i]], reactions[emojis[j]]
		if ri.Index != rj.Index {
			return ri.Index < rj.Index
		}
		return emojis[i] < emojis[j]
	})

	isSelf := make(map[string]bool, len(selfIDs))
	for _, id := range selfIDs {
		isSelf[id] = true
	}

	records := make([]model.ReactionRecord, 0)
	for _, emoji := range emojis {
		r := reactions[emoji]
		others := make([]string, 0, len(r.Reactors))
		for _, a := range r.Reactors {
			if !isSelf[a] {
				others = append(others, a)
			}
		}

		limit, count := MaxReactors, r.Count
		if r.You {
			limit--
			count--
		}
		if len(others) > limit {
			others = others[:limit]
		}

		for i, author := range others {
			rec := model.ReactionRecord{
				MessageID:    messageID,
				Author:       author,
				Emoji:        emoji,
				ServerID:     serverID,
				SortID:       r.Index,
				DateSent:     sent,
				DateReceived: received,
			}
			if i == 0 {
				rec.Count = count
			}
			records = append(records, rec)
		}
		if r.You && len(selfIDs) > 0 {
			records = append(records, model.ReactionRecord{
				MessageID:    messageID,
				Author:       selfIDs[0],
				Emoji:        emoji,
				ServerID:     serverID,
				Count:        1,
				SortID:       r.Index,
				DateSent:     sent,
				DateReceived: received,
			})
		}
	}
	return records
}
