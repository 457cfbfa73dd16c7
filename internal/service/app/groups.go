package app

import (
	"context"
	"crypto/ed25519"
	"e2e_transport/internal/model"
	"e2e_transport/internal/repository/account"
	"e2e_transport/internal/repository/message"
	"e2e_transport/internal/service/groupcontrol"
	"e2e_transport/internal/utils/log"

	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"
)

// groupManager keeps group membership in the account store.
type groupManager struct {
	self     string
	accounts *account.AccountRepo
	messages *message.MessageRepo
	printf   func(format string, args ...any)
}

func (g *groupManager) HandleInvitation(ctx context.Context, inv groupcontrol.Invitation) error {
	groupID := inv.GroupID.Hex()
	existing, err := g.accounts.Group(ctx, groupID)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}

	err = g.accounts.SaveGroup(ctx, &account.GroupDocument{
		ID:       groupID,
		Name:     inv.Name,
		AuthData: inv.AuthData,
		Members:  []string{inv.Inviter.Hex(), g.self},
		Invited:  true,
	})
	if err != nil {
		return err
	}
	g.printf("%s invited you to %q (%s)\n", inv.Inviter.Hex(), inv.Name, groupID)
	return nil
}

func (g *groupManager) HandlePromotion(ctx context.Context, p groupcontrol.Promotion) error {
	groupID := p.GroupID.Hex()
	doc, err := g.accounts.Group(ctx, groupID)
	if err != nil {
		return err
	}
	if doc == nil {
		doc = &account.GroupDocument{ID: groupID, Members: []string{p.Promoter.Hex(), g.self}}
	}
	if p.Name != "" {
		doc.Name = p.Name
	}
	doc.SigningKey = ed25519.NewKeyFromSeed(p.AdminKeySeed)
	doc.Invited = false
	if err := g.accounts.SaveGroup(ctx, doc); err != nil {
		return err
	}
	g.printf("you are now an admin of %q\n", doc.Name)
	return nil
}

func (g *groupManager) HandleInviteResponse(ctx context.Context, groupID, sender model.AccountID, approved bool) error {
	if !approved {
		return nil
	}
	return g.accounts.UpdateGroup(ctx, groupID.Hex(), bson.M{"$addToSet": bson.M{"members": sender.Hex()}})
}

func (g *groupManager) HandleMemberLeft(ctx context.Context, groupID, sender model.AccountID) error {
	return g.accounts.UpdateGroup(ctx, groupID.Hex(), bson.M{"$pull": bson.M{"members": sender.Hex()}})
}

// HandleDeleteMemberContent removes content from the group thread. Members
// without a verified admin signature may only remove their own messages.
func (g *groupManager) HandleDeleteMemberContent(ctx context.Context, groupID, sender model.AccountID, content *model.GroupDeleteMemberContent, timestamp int64, senderIsVerifiedAdmin bool) error {
	threadID, ok, err := g.messages.GetThreadID(ctx, model.GroupAddress(groupID.Hex()).String())
	if err != nil || !ok {
		return err
	}

	var deleted int64
	members := content.MemberIDs
	author := ""
	if !senderIsVerifiedAdmin {
		members = nil
		for _, id := range content.MemberIDs {
			if id == sender.Hex() {
				members = []string{id}
			}
		}
		author = sender.Hex()
	}
	if len(members) > 0 {
		n, err := g.messages.DeleteByAuthors(ctx, threadID, members, timestamp)
		if err != nil {
			return err
		}
		deleted += n
	}
	if len(content.MessageHashes) > 0 {
		n, err := g.messages.DeleteByHashes(ctx, threadID, content.MessageHashes, author)
		if err != nil {
			return err
		}
		deleted += n
	}
	log.Debug("deleted member content", zap.String("group", groupID.Hex()), zap.Int64("count", deleted))
	return nil
}
