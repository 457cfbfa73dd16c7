// Package groupcontrol applies GroupUpdated control messages after checking
// the group admin's signature where one is required.
package groupcontrol

import (
	"context"
	"e2e_transport/internal/cryptographic/signature"
	"e2e_transport/internal/model"
	"e2e_transport/internal/protocol/groupauth"
	"e2e_transport/internal/utils/log"
	"e2e_transport/internal/utils/task"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

var (
	ErrSignatureVerificationFailed = groupauth.ErrSignatureVerificationFailed
	ErrMissingGroup                = errors.New("group update not received from a group")
	ErrNotGroupUpdate              = errors.New("not a group update")
	ErrInvalidUpdate               = errors.New("invalid group update")
)

type (
	Invitation struct {
		GroupID     model.AccountID
		Name        string
		AuthData    []byte
		Inviter     model.AccountID
		InviterName string
		MessageHash string
		Timestamp   int64
	}

	Promotion struct {
		GroupID      model.AccountID
		Name         string
		AdminKeySeed []byte
		Promoter     model.AccountID
		PromoterName string
		MessageHash  string
		Timestamp    int64
	}

	// GroupManager owns group state. Every call is idempotent.
	GroupManager interface {
		HandleInvitation(ctx context.Context, inv Invitation) error
		HandlePromotion(ctx context.Context, p Promotion) error
		HandleInviteResponse(ctx context.Context, groupID, sender model.AccountID, approved bool) error
		HandleMemberLeft(ctx context.Context, groupID, sender model.AccountID) error
		HandleDeleteMemberContent(ctx context.Context, groupID, sender model.AccountID, content *model.GroupDeleteMemberContent, timestamp int64, senderIsVerifiedAdmin bool) error
	}

	// Storage records group changes shown in the conversation.
	Storage interface {
		InsertGroupInfoChange(ctx context.Context, m *model.Message, groupID model.AccountID) error
	}

	ProfileUpdater interface {
		UpdateProfile(ctx context.Context, sender string, p *model.Profile) error
	}

	Handler struct {
		user     *model.UserKeyPair
		manager  GroupManager
		storage  Storage
		profiles ProfileUpdater
		spawner  *task.Spawner
	}
)

func NewHandler(user *model.UserKeyPair, manager GroupManager, storage Storage, profiles ProfileUpdater, spawner *task.Spawner) *Handler {
	return &Handler{
		user:     user,
		manager:  manager,
		storage:  storage,
		profiles: profiles,
		spawner:  spawner,
	}
}

// Handle applies m. groupID is the group the message was polled from and is
// empty for invites and promotions, which arrive in one-on-one conversations.
// Failures of asynchronous group-state updates are logged and never returned.
func (h *Handler) Handle(ctx context.Context, m *model.Message, groupID string) error {
	gu, ok := m.Body.(*model.GroupUpdated)
	if !ok {
		return ErrNotGroupUpdate
	}

	var group model.AccountID
	switch gu.Update.(type) {
	case *model.GroupInvite, *model.GroupPromote:
	default:
		if groupID == "" {
			return ErrMissingGroup
		}
		var err error
		if group, err = model.ParseAccountID(groupID); err != nil {
			return err
		}
	}

	if m.Profile != nil && h.profiles != nil {
		if err := h.profiles.UpdateProfile(ctx, m.Sender, m.Profile); err != nil {
			log.Warn("update sender profile", zap.String("sender", m.Sender), zap.Error(err))
		}
	}

	switch u := gu.Update.(type) {
	case *model.GroupInvite:
		return h.handleInvite(m, u)
	case *model.GroupInviteResponse:
		return h.handleInviteResponse(m, group, u)
	case *model.GroupPromote:
		return h.handlePromote(m, u)
	case *model.GroupInfoChange:
		return h.handleInfoChange(ctx, m, group, u)
	case *model.GroupMemberChange:
		return h.handleMemberChange(ctx, m, group, u)
	case *model.GroupMemberLeft:
		return h.handleMemberLeft(m, group)
	case *model.GroupMemberLeftNotification:
		return h.storage.InsertGroupInfoChange(ctx, m, group)
	case *model.GroupDeleteMemberContent:
		return h.handleDeleteMemberContent(m, group, u)
	}
	return fmt.Errorf("%w: %T", ErrNotGroupUpdate, gu.Update)
}

func (h *Handler) handleInvite(m *model.Message, inv *model.GroupInvite) error {
	group, err := model.ParseAccountID(inv.GroupID)
	if err != nil {
		return err
	}
	// The admin signs the invitee's id, which is ours.
	msg := groupauth.InviteBytes(h.user.AccountID().Hex(), m.SentTimestamp)
	if err := groupauth.Verify(group, inv.AdminSignature, msg); err != nil {
		return err
	}
	inviter, err := model.ParseAccountID(m.Sender)
	if err != nil {
		return err
	}

	invitation := Invitation{
		GroupID:     group,
		Name:        inv.Name,
		AuthData:    inv.MemberAuthData,
		Inviter:     inviter,
		InviterName: displayName(m),
		MessageHash: m.ServerHash,
		Timestamp:   m.SentTimestamp,
	}
	h.spawner.Go("handle group invite", func(ctx context.Context) error {
		return h.manager.HandleInvitation(ctx, invitation)
	})
	return nil
}

func (h *Handler) handleInviteResponse(m *model.Message, group model.AccountID, r *model.GroupInviteResponse) error {
	sender, err := model.ParseAccountID(m.Sender)
	if err != nil {
		return err
	}
	approved := r.Approved
	h.spawner.Go("handle group invite response", func(ctx context.Context) error {
		return h.manager.HandleInviteResponse(ctx, group, sender, approved)
	})
	return nil
}

// handlePromote derives the group from the promoted admin seed; there is no
// signature to check since holding the seed is the proof.
func (h *Handler) handlePromote(m *model.Message, p *model.GroupPromote) error {
	promoter, err := model.ParseAccountID(m.Sender)
	if err != nil {
		return err
	}
	if !p.Valid() {
		return fmt.Errorf("promotion seed: %w", ErrInvalidUpdate)
	}
	pub, _ := signature.KeypairFromSeed(p.GroupIdentitySeed)
	group, err := model.NewAccountID(model.PrefixGroup, pub)
	if err != nil {
		return err
	}

	promotion := Promotion{
		GroupID:      group,
		Name:         p.Name,
		AdminKeySeed: p.GroupIdentitySeed,
		Promoter:     promoter,
		PromoterName: displayName(m),
		MessageHash:  m.ServerHash,
		Timestamp:    m.SentTimestamp,
	}
	h.spawner.Go("handle group promotion", func(ctx context.Context) error {
		return h.manager.HandlePromotion(ctx, promotion)
	})
	return nil
}

func (h *Handler) handleInfoChange(ctx context.Context, m *model.Message, group model.AccountID, c *model.GroupInfoChange) error {
	if len(c.AdminSignature) == 0 {
		return fmt.Errorf("%w: info change without admin signature", ErrSignatureVerificationFailed)
	}
	if err := groupauth.Verify(group, c.AdminSignature, groupauth.InfoChangeBytes(c.Type, m.SentTimestamp)); err != nil {
		return err
	}
	return h.storage.InsertGroupInfoChange(ctx, m, group)
}

func (h *Handler) handleMemberChange(ctx context.Context, m *model.Message, group model.AccountID, c *model.GroupMemberChange) error {
	if err := groupauth.Verify(group, c.AdminSignature, groupauth.MemberChangeBytes(c.Type, m.SentTimestamp)); err != nil {
		return err
	}
	return h.storage.InsertGroupInfoChange(ctx, m, group)
}

func (h *Handler) handleMemberLeft(m *model.Message, group model.AccountID) error {
	sender, err := model.ParseAccountID(m.Sender)
	if err != nil {
		return err
	}
	h.spawner.Go("handle group member left", func(ctx context.Context) error {
		return h.manager.HandleMemberLeft(ctx, group, sender)
	})
	return nil
}

// handleDeleteMemberContent never fails on a bad signature. The group manager
// decides per item what a non-admin sender may delete.
func (h *Handler) handleDeleteMemberContent(m *model.Message, group model.AccountID, c *model.GroupDeleteMemberContent) error {
	sender, err := model.ParseAccountID(m.Sender)
	if err != nil {
		return err
	}
	verified := len(c.AdminSignature) > 0 &&
		groupauth.Verify(group, c.AdminSignature, groupauth.DeleteMemberContentBytes(c.MemberIDs, c.MessageHashes, m.SentTimestamp)) == nil

	ts := m.SentTimestamp
	h.spawner.Go("handle group delete member content", func(ctx context.Context) error {
		return h.manager.HandleDeleteMemberContent(ctx, group, sender, c, ts, verified)
	})
	return nil
}

func displayName(m *model.Message) string {
	if m.Profile == nil {
		return ""
	}
	return m.Profile.DisplayName
}
