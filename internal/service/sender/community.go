package sender

import (
	"context"
	"e2e_transport/internal/model"
	"encoding/base64"
	"fmt"
	"slices"
)

func (s *Sender) sendToCommunity(ctx context.Context, m *model.Message, dest model.Destination) error {
	err := s.postToCommunity(ctx, m, dest)
	if err != nil {
		s.handleFailure(ctx, m, err, false)
	}
	return err
}

func (s *Sender) postToCommunity(ctx context.Context, m *model.Message, dest model.Destination) error {
	if s.User == nil {
		return newError(NoUserKeyPair, nil)
	}
	if m.SentTimestamp == 0 {
		m.SentTimestamp = s.Clock.NowMillis()
	}
	if v, ok := m.Body.(*model.VisibleMessage); ok && s.Settings != nil {
		v.BlocksMessageRequests = s.Settings.BlocksCommunityMessageRequests(ctx)
	}

	var server, serverPub string
	switch d := dest.(type) {
	case model.OpenGroup:
		server = d.Server
	case model.OpenGroupInbox:
		server, serverPub = d.Server, d.ServerPublicKey
	case model.LegacyOpenGroup:
		server = d.Server
		dest = model.OpenGroup{Server: d.Server, Room: d.Room}
	default:
		return newError(InvalidMessage, fmt.Errorf("%T is not a community destination", dest))
	}
	caps, err := s.Community.Capabilities(ctx, server)
	if err != nil {
		return fmt.Errorf("community capabilities: %w", err)
	}
	// A blinding server must never see the unblinded id, so a missing key
	// fails the send instead of falling back.
	blind := slices.Contains(caps, model.CommunityCapabilityBlind)
	if blind && serverPub == "" {
		if serverPub, err = s.Community.ServerPublicKey(ctx, server); err != nil {
			return fmt.Errorf("community server key: %w", err)
		}
	}

	senderID, err := s.communitySender(serverPub, blind)
	if err != nil {
		return err
	}
	m.Sender = senderID.Hex()
	s.attachProfile(ctx, m)

	switch d := dest.(type) {
	case model.OpenGroup:
		whisperMods := "null"
		if d.WhisperTo == "" && d.WhisperMods {
			whisperMods = "mods"
		}
		m.Recipient = fmt.Sprintf("%s.%s.%s.%s", d.Server, d.Room, d.WhisperTo, whisperMods)
		return s.postRoomMessage(ctx, m, d, serverPub, blind)
	case model.OpenGroupInbox:
		m.Recipient = d.BlindedPublicKey
		return s.postInboxMessage(ctx, m, d)
	}
	return nil
}

func (s *Sender) communitySender(serverPub string, blind bool) (model.AccountID, error) {
	id, err := s.Strategy.CommunitySender(serverPub, blind)
	if err != nil {
		return model.AccountID{}, classify(err)
	}
	return id, nil
}

func (s *Sender) validateCommunity(m *model.Message) error {
	if _, ok := m.Body.(*model.VisibleMessage); !ok || !m.Valid() {
		return newError(InvalidMessage, nil)
	}
	return nil
}

func (s *Sender) postRoomMessage(ctx context.Context, m *model.Message, d model.OpenGroup, serverPub string, blind bool) error {
	if err := s.validateCommunity(m); err != nil {
		return err
	}
	content, err := buildContent(m)
	if err != nil {
		return err
	}
	res, err := s.Strategy.Encrypt(ctx, d, content, m.SentTimestamp)
	if err != nil {
		return classify(err)
	}
	_, sig, err := s.Strategy.SignCommunityPost(res.Payload, serverPub, blind)
	if err != nil {
		return classify(err)
	}

	posted, err := s.Community.PostMessage(ctx, d.Server, d.Room, &model.CommunityPost{
		Sender:    m.Sender,
		Timestamp: m.SentTimestamp,
		Data:      base64.StdEncoding.EncodeToString(res.Payload),
		Signature: base64.StdEncoding.EncodeToString(sig),
		WhisperTo: d.WhisperTo,
		Whisper:   d.WhisperMods,
		FileIDs:   d.FileIDs,
	})
	if err != nil {
		return err
	}
	m.OpenGroupServerMessageID = posted.ID
	s.handleSuccess(ctx, m, d, false, posted.PostedAt)
	return nil
}

func (s *Sender) postInboxMessage(ctx context.Context, m *model.Message, d model.OpenGroupInbox) error {
	if err := s.validateCommunity(m); err != nil {
		return err
	}
	content, err := buildContent(m)
	if err != nil {
		return err
	}
	res, err := s.Strategy.Encrypt(ctx, d, content, m.SentTimestamp)
	if err != nil {
		return classify(err)
	}

	posted, err := s.Community.PostDirectMessage(ctx, d.Server, d.BlindedPublicKey, base64.StdEncoding.EncodeToString(res.Payload))
	if err != nil {
		return err
	}
	m.OpenGroupServerMessageID = posted.ID
	s.handleSuccess(ctx, m, d, false, posted.PostedAt)
	return nil
}
